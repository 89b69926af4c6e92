// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package maturity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pospool/pospool/lvldb"
	"github.com/pospool/pospool/pospool"
	"github.com/pospool/pospool/slot"
	"github.com/pospool/pospool/state"
)

func newQueue(t *testing.T) *Queue {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sctx := slot.NewContext(pospool.BytesToAddress([]byte("pool")), state.New(db))
	return New(sctx, pospool.BytesToBytes32([]byte("entry-queue")))
}

func TestCollectMaturedPrefix(t *testing.T) {
	q := newQueue(t)

	require.NoError(t, q.Enqueue(1, 100))
	require.NoError(t, q.Enqueue(2, 100))
	require.NoError(t, q.Enqueue(3, 200))
	require.NoError(t, q.Enqueue(4, 300))

	// nothing matured yet
	sum, err := q.CollectMatured(99)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), sum)

	sum, err = q.CollectMatured(200)
	assert.NoError(t, err)
	assert.Equal(t, uint64(6), sum)

	// remaining nodes keep order and markers
	items, err := q.ListItems(0, 10)
	assert.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, Item{Units: 4, Maturity: 300}, items[0])

	sum, err = q.CollectMatured(300)
	assert.NoError(t, err)
	assert.Equal(t, uint64(4), sum)

	n, err := q.Len()
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestCollectMaturedExactBoundary(t *testing.T) {
	q := newQueue(t)
	require.NoError(t, q.Enqueue(1, 100))

	sum, err := q.CollectMatured(99)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), sum)

	// marker == now counts as matured
	sum, err = q.CollectMatured(100)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), sum)
}

func TestPeekSumMaturedDoesNotMutate(t *testing.T) {
	q := newQueue(t)
	require.NoError(t, q.Enqueue(5, 10))
	require.NoError(t, q.Enqueue(7, 20))

	for i := 0; i < 2; i++ {
		sum, err := q.PeekSumMatured(15)
		assert.NoError(t, err)
		assert.Equal(t, uint64(5), sum)
	}

	// the collect after peeking returns the same prefix
	sum, err := q.CollectMatured(15)
	assert.NoError(t, err)
	assert.Equal(t, uint64(5), sum)
}

func TestListItemsPagination(t *testing.T) {
	q := newQueue(t)
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, q.Enqueue(i, i*10))
	}

	items, err := q.ListItems(1, 2)
	assert.NoError(t, err)
	assert.Equal(t, []Item{{2, 20}, {3, 30}}, items)

	// offset beyond length
	items, err = q.ListItems(9, 2)
	assert.NoError(t, err)
	assert.Empty(t, items)

	// limit clamped to remaining length
	items, err = q.ListItems(3, 100)
	assert.NoError(t, err)
	assert.Equal(t, []Item{{4, 40}, {5, 50}}, items)

	// pagination indices survive head collection
	_, err = q.CollectMatured(20)
	assert.NoError(t, err)
	items, err = q.ListItems(0, 2)
	assert.NoError(t, err)
	assert.Equal(t, []Item{{3, 30}, {4, 40}}, items)
}

func TestEnqueueRejectsDecreasingMarker(t *testing.T) {
	q := newQueue(t)
	require.NoError(t, q.Enqueue(1, 100))
	assert.Error(t, q.Enqueue(1, 99))
	// equal markers are fine
	assert.NoError(t, q.Enqueue(1, 100))
}
