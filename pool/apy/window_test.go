// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package apy

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pospool/pospool/lvldb"
	"github.com/pospool/pospool/pospool"
	"github.com/pospool/pospool/slot"
	"github.com/pospool/pospool/state"
)

func newWindow(t *testing.T, span uint64) *Window {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sctx := slot.NewContext(pospool.BytesToAddress([]byte("pool")), state.New(db))
	return New(sctx, pospool.BytesToBytes32([]byte("yield-window")), span)
}

func TestComputeEmptyWindow(t *testing.T) {
	w := newWindow(t, 1000)

	yield, err := w.ComputeAnnualizedYield(nil, nil)
	assert.NoError(t, err)
	assert.Zero(t, yield.Sign())
}

func TestComputeSingleSample(t *testing.T) {
	w := newWindow(t, 1000)

	// 1 value unit of reward for 1 value unit staked over a full year
	workload := new(big.Int).SetUint64(pospool.BlocksPerYear)
	require.NoError(t, w.RecordSample(big.NewInt(1), workload, 0, 100))

	yield, err := w.ComputeAnnualizedYield(nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, new(big.Int).SetUint64(pospool.RatioBase), yield)
}

func TestComputeIncludesLiveSegment(t *testing.T) {
	w := newWindow(t, 1000)

	workload := new(big.Int).SetUint64(pospool.BlocksPerYear)
	require.NoError(t, w.RecordSample(big.NewInt(1), workload, 0, 100))

	// the live segment doubles both reward and workload, yield is unchanged
	yield, err := w.ComputeAnnualizedYield(big.NewInt(1), workload)
	assert.NoError(t, err)
	assert.Equal(t, new(big.Int).SetUint64(pospool.RatioBase), yield)

	// extra live workload without reward halves the yield
	yield, err = w.ComputeAnnualizedYield(nil, workload)
	assert.NoError(t, err)
	assert.Equal(t, new(big.Int).SetUint64(pospool.RatioBase/2), yield)
}

func TestRecordSampleSkipsZeroSpan(t *testing.T) {
	w := newWindow(t, 1000)

	require.NoError(t, w.RecordSample(big.NewInt(5), big.NewInt(5), 100, 100))
	samples, err := w.Samples()
	assert.NoError(t, err)
	assert.Empty(t, samples)
}

func TestRecordSampleEvictsExpired(t *testing.T) {
	w := newWindow(t, 100)

	require.NoError(t, w.RecordSample(big.NewInt(1), big.NewInt(10), 0, 50))
	require.NoError(t, w.RecordSample(big.NewInt(2), big.NewInt(10), 50, 100))
	// end 300 pushes the horizon to 200, dropping both earlier samples
	require.NoError(t, w.RecordSample(big.NewInt(3), big.NewInt(10), 250, 300))

	samples, err := w.Samples()
	assert.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, big.NewInt(3), samples[0].Reward)
	assert.Equal(t, uint64(250), samples[0].Start)
}

func TestRecordSampleRetainsWithinWindow(t *testing.T) {
	w := newWindow(t, 1000)

	require.NoError(t, w.RecordSample(big.NewInt(1), big.NewInt(10), 0, 100))
	require.NoError(t, w.RecordSample(big.NewInt(2), big.NewInt(10), 100, 200))

	samples, err := w.Samples()
	assert.NoError(t, err)
	assert.Len(t, samples, 2)

	yield, err := w.ComputeAnnualizedYield(nil, nil)
	assert.NoError(t, err)
	// 3 * RatioBase * BlocksPerYear / 20
	want := new(big.Int).SetUint64(3 * pospool.RatioBase * pospool.BlocksPerYear / 20)
	assert.Equal(t, want, yield)
}
