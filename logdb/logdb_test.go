// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pospool/pospool/pool"
	"github.com/pospool/pospool/pospool"
)

func TestRecordAndFilter(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()

	alice := pospool.BytesToAddress([]byte("alice"))
	bob := pospool.BytesToAddress([]byte("bob"))

	require.NoError(t, db.Record(&pool.Event{
		Op: "increase_stake", Participant: alice, Units: 2, Value: big.NewInt(2000), Block: 10,
	}))
	require.NoError(t, db.Record(&pool.Event{
		Op: "increase_stake", Participant: bob, Units: 1, Value: big.NewInt(1000), Block: 20,
	}))
	require.NoError(t, db.Record(&pool.Event{
		Op: "claim_interest", Participant: alice, Value: big.NewInt(900), Block: 30,
	}))

	// unfiltered, oldest first
	events, err := db.Filter(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "increase_stake", events[0].Op)
	assert.Equal(t, alice, events[0].Participant)
	assert.Equal(t, uint64(2), events[0].Units)
	assert.Equal(t, big.NewInt(2000), events[0].Value)
	assert.Equal(t, uint64(10), events[0].Block)

	// by participant
	events, err = db.Filter(context.Background(), &EventFilter{Participant: &alice})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "claim_interest", events[1].Op)

	// by op and block range
	events, err = db.Filter(context.Background(), &EventFilter{Op: "increase_stake", FromBlock: 15, ToBlock: 25})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, bob, events[0].Participant)

	// limit
	events, err = db.Filter(context.Background(), &EventFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)

	// nil value stored as zero
	require.NoError(t, db.Record(&pool.Event{Op: "set_share_ratio", Participant: alice, Block: 40}))
	events, err = db.Filter(context.Background(), &EventFilter{Op: "set_share_ratio"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Zero(t, events[0].Value.Sign())
}
