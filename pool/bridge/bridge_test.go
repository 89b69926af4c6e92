// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bridge

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pospool/pospool/lvldb"
	"github.com/pospool/pospool/pool"
	"github.com/pospool/pospool/pospool"
	"github.com/pospool/pospool/state"
)

type stubStaking struct {
	block uint64
	held  *big.Int
}

func (s *stubStaking) DepositCollateral(amount *big.Int) error {
	s.held.Add(s.held, amount)
	return nil
}

func (s *stubStaking) WithdrawCollateral(*big.Int) error { return nil }

func (s *stubStaking) RegisterNode(pospool.Bytes32, uint64, []byte) error { return nil }

func (s *stubStaking) IncreaseVotePower(uint64) error { return nil }

func (s *stubStaking) RetireVotePower(uint64) error { return nil }

func (s *stubStaking) LockForVotePower(*big.Int, uint64) error { return nil }

func (s *stubStaking) Transfer(_ pospool.Address, amount *big.Int) error {
	s.held.Sub(s.held, amount)
	return nil
}

func (s *stubStaking) HeldBalance() (*big.Int, error) { return new(big.Int).Set(s.held), nil }

func (s *stubStaking) BlockMarker() (uint64, error) { return s.block, nil }

func newBridgedPool(t *testing.T, relay pospool.Address) (*pool.Pool, *stubStaking) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	staking := &stubStaking{held: new(big.Int)}
	p := pool.New(pospool.BytesToAddress([]byte("pool")), state.New(db), staking, pool.Options{
		Owner:      pospool.BytesToAddress([]byte("owner")),
		Relay:      relay,
		EntryDelay: 10,
		ExitDelay:  10,
	})
	require.NoError(t, p.Register(pospool.BytesToBytes32([]byte("node")), 0, nil))
	return p, staking
}

func TestBridgeAuthorization(t *testing.T) {
	relay := pospool.BytesToAddress([]byte("relay"))
	p, _ := newBridgedPool(t, relay)

	intruder := New(p, pospool.BytesToAddress([]byte("intruder")))
	assert.ErrorIs(t, intruder.HandleCrossingVotes(1, big.NewInt(1000)), pool.ErrUnauthorized)
	assert.ErrorIs(t, intruder.SetPoolAPY(1), pool.ErrUnauthorized)
	_, err := intruder.ReceiveInterest()
	assert.ErrorIs(t, err, pool.ErrUnauthorized)
}

func TestBridgeLifecycle(t *testing.T) {
	relay := pospool.BytesToAddress([]byte("relay"))
	p, staking := newBridgedPool(t, relay)

	b := New(p, relay)
	assert.Equal(t, relay, b.Relay())

	require.NoError(t, b.HandleCrossingVotes(3, big.NewInt(3000)))

	staking.block = 10
	require.NoError(t, b.HandleUnlockedIncrease(2))

	n, err := b.HandleUnstakeTask()
	require.NoError(t, err)
	assert.Zero(t, n)

	staking.block = 20
	n, err = b.HandleUnstakeTask()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	require.NoError(t, b.SetPoolAPY(777))
	yield, err := b.PoolAPY()
	require.NoError(t, err)
	assert.Equal(t, uint64(777), yield)
}
