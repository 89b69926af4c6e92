// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solo

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pospool/pospool/pospool"
)

func TestStakingLifecycle(t *testing.T) {
	s := New()

	block, err := s.BlockMarker()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), block)

	require.NoError(t, s.DepositCollateral(big.NewInt(1000)))
	held, err := s.HeldBalance()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), held)

	require.NoError(t, s.IncreaseVotePower(3))
	require.NoError(t, s.RetireVotePower(2))
	assert.Error(t, s.RetireVotePower(2))

	s.Tick(0)
	block, err = s.BlockMarker()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), block)

	alice := pospool.BytesToAddress([]byte("alice"))
	require.NoError(t, s.Transfer(alice, big.NewInt(400)))
	held, err = s.HeldBalance()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(600), held)
	assert.Error(t, s.Transfer(alice, big.NewInt(601)))

	s.InjectReward(big.NewInt(250))
	held, err = s.HeldBalance()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(850), held)
}
