// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package bridge exposes the relay-facing surface of a pool with the relay
// identity bound once, for the cross-chain deployment variant.
package bridge

import (
	"math/big"

	"github.com/pospool/pospool/pool"
	"github.com/pospool/pospool/pospool"
)

// Bridge binds one relay identity to a pool. Every call authenticates as
// that identity; the pool rejects it unless it matches the configured relay.
type Bridge struct {
	pool  *pool.Pool
	relay pospool.Address
}

func New(p *pool.Pool, relay pospool.Address) *Bridge {
	return &Bridge{pool: p, relay: relay}
}

// Relay returns the bound relay identity.
func (b *Bridge) Relay() pospool.Address {
	return b.relay
}

// HandleCrossingVotes stakes units arriving from the far chain.
func (b *Bridge) HandleCrossingVotes(units uint64, transferred *big.Int) error {
	return b.pool.HandleCrossingVotes(b.relay, units, transferred)
}

// HandleUnlockedIncrease retires units reported unlocked on the far chain.
func (b *Bridge) HandleUnlockedIncrease(units uint64) error {
	return b.pool.HandleUnlockedIncrease(b.relay, units)
}

// HandleUnstakeTask withdraws matured relay unstakes, returning the unit
// count moved out.
func (b *Bridge) HandleUnstakeTask() (uint64, error) {
	return b.pool.HandleUnstakeTask(b.relay)
}

// ReceiveInterest claims the relay account's entitlement for distribution on
// the far chain.
func (b *Bridge) ReceiveInterest() (*big.Int, error) {
	return b.pool.ReceiveInterest(b.relay)
}

// SetPoolAPY mirrors the yield published on the far chain.
func (b *Bridge) SetPoolAPY(yield uint64) error {
	return b.pool.SetPoolAPY(b.relay, yield)
}

// PoolAPY returns the mirrored yield.
func (b *Bridge) PoolAPY() (uint64, error) {
	return b.pool.MirroredAPY()
}
