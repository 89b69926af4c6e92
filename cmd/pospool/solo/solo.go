// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package solo simulates the consensus staking collaborator for development
// runs: block markers advance on a wall-clock ticker and reward drips onto
// the held balance at a configured rate.
package solo

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/pospool/pospool/log"
	"github.com/pospool/pospool/pospool"
)

var logger = log.WithContext("pkg", "solo")

// Staking is an in-memory consensus collaborator. It satisfies
// pool.ConsensusStaking.
type Staking struct {
	mu        sync.Mutex
	block     uint64
	held      *big.Int
	votePower uint64
	paid      map[pospool.Address]*big.Int
}

func New() *Staking {
	return &Staking{
		held: new(big.Int),
		paid: make(map[pospool.Address]*big.Int),
	}
}

func (s *Staking) DepositCollateral(amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held.Add(s.held, amount)
	return nil
}

func (s *Staking) WithdrawCollateral(amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held.Cmp(amount) < 0 {
		return errors.New("solo: collateral underflow")
	}
	return nil
}

func (s *Staking) RegisterNode(identity pospool.Bytes32, votePower uint64, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votePower = votePower
	logger.Info("node registered", "identity", identity, "votePower", votePower)
	return nil
}

func (s *Staking) IncreaseVotePower(units uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votePower += units
	return nil
}

func (s *Staking) RetireVotePower(units uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.votePower < units {
		return errors.New("solo: vote power underflow")
	}
	s.votePower -= units
	return nil
}

func (s *Staking) LockForVotePower(*big.Int, uint64) error {
	return nil
}

func (s *Staking) Transfer(to pospool.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held.Cmp(amount) < 0 {
		return errors.New("solo: balance underflow")
	}
	s.held.Sub(s.held, amount)
	got, ok := s.paid[to]
	if !ok {
		got = new(big.Int)
		s.paid[to] = got
	}
	got.Add(got, amount)
	return nil
}

func (s *Staking) HeldBalance() (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.held), nil
}

func (s *Staking) BlockMarker() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.block, nil
}

// Tick advances the block marker by one and drips reward onto the held
// balance at the given annualized rate (scaled by RatioBase).
func (s *Staking) Tick(aprBps uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block++

	if aprBps == 0 || s.held.Sign() == 0 {
		return
	}
	drip := new(big.Int).Mul(s.held, new(big.Int).SetUint64(aprBps))
	drip.Div(drip, new(big.Int).SetUint64(pospool.RatioBase))
	drip.Div(drip, new(big.Int).SetUint64(pospool.BlocksPerYear))
	s.held.Add(s.held, drip)
}

// InjectReward lands an arbitrary reward on the held balance, for on-demand
// testing.
func (s *Staking) InjectReward(amount *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held.Add(s.held, amount)
	logger.Info("reward injected", "amount", amount)
}

// Run advances blocks on a ticker until the context is done.
func (s *Staking) Run(ctx context.Context, interval time.Duration, aprBps uint64) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("solo staking started", "interval", interval, "apr", aprBps)
	for {
		select {
		case <-ctx.Done():
			logger.Info("solo staking stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(aprBps)
		}
	}
}
