// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/pospool/pospool/pool/maturity"
	"github.com/pospool/pospool/pospool"
)

// UserSummary is the read-only view of one participant, with queue maturity
// and pending reward applied as-if reconciled.
type UserSummary struct {
	TotalVotes uint64 `json:"totalVotes"`
	Available  uint64 `json:"available"`
	Locked     uint64 `json:"locked"`
	Unlocked   uint64 `json:"unlocked"`

	PendingEntry uint64 `json:"pendingEntry"`
	PendingExit  uint64 `json:"pendingExit"`

	CurrentInterest *big.Int `json:"currentInterest"`
	ClaimedInterest *big.Int `json:"claimedInterest"`
}

// PoolSummary is the read-only view of the pool aggregate.
type PoolSummary struct {
	Registered     bool     `json:"registered"`
	TotalAvailable uint64   `json:"totalAvailable"`
	StakerCount    uint64   `json:"stakerCount"`
	FeeReserve     *big.Int `json:"feeReserve"`
	Gross          *big.Int `json:"grossDistributed"`
	ShareRatio     uint64   `json:"shareRatio"`
	EntryDelay     uint64   `json:"entryDelay"`
	ExitDelay      uint64   `json:"exitDelay"`
	CountPerVote   uint64   `json:"countPerVote"`
	APY            *big.Int `json:"apy"`
}

// UserSummary reports the participant's balances as they would look after a
// reconciliation, without mutating anything.
func (p *Pool) UserSummary(staker pospool.Address) (*UserSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now, err := p.staking.BlockMarker()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get block marker")
	}
	acc, err := p.ledger.GetAccount(staker)
	if err != nil {
		return nil, err
	}

	entryMatured, err := p.entryQueue(staker).PeekSumMatured(now)
	if err != nil {
		return nil, err
	}
	exitMatured, err := p.exitQueue(staker).PeekSumMatured(now)
	if err != nil {
		return nil, err
	}

	held, err := p.staking.HeldBalance()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get held balance")
	}
	cpv, err := p.cfg.countPerVote.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get count per vote")
	}
	ratio, err := p.cfg.shareRatio.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get share ratio")
	}
	exempt, err := p.cfg.feeExempt.Get(staker)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get fee exempt flag")
	}
	interest, err := p.ledger.PreviewInterest(acc, held, cpv, ratio, exempt)
	if err != nil {
		return nil, err
	}

	locked := acc.Locked + entryMatured
	unlocked := acc.Unlocked + exitMatured
	return &UserSummary{
		TotalVotes:      acc.TotalVotes,
		Available:       acc.Available,
		Locked:          locked,
		Unlocked:        unlocked,
		PendingEntry:    acc.Available - locked,
		PendingExit:     acc.TotalVotes - acc.Available - unlocked,
		CurrentInterest: interest,
		ClaimedInterest: acc.ClaimedInterest,
	}, nil
}

// PoolSummary reports the pool aggregate.
func (p *Pool) PoolSummary() (*PoolSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	registered, err := p.cfg.isRegistered()
	if err != nil {
		return nil, err
	}
	total, err := p.ledger.TotalAvailable()
	if err != nil {
		return nil, err
	}
	count, err := p.ledger.StakerCount()
	if err != nil {
		return nil, err
	}
	fee, err := p.ledger.FeeReserve()
	if err != nil {
		return nil, err
	}
	gross, err := p.ledger.GrossDistributed()
	if err != nil {
		return nil, err
	}
	ratio, err := p.cfg.shareRatio.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get share ratio")
	}
	entryDelay, err := p.cfg.entryDelay.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get entry delay")
	}
	exitDelay, err := p.cfg.exitDelay.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get exit delay")
	}
	cpv, err := p.cfg.countPerVote.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get count per vote")
	}
	yield, err := p.poolAPY()
	if err != nil {
		return nil, err
	}

	return &PoolSummary{
		Registered:     registered,
		TotalAvailable: total,
		StakerCount:    count,
		FeeReserve:     fee,
		Gross:          gross,
		ShareRatio:     ratio,
		EntryDelay:     entryDelay,
		ExitDelay:      exitDelay,
		CountPerVote:   cpv,
		APY:            yield,
	}, nil
}

// PoolAPY returns the trailing annualized yield scaled by RatioBase.
func (p *Pool) PoolAPY() (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.poolAPY()
}

// poolAPY folds the pending (not yet reconciled) reward interval into the
// window computation as a live segment. The caller holds the pool mutex.
func (p *Pool) poolAPY() (*big.Int, error) {
	now, err := p.staking.BlockMarker()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get block marker")
	}
	held, err := p.staking.HeldBalance()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get held balance")
	}
	anchorBal, err := p.ledger.AnchorBalance()
	if err != nil {
		return nil, err
	}
	anchorAvail, err := p.ledger.AnchorAvailable()
	if err != nil {
		return nil, err
	}
	anchorBlk, err := p.ledger.AnchorBlock()
	if err != nil {
		return nil, err
	}
	cpv, err := p.cfg.countPerVote.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get count per vote")
	}

	var liveReward, liveWorkload *big.Int
	if delta := new(big.Int).Sub(held, anchorBal); delta.Sign() > 0 {
		liveReward = delta
	}
	if anchorAvail > 0 && now > anchorBlk {
		liveWorkload = new(big.Int).SetUint64(anchorAvail)
		liveWorkload.Mul(liveWorkload, new(big.Int).SetUint64(cpv))
		liveWorkload.Mul(liveWorkload, new(big.Int).SetUint64(now-anchorBlk))
	}
	return p.window.ComputeAnnualizedYield(liveReward, liveWorkload)
}

// ListEntryQueue pages through the staker's pending entry parcels.
func (p *Pool) ListEntryQueue(staker pospool.Address, offset, limit uint64) ([]maturity.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entryQueue(staker).ListItems(offset, limit)
}

// ListExitQueue pages through the staker's pending exit parcels.
func (p *Pool) ListExitQueue(staker pospool.Address, offset, limit uint64) ([]maturity.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitQueue(staker).ListItems(offset, limit)
}

// IsStaker reports whether the address currently holds votes.
func (p *Pool) IsStaker(addr pospool.Address) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.IsStaker(addr)
}
