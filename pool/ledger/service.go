// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ledger implements the reward accrual engine.
//
// Reward income is never pushed to participants. Instead the pool keeps one
// global reward-per-vote accumulator and each participant keeps a snapshot of
// it; the difference between the two, weighted by the snapshot's available
// votes, is the participant's accrued share. Every state-changing operation
// follows the same ordering: ReconcilePool, ReconcileAccount, mutate, then
// SnapshotAccount and SnapshotPool. Reordering any of these misattributes
// reward.
package ledger

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/pospool/pospool/pool/apy"
	"github.com/pospool/pospool/pospool"
	"github.com/pospool/pospool/slot"
)

var (
	slotAccumulator     = pospool.Blake2b([]byte("ledger.accumulator"))
	slotAnchorAvailable = pospool.Blake2b([]byte("ledger.anchor-available"))
	slotAnchorBalance   = pospool.Blake2b([]byte("ledger.anchor-balance"))
	slotAnchorBlock     = pospool.Blake2b([]byte("ledger.anchor-block"))
	slotTotalAvailable  = pospool.Blake2b([]byte("ledger.total-available"))
	slotFeeReserve      = pospool.Blake2b([]byte("ledger.fee-reserve"))
	slotGross           = pospool.Blake2b([]byte("ledger.gross-distributed"))
	slotStakerCount     = pospool.Blake2b([]byte("ledger.staker-count"))
	slotStakers         = pospool.Blake2b([]byte("ledger.stakers"))
	slotAccounts        = pospool.Blake2b([]byte("ledger.accounts"))
)

// Service owns the global accumulator, the pool balance anchor and the
// participant records.
type Service struct {
	accumulator     *slot.Uint256
	anchorAvailable *slot.Uint64
	anchorBalance   *slot.Uint256
	anchorBlock     *slot.Uint64
	totalAvailable  *slot.Uint64
	feeReserve      *slot.Uint256
	gross           *slot.Uint256
	stakerCount     *slot.Uint64
	stakers         *slot.Mapping[pospool.Address, bool]
	accounts        *slot.Mapping[pospool.Address, *Account]
	window          *apy.Window
}

// New creates a ledger service feeding reward samples into the given window.
func New(sctx *slot.Context, window *apy.Window) *Service {
	return &Service{
		accumulator:     slot.NewUint256(sctx, slotAccumulator),
		anchorAvailable: slot.NewUint64(sctx, slotAnchorAvailable),
		anchorBalance:   slot.NewUint256(sctx, slotAnchorBalance),
		anchorBlock:     slot.NewUint64(sctx, slotAnchorBlock),
		totalAvailable:  slot.NewUint64(sctx, slotTotalAvailable),
		feeReserve:      slot.NewUint256(sctx, slotFeeReserve),
		gross:           slot.NewUint256(sctx, slotGross),
		stakerCount:     slot.NewUint64(sctx, slotStakerCount),
		stakers:         slot.NewMapping[pospool.Address, bool](sctx, slotStakers),
		accounts:        slot.NewMapping[pospool.Address, *Account](sctx, slotAccounts),
		window:          window,
	}
}

// GetAccount loads a participant record, zero-valued if never touched.
func (s *Service) GetAccount(addr pospool.Address) (*Account, error) {
	acc, err := s.accounts.Get(addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account")
	}
	return acc.norm(), nil
}

// SetAccount stores a participant record.
func (s *Service) SetAccount(addr pospool.Address, acc *Account) error {
	return errors.Wrap(s.accounts.Set(addr, acc.norm()), "failed to set account")
}

// ReconcilePool folds untracked held-balance growth into the global
// accumulator. delta = held - anchor balance; reward per vote is floored,
// the sub-vote remainder stays with the pool balance until a later
// reconciliation can attribute it. Reward arriving while no votes are
// available is absorbed by the pool. The observed interval also feeds the
// trailing yield window.
func (s *Service) ReconcilePool(held *big.Int, now, countPerVote uint64) error {
	anchorBal, err := s.anchorBalance.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get anchor balance")
	}
	delta := new(big.Int).Sub(held, anchorBal)
	if delta.Sign() <= 0 {
		return nil
	}
	anchorAvail, err := s.anchorAvailable.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get anchor available")
	}
	if anchorAvail == 0 {
		return nil
	}

	base := new(big.Int).SetUint64(anchorAvail)
	base.Mul(base, new(big.Int).SetUint64(countPerVote))
	if err := s.accumulator.Add(new(big.Int).Div(delta, base)); err != nil {
		return errors.Wrap(err, "failed to bump accumulator")
	}
	if err := s.gross.Add(delta); err != nil {
		return errors.Wrap(err, "failed to add gross distributed")
	}

	anchorBlk, err := s.anchorBlock.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get anchor block")
	}
	if anchorBlk < now {
		workload := new(big.Int).Mul(base, new(big.Int).SetUint64(now-anchorBlk))
		if err := s.window.RecordSample(delta, workload, anchorBlk, now); err != nil {
			return errors.Wrap(err, "failed to record yield sample")
		}
	}
	return nil
}

// ReconcileAccount credits the reward accrued since the account's snapshot,
// split between the participant and the pool fee reserve. Fee-exempt
// participants keep the full gross amount.
func (s *Service) ReconcileAccount(acc *Account, countPerVote, shareRatio uint64, feeExempt bool) error {
	if acc.SnapAvailable == 0 {
		return nil
	}
	gacc, err := s.accumulator.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get accumulator")
	}
	grossAccrued := accruedSince(gacc, acc, countPerVote)
	if grossAccrued.Sign() == 0 {
		return nil
	}

	share := splitShare(grossAccrued, shareRatio, feeExempt)
	acc.CurrentInterest.Add(acc.CurrentInterest, share)
	fee := grossAccrued.Sub(grossAccrued, share)
	if fee.Sign() > 0 {
		if err := s.feeReserve.Add(fee); err != nil {
			return errors.Wrap(err, "failed to add fee reserve")
		}
	}
	return nil
}

// PreviewInterest returns the amount a claim could take right now: the
// account's booked interest plus what a ReconcilePool followed by a
// ReconcileAccount would credit, without mutating anything.
func (s *Service) PreviewInterest(acc *Account, held *big.Int, countPerVote, shareRatio uint64, feeExempt bool) (*big.Int, error) {
	gacc, err := s.accumulator.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get accumulator")
	}

	anchorBal, err := s.anchorBalance.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get anchor balance")
	}
	delta := new(big.Int).Sub(held, anchorBal)
	if delta.Sign() > 0 {
		anchorAvail, err := s.anchorAvailable.Get()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get anchor available")
		}
		if anchorAvail > 0 {
			base := new(big.Int).SetUint64(anchorAvail)
			base.Mul(base, new(big.Int).SetUint64(countPerVote))
			gacc.Add(gacc, delta.Div(delta, base))
		}
	}

	total := new(big.Int).Set(acc.CurrentInterest)
	if acc.SnapAvailable == 0 {
		return total, nil
	}
	grossAccrued := accruedSince(gacc, acc, countPerVote)
	return total.Add(total, splitShare(grossAccrued, shareRatio, feeExempt)), nil
}

// SnapshotAccount re-anchors the account at the current accumulator value.
func (s *Service) SnapshotAccount(acc *Account, now uint64) error {
	gacc, err := s.accumulator.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get accumulator")
	}
	acc.SnapAvailable = acc.Available
	acc.SnapAcc = gacc
	acc.SnapBlock = now
	return nil
}

// SnapshotPool re-anchors the pool at the current held balance and total
// available votes.
func (s *Service) SnapshotPool(held *big.Int, now uint64) error {
	total, err := s.totalAvailable.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get total available")
	}
	s.anchorAvailable.Set(total)
	s.anchorBalance.Set(held)
	s.anchorBlock.Set(now)
	return nil
}

func accruedSince(gacc *big.Int, acc *Account, countPerVote uint64) *big.Int {
	grossAccrued := new(big.Int).Sub(gacc, acc.SnapAcc)
	grossAccrued.Mul(grossAccrued, new(big.Int).SetUint64(acc.SnapAvailable))
	return grossAccrued.Mul(grossAccrued, new(big.Int).SetUint64(countPerVote))
}

func splitShare(grossAccrued *big.Int, shareRatio uint64, feeExempt bool) *big.Int {
	if feeExempt {
		return new(big.Int).Set(grossAccrued)
	}
	share := new(big.Int).Mul(grossAccrued, new(big.Int).SetUint64(shareRatio))
	return share.Div(share, new(big.Int).SetUint64(pospool.RatioBase))
}

// AddTotalAvailable grows the pool-wide available vote count.
func (s *Service) AddTotalAvailable(units uint64) error {
	return errors.Wrap(s.totalAvailable.Add(units), "failed to add total available")
}

// SubTotalAvailable shrinks the pool-wide available vote count.
func (s *Service) SubTotalAvailable(units uint64) error {
	return errors.Wrap(s.totalAvailable.Sub(units), "failed to sub total available")
}

// TotalAvailable returns the pool-wide available vote count.
func (s *Service) TotalAvailable() (uint64, error) {
	return s.totalAvailable.Get()
}

// GlobalAccumulator returns the scaled reward-per-vote running total.
func (s *Service) GlobalAccumulator() (*big.Int, error) {
	return s.accumulator.Get()
}

// FeeReserve returns the reward retained by the pool operator so far.
func (s *Service) FeeReserve() (*big.Int, error) {
	return s.feeReserve.Get()
}

// GrossDistributed returns the lifetime gross reward observed.
func (s *Service) GrossDistributed() (*big.Int, error) {
	return s.gross.Get()
}

// AnchorBalance returns the held balance recorded by the last pool snapshot.
func (s *Service) AnchorBalance() (*big.Int, error) {
	return s.anchorBalance.Get()
}

// AnchorBlock returns the block marker of the last pool snapshot.
func (s *Service) AnchorBlock() (uint64, error) {
	return s.anchorBlock.Get()
}

// AnchorAvailable returns the available votes recorded by the last pool
// snapshot.
func (s *Service) AnchorAvailable() (uint64, error) {
	return s.anchorAvailable.Get()
}

// AddStaker marks an address as holding nonzero votes.
func (s *Service) AddStaker(addr pospool.Address) error {
	listed, err := s.stakers.Get(addr)
	if err != nil {
		return errors.Wrap(err, "failed to get staker flag")
	}
	if listed {
		return nil
	}
	if err := s.stakers.Set(addr, true); err != nil {
		return errors.Wrap(err, "failed to set staker flag")
	}
	return errors.Wrap(s.stakerCount.Add(1), "failed to bump staker count")
}

// RemoveStaker unmarks an address once its votes reach zero.
func (s *Service) RemoveStaker(addr pospool.Address) error {
	listed, err := s.stakers.Get(addr)
	if err != nil {
		return errors.Wrap(err, "failed to get staker flag")
	}
	if !listed {
		return nil
	}
	if err := s.stakers.Clear(addr); err != nil {
		return errors.Wrap(err, "failed to clear staker flag")
	}
	return errors.Wrap(s.stakerCount.Sub(1), "failed to drop staker count")
}

// IsStaker reports whether the address currently holds votes.
func (s *Service) IsStaker(addr pospool.Address) (bool, error) {
	return s.stakers.Get(addr)
}

// StakerCount returns the number of addresses with nonzero votes.
func (s *Service) StakerCount() (uint64, error) {
	return s.stakerCount.Get()
}
