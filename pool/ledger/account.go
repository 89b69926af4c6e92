// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import "math/big"

// Account is the ledger record of one participant.
//
// The Snap* fields form the participant's accrual snapshot: reward earned
// between two touches is derived from the distance the global accumulator
// travelled since SnapAcc, weighted by SnapAvailable. Records are never
// deleted, a participant that fully exits keeps its history at zero votes.
type Account struct {
	TotalVotes uint64 // lifetime contributed minus withdrawn
	Available  uint64 // locking + locked, still earning
	Locked     uint64 // entry delay matured
	Unlocked   uint64 // exit delay matured, withdrawable

	ClaimedInterest *big.Int
	CurrentInterest *big.Int

	SnapAvailable uint64
	SnapAcc       *big.Int
	SnapBlock     uint64
}

// IsEmpty reports whether the account has never been touched.
func (a *Account) IsEmpty() bool {
	return a.TotalVotes == 0 &&
		a.Available == 0 &&
		a.Locked == 0 &&
		a.Unlocked == 0 &&
		a.ClaimedInterest.Sign() == 0 &&
		a.CurrentInterest.Sign() == 0 &&
		a.SnapAvailable == 0 &&
		a.SnapAcc.Sign() == 0 &&
		a.SnapBlock == 0
}

func (a *Account) norm() *Account {
	if a.ClaimedInterest == nil {
		a.ClaimedInterest = new(big.Int)
	}
	if a.CurrentInterest == nil {
		a.CurrentInterest = new(big.Int)
	}
	if a.SnapAcc == nil {
		a.SnapAcc = new(big.Int)
	}
	return a
}
