// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import "github.com/pkg/errors"

// Validation failures surfaced by pool operations. All of them abort the
// operation with no state retained; none is retryable.
var (
	// ErrNotReady means the pool has not completed registration yet.
	ErrNotReady = errors.New("pool not ready")

	// ErrInvalidAmount means zero units or a mismatched transferred value.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientLocked means the matured locked balance does not cover
	// the requested decrease.
	ErrInsufficientLocked = errors.New("insufficient locked stake")

	// ErrInsufficientUnlocked means the matured unlocked balance does not
	// cover the requested withdrawal.
	ErrInsufficientUnlocked = errors.New("insufficient unlocked stake")

	// ErrInsufficientCollateral means the decrease would break a voting
	// escrow lock.
	ErrInsufficientCollateral = errors.New("insufficient collateral coverage")

	// ErrInsufficientInterest means the claim exceeds the entitlement.
	ErrInsufficientInterest = errors.New("insufficient interest")

	// ErrUnauthorized means the caller failed a role check.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyRegistered means Register was called twice.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrNothingToClaim means ClaimAllInterest found a zero entitlement.
	ErrNothingToClaim = errors.New("nothing to claim")
)
