// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pospool

// Constants of the pool protocol.
const (
	// RatioBase is the denominator of all ratio values.
	RatioBase uint64 = 10000

	// DefaultUserShareRatio is the default share of gross reward credited to
	// participants; the remainder is retained by the pool operator.
	DefaultUserShareRatio uint64 = 9000

	// DefaultCountPerVote is the default amount of currency units backing one
	// vote power unit.
	DefaultCountPerVote uint64 = 1000

	// BlocksPerDay number of block markers produced in one day.
	BlocksPerDay uint64 = 2 * 3600 * 24

	// BlocksPerYear number of block markers produced in one year.
	BlocksPerYear uint64 = BlocksPerDay * 365

	// DefaultEntryDelay blocks between stake admission and lock-in.
	// Thirteen days plus a half-hour settlement margin.
	DefaultEntryDelay uint64 = 13*BlocksPerDay + 3600

	// DefaultExitDelay blocks between stake retirement and withdrawability.
	// One day plus a half-hour settlement margin.
	DefaultExitDelay uint64 = BlocksPerDay + 3600

	// DefaultAPYWindow span of the trailing yield observation window.
	DefaultAPYWindow uint64 = 7 * BlocksPerDay
)
