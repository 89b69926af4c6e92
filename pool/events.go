// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"math/big"

	"github.com/pospool/pospool/pospool"
)

// Event describes one applied pool operation.
type Event struct {
	Op          string
	Participant pospool.Address
	Units       uint64
	Value       *big.Int
	Block       uint64
}

// Recorder persists applied operations for later inspection. Recording is
// observational: a recorder failure is logged, never rolls the operation
// back.
type Recorder interface {
	Record(ev *Event) error
}
