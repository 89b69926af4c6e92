// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"github.com/pkg/errors"

	"github.com/pospool/pospool/pospool"
	"github.com/pospool/pospool/slot"
)

var (
	slotRegistered   = pospool.Blake2b([]byte("pool.registered"))
	slotOwner        = pospool.Blake2b([]byte("pool.owner"))
	slotManager      = pospool.Blake2b([]byte("pool.manager"))
	slotRelay        = pospool.Blake2b([]byte("pool.relay"))
	slotShareRatio   = pospool.Blake2b([]byte("pool.share-ratio"))
	slotEntryDelay   = pospool.Blake2b([]byte("pool.entry-delay"))
	slotExitDelay    = pospool.Blake2b([]byte("pool.exit-delay"))
	slotCountPerVote = pospool.Blake2b([]byte("pool.count-per-vote"))
	slotFeeExempt    = pospool.Blake2b([]byte("pool.fee-exempt"))
	slotMirrorAPY    = pospool.Blake2b([]byte("pool.mirror-apy"))
	slotEntryQueue   = pospool.Blake2b([]byte("pool.entry-queue"))
	slotExitQueue    = pospool.Blake2b([]byte("pool.exit-queue"))
)

// config holds the pool-level settings. All values persist in slots and are
// written once at registration; admin setters change them for future
// operations only.
type config struct {
	registered   *slot.Uint64
	owner        *slot.Address
	manager      *slot.Address
	relay        *slot.Address
	shareRatio   *slot.Uint64
	entryDelay   *slot.Uint64
	exitDelay    *slot.Uint64
	countPerVote *slot.Uint64
	feeExempt    *slot.Mapping[pospool.Address, bool]
	mirrorAPY    *slot.Uint64
}

func newConfig(sctx *slot.Context) *config {
	return &config{
		registered:   slot.NewUint64(sctx, slotRegistered),
		owner:        slot.NewAddress(sctx, slotOwner),
		manager:      slot.NewAddress(sctx, slotManager),
		relay:        slot.NewAddress(sctx, slotRelay),
		shareRatio:   slot.NewUint64(sctx, slotShareRatio),
		entryDelay:   slot.NewUint64(sctx, slotEntryDelay),
		exitDelay:    slot.NewUint64(sctx, slotExitDelay),
		countPerVote: slot.NewUint64(sctx, slotCountPerVote),
		feeExempt:    slot.NewMapping[pospool.Address, bool](sctx, slotFeeExempt),
		mirrorAPY:    slot.NewUint64(sctx, slotMirrorAPY),
	}
}

func (c *config) isRegistered() (bool, error) {
	v, err := c.registered.Get()
	if err != nil {
		return false, errors.Wrap(err, "failed to get registered flag")
	}
	return v != 0, nil
}

// queueBase derives the storage root of one participant's queue from the
// pool-wide queue slot and the participant address.
func queueBase(root pospool.Bytes32, addr pospool.Address) pospool.Bytes32 {
	return pospool.Blake2b(root.Bytes(), addr.Bytes())
}
