// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"github.com/pkg/errors"

	"github.com/pospool/pospool/pospool"
)

// requireOwner fails with ErrUnauthorized unless caller is the pool owner.
func (p *Pool) requireOwner(caller pospool.Address) error {
	owner, err := p.cfg.owner.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get owner")
	}
	if caller != owner || owner.IsZero() {
		return ErrUnauthorized
	}
	return nil
}

// requireAdmin fails with ErrUnauthorized unless caller is the owner or the
// manager.
func (p *Pool) requireAdmin(caller pospool.Address) error {
	if err := p.requireOwner(caller); err == nil {
		return nil
	}
	manager, err := p.cfg.manager.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get manager")
	}
	if caller != manager || manager.IsZero() {
		return ErrUnauthorized
	}
	return nil
}

// SetShareRatio updates the participant share of gross reward. Takes effect
// on future reconciliations only; already booked interest is untouched.
func (p *Pool) SetShareRatio(caller pospool.Address, ratio uint64) error {
	return p.runLocked("set_share_ratio", true, func(_ uint64) (*Event, error) {
		if err := p.requireAdmin(caller); err != nil {
			return nil, err
		}
		if ratio > pospool.RatioBase {
			return nil, ErrInvalidAmount
		}
		p.cfg.shareRatio.Set(ratio)
		return &Event{Participant: caller, Units: ratio}, nil
	})
}

// SetEntryDelay updates the lock-in delay for future enqueues.
func (p *Pool) SetEntryDelay(caller pospool.Address, delay uint64) error {
	return p.runLocked("set_entry_delay", true, func(_ uint64) (*Event, error) {
		if err := p.requireAdmin(caller); err != nil {
			return nil, err
		}
		p.cfg.entryDelay.Set(delay)
		return &Event{Participant: caller, Units: delay}, nil
	})
}

// SetExitDelay updates the withdrawal delay for future enqueues.
func (p *Pool) SetExitDelay(caller pospool.Address, delay uint64) error {
	return p.runLocked("set_exit_delay", true, func(_ uint64) (*Event, error) {
		if err := p.requireAdmin(caller); err != nil {
			return nil, err
		}
		p.cfg.exitDelay.Set(delay)
		return &Event{Participant: caller, Units: delay}, nil
	})
}

// SetCountPerVote updates the value backing one vote unit. Owner only; the
// change applies to future stake movements, never retroactively.
func (p *Pool) SetCountPerVote(caller pospool.Address, countPerVote uint64) error {
	return p.runLocked("set_count_per_vote", true, func(_ uint64) (*Event, error) {
		if err := p.requireOwner(caller); err != nil {
			return nil, err
		}
		if countPerVote == 0 {
			return nil, ErrInvalidAmount
		}
		p.cfg.countPerVote.Set(countPerVote)
		return &Event{Participant: caller, Units: countPerVote}, nil
	})
}

// SetManager hands the manager role to another identity. Owner only.
func (p *Pool) SetManager(caller, manager pospool.Address) error {
	return p.runLocked("set_manager", true, func(_ uint64) (*Event, error) {
		if err := p.requireOwner(caller); err != nil {
			return nil, err
		}
		p.cfg.manager.Set(manager)
		return &Event{Participant: manager}, nil
	})
}

// SetRelay hands the relay role to another identity. Owner only.
func (p *Pool) SetRelay(caller, relay pospool.Address) error {
	return p.runLocked("set_relay", true, func(_ uint64) (*Event, error) {
		if err := p.requireOwner(caller); err != nil {
			return nil, err
		}
		p.cfg.relay.Set(relay)
		return &Event{Participant: relay}, nil
	})
}

// SetFeeExempt marks or unmarks a participant as receiving the full gross
// reward. The flag applies from the participant's next reconciliation.
func (p *Pool) SetFeeExempt(caller, staker pospool.Address, exempt bool) error {
	return p.runLocked("set_fee_exempt", true, func(_ uint64) (*Event, error) {
		if err := p.requireAdmin(caller); err != nil {
			return nil, err
		}
		if exempt {
			if err := p.cfg.feeExempt.Set(staker, true); err != nil {
				return nil, errors.Wrap(err, "failed to set fee exempt flag")
			}
		} else {
			if err := p.cfg.feeExempt.Clear(staker); err != nil {
				return nil, errors.Wrap(err, "failed to clear fee exempt flag")
			}
		}
		return &Event{Participant: staker}, nil
	})
}
