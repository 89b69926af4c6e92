// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"math/big"

	"github.com/pospool/pospool/pospool"
)

// The relay surface serves the cross-chain variant: one fixed relay identity
// stakes, unstakes and claims on behalf of participants living on the other
// chain. The relay's own ledger account aggregates everything crossing over;
// per-participant accounting stays on the far side.

// RelayIdentity returns the configured relay address.
func (p *Pool) RelayIdentity() (pospool.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.relay.Get()
}

// checkRelay returns the relay address if caller matches it.
func (p *Pool) checkRelay(caller pospool.Address) (pospool.Address, error) {
	relay, err := p.RelayIdentity()
	if err != nil {
		return pospool.Address{}, err
	}
	if relay.IsZero() || caller != relay {
		return pospool.Address{}, ErrUnauthorized
	}
	return relay, nil
}

// HandleCrossingVotes stakes units crossing over from the far chain into the
// relay account.
func (p *Pool) HandleCrossingVotes(caller pospool.Address, units uint64, transferred *big.Int) error {
	relay, err := p.checkRelay(caller)
	if err != nil {
		return p.reject("handle_crossing_votes", err)
	}
	return p.IncreaseStake(relay, units, transferred)
}

// HandleUnlockedIncrease retires units that the far chain reported as
// unlocked; they enter the relay account's exit queue.
func (p *Pool) HandleUnlockedIncrease(caller pospool.Address, units uint64) error {
	relay, err := p.checkRelay(caller)
	if err != nil {
		return p.reject("handle_unlocked_increase", err)
	}
	return p.DecreaseStake(relay, units)
}

// HandleUnstakeTask withdraws all matured relay unstakes and returns the
// withdrawn unit count. A zero return with nil error means nothing matured.
func (p *Pool) HandleUnstakeTask(caller pospool.Address) (uint64, error) {
	relay, err := p.checkRelay(caller)
	if err != nil {
		return 0, p.reject("handle_unstake_task", err)
	}

	summary, err := p.UserSummary(relay)
	if err != nil {
		return 0, err
	}
	if summary.Unlocked == 0 {
		return 0, nil
	}
	if err := p.WithdrawStake(relay, summary.Unlocked); err != nil {
		return 0, err
	}
	return summary.Unlocked, nil
}

// ReceiveInterest claims the relay account's full entitlement to the relay
// for distribution on the far chain.
func (p *Pool) ReceiveInterest(caller pospool.Address) (*big.Int, error) {
	relay, err := p.checkRelay(caller)
	if err != nil {
		return nil, p.reject("receive_interest", err)
	}
	return p.ClaimAllInterest(relay)
}

// SetPoolAPY mirrors the yield published on the far chain, scaled by
// RatioBase.
func (p *Pool) SetPoolAPY(caller pospool.Address, yield uint64) error {
	if _, err := p.checkRelay(caller); err != nil {
		return p.reject("set_pool_apy", err)
	}
	return p.runLocked("set_pool_apy", true, func(_ uint64) (*Event, error) {
		p.cfg.mirrorAPY.Set(yield)
		return &Event{Participant: caller, Units: yield}, nil
	})
}

// MirroredAPY returns the relay-published yield, zero when never set.
func (p *Pool) MirroredAPY() (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.mirrorAPY.Get()
}
