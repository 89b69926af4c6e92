// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package pool implements the staking pool account engine.
//
// The pool accepts stake in whole vote units, forwards the backing value to
// the consensus layer and accounts reward lazily through the ledger's global
// accumulator. Entry and exit of stake are delayed through per-participant
// maturity queues. Every operation is serialized behind one mutex and runs
// inside a state checkpoint: a failing collaborator call rolls the whole
// operation back.
package pool

import (
	"math/big"
	"sync"

	"github.com/pkg/errors"

	"github.com/pospool/pospool/log"
	"github.com/pospool/pospool/metrics"
	"github.com/pospool/pospool/pool/apy"
	"github.com/pospool/pospool/pool/ledger"
	"github.com/pospool/pospool/pool/maturity"
	"github.com/pospool/pospool/pospool"
	"github.com/pospool/pospool/slot"
	"github.com/pospool/pospool/state"
)

var (
	logger        = log.WithContext("pkg", "pool")
	metricOpCount = metrics.LazyLoadCounterVec("pool_operation_count", []string{"op", "outcome"})
)

// ConsensusStaking is the consensus-layer collaborator settling capital
// movements. Every call is atomic-or-fails; a failure aborts the enclosing
// pool operation.
type ConsensusStaking interface {
	DepositCollateral(amount *big.Int) error
	WithdrawCollateral(amount *big.Int) error
	RegisterNode(identity pospool.Bytes32, votePower uint64, proof []byte) error
	IncreaseVotePower(units uint64) error
	RetireVotePower(units uint64) error
	LockForVotePower(amount *big.Int, until uint64) error
	Transfer(to pospool.Address, amount *big.Int) error
	HeldBalance() (*big.Int, error)
	BlockMarker() (uint64, error)
}

// VotingEscrow optionally reports per-participant collateral locks. A nil
// escrow means no locks, never a blocked operation.
type VotingEscrow interface {
	UserLockInfo(addr pospool.Address) (amount *big.Int, until uint64, err error)
	UserVotePower(addr pospool.Address) (uint64, error)
}

// Options configures a pool instance. Zero fields fall back to the protocol
// defaults at registration time.
type Options struct {
	Owner        pospool.Address
	Relay        pospool.Address
	ShareRatio   uint64
	EntryDelay   uint64
	ExitDelay    uint64
	CountPerVote uint64

	Escrow   VotingEscrow
	Recorder Recorder
}

// Pool is the singleton staking pool engine. All operations, queries
// included, are serialized behind the pool mutex.
type Pool struct {
	mu sync.Mutex

	state   *state.State
	sctx    *slot.Context
	cfg     *config
	ledger  *ledger.Service
	window  *apy.Window
	staking ConsensusStaking
	opts    Options
}

// New creates a pool bound to the given state and consensus collaborator.
// Nothing is persisted until Register.
func New(addr pospool.Address, st *state.State, staking ConsensusStaking, opts Options) *Pool {
	sctx := slot.NewContext(addr, st)
	window := apy.New(sctx, pospool.Blake2b([]byte("pool.yield-window")), pospool.DefaultAPYWindow)
	return &Pool{
		state:   st,
		sctx:    sctx,
		cfg:     newConfig(sctx),
		ledger:  ledger.New(sctx, window),
		window:  window,
		staking: staking,
		opts:    opts,
	}
}

func (p *Pool) entryQueue(addr pospool.Address) *maturity.Queue {
	return maturity.New(p.sctx, queueBase(slotEntryQueue, addr))
}

func (p *Pool) exitQueue(addr pospool.Address) *maturity.Queue {
	return maturity.New(p.sctx, queueBase(slotExitQueue, addr))
}

// runLocked executes fn inside the pool mutex and a state checkpoint,
// committing on success and reverting on any failure.
func (p *Pool) runLocked(op string, requireReady bool, fn func(now uint64) (*Event, error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if requireReady {
		ready, err := p.cfg.isRegistered()
		if err != nil {
			return p.reject(op, err)
		}
		if !ready {
			return p.reject(op, ErrNotReady)
		}
	}
	now, err := p.staking.BlockMarker()
	if err != nil {
		return p.reject(op, errors.Wrap(err, "failed to get block marker"))
	}

	checkpoint := p.state.NewCheckpoint()
	ev, err := fn(now)
	if err != nil {
		p.state.RevertTo(checkpoint)
		return p.reject(op, err)
	}
	if err := p.state.Commit(); err != nil {
		p.state.RevertTo(checkpoint)
		return p.reject(op, errors.Wrap(err, "failed to commit state"))
	}

	metricOpCount().AddWithLabel(1, map[string]string{"op": op, "outcome": "ok"})
	if ev != nil {
		ev.Op = op
		ev.Block = now
		logger.Debug("operation applied",
			"op", op, "participant", ev.Participant, "units", ev.Units, "value", ev.Value, "block", now)
		if p.opts.Recorder != nil {
			if err := p.opts.Recorder.Record(ev); err != nil {
				logger.Warn("failed to record operation", "op", op, "err", err)
			}
		}
	}
	return nil
}

func (p *Pool) reject(op string, err error) error {
	metricOpCount().AddWithLabel(1, map[string]string{"op": op, "outcome": "err"})
	logger.Debug("operation rejected", "op", op, "err", err)
	return err
}

// reconcile folds pending reward into the ledger and the participant record.
// It must run before any mutation and before the consensus collaborator
// moves the held balance.
func (p *Pool) reconcile(acc *ledger.Account, staker pospool.Address, now uint64) error {
	held, err := p.staking.HeldBalance()
	if err != nil {
		return errors.Wrap(err, "failed to get held balance")
	}
	cpv, err := p.cfg.countPerVote.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get count per vote")
	}
	if err := p.ledger.ReconcilePool(held, now, cpv); err != nil {
		return err
	}
	ratio, err := p.cfg.shareRatio.Get()
	if err != nil {
		return errors.Wrap(err, "failed to get share ratio")
	}
	exempt, err := p.cfg.feeExempt.Get(staker)
	if err != nil {
		return errors.Wrap(err, "failed to get fee exempt flag")
	}
	return p.ledger.ReconcileAccount(acc, cpv, ratio, exempt)
}

// finalize stores the account and re-anchors both snapshots against the
// post-mutation held balance.
func (p *Pool) finalize(acc *ledger.Account, staker pospool.Address, now uint64) error {
	if err := p.ledger.SnapshotAccount(acc, now); err != nil {
		return err
	}
	if err := p.ledger.SetAccount(staker, acc); err != nil {
		return err
	}
	held, err := p.staking.HeldBalance()
	if err != nil {
		return errors.Wrap(err, "failed to get held balance")
	}
	return p.ledger.SnapshotPool(held, now)
}

// Register performs the one-time pool setup: it registers the node with the
// consensus layer and persists the configured parameters.
func (p *Pool) Register(identity pospool.Bytes32, votePower uint64, proof []byte) error {
	return p.runLocked("register", false, func(now uint64) (*Event, error) {
		ready, err := p.cfg.isRegistered()
		if err != nil {
			return nil, err
		}
		if ready {
			return nil, ErrAlreadyRegistered
		}
		if err := p.staking.RegisterNode(identity, votePower, proof); err != nil {
			return nil, errors.Wrap(err, "failed to register node")
		}

		p.cfg.owner.Set(p.opts.Owner)
		manager := p.opts.Owner
		p.cfg.manager.Set(manager)
		p.cfg.relay.Set(p.opts.Relay)
		p.cfg.shareRatio.Set(orDefault(p.opts.ShareRatio, pospool.DefaultUserShareRatio))
		p.cfg.entryDelay.Set(orDefault(p.opts.EntryDelay, pospool.DefaultEntryDelay))
		p.cfg.exitDelay.Set(orDefault(p.opts.ExitDelay, pospool.DefaultExitDelay))
		p.cfg.countPerVote.Set(orDefault(p.opts.CountPerVote, pospool.DefaultCountPerVote))
		p.cfg.registered.Set(1)

		if err := p.ledger.SnapshotPool(new(big.Int), now); err != nil {
			return nil, err
		}
		return &Event{Participant: p.opts.Owner, Units: votePower}, nil
	})
}

func orDefault(v, def uint64) uint64 {
	if v == 0 {
		return def
	}
	return v
}

// IncreaseStake admits units new votes for the staker. transferred must be
// exactly units times the configured value per vote; it is forwarded to the
// consensus layer as collateral. The new votes enter the entry queue and
// start earning immediately.
func (p *Pool) IncreaseStake(staker pospool.Address, units uint64, transferred *big.Int) error {
	return p.runLocked("increase_stake", true, func(now uint64) (*Event, error) {
		if units == 0 {
			return nil, ErrInvalidAmount
		}
		cpv, err := p.cfg.countPerVote.Get()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get count per vote")
		}
		expected := unitValue(units, cpv)
		if transferred == nil || transferred.Cmp(expected) != 0 {
			return nil, errors.WithMessage(ErrInvalidAmount, "transferred value mismatch")
		}

		acc, err := p.ledger.GetAccount(staker)
		if err != nil {
			return nil, err
		}
		if err := p.reconcile(acc, staker, now); err != nil {
			return nil, err
		}

		if err := p.staking.DepositCollateral(transferred); err != nil {
			return nil, errors.Wrap(err, "failed to deposit collateral")
		}
		if err := p.staking.IncreaseVotePower(units); err != nil {
			return nil, errors.Wrap(err, "failed to increase vote power")
		}

		entryDelay, err := p.cfg.entryDelay.Get()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get entry delay")
		}
		queue := p.entryQueue(staker)
		if err := queue.Enqueue(units, now+entryDelay); err != nil {
			return nil, err
		}
		matured, err := queue.CollectMatured(now)
		if err != nil {
			return nil, err
		}
		acc.Locked += matured
		acc.TotalVotes += units
		acc.Available += units

		if err := p.ledger.AddTotalAvailable(units); err != nil {
			return nil, err
		}
		if err := p.ledger.AddStaker(staker); err != nil {
			return nil, err
		}
		if err := p.finalize(acc, staker, now); err != nil {
			return nil, err
		}
		return &Event{Participant: staker, Units: units, Value: transferred}, nil
	})
}

// DecreaseStake retires units matured votes. The units leave the earning
// set now and become withdrawable once the exit delay matures.
func (p *Pool) DecreaseStake(staker pospool.Address, units uint64) error {
	return p.runLocked("decrease_stake", true, func(now uint64) (*Event, error) {
		if units == 0 {
			return nil, ErrInvalidAmount
		}
		acc, err := p.ledger.GetAccount(staker)
		if err != nil {
			return nil, err
		}
		if err := p.reconcile(acc, staker, now); err != nil {
			return nil, err
		}

		entry := p.entryQueue(staker)
		matured, err := entry.CollectMatured(now)
		if err != nil {
			return nil, err
		}
		acc.Locked += matured
		if acc.Locked < units {
			return nil, ErrInsufficientLocked
		}

		cpv, err := p.cfg.countPerVote.Get()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get count per vote")
		}
		if p.opts.Escrow != nil {
			lockAmount, until, err := p.opts.Escrow.UserLockInfo(staker)
			if err != nil {
				return nil, errors.Wrap(err, "failed to get escrow lock info")
			}
			if lockAmount != nil && lockAmount.Sign() > 0 {
				remaining := unitValue(acc.Available-units, cpv)
				if remaining.Cmp(lockAmount) < 0 {
					return nil, ErrInsufficientCollateral
				}
				if err := p.staking.LockForVotePower(lockAmount, until); err != nil {
					return nil, errors.Wrap(err, "failed to lock for vote power")
				}
			}
		}

		if err := p.staking.RetireVotePower(units); err != nil {
			return nil, errors.Wrap(err, "failed to retire vote power")
		}

		exitDelay, err := p.cfg.exitDelay.Get()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get exit delay")
		}
		exit := p.exitQueue(staker)
		if err := exit.Enqueue(units, now+exitDelay); err != nil {
			return nil, err
		}
		unlocked, err := exit.CollectMatured(now)
		if err != nil {
			return nil, err
		}
		acc.Unlocked += unlocked
		acc.Available -= units
		acc.Locked -= units

		if err := p.ledger.SubTotalAvailable(units); err != nil {
			return nil, err
		}
		if err := p.finalize(acc, staker, now); err != nil {
			return nil, err
		}
		return &Event{Participant: staker, Units: units}, nil
	})
}

// WithdrawStake pays out units matured unlocked votes to the staker.
func (p *Pool) WithdrawStake(staker pospool.Address, units uint64) error {
	return p.runLocked("withdraw_stake", true, func(now uint64) (*Event, error) {
		if units == 0 {
			return nil, ErrInvalidAmount
		}
		acc, err := p.ledger.GetAccount(staker)
		if err != nil {
			return nil, err
		}
		if err := p.reconcile(acc, staker, now); err != nil {
			return nil, err
		}

		exit := p.exitQueue(staker)
		matured, err := exit.CollectMatured(now)
		if err != nil {
			return nil, err
		}
		acc.Unlocked += matured
		if acc.Unlocked < units {
			return nil, ErrInsufficientUnlocked
		}

		cpv, err := p.cfg.countPerVote.Get()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get count per vote")
		}
		value := unitValue(units, cpv)
		if err := p.staking.WithdrawCollateral(value); err != nil {
			return nil, errors.Wrap(err, "failed to withdraw collateral")
		}
		if err := p.staking.Transfer(staker, value); err != nil {
			return nil, errors.Wrap(err, "failed to transfer value")
		}

		acc.Unlocked -= units
		acc.TotalVotes -= units
		if acc.TotalVotes == 0 {
			if err := p.ledger.RemoveStaker(staker); err != nil {
				return nil, err
			}
		}
		if err := p.finalize(acc, staker, now); err != nil {
			return nil, err
		}
		return &Event{Participant: staker, Units: units, Value: value}, nil
	})
}

// ClaimInterest pays out amount of the staker's accrued reward.
func (p *Pool) ClaimInterest(staker pospool.Address, amount *big.Int) error {
	return p.runLocked("claim_interest", true, func(now uint64) (*Event, error) {
		return p.claim(staker, amount, now)
	})
}

// ClaimAllInterest pays out the staker's whole accrued reward and returns
// the amount paid.
func (p *Pool) ClaimAllInterest(staker pospool.Address) (*big.Int, error) {
	var claimed *big.Int
	err := p.runLocked("claim_all_interest", true, func(now uint64) (*Event, error) {
		acc, err := p.ledger.GetAccount(staker)
		if err != nil {
			return nil, err
		}
		if err := p.reconcile(acc, staker, now); err != nil {
			return nil, err
		}
		if acc.CurrentInterest.Sign() == 0 {
			return nil, ErrNothingToClaim
		}
		amount := new(big.Int).Set(acc.CurrentInterest)

		acc.CurrentInterest.SetUint64(0)
		acc.ClaimedInterest.Add(acc.ClaimedInterest, amount)
		if err := p.staking.Transfer(staker, amount); err != nil {
			return nil, errors.Wrap(err, "failed to transfer interest")
		}
		if err := p.finalize(acc, staker, now); err != nil {
			return nil, err
		}
		claimed = amount
		return &Event{Participant: staker, Value: amount}, nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// claim runs the reconcile-debit-transfer-snapshot sequence for one claim.
// The caller holds the pool mutex.
func (p *Pool) claim(staker pospool.Address, amount *big.Int, now uint64) (*Event, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	acc, err := p.ledger.GetAccount(staker)
	if err != nil {
		return nil, err
	}
	if err := p.reconcile(acc, staker, now); err != nil {
		return nil, err
	}
	if acc.CurrentInterest.Cmp(amount) < 0 {
		return nil, ErrInsufficientInterest
	}

	acc.CurrentInterest.Sub(acc.CurrentInterest, amount)
	acc.ClaimedInterest.Add(acc.ClaimedInterest, amount)
	if err := p.staking.Transfer(staker, amount); err != nil {
		return nil, errors.Wrap(err, "failed to transfer interest")
	}
	if err := p.finalize(acc, staker, now); err != nil {
		return nil, err
	}
	return &Event{Participant: staker, Value: amount}, nil
}

func unitValue(units, countPerVote uint64) *big.Int {
	v := new(big.Int).SetUint64(units)
	return v.Mul(v, new(big.Int).SetUint64(countPerVote))
}
