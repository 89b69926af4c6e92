// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pospool/pospool/lvldb"
	"github.com/pospool/pospool/pospool"
	"github.com/pospool/pospool/state"
)

var (
	owner = pospool.BytesToAddress([]byte("owner"))
	alice = pospool.BytesToAddress([]byte("alice"))
	bob   = pospool.BytesToAddress([]byte("bob"))
	relay = pospool.BytesToAddress([]byte("relay"))
)

// mockStaking simulates the consensus collaborator: one liquid pot that
// deposits grow, transfers shrink and rewards drip into.
type mockStaking struct {
	block     uint64
	held      *big.Int
	votePower uint64
	locked    *big.Int
	transfers map[pospool.Address]*big.Int

	failDeposit  bool
	failTransfer bool
	failRetire   bool
}

func newMockStaking() *mockStaking {
	return &mockStaking{
		held:      new(big.Int),
		locked:    new(big.Int),
		transfers: make(map[pospool.Address]*big.Int),
	}
}

func (m *mockStaking) DepositCollateral(amount *big.Int) error {
	if m.failDeposit {
		return errors.New("deposit refused")
	}
	m.held.Add(m.held, amount)
	return nil
}

func (m *mockStaking) WithdrawCollateral(amount *big.Int) error {
	if m.held.Cmp(amount) < 0 {
		return errors.New("collateral underflow")
	}
	return nil
}

func (m *mockStaking) RegisterNode(_ pospool.Bytes32, votePower uint64, _ []byte) error {
	m.votePower = votePower
	return nil
}

func (m *mockStaking) IncreaseVotePower(units uint64) error {
	m.votePower += units
	return nil
}

func (m *mockStaking) RetireVotePower(units uint64) error {
	if m.failRetire {
		return errors.New("retire refused")
	}
	m.votePower -= units
	return nil
}

func (m *mockStaking) LockForVotePower(amount *big.Int, _ uint64) error {
	m.locked.Set(amount)
	return nil
}

func (m *mockStaking) Transfer(to pospool.Address, amount *big.Int) error {
	if m.failTransfer {
		return errors.New("transfer refused")
	}
	if m.held.Cmp(amount) < 0 {
		return errors.New("balance underflow")
	}
	m.held.Sub(m.held, amount)
	got, ok := m.transfers[to]
	if !ok {
		got = new(big.Int)
		m.transfers[to] = got
	}
	got.Add(got, amount)
	return nil
}

func (m *mockStaking) HeldBalance() (*big.Int, error) {
	return new(big.Int).Set(m.held), nil
}

func (m *mockStaking) BlockMarker() (uint64, error) {
	return m.block, nil
}

// reward simulates interest income landing on the held balance.
func (m *mockStaking) reward(amount int64) {
	m.held.Add(m.held, big.NewInt(amount))
}

func newTestPool(t *testing.T, opts Options) (*Pool, *mockStaking) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	staking := newMockStaking()
	if opts.Owner.IsZero() {
		opts.Owner = owner
	}
	if opts.EntryDelay == 0 {
		opts.EntryDelay = 100
	}
	if opts.ExitDelay == 0 {
		opts.ExitDelay = 100
	}
	p := New(pospool.BytesToAddress([]byte("pool")), state.New(db), staking, opts)
	require.NoError(t, p.Register(pospool.BytesToBytes32([]byte("node")), 0, nil))
	return p, staking
}

func stake(t *testing.T, p *Pool, staker pospool.Address, units uint64) {
	require.NoError(t, p.IncreaseStake(staker, units, big.NewInt(int64(units*1000))))
}

func TestRegister(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p := New(pospool.BytesToAddress([]byte("pool")), state.New(db), newMockStaking(), Options{Owner: owner})

	// nothing works before registration
	assert.ErrorIs(t, p.IncreaseStake(alice, 1, big.NewInt(1000)), ErrNotReady)

	require.NoError(t, p.Register(pospool.BytesToBytes32([]byte("node")), 0, nil))
	assert.ErrorIs(t, p.Register(pospool.BytesToBytes32([]byte("node")), 0, nil), ErrAlreadyRegistered)

	summary, err := p.PoolSummary()
	require.NoError(t, err)
	assert.True(t, summary.Registered)
	assert.Equal(t, pospool.DefaultUserShareRatio, summary.ShareRatio)
	assert.Equal(t, pospool.DefaultCountPerVote, summary.CountPerVote)
}

func TestIncreaseStake(t *testing.T) {
	p, staking := newTestPool(t, Options{})

	assert.ErrorIs(t, p.IncreaseStake(alice, 0, big.NewInt(0)), ErrInvalidAmount)
	assert.ErrorIs(t, p.IncreaseStake(alice, 1, big.NewInt(999)), ErrInvalidAmount)
	assert.ErrorIs(t, p.IncreaseStake(alice, 1, nil), ErrInvalidAmount)

	stake(t, p, alice, 2)
	assert.Equal(t, big.NewInt(2000), staking.held)
	assert.Equal(t, uint64(2), staking.votePower)

	summary, err := p.UserSummary(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), summary.TotalVotes)
	assert.Equal(t, uint64(2), summary.Available)
	assert.Equal(t, uint64(0), summary.Locked)
	assert.Equal(t, uint64(2), summary.PendingEntry)

	listed, err := p.IsStaker(alice)
	require.NoError(t, err)
	assert.True(t, listed)

	// entry delay matures at enqueue block + 100
	staking.block = 99
	summary, err = p.UserSummary(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), summary.Locked)

	staking.block = 100
	summary, err = p.UserSummary(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), summary.Locked)
	assert.Equal(t, uint64(0), summary.PendingEntry)
}

func TestDecreaseStake(t *testing.T) {
	p, staking := newTestPool(t, Options{})
	stake(t, p, alice, 2)

	assert.ErrorIs(t, p.DecreaseStake(alice, 0), ErrInvalidAmount)

	// nothing locked before the entry delay matures
	staking.block = 99
	assert.ErrorIs(t, p.DecreaseStake(alice, 1), ErrInsufficientLocked)

	staking.block = 100
	require.NoError(t, p.DecreaseStake(alice, 1))
	assert.Equal(t, uint64(1), staking.votePower)

	summary, err := p.UserSummary(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), summary.TotalVotes)
	assert.Equal(t, uint64(1), summary.Available)
	assert.Equal(t, uint64(1), summary.Locked)
	assert.Equal(t, uint64(1), summary.PendingExit)

	// exit delay matures at decrease block + 100
	staking.block = 199
	summary, err = p.UserSummary(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), summary.Unlocked)

	staking.block = 200
	summary, err = p.UserSummary(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary.Unlocked)
	assert.Equal(t, uint64(0), summary.PendingExit)

	assert.ErrorIs(t, p.DecreaseStake(alice, 2), ErrInsufficientLocked)
}

func TestWithdrawStake(t *testing.T) {
	p, staking := newTestPool(t, Options{})
	stake(t, p, alice, 2)

	staking.block = 100
	require.NoError(t, p.DecreaseStake(alice, 2))

	staking.block = 199
	assert.ErrorIs(t, p.WithdrawStake(alice, 2), ErrInsufficientUnlocked)

	staking.block = 200
	require.NoError(t, p.WithdrawStake(alice, 2))
	assert.Equal(t, big.NewInt(2000), staking.transfers[alice])

	summary, err := p.UserSummary(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), summary.TotalVotes)
	assert.Equal(t, uint64(0), summary.Unlocked)

	// fully exited stakers leave the set but keep their record
	listed, err := p.IsStaker(alice)
	require.NoError(t, err)
	assert.False(t, listed)
}

func TestClaimInterest(t *testing.T) {
	p, staking := newTestPool(t, Options{})
	stake(t, p, alice, 1)

	staking.block = 50
	staking.reward(1000)

	summary, err := p.UserSummary(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(900), summary.CurrentInterest)

	// claims over the entitlement are rejected
	assert.ErrorIs(t, p.ClaimInterest(alice, big.NewInt(901)), ErrInsufficientInterest)
	assert.ErrorIs(t, p.ClaimInterest(alice, nil), ErrInvalidAmount)
	assert.ErrorIs(t, p.ClaimInterest(alice, big.NewInt(0)), ErrInvalidAmount)

	require.NoError(t, p.ClaimInterest(alice, big.NewInt(400)))
	assert.Equal(t, big.NewInt(400), staking.transfers[alice])

	summary, err = p.UserSummary(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), summary.CurrentInterest)
	assert.Equal(t, big.NewInt(400), summary.ClaimedInterest)

	claimed, err := p.ClaimAllInterest(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), claimed)
	assert.Equal(t, big.NewInt(900), staking.transfers[alice])

	// no double claim
	_, err = p.ClaimAllInterest(alice)
	assert.ErrorIs(t, err, ErrNothingToClaim)

	fee, err := p.PoolSummary()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), fee.FeeReserve)
	assert.Equal(t, big.NewInt(1000), fee.Gross)
	assert.Positive(t, fee.APY.Sign())
}

func TestFeeExemptGetsFullGross(t *testing.T) {
	p, staking := newTestPool(t, Options{})
	require.NoError(t, p.SetFeeExempt(owner, alice, true))
	stake(t, p, alice, 1)

	staking.block = 50
	staking.reward(1000)

	claimed, err := p.ClaimAllInterest(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), claimed)

	summary, err := p.PoolSummary()
	require.NoError(t, err)
	assert.Zero(t, summary.FeeReserve.Sign())
}

func TestProportionalAccrual(t *testing.T) {
	p, staking := newTestPool(t, Options{})
	stake(t, p, alice, 1)
	stake(t, p, bob, 3)

	staking.block = 50
	staking.reward(4000)

	aliceSummary, err := p.UserSummary(alice)
	require.NoError(t, err)
	bobSummary, err := p.UserSummary(bob)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(900), aliceSummary.CurrentInterest)
	assert.Equal(t, big.NewInt(2700), bobSummary.CurrentInterest)
}

func TestRollbackOnCollaboratorFailure(t *testing.T) {
	p, staking := newTestPool(t, Options{})
	stake(t, p, alice, 1)

	staking.block = 50
	staking.reward(1000)

	staking.failTransfer = true
	assert.Error(t, p.ClaimInterest(alice, big.NewInt(900)))

	// the failed claim left nothing behind, including the reconciliation
	summary, err := p.PoolSummary()
	require.NoError(t, err)
	assert.Zero(t, summary.FeeReserve.Sign())

	staking.failTransfer = false
	userSummary, err := p.UserSummary(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(900), userSummary.CurrentInterest)
	assert.Zero(t, userSummary.ClaimedInterest.Sign())

	require.NoError(t, p.ClaimInterest(alice, big.NewInt(900)))
}

func TestRollbackOnRetireFailure(t *testing.T) {
	p, staking := newTestPool(t, Options{})
	stake(t, p, alice, 2)

	staking.block = 100
	staking.failRetire = true
	assert.Error(t, p.DecreaseStake(alice, 1))

	staking.failRetire = false
	summary, err := p.UserSummary(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), summary.Available)
	assert.Equal(t, uint64(0), summary.PendingExit)
}

func TestEscrowLockBlocksDecrease(t *testing.T) {
	escrow := &mockEscrow{lockAmount: big.NewInt(1000), until: 1000}
	p, staking := newTestPool(t, Options{Escrow: escrow})
	stake(t, p, alice, 2)

	staking.block = 100
	// dropping to 0 available (0 value) would break the 1000 lock
	assert.ErrorIs(t, p.DecreaseStake(alice, 2), ErrInsufficientCollateral)

	// dropping to 1 available (1000 value) still covers it
	require.NoError(t, p.DecreaseStake(alice, 1))
	assert.Equal(t, big.NewInt(1000), staking.locked)
}

type mockEscrow struct {
	lockAmount *big.Int
	until      uint64
}

func (m *mockEscrow) UserLockInfo(pospool.Address) (*big.Int, uint64, error) {
	return m.lockAmount, m.until, nil
}

func (m *mockEscrow) UserVotePower(pospool.Address) (uint64, error) {
	return 0, nil
}

func TestAdminGating(t *testing.T) {
	p, _ := newTestPool(t, Options{})

	assert.ErrorIs(t, p.SetShareRatio(alice, 5000), ErrUnauthorized)
	assert.ErrorIs(t, p.SetShareRatio(owner, pospool.RatioBase+1), ErrInvalidAmount)
	require.NoError(t, p.SetShareRatio(owner, 5000))

	// manager inherits admin but not owner powers
	require.NoError(t, p.SetManager(owner, bob))
	require.NoError(t, p.SetShareRatio(bob, 6000))
	assert.ErrorIs(t, p.SetManager(bob, alice), ErrUnauthorized)
	assert.ErrorIs(t, p.SetCountPerVote(bob, 500), ErrUnauthorized)

	summary, err := p.PoolSummary()
	require.NoError(t, err)
	assert.Equal(t, uint64(6000), summary.ShareRatio)
}

func TestDelayChangeAppliesToFutureEnqueues(t *testing.T) {
	p, staking := newTestPool(t, Options{})
	stake(t, p, alice, 1) // matures at 100

	require.NoError(t, p.SetEntryDelay(owner, 50))

	staking.block = 60
	stake(t, p, alice, 1) // matures at 110 under the new delay

	staking.block = 109
	summary, err := p.UserSummary(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary.Locked)

	staking.block = 110
	summary, err = p.UserSummary(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), summary.Locked)
}

func TestQueueListings(t *testing.T) {
	p, staking := newTestPool(t, Options{})
	stake(t, p, alice, 1)
	staking.block = 10
	stake(t, p, alice, 2)

	items, err := p.ListEntryQueue(alice, 0, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, uint64(1), items[0].Units)
	assert.Equal(t, uint64(100), items[0].Maturity)
	assert.Equal(t, uint64(2), items[1].Units)
	assert.Equal(t, uint64(110), items[1].Maturity)

	items, err = p.ListExitQueue(alice, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRelaySurface(t *testing.T) {
	p, staking := newTestPool(t, Options{Relay: relay})

	assert.ErrorIs(t, p.HandleCrossingVotes(alice, 1, big.NewInt(1000)), ErrUnauthorized)
	assert.ErrorIs(t, p.SetPoolAPY(alice, 1), ErrUnauthorized)

	require.NoError(t, p.HandleCrossingVotes(relay, 2, big.NewInt(2000)))

	staking.block = 100
	require.NoError(t, p.HandleUnlockedIncrease(relay, 1))

	// nothing matured yet
	n, err := p.HandleUnstakeTask(relay)
	require.NoError(t, err)
	assert.Zero(t, n)

	staking.block = 200
	n, err = p.HandleUnstakeTask(relay)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, big.NewInt(1000), staking.transfers[relay])

	require.NoError(t, p.SetPoolAPY(relay, 1234))
	yield, err := p.MirroredAPY()
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), yield)

	staking.reward(5000)
	claimed, err := p.ReceiveInterest(relay)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(4500), claimed)
}

type memRecorder struct {
	events []*Event
}

func (r *memRecorder) Record(ev *Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestRecorderSeesAppliedOpsOnly(t *testing.T) {
	rec := &memRecorder{}
	p, staking := newTestPool(t, Options{Recorder: rec})

	stake(t, p, alice, 1)
	assert.ErrorIs(t, p.IncreaseStake(alice, 1, big.NewInt(1)), ErrInvalidAmount)

	staking.block = 100
	require.NoError(t, p.DecreaseStake(alice, 1))

	// register + increase + decrease, the rejected call is absent
	require.Len(t, rec.events, 3)
	assert.Equal(t, "register", rec.events[0].Op)
	assert.Equal(t, "increase_stake", rec.events[1].Op)
	assert.Equal(t, "decrease_stake", rec.events[2].Op)
	assert.Equal(t, alice, rec.events[1].Participant)
	assert.Equal(t, uint64(100), rec.events[2].Block)
}
