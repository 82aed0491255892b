// Package pool custodies multi-milestone funding pools with participant
// revenue shares and optional quality gates. Pool lifecycle is
// independent from individual order settlement; funds leave a pool only
// through milestone release, cancellation refund, or an administrator's
// emergency recovery.
package pool

import (
	"sync"
	"time"

	"github.com/clearway/settle/internal/access"
	"github.com/clearway/settle/internal/events"
	"github.com/clearway/settle/internal/keylock"
	"github.com/clearway/settle/internal/ledger"
	"github.com/clearway/settle/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status is the pool lifecycle state.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusActive          Status = "ACTIVE"
	StatusClosed          Status = "CLOSED"
	StatusCancelled       Status = "CANCELLED"
	StatusEmergencyClosed Status = "EMERGENCY_CLOSED"
)

// Pool is one funding pool. Its funds live on a dedicated custody
// account derived from the pool ID.
type Pool struct {
	ID          string
	Owner       types.AccountID
	Name        string
	TotalBudget types.Amount
	Funded      types.Amount
	Status      Status
	Token       types.Token
	StartDate   time.Time
	EndDate     time.Time

	Milestones []*Milestone
	reviewers  map[types.AccountID]struct{}
}

// CustodyAccount returns the pool's dedicated custody account.
func (p *Pool) CustodyAccount() types.AccountID {
	return types.AccountID("pool:" + p.ID)
}

// committed returns the budget held by non-rejected milestones.
func (p *Pool) committed() types.Amount {
	var total types.Amount
	for _, m := range p.Milestones {
		if m.Status != MilestoneRejected {
			total += m.Amount
		}
	}
	return total
}

// released returns the budget already paid out through released milestones.
func (p *Pool) released() types.Amount {
	var total types.Amount
	for _, m := range p.Milestones {
		if m.Status == MilestoneReleased {
			total += m.Amount
		}
	}
	return total
}

// Manager owns all pools and serializes mutations per pool.
type Manager struct {
	mu    sync.RWMutex
	pools map[string]*Pool
	locks *keylock.KeyedMutex

	guard *access.Guard
	book  *ledger.Book
	bus   *events.Bus

	recovery types.AccountID

	now    func() time.Time
	logger *zap.Logger
}

// Config holds pool manager configuration.
type Config struct {
	Guard *access.Guard
	Book  *ledger.Book
	Bus   *events.Bus

	// RecoveryAccount receives swept funds on emergency withdrawal.
	RecoveryAccount types.AccountID

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time

	Logger *zap.Logger
}

// NewManager creates a pool manager.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg.RecoveryAccount.Zero() {
		return nil, types.NewError(types.ErrUnknownAccount, "recovery account cannot be empty")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		pools:    make(map[string]*Pool),
		locks:    keylock.New(),
		guard:    cfg.Guard,
		book:     cfg.Book,
		bus:      cfg.Bus,
		recovery: cfg.RecoveryAccount,
		now:      now,
		logger:   cfg.Logger,
	}, nil
}

// CreatePool creates a DRAFT pool owned by the caller.
func (m *Manager) CreatePool(owner types.AccountID, name string, budget types.Amount, token types.Token, start, end time.Time) (*Pool, error) {
	if err := m.guard.CheckNotPaused(); err != nil {
		return nil, err
	}
	if owner.Zero() {
		return nil, types.NewError(types.ErrUnknownAccount, "pool owner cannot be empty")
	}
	if budget <= 0 {
		return nil, types.Errorf(types.ErrInvalidAmount, "pool budget must be positive, got %d", budget)
	}
	if !end.After(start) {
		return nil, types.NewError(types.ErrInvalidTimeRange, "pool end date must be after start date")
	}

	pool := &Pool{
		ID:          uuid.New().String(),
		Owner:       owner,
		Name:        name,
		TotalBudget: budget,
		Status:      StatusDraft,
		Token:       token,
		StartDate:   start,
		EndDate:     end,
		reviewers:   make(map[types.AccountID]struct{}),
	}

	m.mu.Lock()
	m.pools[pool.ID] = pool
	m.mu.Unlock()

	PoolsCreatedTotal.Inc()

	m.logger.Info("pool-created",
		zap.String("pool-id", pool.ID),
		zap.String("owner", string(owner)),
		zap.Int64("budget", int64(budget)))

	m.bus.Publish(events.New(events.TypePoolCreated).
		WithPool(pool.ID).
		Set("owner", string(owner)).
		Set("name", name).
		Set("token", string(token)).
		SetAmount("total_budget", budget))

	return m.snapshotLocked(pool), nil
}

// FundPool moves funds from the funder into the pool's custody account.
// Reaching full funding transitions DRAFT -> ACTIVE.
func (m *Manager) FundPool(poolID string, funder types.AccountID, amount types.Amount) error {
	if err := m.guard.CheckNotPaused(); err != nil {
		return err
	}
	if amount <= 0 {
		return types.Errorf(types.ErrInvalidAmount, "funding amount must be positive, got %d", amount)
	}

	m.locks.Lock(poolID)
	defer m.locks.Unlock(poolID)

	pool, err := m.lookup(poolID)
	if err != nil {
		return err
	}
	if pool.Status != StatusDraft && pool.Status != StatusActive {
		return types.Errorf(types.ErrInvalidPoolStatus, "pool %s is %s, funding requires DRAFT or ACTIVE", poolID, pool.Status)
	}
	if pool.Funded+amount > pool.TotalBudget {
		return types.Errorf(types.ErrExceedsBudget,
			"pool %s funded %d of %d, funding %d overflows", poolID, pool.Funded, pool.TotalBudget, amount)
	}

	if err := m.book.Transfer(funder, pool.CustodyAccount(), pool.Token, amount); err != nil {
		return err
	}

	activated := false
	m.mu.Lock()
	pool.Funded += amount
	funded := pool.Funded
	if funded == pool.TotalBudget && pool.Status == StatusDraft {
		pool.Status = StatusActive
		activated = true
	}
	m.mu.Unlock()

	PoolFundingTotal.Add(float64(amount))

	m.logger.Info("pool-funded",
		zap.String("pool-id", poolID),
		zap.Int64("amount", int64(amount)),
		zap.Bool("activated", activated))

	m.bus.Publish(events.New(events.TypeFundingReceived).
		WithPool(poolID).
		Set("funder", string(funder)).
		Set("activated", activated).
		SetAmount("amount", amount).
		SetAmount("funded", funded))

	return nil
}

// ClosePool retires a DRAFT pool with nothing funded and no milestones.
// Owner only.
func (m *Manager) ClosePool(poolID string, caller types.AccountID) error {
	if err := m.guard.CheckNotPaused(); err != nil {
		return err
	}

	m.locks.Lock(poolID)
	defer m.locks.Unlock(poolID)

	pool, err := m.ownedPool(poolID, caller)
	if err != nil {
		return err
	}
	if pool.Status != StatusDraft {
		return types.Errorf(types.ErrInvalidPoolStatus, "pool %s is %s, close requires DRAFT", poolID, pool.Status)
	}
	if pool.Funded > 0 || len(pool.Milestones) > 0 {
		return types.Errorf(types.ErrInvalidPoolStatus, "pool %s has committed funds or milestones", poolID)
	}

	m.mu.Lock()
	pool.Status = StatusClosed
	m.mu.Unlock()

	m.logger.Info("pool-closed", zap.String("pool-id", poolID))
	m.bus.Publish(events.New(events.TypePoolClosed).WithPool(poolID))

	return nil
}

// CancelPool cancels an ACTIVE pool and refunds the owner everything not
// yet released. The refund is computed from funded minus released
// milestone records, never from a separately tracked counter.
func (m *Manager) CancelPool(poolID string, caller types.AccountID) error {
	if err := m.guard.CheckNotPaused(); err != nil {
		return err
	}

	m.locks.Lock(poolID)
	defer m.locks.Unlock(poolID)

	pool, err := m.ownedPool(poolID, caller)
	if err != nil {
		return err
	}
	if pool.Status != StatusActive {
		return types.Errorf(types.ErrInvalidPoolStatus, "pool %s is %s, cancel requires ACTIVE", poolID, pool.Status)
	}

	refund := pool.Funded - pool.released()
	if refund > 0 {
		if err := m.book.Transfer(pool.CustodyAccount(), pool.Owner, pool.Token, refund); err != nil {
			return err
		}
	}

	m.mu.Lock()
	pool.Status = StatusCancelled
	m.mu.Unlock()

	m.logger.Info("pool-cancelled",
		zap.String("pool-id", poolID),
		zap.Int64("refund", int64(refund)))

	m.bus.Publish(events.New(events.TypePoolCancelled).
		WithPool(poolID).
		Set("owner", string(pool.Owner)).
		SetAmount("refund", refund))

	return nil
}

// EmergencyWithdraw sweeps the pool's entire remaining custody balance
// to the platform recovery account, bypassing milestone state.
// Administrator only; last-resort, audited.
func (m *Manager) EmergencyWithdraw(poolID string, caller types.AccountID) error {
	if err := m.guard.RequireAdmin(caller); err != nil {
		return err
	}

	m.locks.Lock(poolID)
	defer m.locks.Unlock(poolID)

	pool, err := m.lookup(poolID)
	if err != nil {
		return err
	}
	if pool.Status == StatusEmergencyClosed {
		return types.Errorf(types.ErrInvalidPoolStatus, "pool %s is already emergency-closed", poolID)
	}

	remaining := m.book.Balance(pool.CustodyAccount(), pool.Token)
	if remaining > 0 {
		if err := m.book.Transfer(pool.CustodyAccount(), m.recovery, pool.Token, remaining); err != nil {
			return err
		}
	}

	m.mu.Lock()
	pool.Status = StatusEmergencyClosed
	m.mu.Unlock()

	EmergencyWithdrawalsTotal.Inc()

	m.logger.Error("pool-emergency-withdrawal",
		zap.String("pool-id", poolID),
		zap.String("by", string(caller)),
		zap.Int64("swept", int64(remaining)))

	m.bus.Publish(events.New(events.TypeEmergencyWithdrawal).
		WithPool(poolID).
		Set("by", string(caller)).
		SetAmount("swept", remaining))

	return nil
}

// AddReviewer registers a quality-gate reviewer for the pool. Owner only.
func (m *Manager) AddReviewer(poolID string, caller, reviewer types.AccountID) error {
	if err := m.guard.CheckNotPaused(); err != nil {
		return err
	}
	if reviewer.Zero() {
		return types.NewError(types.ErrUnknownAccount, "reviewer account cannot be empty")
	}

	m.locks.Lock(poolID)
	defer m.locks.Unlock(poolID)

	pool, err := m.ownedPool(poolID, caller)
	if err != nil {
		return err
	}

	m.mu.Lock()
	pool.reviewers[reviewer] = struct{}{}
	m.mu.Unlock()

	m.logger.Info("pool-reviewer-added",
		zap.String("pool-id", poolID),
		zap.String("reviewer", string(reviewer)))

	return nil
}

// GetPool returns a snapshot of the pool.
func (m *Manager) GetPool(poolID string) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pool, ok := m.pools[poolID]
	if !ok {
		return nil, types.Errorf(types.ErrPoolNotFound, "pool %s is unknown", poolID)
	}
	return m.snapshot(pool), nil
}

// lookup returns the live pool; callers hold the pool's keyed lock.
func (m *Manager) lookup(poolID string) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pool, ok := m.pools[poolID]
	if !ok {
		return nil, types.Errorf(types.ErrPoolNotFound, "pool %s is unknown", poolID)
	}
	return pool, nil
}

// ownedPool resolves the pool and enforces the owner capability.
func (m *Manager) ownedPool(poolID string, caller types.AccountID) (*Pool, error) {
	pool, err := m.lookup(poolID)
	if err != nil {
		return nil, err
	}
	if pool.Owner != caller {
		return nil, types.Errorf(types.ErrNotAuthorized, "caller %s does not own pool %s", caller, poolID)
	}
	return pool, nil
}

// snapshot deep-copies a pool for lock-free reads; assumes m.mu held.
func (m *Manager) snapshot(pool *Pool) *Pool {
	copied := *pool
	copied.reviewers = nil
	copied.Milestones = make([]*Milestone, len(pool.Milestones))
	for i, milestone := range pool.Milestones {
		mc := *milestone
		mc.Participants = append([]Participant(nil), milestone.Participants...)
		mc.Gates = append([]QualityGate(nil), milestone.Gates...)
		copied.Milestones[i] = &mc
	}
	return &copied
}

func (m *Manager) snapshotLocked(pool *Pool) *Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(pool)
}
