// Package settlement tracks each order's lifecycle and the commission
// owed to every payee, and enforces the settlement lock period and
// dispute gate before recorded commission is released.
package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/clearway/settle/internal/access"
	"github.com/clearway/settle/internal/events"
	"github.com/clearway/settle/internal/keylock"
	"github.com/clearway/settle/internal/ledger"
	"github.com/clearway/settle/internal/splitconfig"
	"github.com/clearway/settle/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusSynced    OrderStatus = "SYNCED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusFrozen    OrderStatus = "FROZEN"
	StatusSettled   OrderStatus = "SETTLED"
)

// legal forward transitions; FROZEN and SETTLED are handled separately.
var transitions = map[OrderStatus]OrderStatus{
	StatusPending: StatusSynced,
	StatusSynced:  StatusDelivered,
}

// Order is one tracked order.
type Order struct {
	OrderID    string
	Status     OrderStatus
	prevStatus OrderStatus // status to restore when a dispute clears
}

// CommissionRecord is one appended commission history entry.
type CommissionRecord struct {
	Payee          types.AccountID
	Role           types.Role
	Category       types.CommissionCategory
	Amount         types.Amount
	Token          types.Token
	CommissionBase types.Amount
	ChannelFee     types.Amount
	SessionID      string
	RecordedAt     time.Time
}

// Settlement batches a payee's pending balance into one payable object.
type Settlement struct {
	ID        string
	Payee     types.AccountID
	Role      types.Role
	Token     types.Token
	Amount    types.Amount
	CreatedAt time.Time
}

type pendingKey struct {
	Account types.AccountID
	Token   types.Token
}

// Ledger is the order settlement ledger.
type Ledger struct {
	mu          sync.RWMutex
	orders      map[string]*Order
	history     []CommissionRecord
	pending     map[pendingKey]types.Amount
	settlements map[string]*Settlement

	locks *keylock.KeyedMutex

	guard    *access.Guard
	registry *splitconfig.Registry
	book     *ledger.Book
	bus      *events.Bus

	custody    types.AccountID
	treasury   types.AccountID
	platform   types.AccountID
	rebatePool types.AccountID

	now    func() time.Time
	logger *zap.Logger
}

// Config holds settlement ledger configuration.
type Config struct {
	Guard    *access.Guard
	Registry *splitconfig.Registry
	Book     *ledger.Book
	Bus      *events.Bus

	CustodyAccount    types.AccountID
	TreasuryAccount   types.AccountID
	PlatformAccount   types.AccountID
	RebatePoolAccount types.AccountID

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time

	Logger *zap.Logger
}

// NewLedger creates an order settlement ledger.
func NewLedger(cfg *Config) (*Ledger, error) {
	for name, account := range map[string]types.AccountID{
		"custody":     cfg.CustodyAccount,
		"treasury":    cfg.TreasuryAccount,
		"platform":    cfg.PlatformAccount,
		"rebate pool": cfg.RebatePoolAccount,
	} {
		if account.Zero() {
			return nil, types.Errorf(types.ErrUnknownAccount, "%s account cannot be empty", name)
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Ledger{
		orders:      make(map[string]*Order),
		pending:     make(map[pendingKey]types.Amount),
		settlements: make(map[string]*Settlement),
		locks:       keylock.New(),
		guard:       cfg.Guard,
		registry:    cfg.Registry,
		book:        cfg.Book,
		bus:         cfg.Bus,
		custody:     cfg.CustodyAccount,
		treasury:    cfg.TreasuryAccount,
		platform:    cfg.PlatformAccount,
		rebatePool:  cfg.RebatePoolAccount,
		now:         now,
		logger:      cfg.Logger,
	}, nil
}

// SyncOrder advances an order to the given status. Unknown orders are
// created as PENDING first; only PENDING→SYNCED→DELIVERED transitions
// are legal here.
func (l *Ledger) SyncOrder(orderID string, status OrderStatus) error {
	if err := l.guard.CheckNotPaused(); err != nil {
		return err
	}

	l.locks.Lock(orderID)
	defer l.locks.Unlock(orderID)

	l.mu.Lock()
	order, ok := l.orders[orderID]
	if !ok {
		order = &Order{OrderID: orderID, Status: StatusPending}
		l.orders[orderID] = order
	}
	current := order.Status
	if status == current {
		l.mu.Unlock()
		return nil // idempotent sync to the current status
	}
	if transitions[current] != status {
		l.mu.Unlock()
		return types.Errorf(types.ErrInvalidTransition,
			"order %s cannot move %s -> %s", orderID, current, status)
	}
	order.Status = status
	l.mu.Unlock()

	l.logger.Info("order-synced",
		zap.String("order-id", orderID),
		zap.String("status", string(status)))

	l.bus.Publish(events.New(events.TypeOrderSynced).
		WithOrder(orderID).
		Set("status", string(status)))

	return nil
}

// GetOrder returns a snapshot of the order.
func (l *Ledger) GetOrder(orderID string) (Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	order, ok := l.orders[orderID]
	if !ok {
		return Order{}, types.Errorf(types.ErrOrderNotReady, "order %s is unknown", orderID)
	}
	return *order, nil
}

// SetOrderDispute freezes or unfreezes an order. Administrator only.
// The split configuration's dispute flag is kept in lockstep so the
// commission router rejects payment attempts on the same order.
func (l *Ledger) SetOrderDispute(orderID string, flag bool, caller types.AccountID) error {
	if err := l.guard.RequireAdmin(caller); err != nil {
		return err
	}

	l.locks.Lock(orderID)
	defer l.locks.Unlock(orderID)

	l.mu.Lock()
	order, ok := l.orders[orderID]
	l.mu.Unlock()
	if !ok {
		return types.Errorf(types.ErrOrderNotReady, "order %s is unknown", orderID)
	}

	if err := l.registry.SetDispute(orderID, flag, caller); err != nil {
		return err
	}

	l.mu.Lock()
	if flag {
		if order.Status != StatusFrozen {
			order.prevStatus = order.Status
			order.Status = StatusFrozen
		}
	} else if order.Status == StatusFrozen {
		order.Status = order.prevStatus
	}
	status := order.Status
	l.mu.Unlock()

	l.logger.Warn("order-dispute-set",
		zap.String("order-id", orderID),
		zap.Bool("disputed", flag),
		zap.String("status", string(status)))

	l.bus.Publish(events.New(events.TypeOrderDisputeSet).
		WithOrder(orderID).
		Set("disputed", flag).
		Set("status", string(status)))

	return nil
}

// RecordCommission appends a commission history entry and increments the
// payee's pending balance. Callers de-duplicate per session upstream;
// this call alone is not idempotent.
func (l *Ledger) RecordCommission(record *CommissionRecord) error {
	if err := l.guard.CheckNotPaused(); err != nil {
		return err
	}
	if record.Payee.Zero() {
		return types.NewError(types.ErrUnknownAccount, "commission payee cannot be empty")
	}
	if err := record.Amount.Validate(); err != nil {
		return err
	}

	stored := *record
	stored.RecordedAt = l.now()

	l.mu.Lock()
	l.history = append(l.history, stored)
	l.pending[pendingKey{Account: record.Payee, Token: record.Token}] += record.Amount
	l.mu.Unlock()

	CommissionsRecordedTotal.WithLabelValues(string(record.Category)).Inc()

	l.logger.Debug("commission-recorded",
		zap.String("payee", string(record.Payee)),
		zap.String("category", string(record.Category)),
		zap.Int64("amount", int64(record.Amount)))

	l.bus.Publish(events.New(events.TypeCommissionRecorded).
		Set("payee", string(record.Payee)).
		Set("role", string(record.Role)).
		Set("category", string(record.Category)).
		Set("token", string(record.Token)).
		Set("session_id", record.SessionID).
		SetAmount("amount", record.Amount).
		SetAmount("commission_base", record.CommissionBase).
		SetAmount("channel_fee", record.ChannelFee))

	return nil
}

// PendingBalance returns the accumulated commission owed to (payee, token).
func (l *Ledger) PendingBalance(payee types.AccountID, token types.Token) types.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pending[pendingKey{Account: payee, Token: token}]
}

// DistributeCommission releases the recorded commission for a DELIVERED,
// undisputed order whose settlement lock has elapsed. The whole
// multi-party transfer is one unit of work; the order moves to SETTLED
// exactly once. The executor's share redirects to the rebate pool when
// the executor has no receiving account, unconditionally and without
// blocking the rest of the order.
func (l *Ledger) DistributeCommission(_ context.Context, orderID string) error {
	if err := l.guard.CheckNotPaused(); err != nil {
		return err
	}

	l.locks.Lock(orderID)
	defer l.locks.Unlock(orderID)

	l.mu.Lock()
	order, ok := l.orders[orderID]
	status := OrderStatus("UNKNOWN")
	if ok {
		status = order.Status
	}
	l.mu.Unlock()
	if !ok || status != StatusDelivered {
		return types.Errorf(types.ErrOrderNotReady,
			"order %s is %s, distribution requires DELIVERED", orderID, status)
	}

	cfg, err := l.registry.Get(orderID)
	if err != nil {
		return err
	}
	if cfg.Disputed {
		return types.Errorf(types.ErrOrderDisputed, "order %s is disputed", orderID)
	}
	if l.now().Before(cfg.SettlementUnlockTime) {
		return types.Errorf(types.ErrStillLocked,
			"order %s settles at %s", orderID, cfg.SettlementUnlockTime.UTC().Format(time.RFC3339))
	}
	if cfg.RequiresProof && !cfg.ProofVerified {
		return types.Errorf(types.ErrProofNotVerified, "order %s requires a verified audit proof", orderID)
	}

	executorAccount := cfg.ExecutorAccount
	if !cfg.ExecutorHasAccount {
		executorAccount = l.rebatePool
	}

	legs := []ledger.Leg{
		{To: cfg.MerchantAccount, Amount: cfg.MerchantAmount},
		{To: cfg.ReferrerAccount, Amount: cfg.ReferralFee},
		{To: executorAccount, Amount: cfg.ExecutionFee},
		{To: l.platform, Amount: cfg.PlatformFee},
		{To: l.treasury, Amount: cfg.OffRampFee},
	}

	if err := l.book.TransferBatch(l.custody, cfg.Token, legs); err != nil {
		return err
	}

	l.mu.Lock()
	order.Status = StatusSettled
	l.mu.Unlock()
	DistributionsTotal.Inc()

	l.logger.Info("commission-distributed",
		zap.String("order-id", orderID),
		zap.Int64("total", int64(cfg.Total())),
		zap.Bool("executor-redirected", !cfg.ExecutorHasAccount))

	l.bus.Publish(events.New(events.TypeCommissionDistributed).
		WithOrder(orderID).
		Set("status", string(StatusSettled)).
		Set("token", string(cfg.Token)).
		SetAmount("total", cfg.Total()).
		SetAmount("merchant_amount", cfg.MerchantAmount).
		SetAmount("referral_fee", cfg.ReferralFee).
		SetAmount("execution_fee", cfg.ExecutionFee).
		SetAmount("platform_fee", cfg.PlatformFee).
		SetAmount("off_ramp_fee", cfg.OffRampFee).
		Set("executor_redirected", !cfg.ExecutorHasAccount))

	return nil
}

// CreateSettlement batches the pending balance for (payee, token) into a
// single payable settlement, zeroes the pending balance and pays the
// payee from custody. Distinct (payee, token) pairs never contaminate
// each other.
func (l *Ledger) CreateSettlement(payee types.AccountID, role types.Role, token types.Token) (*Settlement, error) {
	if err := l.guard.CheckNotPaused(); err != nil {
		return nil, err
	}

	key := pendingKey{Account: payee, Token: token}

	l.mu.Lock()
	amount := l.pending[key]
	if amount == 0 {
		l.mu.Unlock()
		return nil, types.Errorf(types.ErrNothingPending, "no pending balance for %s in %s", payee, token)
	}
	l.pending[key] = 0
	l.mu.Unlock()

	if err := l.book.Transfer(l.custody, payee, token, amount); err != nil {
		// Restore the pending balance: the batch was rejected before any
		// leg applied, so nothing moved.
		l.mu.Lock()
		l.pending[key] += amount
		l.mu.Unlock()
		return nil, err
	}

	settlement := &Settlement{
		ID:        uuid.New().String(),
		Payee:     payee,
		Role:      role,
		Token:     token,
		Amount:    amount,
		CreatedAt: l.now(),
	}

	l.mu.Lock()
	l.settlements[settlement.ID] = settlement
	l.mu.Unlock()

	SettlementsCreatedTotal.Inc()

	l.logger.Info("settlement-created",
		zap.String("settlement-id", settlement.ID),
		zap.String("payee", string(payee)),
		zap.Int64("amount", int64(amount)))

	l.bus.Publish(events.New(events.TypeSettlementCreated).
		Set("settlement_id", settlement.ID).
		Set("payee", string(payee)).
		Set("role", string(role)).
		Set("token", string(token)).
		SetAmount("amount", amount))

	return settlement, nil
}

// History returns a copy of the commission history.
func (l *Ledger) History() []CommissionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]CommissionRecord, len(l.history))
	copy(out, l.history)
	return out
}
