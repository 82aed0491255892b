// Package router accepts incoming payments and performs the atomic
// multi-party split recorded for the order. The four entry modes differ
// only in authorization and fee source; settlement semantics are shared
// by one internal operation.
package router

import (
	"context"
	"time"

	"github.com/clearway/settle/internal/access"
	"github.com/clearway/settle/internal/events"
	"github.com/clearway/settle/internal/keylock"
	"github.com/clearway/settle/internal/ledger"
	"github.com/clearway/settle/internal/splitconfig"
	"github.com/clearway/settle/pkg/types"
	"go.uber.org/zap"
)

// Router converges every pay entry mode on executeSplit.
type Router struct {
	guard    *access.Guard
	registry *splitconfig.Registry
	book     *ledger.Book
	bus      *events.Bus
	locks    *keylock.KeyedMutex

	custody    types.AccountID
	platform   types.AccountID
	treasury   types.AccountID
	rebatePool types.AccountID

	logger *zap.Logger
}

// Config holds router configuration.
type Config struct {
	Guard    *access.Guard
	Registry *splitconfig.Registry
	Book     *ledger.Book
	Bus      *events.Bus

	CustodyAccount    types.AccountID
	PlatformAccount   types.AccountID
	TreasuryAccount   types.AccountID
	RebatePoolAccount types.AccountID

	Logger *zap.Logger
}

// New creates a commission router.
func New(cfg *Config) (*Router, error) {
	for name, account := range map[string]types.AccountID{
		"custody":     cfg.CustodyAccount,
		"platform":    cfg.PlatformAccount,
		"treasury":    cfg.TreasuryAccount,
		"rebate pool": cfg.RebatePoolAccount,
	} {
		if account.Zero() {
			return nil, types.Errorf(types.ErrUnknownAccount, "%s account cannot be empty", name)
		}
	}

	return &Router{
		guard:      cfg.Guard,
		registry:   cfg.Registry,
		book:       cfg.Book,
		bus:        cfg.Bus,
		locks:      keylock.New(),
		custody:    cfg.CustodyAccount,
		platform:   cfg.PlatformAccount,
		treasury:   cfg.TreasuryAccount,
		rebatePool: cfg.RebatePoolAccount,
		logger:     cfg.Logger,
	}, nil
}

// QuickPay settles an order paid by the authenticated end user. The
// session must match the one recorded with the split configuration.
func (r *Router) QuickPay(ctx context.Context, sessionID string, payer types.AccountID, orderID string, total types.Amount, token types.Token) error {
	cfg, err := r.precheck(orderID)
	if err != nil {
		return err
	}
	if cfg.SessionID != sessionID {
		return types.Errorf(types.ErrNotAuthorized, "session does not match order %s", orderID)
	}

	return r.executeSplit(ctx, orderID, total, payer, token, events.TypePaymentReceived, "quick")
}

// WalletPay settles an order with a client-originated authorization proof.
func (r *Router) WalletPay(ctx context.Context, payer types.AccountID, orderID string, total types.Amount, token types.Token, proof string) error {
	if _, err := r.precheck(orderID); err != nil {
		return err
	}
	if proof == "" {
		return types.NewError(types.ErrNotAuthorized, "wallet pay requires an authorization proof")
	}

	return r.executeSplit(ctx, orderID, total, payer, token, events.TypePaymentReceived, "wallet")
}

// AutoPay settles an order on behalf of an explicitly supplied payer.
// The caller must be an allow-listed relayer.
func (r *Router) AutoPay(ctx context.Context, relayer, payer types.AccountID, orderID string, total types.Amount, token types.Token) error {
	if _, err := r.precheck(orderID); err != nil {
		return err
	}
	if err := r.guard.RequireRelayer(relayer); err != nil {
		return err
	}

	return r.executeSplit(ctx, orderID, total, payer, token, events.TypePaymentAutoSplit, "relayer")
}

// ScannedPay settles an order acquired through a scanned source. The
// order's configuration must be flagged scanned-sourced.
func (r *Router) ScannedPay(ctx context.Context, payer types.AccountID, orderID string, total types.Amount, token types.Token) error {
	cfg, err := r.precheck(orderID)
	if err != nil {
		return err
	}
	if !cfg.ScannedSource {
		return types.Errorf(types.ErrNotScannedSource, "order %s is not scanned-sourced", orderID)
	}

	return r.executeSplit(ctx, orderID, total, payer, token, events.TypeScannedProductPayment, "scanned")
}

// precheck applies the pause gate and resolves the configuration before
// any mode-specific authorization runs.
func (r *Router) precheck(orderID string) (*splitconfig.Config, error) {
	if err := r.guard.CheckNotPaused(); err != nil {
		return nil, err
	}
	return r.registry.Get(orderID)
}

// executeSplit moves the payment through custody and out to every
// beneficiary in a fixed order: merchant, referrer, executor (or the
// rebate pool when the executor has no receiving account), platform,
// treasury. All-or-nothing: any failed leg leaves no observable change.
func (r *Router) executeSplit(_ context.Context, orderID string, total types.Amount, payer types.AccountID, token types.Token, eventType events.Type, mode string) error {
	start := time.Now()

	r.locks.Lock(orderID)
	defer r.locks.Unlock(orderID)

	cfg, err := r.registry.Get(orderID)
	if err != nil {
		return err
	}
	if cfg.Disputed {
		return types.Errorf(types.ErrOrderDisputed, "order %s is disputed", orderID)
	}
	if total != cfg.Total() {
		return types.Errorf(types.ErrSplitMismatch,
			"order %s configured for %d, paid %d", orderID, cfg.Total(), total)
	}

	executorAccount := cfg.ExecutorAccount
	if !cfg.ExecutorHasAccount {
		executorAccount = r.rebatePool
	}

	legs := []ledger.Leg{
		{To: cfg.MerchantAccount, Amount: cfg.MerchantAmount},
		{To: cfg.ReferrerAccount, Amount: cfg.ReferralFee},
		{To: executorAccount, Amount: cfg.ExecutionFee},
		{To: r.platform, Amount: cfg.PlatformFee},
		{To: r.treasury, Amount: cfg.OffRampFee},
	}

	if err := r.book.Transfer(payer, r.custody, token, total); err != nil {
		SplitsTotal.WithLabelValues(mode, "failed").Inc()
		return err
	}

	if err := r.book.TransferBatch(r.custody, token, legs); err != nil {
		// The beneficiary batch is pre-validated by the ledger before any
		// leg applies, so custody still holds the full amount here.
		if refundErr := r.book.Transfer(r.custody, payer, token, total); refundErr != nil {
			r.logger.Error("split-refund-failed",
				zap.String("order-id", orderID),
				zap.Error(refundErr))
		}
		SplitsTotal.WithLabelValues(mode, "failed").Inc()
		return err
	}

	SplitsTotal.WithLabelValues(mode, "settled").Inc()
	SplitValueTotal.Add(float64(total))
	SplitDuration.Observe(time.Since(start).Seconds())

	r.logger.Info("split-executed",
		zap.String("order-id", orderID),
		zap.String("mode", mode),
		zap.Int64("total", int64(total)),
		zap.String("token", string(token)))

	r.bus.Publish(events.New(eventType).
		WithOrder(orderID).
		Set("mode", mode).
		Set("payer", string(payer)).
		Set("token", string(token)).
		SetAmount("total", total).
		SetAmount("merchant_amount", cfg.MerchantAmount).
		SetAmount("referral_fee", cfg.ReferralFee).
		SetAmount("execution_fee", cfg.ExecutionFee).
		SetAmount("platform_fee", cfg.PlatformFee).
		SetAmount("off_ramp_fee", cfg.OffRampFee).
		Set("executor_redirected", !cfg.ExecutorHasAccount))

	return nil
}
