// Package splitconfig keeps the per-order record of who gets what.
// Configurations are written once per order, read by the commission
// router and the order settlement ledger.
package splitconfig

import (
	"sync"
	"time"

	"github.com/clearway/settle/internal/access"
	"github.com/clearway/settle/internal/events"
	"github.com/clearway/settle/internal/rates"
	"github.com/clearway/settle/pkg/types"
	"go.uber.org/zap"
)

// Config is one order's split record.
type Config struct {
	OrderID         string
	MerchantAccount types.AccountID
	MerchantAmount  types.Amount
	ReferrerAccount types.AccountID // optional
	ReferralFee     types.Amount
	ExecutorAccount types.AccountID // optional
	ExecutionFee    types.Amount
	PlatformFee     types.Amount
	OffRampFee      types.Amount
	Token           types.Token

	ExecutorHasAccount   bool
	SettlementUnlockTime time.Time
	Disputed             bool
	SessionID            string

	ScannedSource bool
	ScannedClass  rates.ScannedClass

	// Audit proof set. When RequiresProof is true the order cannot be
	// distributed until the auditor verifies the recorded proof hash.
	RequiresProof bool
	ProofHash     string
	Auditor       types.AccountID
	ProofVerified bool
}

// Total returns the sum of all configured shares.
func (c *Config) Total() types.Amount {
	return c.MerchantAmount + c.ReferralFee + c.ExecutionFee + c.PlatformFee + c.OffRampFee
}

// Registry is the keyed store of split configurations.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*Config

	lockPeriod time.Duration

	guard  *access.Guard
	bus    *events.Bus
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(guard *access.Guard, bus *events.Bus, logger *zap.Logger) *Registry {
	return &Registry{
		configs: make(map[string]*Config),
		guard:   guard,
		bus:     bus,
		logger:  logger,
	}
}

// SetDefaultLockPeriod sets the settlement lock applied to
// configurations written without an explicit unlock time.
func (r *Registry) SetDefaultLockPeriod(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lockPeriod = d
}

// Set records an order's split configuration. Write-once per order.
func (r *Registry) Set(cfg *Config) error {
	if err := r.guard.CheckNotPaused(); err != nil {
		return err
	}
	if cfg.OrderID == "" {
		return types.NewError(types.ErrConfigNotFound, "order id cannot be empty")
	}
	if cfg.MerchantAccount.Zero() {
		return types.NewError(types.ErrUnknownAccount, "merchant account cannot be empty")
	}
	for _, amount := range []types.Amount{
		cfg.MerchantAmount, cfg.ReferralFee, cfg.ExecutionFee, cfg.PlatformFee, cfg.OffRampFee,
	} {
		if err := amount.Validate(); err != nil {
			return err
		}
	}
	if cfg.ReferralFee > 0 && cfg.ReferrerAccount.Zero() {
		return types.NewError(types.ErrUnknownAccount, "referral fee configured without a referrer account")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[cfg.OrderID]; exists {
		return types.Errorf(types.ErrConfigExists, "order %s already has a split configuration", cfg.OrderID)
	}

	stored := *cfg
	if stored.SettlementUnlockTime.IsZero() && r.lockPeriod > 0 {
		stored.SettlementUnlockTime = time.Now().Add(r.lockPeriod)
	}
	r.configs[cfg.OrderID] = &stored

	r.logger.Info("split-config-set",
		zap.String("order-id", cfg.OrderID),
		zap.Int64("total", int64(cfg.Total())),
		zap.Bool("scanned", cfg.ScannedSource))

	r.bus.Publish(events.New(events.TypeSplitConfigSet).
		WithOrder(cfg.OrderID).
		Set("session_id", cfg.SessionID).
		Set("scanned_source", cfg.ScannedSource).
		SetAmount("merchant_amount", cfg.MerchantAmount).
		SetAmount("referral_fee", cfg.ReferralFee).
		SetAmount("execution_fee", cfg.ExecutionFee).
		SetAmount("platform_fee", cfg.PlatformFee).
		SetAmount("off_ramp_fee", cfg.OffRampFee))

	return nil
}

// Get returns a copy of the order's configuration.
func (r *Registry) Get(orderID string) (*Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[orderID]
	if !ok {
		return nil, types.Errorf(types.ErrConfigNotFound, "no split configuration for order %s", orderID)
	}

	copied := *cfg
	return &copied, nil
}

// SetDispute flips the dispute flag. Administrator only. While disputed
// the configuration is immutable and the order cannot be settled.
func (r *Registry) SetDispute(orderID string, flag bool, caller types.AccountID) error {
	if err := r.guard.RequireAdmin(caller); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.configs[orderID]
	if !ok {
		return types.Errorf(types.ErrConfigNotFound, "no split configuration for order %s", orderID)
	}

	cfg.Disputed = flag

	r.logger.Warn("order-dispute-flag-set",
		zap.String("order-id", orderID),
		zap.Bool("disputed", flag))

	return nil
}

// SubmitProof records an audit proof hash for an order that requires one.
func (r *Registry) SubmitProof(orderID, proofHash string, auditor types.AccountID) error {
	if err := r.guard.CheckNotPaused(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.configs[orderID]
	if !ok {
		return types.Errorf(types.ErrConfigNotFound, "no split configuration for order %s", orderID)
	}
	if cfg.Disputed {
		return types.Errorf(types.ErrOrderDisputed, "order %s is disputed", orderID)
	}
	if !cfg.RequiresProof {
		return types.Errorf(types.ErrProofNotVerified, "order %s does not require a proof", orderID)
	}

	cfg.ProofHash = proofHash
	cfg.Auditor = auditor
	cfg.ProofVerified = false

	r.logger.Info("audit-proof-submitted",
		zap.String("order-id", orderID),
		zap.String("auditor", string(auditor)))

	return nil
}

// VerifyProof marks the recorded proof as verified. Only the auditor who
// submitted it may verify.
func (r *Registry) VerifyProof(orderID string, caller types.AccountID) error {
	if err := r.guard.CheckNotPaused(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.configs[orderID]
	if !ok {
		return types.Errorf(types.ErrConfigNotFound, "no split configuration for order %s", orderID)
	}
	if cfg.ProofHash == "" {
		return types.Errorf(types.ErrProofNotVerified, "order %s has no submitted proof", orderID)
	}
	if cfg.Auditor != caller {
		return types.Errorf(types.ErrNotAuthorized, "caller %s is not the auditor of order %s", caller, orderID)
	}

	cfg.ProofVerified = true

	r.logger.Info("audit-proof-verified", zap.String("order-id", orderID))
	return nil
}
