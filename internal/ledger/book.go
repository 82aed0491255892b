// Package ledger provides the account book the settlement engine moves
// value through.
//
// This is NOT a service but core infrastructure used by the commission
// router, the order settlement ledger and the budget pool manager. All
// balance mutations go through the book so that multi-party settlement is
// observable as a single atomic step: either every leg of a transfer
// applies, or none do.
package ledger

import (
	"sync"

	"github.com/clearway/settle/pkg/types"
	"go.uber.org/zap"
)

// Leg is one beneficiary credit inside a batch transfer.
type Leg struct {
	To     types.AccountID
	Amount types.Amount
}

// Book holds per-(account, token) balances. All mutating operations are
// serialized under one mutex; a batch is validated in full before any leg
// is applied, so partial transfers are never observable.
type Book struct {
	mu       sync.RWMutex
	balances map[types.AccountID]map[types.Token]types.Amount
	logger   *zap.Logger
}

// NewBook creates an empty account book.
func NewBook(logger *zap.Logger) *Book {
	return &Book{
		balances: make(map[types.AccountID]map[types.Token]types.Amount),
		logger:   logger,
	}
}

// Balance returns the current balance for (account, token).
// Unknown accounts read as zero.
func (b *Book) Balance(account types.AccountID, token types.Token) types.Amount {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[account][token]
}

// Deposit credits an account from outside the engine (funding, top-ups).
func (b *Book) Deposit(account types.AccountID, token types.Token, amount types.Amount) error {
	if account.Zero() {
		return types.NewError(types.ErrUnknownAccount, "deposit account is empty")
	}
	if err := amount.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.credit(account, token, amount)
	TransfersTotal.WithLabelValues("deposit").Inc()

	b.logger.Debug("ledger-deposit",
		zap.String("account", string(account)),
		zap.String("token", string(token)),
		zap.Int64("amount", int64(amount)))

	return nil
}

// Transfer moves a single amount between two accounts, all or nothing.
func (b *Book) Transfer(from, to types.AccountID, token types.Token, amount types.Amount) error {
	return b.TransferBatch(from, token, []Leg{{To: to, Amount: amount}})
}

// TransferBatch debits the payer by the sum of all legs and credits each
// beneficiary, in the order given. The full debit is validated against the
// payer's balance before any leg applies; on any validation failure no
// balance changes. Zero-amount legs are skipped.
func (b *Book) TransferBatch(from types.AccountID, token types.Token, legs []Leg) error {
	if from.Zero() {
		return types.NewError(types.ErrUnknownAccount, "payer account is empty")
	}

	var total types.Amount
	for _, leg := range legs {
		if err := leg.Amount.Validate(); err != nil {
			return err
		}
		if leg.Amount > 0 && leg.To.Zero() {
			return types.NewError(types.ErrUnknownAccount, "beneficiary account is empty")
		}
		total += leg.Amount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	available := b.balances[from][token]
	if total > available {
		return types.Errorf(types.ErrInsufficientBalance,
			"account %s has %d %s, batch requires %d", from, available, token, total)
	}

	if b.balances[from] == nil {
		b.balances[from] = make(map[types.Token]types.Amount)
	}
	b.balances[from][token] = available - total
	for _, leg := range legs {
		if leg.Amount == 0 {
			continue
		}
		b.credit(leg.To, token, leg.Amount)
	}

	TransfersTotal.WithLabelValues("batch").Inc()
	TransferValueTotal.Add(float64(total))

	b.logger.Debug("ledger-batch-applied",
		zap.String("from", string(from)),
		zap.String("token", string(token)),
		zap.Int64("total", int64(total)),
		zap.Int("legs", len(legs)))

	return nil
}

// credit assumes b.mu is held.
func (b *Book) credit(account types.AccountID, token types.Token, amount types.Amount) {
	if b.balances[account] == nil {
		b.balances[account] = make(map[types.Token]types.Amount)
	}
	b.balances[account][token] += amount
}
