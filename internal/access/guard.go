// Package access holds the engine's capability checks: who may pause the
// system, which callers are allow-listed relayers, and the global pause
// switch every mutating entry point consults.
package access

import (
	"sync"
	"sync/atomic"

	"github.com/clearway/settle/internal/events"
	"github.com/clearway/settle/pkg/types"
	"go.uber.org/zap"
)

// Guard is the engine-wide authorization and pause controller.
type Guard struct {
	paused atomic.Bool

	mu       sync.RWMutex
	admin    types.AccountID
	relayers map[types.AccountID]struct{}

	bus    *events.Bus
	logger *zap.Logger
}

// Config holds guard configuration.
type Config struct {
	Admin    types.AccountID
	Relayers []types.AccountID
	Bus      *events.Bus
	Logger   *zap.Logger
}

// NewGuard creates a guard with the given administrator and relayer set.
func NewGuard(cfg *Config) (*Guard, error) {
	if cfg.Admin.Zero() {
		return nil, types.NewError(types.ErrUnknownAccount, "admin account cannot be empty")
	}

	relayers := make(map[types.AccountID]struct{}, len(cfg.Relayers))
	for _, r := range cfg.Relayers {
		if r.Zero() {
			return nil, types.NewError(types.ErrUnknownAccount, "relayer account cannot be empty")
		}
		relayers[r] = struct{}{}
	}

	return &Guard{
		admin:    cfg.Admin,
		relayers: relayers,
		bus:      cfg.Bus,
		logger:   cfg.Logger,
	}, nil
}

// CheckNotPaused fails with SYSTEM_PAUSED while the global pause is set.
// Every mutating entry point calls this first, including relayer paths.
func (g *Guard) CheckNotPaused() error {
	if g.paused.Load() {
		return types.NewError(types.ErrSystemPaused, "engine is paused")
	}
	return nil
}

// Pause sets the global pause. Administrator only.
func (g *Guard) Pause(caller types.AccountID) error {
	if err := g.RequireAdmin(caller); err != nil {
		return err
	}

	g.paused.Store(true)
	g.logger.Warn("engine-paused", zap.String("by", string(caller)))
	g.bus.Publish(events.New(events.TypeSystemPaused).Set("by", string(caller)))
	return nil
}

// Unpause clears the global pause. Administrator only.
func (g *Guard) Unpause(caller types.AccountID) error {
	if err := g.RequireAdmin(caller); err != nil {
		return err
	}

	g.paused.Store(false)
	g.logger.Info("engine-unpaused", zap.String("by", string(caller)))
	g.bus.Publish(events.New(events.TypeSystemUnpaused).Set("by", string(caller)))
	return nil
}

// Paused reports the current pause state.
func (g *Guard) Paused() bool {
	return g.paused.Load()
}

// RequireAdmin fails unless the caller is the platform administrator.
func (g *Guard) RequireAdmin(caller types.AccountID) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if caller != g.admin {
		return types.Errorf(types.ErrNotAuthorized, "caller %s is not the administrator", caller)
	}
	return nil
}

// RequireRelayer fails unless the caller is on the relayer allow-list.
func (g *Guard) RequireRelayer(caller types.AccountID) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.relayers[caller]; !ok {
		return types.Errorf(types.ErrNotAuthorized, "caller %s is not an allow-listed relayer", caller)
	}
	return nil
}

// AddRelayer adds a relayer to the allow-list. Administrator only.
func (g *Guard) AddRelayer(caller, relayer types.AccountID) error {
	if err := g.RequireAdmin(caller); err != nil {
		return err
	}
	if relayer.Zero() {
		return types.NewError(types.ErrUnknownAccount, "relayer account cannot be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.relayers[relayer] = struct{}{}
	g.logger.Info("relayer-added", zap.String("relayer", string(relayer)))
	return nil
}
