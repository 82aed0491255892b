// Package app wires the engine together: accounting book, split
// registry, commission router, settlement ledger, pool manager, event
// persistence, and the HTTP read API.
package app

import (
	"context"
	"sync"

	"github.com/clearway/settle/internal/access"
	"github.com/clearway/settle/internal/events"
	"github.com/clearway/settle/internal/ledger"
	"github.com/clearway/settle/internal/pool"
	"github.com/clearway/settle/internal/router"
	"github.com/clearway/settle/internal/settlement"
	"github.com/clearway/settle/internal/splitconfig"
	"github.com/clearway/settle/internal/storage"
	"github.com/clearway/settle/pkg/config"
	"github.com/clearway/settle/pkg/healthprobe"
	"github.com/clearway/settle/pkg/httpserver"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	guard      *access.Guard
	book       *ledger.Book
	bus        *events.Bus
	registry   *splitconfig.Registry
	router     *router.Router
	settlement *settlement.Ledger
	pools      *pool.Manager

	storage  storage.Storage
	recorder *storage.Recorder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Guard exposes the access guard for administrative tooling.
func (a *App) Guard() *access.Guard { return a.guard }

// Router exposes the commission router.
func (a *App) Router() *router.Router { return a.router }

// Settlement exposes the order settlement ledger.
func (a *App) Settlement() *settlement.Ledger { return a.settlement }

// Pools exposes the budget pool manager.
func (a *App) Pools() *pool.Manager { return a.pools }

// Registry exposes the split configuration registry.
func (a *App) Registry() *splitconfig.Registry { return a.registry }

// Book exposes the accounting book.
func (a *App) Book() *ledger.Book { return a.book }
