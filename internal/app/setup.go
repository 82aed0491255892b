package app

import (
	"context"
	"fmt"

	"github.com/clearway/settle/internal/access"
	"github.com/clearway/settle/internal/events"
	"github.com/clearway/settle/internal/ledger"
	"github.com/clearway/settle/internal/pool"
	"github.com/clearway/settle/internal/router"
	"github.com/clearway/settle/internal/settlement"
	"github.com/clearway/settle/internal/splitconfig"
	"github.com/clearway/settle/internal/storage"
	"github.com/clearway/settle/pkg/cache"
	"github.com/clearway/settle/pkg/config"
	"github.com/clearway/settle/pkg/healthprobe"
	"github.com/clearway/settle/pkg/httpserver"
	"github.com/clearway/settle/pkg/types"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	bus := events.NewBus(cfg.EventBufferSize, logger)

	guard, err := setupGuard(cfg, bus, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup guard: %w", err)
	}

	book := ledger.NewBook(logger)
	registry := splitconfig.NewRegistry(guard, bus, logger)
	registry.SetDefaultLockPeriod(cfg.SettlementLockPeriod)

	commissionRouter, err := router.New(&router.Config{
		Guard:             guard,
		Registry:          registry,
		Book:              book,
		Bus:               bus,
		CustodyAccount:    types.AccountID(cfg.CustodyAccount),
		PlatformAccount:   types.AccountID(cfg.PlatformAccount),
		TreasuryAccount:   types.AccountID(cfg.TreasuryAccount),
		RebatePoolAccount: types.AccountID(cfg.RebatePool),
		Logger:            logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup commission router: %w", err)
	}

	settlementLedger, err := settlement.NewLedger(&settlement.Config{
		Guard:             guard,
		Registry:          registry,
		Book:              book,
		Bus:               bus,
		CustodyAccount:    types.AccountID(cfg.CustodyAccount),
		TreasuryAccount:   types.AccountID(cfg.TreasuryAccount),
		PlatformAccount:   types.AccountID(cfg.PlatformAccount),
		RebatePoolAccount: types.AccountID(cfg.RebatePool),
		Logger:            logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup settlement ledger: %w", err)
	}

	poolManager, err := pool.NewManager(&pool.Config{
		Guard:           guard,
		Book:            book,
		Bus:             bus,
		RecoveryAccount: types.AccountID(cfg.RecoveryAccount),
		Logger:          logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup pool manager: %w", err)
	}

	eventStorage, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	recorder := storage.NewRecorder(bus, eventStorage, logger)

	readCache, err := setupCache(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Book:          book,
		Registry:      registry,
		Settlement:    settlementLedger,
		Pools:         poolManager,
		Bus:           bus,
		Cache:         readCache,
		CacheTTL:      cfg.CacheTTL,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		guard:         guard,
		book:          book,
		bus:           bus,
		registry:      registry,
		router:        commissionRouter,
		settlement:    settlementLedger,
		pools:         poolManager,
		storage:       eventStorage,
		recorder:      recorder,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupGuard(cfg *config.Config, bus *events.Bus, logger *zap.Logger) (*access.Guard, error) {
	relayers := make([]types.AccountID, 0, len(cfg.RelayerAllowlist))
	for _, r := range cfg.RelayerAllowlist {
		relayers = append(relayers, types.AccountID(r))
	}

	return access.NewGuard(&access.Config{
		Admin:    types.AccountID(cfg.AdminAccount),
		Relayers: relayers,
		Bus:      bus,
		Logger:   logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: cfg.CacheMaxItems * 10,
		MaxCost:     cfg.CacheMaxItems,
		BufferItems: 64,
		Logger:      logger,
	})
}
