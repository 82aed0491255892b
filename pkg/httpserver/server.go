package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/clearway/settle/internal/events"
	"github.com/clearway/settle/internal/ledger"
	"github.com/clearway/settle/internal/pool"
	"github.com/clearway/settle/internal/settlement"
	"github.com/clearway/settle/internal/splitconfig"
	"github.com/clearway/settle/pkg/cache"
	"github.com/clearway/settle/pkg/healthprobe"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the engine's read-side API, the live event feed, and
// the metrics and health endpoints. All mutation goes through the engine
// packages directly; HTTP is read-only.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker

	Book       *ledger.Book
	Registry   *splitconfig.Registry
	Settlement *settlement.Ledger
	Pools      *pool.Manager
	Bus        *events.Bus
	Cache      cache.Cache
	CacheTTL   time.Duration
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Routes
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	api := NewAPIHandler(cfg)
	r.Route("/api", func(r chi.Router) {
		r.Get("/orders/{orderID}", api.HandleOrder)
		r.Get("/orders/{orderID}/config", api.HandleSplitConfig)
		r.Get("/pools/{poolID}", api.HandlePool)
		r.Get("/pools/{poolID}/milestones/{milestoneID}", api.HandleMilestone)
		r.Get("/balance", api.HandleBalance)
		r.Get("/pending", api.HandlePending)
	})

	if cfg.Bus != nil {
		feed := NewEventFeed(cfg.Bus, cfg.Logger)
		r.Get("/ws/events", feed.HandleWS)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
