package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clearway/settle/internal/events"
	"github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL. Events land in an
// append-only engine_events table with the payload as JSONB.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreEvent inserts the event into engine_events.
func (p *PostgresStorage) StoreEvent(ctx context.Context, event *events.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	query := `
		INSERT INTO engine_events (
			id, event_type, order_id, pool_id, payload, emitted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err = p.db.ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		nullable(event.OrderID),
		nullable(event.PoolID),
		payload,
		event.EmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	p.logger.Debug("event-stored",
		zap.String("event-id", event.ID),
		zap.String("type", string(event.Type)))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
