package storage

import (
	"context"

	"github.com/clearway/settle/internal/events"
	"go.uber.org/zap"
)

// ConsoleStorage implements Storage by logging events. Useful for
// development and for running the engine without a database.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
	}
}

// StoreEvent logs the event at info level.
func (c *ConsoleStorage) StoreEvent(ctx context.Context, event *events.Event) error {
	c.logger.Info("engine-event",
		zap.String("event-id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("order-id", event.OrderID),
		zap.String("pool-id", event.PoolID),
		zap.Any("payload", event.Payload),
		zap.Time("emitted-at", event.EmittedAt))
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
