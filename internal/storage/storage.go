package storage

import (
	"context"

	"github.com/clearway/settle/internal/events"
)

// Storage is the interface for persisting engine events.
type Storage interface {
	// StoreEvent persists one engine event.
	StoreEvent(ctx context.Context, event *events.Event) error

	// Close closes the storage connection.
	Close() error
}
