package events

import (
	"sync"

	"go.uber.org/zap"
)

// Bus fans engine events out to subscriber channels. Emitters publish
// under the emitting entity's lock, so per-entity ordering is preserved
// on every subscriber channel. Publish never blocks the settlement path:
// a subscriber that cannot keep up drops events (counted) rather than
// stalling a transfer.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan *Event
	bufferSize  int
	closed      bool
	logger      *zap.Logger
}

// NewBus creates a bus whose subscriber channels buffer bufferSize events.
func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Bus{
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe registers a new subscriber and returns its channel.
// The channel is closed when the bus closes.
func (b *Bus) Subscribe() <-chan *Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}

	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	EventsPublishedTotal.WithLabelValues(string(event.Type)).Inc()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			EventsDroppedTotal.Inc()
			b.logger.Warn("event-dropped",
				zap.String("type", string(event.Type)),
				zap.String("event-id", event.ID))
		}
	}
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil

	b.logger.Info("event-bus-closed")
}
