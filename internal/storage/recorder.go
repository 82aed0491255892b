package storage

import (
	"context"
	"sync"

	"github.com/clearway/settle/internal/events"
	"go.uber.org/zap"
)

// Recorder drains an event bus subscription into a Storage backend.
// Storage failures are logged and counted, never retried: the bus does
// not replay, and the engine must not stall on persistence.
type Recorder struct {
	storage Storage
	ch      <-chan *events.Event
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewRecorder subscribes to the bus and returns a recorder ready to start.
func NewRecorder(bus *events.Bus, storage Storage, logger *zap.Logger) *Recorder {
	return &Recorder{
		storage: storage,
		ch:      bus.Subscribe(),
		logger:  logger,
	}
}

// Start consumes events until the context ends or the bus closes.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-r.ch:
				if !ok {
					return
				}
				if err := r.storage.StoreEvent(ctx, event); err != nil {
					StoreErrorsTotal.Inc()
					r.logger.Error("event-store-failed",
						zap.String("event-id", event.ID),
						zap.String("type", string(event.Type)),
						zap.Error(err))
					continue
				}
				EventsStoredTotal.WithLabelValues(string(event.Type)).Inc()
			}
		}
	}()
}

// Wait blocks until the consume loop exits.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
