package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsStoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settle_storage_events_stored_total",
		Help: "Engine events persisted, by event type",
	}, []string{"type"})

	StoreErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settle_storage_errors_total",
		Help: "Failed event persistence attempts",
	})
)
