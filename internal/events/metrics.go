package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublishedTotal counts published events by type.
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settle_events_published_total",
		Help: "Total number of engine events published, by event type",
	}, []string{"type"})

	// EventsDroppedTotal counts events dropped because a subscriber
	// channel was full.
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settle_events_dropped_total",
		Help: "Total number of events dropped on full subscriber channels",
	})
)
