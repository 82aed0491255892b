package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SplitsTotal counts split executions by entry mode and outcome.
	SplitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settle_router_splits_total",
		Help: "Total split executions by entry mode and outcome",
	}, []string{"mode", "outcome"})

	// SplitValueTotal accumulates settled payment value in smallest units.
	SplitValueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settle_router_split_value_total",
		Help: "Total settled payment value (smallest units)",
	})

	// SplitDuration observes time spent inside executeSplit.
	SplitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settle_router_split_duration_seconds",
		Help:    "Time taken to execute a split",
		Buckets: prometheus.DefBuckets,
	})
)
