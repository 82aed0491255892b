package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommissionsRecordedTotal counts recorded commissions by category.
	CommissionsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settle_commissions_recorded_total",
		Help: "Total commission records appended, by category",
	}, []string{"category"})

	// DistributionsTotal counts successful order distributions.
	DistributionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settle_distributions_total",
		Help: "Total orders distributed and settled",
	})

	// SettlementsCreatedTotal counts settlement batches created.
	SettlementsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settle_settlements_created_total",
		Help: "Total settlement batches created from pending balances",
	})
)
