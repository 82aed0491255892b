package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PoolsCreatedTotal counts created pools.
	PoolsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settle_pools_created_total",
		Help: "Total budget pools created",
	})

	// PoolFundingTotal accumulates funding received across all pools.
	PoolFundingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settle_pool_funding_total",
		Help: "Total funding received into pool custody (smallest units)",
	})

	// MilestonesCreatedTotal counts created milestones.
	MilestonesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settle_milestones_created_total",
		Help: "Total milestones created",
	})

	// ReleasesTotal counts released milestones.
	ReleasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settle_milestone_releases_total",
		Help: "Total milestones released",
	})

	// ReleasedValueTotal accumulates released milestone value.
	ReleasedValueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settle_milestone_released_value_total",
		Help: "Total value released through milestones (smallest units)",
	})

	// EmergencyWithdrawalsTotal counts emergency sweeps.
	EmergencyWithdrawalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settle_emergency_withdrawals_total",
		Help: "Total emergency withdrawals performed",
	})
)
