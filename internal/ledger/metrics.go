package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts applied ledger operations by kind.
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settle_ledger_transfers_total",
		Help: "Total number of applied ledger operations (deposit, batch)",
	}, []string{"kind"})

	// TransferValueTotal accumulates the value moved through batch transfers,
	// in smallest settlement units.
	TransferValueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settle_ledger_transfer_value_total",
		Help: "Total value moved through batch transfers (smallest units)",
	})
)
