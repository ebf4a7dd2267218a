package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_reconcile_total",
			Help: "Reconcile calls by outcome",
		},
		[]string{"outcome"},
	)

	SweepCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_sweep_cycles_total",
			Help: "Completed background sweep cycles",
		},
	)

	SweepErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_sweep_errors_total",
			Help: "Provider/query errors swallowed by the sweeper",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_notifications_total",
			Help: "Notification deliveries by sink and result",
		},
		[]string{"sink", "result"},
	)

	StreamsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "settlement_streams_open",
			Help: "Live status streams currently connected",
		},
	)
)
