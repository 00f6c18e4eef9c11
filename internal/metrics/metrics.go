// Package metrics exposes the server's Prometheus collectors. They are served
// on the HTTP endpoint at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsDispatched counts work items dispatched onto the shared worker
	// pool, by transport.
	RequestsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapd_frontend_requests_total",
			Help: "Total number of requests dispatched onto the worker pool",
		},
		[]string{"transport"},
	)

	// PoolInFlight tracks work items currently holding a worker pool slot.
	PoolInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapd_worker_pool_in_flight",
			Help: "Number of work items currently executing on the worker pool",
		},
	)

	// WarmupBlocks counts replayed warm-up blocks.
	WarmupBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mapd_warmup_blocks_total",
			Help: "Total number of warm-up blocks replayed",
		},
	)

	// WarmupStatements counts executed warm-up statements.
	WarmupStatements = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mapd_warmup_statements_total",
			Help: "Total number of warm-up statements executed",
		},
	)
)

// RegisterSessionGauge exposes the engine's live session count as a gauge.
func RegisterSessionGauge(count func() float64) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mapd_sessions_active",
			Help: "Number of currently open engine sessions",
		}, count),
	)
}
