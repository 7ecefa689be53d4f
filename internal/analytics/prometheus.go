package analytics

import (
	"github.com/prometheus/client_golang/prometheus"

	"transfer-router/internal/health"
)

// Metrics exposes the routing counters to Prometheus. The breaker state gauge
// is refreshed from health snapshots by the cron sweep rather than on every
// transition.
type Metrics struct {
	registry *prometheus.Registry

	payouts      *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

// NewMetrics creates and registers the routing collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transfer_router",
			Name:      "payouts_total",
			Help:      "Payout attempts by gateway and outcome.",
		}, []string{"gateway", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transfer_router",
			Name:      "fallbacks_total",
			Help:      "Fallback executions by the gateway that failed over.",
		}, []string{"gateway"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "transfer_router",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per gateway (0 closed, 1 half-open, 2 open).",
		}, []string{"gateway"}),
	}

	m.registry.MustRegister(m.payouts, m.fallbacks, m.breakerState)
	return m
}

// Registry returns the underlying registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RefreshBreakerStates updates the breaker gauge from health snapshots
func (m *Metrics) RefreshBreakerStates(snapshots []health.Snapshot) {
	for _, s := range snapshots {
		var v float64
		switch s.State {
		case "half-open":
			v = 1
		case "open":
			v = 2
		}
		m.breakerState.WithLabelValues(s.Gateway).Set(v)
	}
}
