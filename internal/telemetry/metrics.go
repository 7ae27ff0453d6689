package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

// Metrics agrupa los collectors de Prometheus del poller. Un *Metrics nil es
// válido y no registra nada.
type Metrics struct {
	cycles            *prometheus.CounterVec
	sessions          *prometheus.CounterVec
	placementFailures prometheus.Counter
	cycleDuration     prometheus.Histogram
}

// NewMetrics crea y registra los collectors en reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arvbot_poll_cycles_total",
			Help: "Poll cycles by result (completed, skipped).",
		}, []string{"result"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arvbot_sessions_processed_total",
			Help: "Sessions processed by cycle phase and result (ok, pending, failed).",
		}, []string{"phase", "result"}),
		placementFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arvbot_placement_failures_total",
			Help: "Placements rejected or expired by the exchange.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arvbot_poll_cycle_duration_seconds",
			Help:    "Wall time of completed poll cycles.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	reg.MustRegister(m.cycles, m.sessions, m.placementFailures, m.cycleDuration)
	return m
}

// ObserveCycle records one cycle report.
func (m *Metrics) ObserveCycle(report domain.CycleReport) {
	if m == nil {
		return
	}
	if report.Skipped {
		m.cycles.WithLabelValues("skipped").Inc()
		return
	}
	m.cycles.WithLabelValues("completed").Inc()
	m.cycleDuration.Observe(report.Duration.Seconds())

	for _, r := range report.Results {
		result := "ok"
		switch {
		case r.Err != nil && r.NotReady:
			result = "pending"
		case r.Err != nil:
			result = "failed"
		}
		m.sessions.WithLabelValues(string(r.Phase), result).Inc()
	}
}

// PlacementFailed counts one rejected placement.
func (m *Metrics) PlacementFailed() {
	if m == nil {
		return
	}
	m.placementFailures.Inc()
}
