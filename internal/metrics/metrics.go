package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for navigation and gating.
type Metrics struct {
	// Gate decisions by outcome and blocked state
	GateDecisions *prometheus.CounterVec

	// Fact fetch latencies by source
	FetchLatency *prometheus.HistogramVec

	// Fact fetch failures by source
	FetchErrors *prometheus.CounterVec

	// Results discarded because a newer navigation superseded them
	StaleResults prometheus.Counter

	// Path rewrites performed by the normalizer
	Rewrites prometheus.Counter
}

// New creates a Metrics instance registered on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		GateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "membersite_gate_decisions_total",
			Help: "Gate chain decisions by outcome and blocked state",
		}, []string{"outcome", "state"}),

		FetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "membersite_fact_fetch_duration_seconds",
			Help:    "Duration of session, profile, allow-list and settings fetches",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}), // source: "session", "profile", "admin", "settings"

		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "membersite_fact_fetch_errors_total",
			Help: "Failed fact fetches by source",
		}, []string{"source"}),

		StaleResults: factory.NewCounter(prometheus.CounterOpts{
			Name: "membersite_stale_results_total",
			Help: "Fetch results discarded because the screen moved on",
		}),

		Rewrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "membersite_path_rewrites_total",
			Help: "Non-canonical paths rewritten into canonical form",
		}),
	}
}

// IncrementDecision records a gate decision.
func (m *Metrics) IncrementDecision(outcome, state string) {
	if m != nil {
		m.GateDecisions.WithLabelValues(outcome, state).Inc()
	}
}

// ObserveFetch records a fetch duration and whether it failed.
func (m *Metrics) ObserveFetch(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.FetchLatency.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(source).Inc()
	}
}

// IncrementStale records a discarded result.
func (m *Metrics) IncrementStale() {
	if m != nil {
		m.StaleResults.Inc()
	}
}

// IncrementRewrite records a normalizer rewrite.
func (m *Metrics) IncrementRewrite() {
	if m != nil {
		m.Rewrites.Inc()
	}
}
