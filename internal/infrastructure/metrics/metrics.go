package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/ports"
)

// Metrics records evaluation counters. The engine makes no network calls, so
// the registry is exported as a node-exporter textfile instead of scraped.
type Metrics struct {
	registry *prometheus.Registry

	// Latency: full evaluation time including validators
	EvaluationDuration *prometheus.HistogramVec

	// Traffic: decisions by outcome
	Decisions *prometheus.CounterVec

	// Rule activity: matches per rule
	RuleMatches *prometheus.CounterVec

	// Validators: runs by interpreted status (passed, failed, timed_out, ...)
	ValidatorRuns *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		registry: reg,
		EvaluationDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hookgate_evaluation_duration_seconds",
			Help:    "Histogram of evaluation latencies.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .5, 1, 5},
		}, []string{"outcome"}),

		Decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hookgate_decisions_total",
			Help: "Total number of decisions by outcome.",
		}, []string{"outcome"}),

		RuleMatches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hookgate_rule_matches_total",
			Help: "Total number of rule matches.",
		}, []string{"rule"}),

		ValidatorRuns: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hookgate_validator_runs_total",
			Help: "Total number of validator runs by status.",
		}, []string{"status"}),
	}
}

// Registry exposes the underlying registry (tests, textfile export).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveDecision(outcome domain.Outcome, elapsed time.Duration) {
	m.Decisions.WithLabelValues(string(outcome)).Inc()
	m.EvaluationDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRuleMatch(rule string) {
	m.RuleMatches.WithLabelValues(rule).Inc()
}

func (m *Metrics) ObserveValidator(status domain.ValidatorStatus) {
	m.ValidatorRuns.WithLabelValues(string(status)).Inc()
}

// WriteTextfile writes the registry atomically to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

var _ ports.MetricsRecorder = (*Metrics)(nil)
