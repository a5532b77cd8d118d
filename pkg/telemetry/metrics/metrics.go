// Package metrics tracks rule engine activity for Prometheus scraping.
//
// Metrics:
//   - anvil_rule_evaluations_total: rule evaluations by phase and result
//   - anvil_batch_failures_total: aborted batches by phase
//   - anvil_apply_duration_seconds: batch duration by phase
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks rule engine counters and timings. It implements the
// engine's Metrics interface.
type Metrics struct {
	registry *prometheus.Registry

	evaluationsTotal *prometheus.CounterVec
	batchFailures    *prometheus.CounterVec
	applyDuration    *prometheus.HistogramVec
}

// New creates and registers engine metrics with the provided registry.
// A nil registry gets a fresh one, which keeps tests isolated.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "anvil",
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule evaluations",
			},
			[]string{"phase", "result"},
		),

		batchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "anvil",
				Name:      "batch_failures_total",
				Help:      "Total number of aborted rule batches",
			},
			[]string{"phase"},
		),

		applyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "anvil",
				Name:      "apply_duration_seconds",
				Help:      "Duration of one rule batch in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
			},
			[]string{"phase"},
		),
	}

	registry.MustRegister(
		m.evaluationsTotal,
		m.batchFailures,
		m.applyDuration,
	)
	return m
}

// RuleEvaluated counts one rule evaluation and whether it matched.
func (m *Metrics) RuleEvaluated(phase string, matched bool) {
	result := "miss"
	if matched {
		result = "match"
	}
	m.evaluationsTotal.WithLabelValues(phase, result).Inc()
}

// BatchFailed counts one aborted batch.
func (m *Metrics) BatchFailed(phase string) {
	m.batchFailures.WithLabelValues(phase).Inc()
}

// ObserveApply records the duration of one batch.
func (m *Metrics) ObserveApply(phase string, d time.Duration) {
	m.applyDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// Handler returns an HTTP handler exposing the registry in Prometheus
// exposition format, typically mounted at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}
