// Package metrics provides Prometheus instrumentation for the entitlement engine
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects entitlement engine metrics for Prometheus export.
// A nil *Metrics is valid and records nothing, so instrumentation points
// never need nil checks.
type Metrics struct {
	checksTotal       *prometheus.CounterVec
	lifecycleTotal    *prometheus.CounterVec
	persistenceErrors prometheus.Counter
	checkDuration     prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	checksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_checks_total",
			Help:      "Total number of feature access checks by outcome",
		},
		[]string{"outcome"},
	)

	lifecycleTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Total number of access record lifecycle transitions by kind",
		},
		[]string{"kind"},
	)

	persistenceErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Total number of access record persistence rejections",
		},
	)

	checkDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Latency of access check evaluation",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
		},
	)

	registry.MustRegister(checksTotal, lifecycleTotal, persistenceErrors, checkDuration)

	return &Metrics{
		checksTotal:       checksTotal,
		lifecycleTotal:    lifecycleTotal,
		persistenceErrors: persistenceErrors,
		checkDuration:     checkDuration,
		registry:          registry,
	}
}

// RecordCheck records an access check outcome and its duration
func (m *Metrics) RecordCheck(allowed bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.checksTotal.WithLabelValues(outcome).Inc()
	m.checkDuration.Observe(duration.Seconds())
}

// RecordLifecycle records a lifecycle transition (activated, transferred,
// version_changed, updated, reused)
func (m *Metrics) RecordLifecycle(kind string) {
	if m == nil {
		return
	}
	m.lifecycleTotal.WithLabelValues(kind).Inc()
}

// RecordPersistenceError records a rejected create or update
func (m *Metrics) RecordPersistenceError() {
	if m == nil {
		return
	}
	m.persistenceErrors.Inc()
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
