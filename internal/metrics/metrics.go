// Package metrics exposes approval workflow counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	submissions      *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	deliveryFailures *prometheus.CounterVec
	fanOut           prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chorebot",
			Name:      "submissions_total",
			Help:      "Proof submissions by approval kind.",
		}, []string{"kind"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chorebot",
			Name:      "decisions_total",
			Help:      "Parent decisions by kind, verdict and outcome.",
		}, []string{"kind", "verdict", "outcome"}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chorebot",
			Name:      "delivery_failures_total",
			Help:      "Notification gateway calls that failed.",
		}, []string{"operation"}),
		fanOut: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chorebot",
			Name:      "approval_fanout_messages",
			Help:      "Parent messages delivered per submission.",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.submissions,
		m.decisions,
		m.deliveryFailures,
		m.fanOut,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSubmission records a submission and how many parents received it.
func (m *Metrics) ObserveSubmission(kind string, delivered int) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kind).Inc()
	m.fanOut.Observe(float64(delivered))
}

// ObserveDecision records a decision attempt; outcome is "ok" or an error class.
func (m *Metrics) ObserveDecision(kind, verdict, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(kind, verdict, outcome).Inc()
}

// DeliveryFailed records one failed gateway call.
func (m *Metrics) DeliveryFailed(operation string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(operation).Inc()
}
