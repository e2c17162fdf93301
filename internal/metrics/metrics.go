// Package metrics holds the Prometheus collectors of a tablekv node.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Latency histogram buckets (seconds).
var defBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics groups the collectors of one node behind its own registry, so that
// several nodes can live in the same process.
type Metrics struct {
	registry *prometheus.Registry

	// Invocations counts contract invocations by function and result code.
	Invocations *prometheus.CounterVec
	// InvocationDuration records invocation latency by function.
	InvocationDuration *prometheus.HistogramVec
	// Streams counts accepted network streams by kind.
	Streams *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablekv_invocations_total",
			Help: "Contract invocations by function and result code.",
		}, []string{"function", "code"}),
		InvocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tablekv_invocation_duration_seconds",
			Help:    "Contract invocation latency in seconds.",
			Buckets: defBuckets,
		}, []string{"function"}),
		Streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablekv_streams_total",
			Help: "Accepted streams by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.Invocations, m.InvocationDuration, m.Streams)
	return m
}

// ObserveInvocation records one finished invocation.
func (m *Metrics) ObserveInvocation(function, code string, elapsed time.Duration) {
	m.Invocations.WithLabelValues(function, code).Inc()
	m.InvocationDuration.WithLabelValues(function).Observe(elapsed.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
