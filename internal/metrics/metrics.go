// Package metrics exposes Prometheus collectors for access decisions and RPCs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registered collectors.
type Metrics struct {
	registry       *prometheus.Registry
	guardDecisions *prometheus.CounterVec
	rpcRequests    *prometheus.CounterVec
	rpcDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them, plus the Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		guardDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_guard_decisions_total",
				Help: "Total number of access guard decisions",
			},
			[]string{"outcome"},
		),
		rpcRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_rpc_requests_total",
				Help: "Total number of gRPC requests",
			},
			[]string{"method", "code"},
		),
		rpcDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rbac_rpc_duration_seconds",
				Help:    "gRPC request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	m.registry.MustRegister(
		m.guardDecisions,
		m.rpcRequests,
		m.rpcDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveDecision counts one guard outcome.
func (m *Metrics) ObserveDecision(outcome string) {
	m.guardDecisions.WithLabelValues(outcome).Inc()
}

// ObserveRPC counts one finished RPC.
func (m *Metrics) ObserveRPC(method, code string, seconds float64) {
	m.rpcRequests.WithLabelValues(method, code).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(seconds)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
