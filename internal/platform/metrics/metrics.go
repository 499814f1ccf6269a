// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Consumer outcomes.
const (
	OutcomeToggled      = "toggled"
	OutcomeNotFound     = "not_found"
	OutcomeDecodeError  = "decode_error"
	OutcomeStoreError   = "store_error"
	OutcomePublishError = "publish_error"
	OutcomePanic        = "panic"
)

// Metrics groups every collector registered by New.
type Metrics struct {
	registry *prometheus.Registry

	AvailabilityPublished *prometheus.CounterVec
	AvailabilityConsumed  *prometheus.CounterVec
	HTTPRequests          *prometheus.CounterVec
	HTTPDuration          *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg gets a fresh registry, which
// keeps tests from colliding on the global default registerer.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AvailabilityPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookcatalog_availability_published_total",
				Help: "Availability events handed to the queue, by result",
			},
			[]string{"result"},
		),
		AvailabilityConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookcatalog_availability_consumed_total",
				Help: "Availability events processed by the consumer, by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookcatalog_http_requests_total",
				Help: "HTTP requests served, by method and status",
			},
			[]string{"method", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookcatalog_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// WithRuntimeCollectors adds the Go and process collectors.
func (m *Metrics) WithRuntimeCollectors() *Metrics {
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
