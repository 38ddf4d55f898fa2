package infrastructure

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the holdings pipeline.
// One instance is created at startup and shared by injection; there is
// no process-wide default registry use so tests can build their own.
type Metrics struct {
	registry *prometheus.Registry

	EdgarRequests *prometheus.CounterVec
	EdgarRetries  prometheus.Counter
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	CacheRefresh  *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
}

// NewMetrics builds a metrics set backed by its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		EdgarRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgar_requests_total",
			Help: "Outbound EDGAR requests by final status class.",
		}, []string{"status"}),
		EdgarRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edgar_request_retries_total",
			Help: "Outbound EDGAR request attempts beyond the first.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holdings_cache_hits_total",
			Help: "Holdings cache lookups served without upstream I/O.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holdings_cache_misses_total",
			Help: "Holdings cache lookups that required a refresh.",
		}),
		CacheRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holdings_cache_refresh_total",
			Help: "Completed cache refreshes by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Inbound HTTP requests by route and status code.",
		}, []string{"route", "status"}),
	}

	reg.MustRegister(
		m.EdgarRequests,
		m.EdgarRetries,
		m.CacheHits,
		m.CacheMisses,
		m.CacheRefresh,
		m.HTTPRequests,
	)

	return m
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
