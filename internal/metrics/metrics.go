// Package metrics holds the Prometheus collectors gamefront exports on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups gamefront's collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	loginsTotal         *prometheus.CounterVec
	catalogFetchesTotal *prometheus.CounterVec
	catalogFetchSeconds *prometheus.HistogramVec
	catalogCacheTotal   *prometheus.CounterVec
}

// New creates and registers the collectors on a fresh registry that also
// carries the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gamefront",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gamefront",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		loginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gamefront",
			Name:      "provider_callbacks_total",
			Help:      "Provider sign-in callbacks by outcome",
		}, []string{"provider", "outcome"}),

		catalogFetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gamefront",
			Name:      "catalog_fetches_total",
			Help:      "Upstream catalog fetches by result",
		}, []string{"provider", "result"}),

		catalogFetchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gamefront",
			Name:      "catalog_fetch_duration_seconds",
			Help:      "Upstream catalog fetch latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),

		catalogCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gamefront",
			Name:      "catalog_cache_lookups_total",
			Help:      "Catalog cache lookups by result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.loginsTotal,
		m.catalogFetchesTotal,
		m.catalogFetchSeconds,
		m.catalogCacheTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveCallback counts a provider callback. outcome is "ok" or an idp.ErrorKind.
func (m *Metrics) ObserveCallback(provider, outcome string) {
	if m == nil {
		return
	}
	m.loginsTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ObserveCatalogFetch(provider string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.catalogFetchesTotal.WithLabelValues(provider, result).Inc()
	m.catalogFetchSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.catalogCacheTotal.WithLabelValues(result).Inc()
}
