package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the gateway.
// All record methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Gateway metrics
	AuthResultsTotal      *prometheus.CounterVec
	RateLimitDecisions    *prometheus.CounterVec
	KeyTouchFailuresTotal prometheus.Counter
	CounterStoreErrors    *prometheus.CounterVec
	KeyCacheLookupsTotal  *prometheus.CounterVec
	CounterStoreLatency   *prometheus.HistogramVec
}

// NewMetrics creates and registers all gateway metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_auth_results_total",
				Help: "Authentication outcomes by result",
			},
			[]string{"result"},
		),
		RateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_ratelimit_decisions_total",
				Help: "Rate limit decisions by plan and result",
			},
			[]string{"plan", "result"},
		),
		KeyTouchFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_key_touch_failures_total",
				Help: "Failed last-used updates of API keys",
			},
		),
		CounterStoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_counter_store_errors_total",
				Help: "Counter store failures by operation",
			},
			[]string{"op"},
		),
		KeyCacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_key_cache_lookups_total",
				Help: "Credential cache lookups by result",
			},
			[]string{"result"},
		),
		CounterStoreLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_counter_store_duration_seconds",
				Help:    "Counter store call duration in seconds",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"op"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.AuthResultsTotal,
			m.RateLimitDecisions,
			m.KeyTouchFailuresTotal,
			m.CounterStoreErrors,
			m.KeyCacheLookupsTotal,
			m.CounterStoreLatency,
		)
	}

	return m
}

// Handler returns the Prometheus scrape handler for the registry
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthResult records an authentication outcome
func (m *Metrics) RecordAuthResult(result string) {
	if m == nil {
		return
	}
	m.AuthResultsTotal.WithLabelValues(result).Inc()
}

// RecordRateLimitDecision records a rate limit decision
func (m *Metrics) RecordRateLimitDecision(plan, result string) {
	if m == nil {
		return
	}
	m.RateLimitDecisions.WithLabelValues(plan, result).Inc()
}

// RecordKeyTouchFailure records a failed last-used update
func (m *Metrics) RecordKeyTouchFailure() {
	if m == nil {
		return
	}
	m.KeyTouchFailuresTotal.Inc()
}

// RecordCounterStoreCall records the latency and outcome of a counter store call
func (m *Metrics) RecordCounterStoreCall(op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.CounterStoreLatency.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		m.CounterStoreErrors.WithLabelValues(op).Inc()
	}
}

// RecordKeyCacheLookup records a credential cache hit or miss
func (m *Metrics) RecordKeyCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.KeyCacheLookupsTotal.WithLabelValues(result).Inc()
}
