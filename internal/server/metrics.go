package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the server collectors.
type Metrics struct {
	gatherer        prometheus.Gatherer
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	likesFetches    *prometheus.CounterVec
	likesDuration   prometheus.Histogram
	sessionsActive  prometheus.Gauge
	rateLimited     prometheus.Counter
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbmap_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nbmap_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		likesFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbmap_likes_fetches_total",
				Help: "Completed likes fetches by outcome (applied, failed, stale)",
			},
			[]string{"outcome"},
		),
		likesDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nbmap_likes_fetch_duration_seconds",
				Help:    "Duration of likes fetches",
				Buckets: prometheus.DefBuckets,
			},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nbmap_sessions_active",
				Help: "Number of live widget sessions",
			},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "nbmap_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
	}

	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.likesFetches,
		m.likesDuration,
		m.sessionsActive,
		m.rateLimited,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Monitor records request counts and latency per route pattern.
func (m *Metrics) Monitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := wrapResponseWriter(w)
		next.ServeHTTP(ww, r)

		// route patterns keep label cardinality bounded
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}

		m.requestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(ww.statusCode)).Inc()
		m.requestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}
