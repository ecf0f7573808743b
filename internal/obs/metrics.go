package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the offer service.
type Metrics struct {
	RunsTotal           *prometheus.CounterVec
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheErrorsTotal    *prometheus.CounterVec
	SourceFailures      *prometheus.CounterVec
	SourceLatency       *prometheus.HistogramVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	Registry            *prometheus.Registry
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offer_runs_total",
			Help: "Orchestration runs by outcome",
		}, []string{"outcome"}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "offer_cache_hits_total",
			Help: "Runs answered from the offer cache",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "offer_cache_misses_total",
			Help: "Runs that had to fan out to sources",
		}),
		CacheErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offer_cache_errors_total",
			Help: "Cache operations that failed",
		}, []string{"op"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offer_source_failures_total",
			Help: "Unhealthy results by source",
		}, []string{"source"}),
		SourceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "offer_source_latency_seconds",
			Help:    "Latency of a single source fetch",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		Registry: reg,
	}

	reg.MustRegister(
		m.RunsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheErrorsTotal,
		m.SourceFailures,
		m.SourceLatency,
		m.HTTPRequestDuration,
		m.HTTPRequestsTotal,
	)

	return m
}

func (m *Metrics) IncRun(outcome string) { m.RunsTotal.WithLabelValues(outcome).Inc() }
func (m *Metrics) IncCacheHit()          { m.CacheHitsTotal.Inc() }
func (m *Metrics) IncCacheMiss()         { m.CacheMissesTotal.Inc() }

func (m *Metrics) IncCacheError(op string) { m.CacheErrorsTotal.WithLabelValues(op).Inc() }

func (m *Metrics) IncSourceFailure(source string) {
	m.SourceFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveSourceLatency(source string, d time.Duration) {
	m.SourceLatency.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	m.HTTPRequestDuration.WithLabelValues(method, path, code).Observe(d.Seconds())
	m.HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
