package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the TDoA localization service.
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	// Solve metrics
	SolvesTotal   prometheus.Counter
	SolveDuration prometheus.Histogram
	DescentsTotal prometheus.Counter
	ClusterCount  prometheus.Histogram
	ResultCount   prometheus.Histogram
	EmptyResults  prometheus.Counter

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheSize   prometheus.Gauge
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// NewMetrics returns the process-wide metrics set. The first call creates
// all Prometheus metrics and registers them with the default registry; later
// calls return the same set, since registering the same metric names twice
// would panic.
func NewMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = newMetrics()
	})
	return defaultMetrics
}

func newMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tdoa_requests_total",
				Help: "Total number of requests by method and status",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tdoa_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method"},
		),
		RequestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tdoa_request_errors_total",
				Help: "Total number of request errors by method and error type",
			},
			[]string{"method", "error_type"},
		),

		SolvesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tdoa_solves_total",
				Help: "Total number of localization solves run",
			},
		),
		SolveDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tdoa_solve_duration_seconds",
				Help:    "Wall-clock duration of a solve call",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		DescentsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tdoa_descents_total",
				Help: "Total number of individual local descents run across all solves",
			},
		),
		ClusterCount: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tdoa_cluster_count",
				Help:    "Number of clusters formed per solve, before filtering",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
			},
		),
		ResultCount: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tdoa_result_count",
				Help:    "Number of estimates returned per solve, after filtering",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
			},
		),
		EmptyResults: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tdoa_empty_results_total",
				Help: "Total number of solves that returned no confident estimate",
			},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tdoa_cache_hits_total",
				Help: "Total number of solve-result cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tdoa_cache_misses_total",
				Help: "Total number of solve-result cache misses",
			},
		),
		CacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tdoa_cache_size",
				Help: "Current number of entries in the solve-result cache",
			},
		),
	}
}

// RecordRequest records a request with duration and status.
func (m *Metrics) RecordRequest(method, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError records an error.
func (m *Metrics) RecordError(method, errorType string) {
	m.RequestErrors.WithLabelValues(method, errorType).Inc()
}

// RecordSolve records the outcome of one Solve call.
func (m *Metrics) RecordSolve(duration time.Duration, descents, clusters, results int) {
	m.SolvesTotal.Inc()
	m.SolveDuration.Observe(duration.Seconds())
	m.DescentsTotal.Add(float64(descents))
	m.ClusterCount.Observe(float64(clusters))
	m.ResultCount.Observe(float64(results))
	if results == 0 {
		m.EmptyResults.Inc()
	}
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// UpdateCacheSize updates the cache size gauge.
func (m *Metrics) UpdateCacheSize(size int) {
	m.CacheSize.Set(float64(size))
}
