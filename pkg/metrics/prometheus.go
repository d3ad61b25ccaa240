// Package metrics provides Prometheus metrics for the ladder service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Range fetching
	pageFetches        *prometheus.CounterVec
	pageFetchLatency   *prometheus.HistogramVec
	detailLookups      *prometheus.CounterVec
	cursorCache        *prometheus.CounterVec
	rangeFetches       *prometheus.CounterVec
	rangeFetchDuration *prometheus.HistogramVec

	// Aggregation
	rebuilds         *prometheus.CounterVec
	rebuildDuration  prometheus.Histogram
	sourceFailures   *prometheus.CounterVec
	mergeDuplicates  *prometheus.CounterVec
	mergedEntries    prometheus.Gauge
	mergeGeneration  prometheus.Gauge
	nextAboveQueries *prometheus.CounterVec

	// Avatar and submission pipelines
	queueSize       *prometheus.GaugeVec
	queueRejections *prometheus.CounterVec
	jobsProcessed   *prometheus.CounterVec
	jobLatency      *prometheus.HistogramVec
	avatarCacheSize prometheus.Gauge

	// Backend breaker
	breakerState *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ladder",
		subsystem:        "leaderboard",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for all collectors
	auto := promauto.With(m.registry)

	m.pageFetches = m.counterVec("page_fetches_total",
		"Pages requested from backends by source, direction and outcome",
		"source", "direction", "outcome")
	m.pageFetchLatency = m.histogramVec("page_fetch_latency_milliseconds",
		"Latency of single page fetches in milliseconds", "source")
	m.detailLookups = m.counterVec("detail_lookups_total",
		"Per-entry detail lookups by source and outcome", "source", "outcome")
	m.cursorCache = m.counterVec("cursor_cache_total",
		"Cursor cache consultations by source, direction and result", "source", "direction", "result")
	m.rangeFetches = m.counterVec("range_fetches_total",
		"Completed range fetches by source and outcome", "source", "outcome")
	m.rangeFetchDuration = m.histogramVec("range_fetch_duration_milliseconds",
		"Wall time of a complete range fetch in milliseconds", "source")

	m.rebuilds = m.counterVec("rebuilds_total",
		"Merged leaderboard rebuilds by outcome (started, completed, superseded)", "outcome")
	m.rebuildDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rebuild_duration_milliseconds",
		Help:        "Time from rebuild start until every source reported",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
	m.sourceFailures = m.counterVec("source_failures_total",
		"Sources that contributed nothing to a rebuild", "source")
	m.mergeDuplicates = m.counterVec("merge_duplicates_total",
		"Rows dropped while merging because their player or value was already ranked", "source")
	m.mergedEntries = m.gauge("merged_entries", "Entries in the live merged leaderboard")
	m.mergeGeneration = m.gauge("merge_generation", "Generation number of the live merged leaderboard")
	m.nextAboveQueries = m.counterVec("next_above_queries_total",
		"nextAbove queries by whether the cached answer was reused", "result")

	m.queueSize = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_size",
		Help:        "Current backlog of an in-memory job queue",
		ConstLabels: m.constLabels,
	}, []string{"queue"})
	m.queueRejections = m.counterVec("queue_rejections_total",
		"Jobs rejected by a queue", "queue", "reason")
	m.jobsProcessed = m.counterVec("jobs_processed_total",
		"Jobs handled by worker pools by outcome", "queue", "outcome")
	m.jobLatency = m.histogramVec("job_latency_milliseconds",
		"Worker job handling latency in milliseconds", "queue")
	m.avatarCacheSize = m.gauge("avatar_cache_entries", "Avatar images held in cache")

	m.breakerState = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "backend_breaker_state",
		Help:        "Circuit breaker state per source (0 closed, 1 half-open, 2 open)",
		ConstLabels: m.constLabels,
	}, []string{"source"})

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})
}

// Range fetching.

// RecordPageFetch counts one page request.
func RecordPageFetch(source, direction, outcome string) {
	globalManager.pageFetches.WithLabelValues(source, direction, outcome).Inc()
}

// RecordPageFetchLatency records a page fetch latency in milliseconds.
func RecordPageFetchLatency(source string, latencyMs float64) {
	globalManager.pageFetchLatency.WithLabelValues(source).Observe(latencyMs)
}

// RecordDetailLookup counts one detail lookup.
func RecordDetailLookup(source, outcome string) {
	globalManager.detailLookups.WithLabelValues(source, outcome).Inc()
}

// RecordCursorCache counts a cursor cache hit or miss.
func RecordCursorCache(source, direction, result string) {
	globalManager.cursorCache.WithLabelValues(source, direction, result).Inc()
}

// RecordRangeFetch counts a finished range fetch and its duration.
func RecordRangeFetch(source, outcome string, durationMs float64) {
	globalManager.rangeFetches.WithLabelValues(source, outcome).Inc()
	globalManager.rangeFetchDuration.WithLabelValues(source).Observe(durationMs)
}

// Aggregation.

// RecordRebuild counts a rebuild lifecycle event.
func RecordRebuild(outcome string) {
	globalManager.rebuilds.WithLabelValues(outcome).Inc()
}

// RecordRebuildDuration records the time a rebuild took to become ready.
func RecordRebuildDuration(durationMs float64) {
	globalManager.rebuildDuration.Observe(durationMs)
}

// RecordSourceFailure counts a source that contributed nothing.
func RecordSourceFailure(source string) {
	globalManager.sourceFailures.WithLabelValues(source).Inc()
}

// RecordMergeDuplicates counts rows a source report lost to deduplication.
func RecordMergeDuplicates(source string, n int) {
	globalManager.mergeDuplicates.WithLabelValues(source).Add(float64(n))
}

// UpdateMergedEntries sets the live merged leaderboard size.
func UpdateMergedEntries(count int) {
	globalManager.mergedEntries.Set(float64(count))
}

// UpdateMergeGeneration sets the live merged generation.
func UpdateMergeGeneration(generation uint64) {
	globalManager.mergeGeneration.Set(float64(generation))
}

// RecordNextAbove counts a nextAbove query ("cached" or "derived").
func RecordNextAbove(result string) {
	globalManager.nextAboveQueries.WithLabelValues(result).Inc()
}

// Pipelines.

// UpdateQueueSize sets the backlog of the named queue.
func UpdateQueueSize(queue string, size int) {
	globalManager.queueSize.WithLabelValues(queue).Set(float64(size))
}

// RecordQueueRejection counts a rejected enqueue.
func RecordQueueRejection(queue, reason string) {
	globalManager.queueRejections.WithLabelValues(queue, reason).Inc()
}

// RecordJob counts a handled job and its latency.
func RecordJob(queue, outcome string, latencyMs float64) {
	globalManager.jobsProcessed.WithLabelValues(queue, outcome).Inc()
	globalManager.jobLatency.WithLabelValues(queue).Observe(latencyMs)
}

// UpdateAvatarCacheSize sets the avatar cache population.
func UpdateAvatarCacheSize(size int64) {
	globalManager.avatarCacheSize.Set(float64(size))
}

// UpdateBreakerState sets the breaker state for a source.
func UpdateBreakerState(source string, state int) {
	globalManager.breakerState.WithLabelValues(source).Set(float64(state))
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
