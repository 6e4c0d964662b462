// Package metrics provides Prometheus metrics for the pulseboard CRM
// integration service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the pulseboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// CRM Platform Metrics - outbound request health
	crmRequests        *prometheus.CounterVec
	crmRequestDuration *prometheus.HistogramVec
	crmRetries         *prometheus.CounterVec
	crmErrors          *prometheus.CounterVec

	// Credential Metrics - token lifecycle
	tokenRefreshes        prometheus.Counter
	tokenRefreshFailures  prometheus.Counter
	tokenRefreshCoalesced prometheus.Counter
	connectedTenants      prometheus.Gauge

	// Rate Limiter Metrics
	rateLimitWait      prometheus.Histogram
	rateLimitExhausted prometheus.Counter
	rateLimitAdmitted  prometheus.Counter

	// Pagination Metrics
	pagesFetched      *prometheus.CounterVec
	paginationCapHits prometheus.Counter

	// Result Cache Metrics
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	cacheEntries prometheus.Gauge

	// Aggregation Metrics - snapshot quality
	snapshotsBuilt        prometheus.Counter
	snapshotBuildDuration prometheus.Histogram
	recordsExcluded       *prometheus.CounterVec
	guestTotalResets      prometheus.Counter

	// Warm Queue Metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueues      prometheus.Counter
	queueDequeues      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	warmJobsDuplicate  prometheus.Counter

	// Worker Metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP Server Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pulseboard",
		subsystem:        "integrator",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	// CRM Platform Metrics
	m.crmRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "crm_requests_total",
			Help:      "Total number of CRM platform requests by resource, method and status code",
		},
		[]string{"resource", "method", "status_code"},
	)

	m.crmRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "crm_request_duration_milliseconds",
			Help:      "CRM platform request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"resource"},
	)

	m.crmRetries = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "crm_retries_total",
			Help:      "Total number of CRM request retries by reason (auth, rate_limited, transient)",
		},
		[]string{"reason"},
	)

	m.crmErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "crm_errors_total",
			Help:      "Total number of CRM request failures by error kind",
		},
		[]string{"kind"},
	)

	// Credential Metrics
	m.tokenRefreshes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "token_refreshes_total",
		Help:      "Total number of OAuth token refresh exchanges performed",
	})

	m.tokenRefreshFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "token_refresh_failures_total",
		Help:      "Total number of failed OAuth token refresh exchanges",
	})

	m.tokenRefreshCoalesced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "token_refresh_coalesced_total",
		Help:      "Total number of refresh callers that awaited an in-flight refresh instead of starting their own",
	})

	m.connectedTenants = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connected_tenants",
		Help:      "Number of tenants with a stored credential",
	})

	// Rate Limiter Metrics
	m.rateLimitWait = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limit_wait_milliseconds",
		Help:      "Time spent waiting for a rate limiter slot in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.rateLimitExhausted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limit_window_exhausted_total",
		Help:      "Total number of acquires that had to wait for a window rollover",
	})

	m.rateLimitAdmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limit_admitted_total",
		Help:      "Total number of requests admitted by the rate limiter",
	})

	// Pagination Metrics
	m.pagesFetched = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "pages_fetched_total",
			Help:      "Total number of pages fetched by resource",
		},
		[]string{"resource"},
	)

	m.paginationCapHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pagination_cap_hits_total",
		Help:      "Total number of paginations halted by the safety cap",
	})

	// Result Cache Metrics
	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_hits_total",
		Help:      "Total number of result cache hits",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_misses_total",
		Help:      "Total number of result cache misses",
	})

	m.cacheEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_entries",
		Help:      "Current number of entries in the result cache",
	})

	// Aggregation Metrics
	m.snapshotsBuilt = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshots_built_total",
		Help:      "Total number of metrics snapshots built",
	})

	m.snapshotBuildDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_build_duration_milliseconds",
		Help:      "Snapshot build duration (fetch plus aggregation) in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.recordsExcluded = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "records_excluded_total",
			Help:      "Total number of raw records excluded during aggregation by reason",
		},
		[]string{"reason"},
	)

	m.guestTotalResets = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "guest_total_resets_total",
		Help:      "Total number of guest-count sums zeroed by the aggregate sanity bound",
	})

	// Warm Queue Metrics
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "warm_queue_size",
		Help:      "Current size of the snapshot warm queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "warm_queue_capacity",
		Help:      "Maximum warm queue capacity",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "warm_queue_utilization_ratio",
		Help:      "Warm queue utilization ratio (current size / capacity)",
	})

	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "warm_queue_enqueue_total",
		Help:      "Total number of warm jobs enqueued",
	})

	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "warm_queue_dequeue_total",
		Help:      "Total number of warm jobs dequeued",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "warm_queue_enqueue_errors_total",
		Help:      "Total number of warm enqueue errors",
	})

	m.warmJobsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "warm_jobs_duplicate_total",
		Help:      "Total number of warm jobs skipped because one was already pending",
	})

	// Worker Metrics
	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active_count",
		Help:      "Number of active warm workers",
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Warm worker job processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of warm worker errors",
	})

	// HTTP Server Metrics
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of HTTP errors by endpoint",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordCRMRequest records a completed CRM request.
func RecordCRMRequest(resource, method, statusCode string) {
	globalManager.crmRequests.WithLabelValues(resource, method, statusCode).Inc()
}

// RecordCRMRequestDuration records CRM request latency in milliseconds.
func RecordCRMRequestDuration(resource string, durationMs float64) {
	globalManager.crmRequestDuration.WithLabelValues(resource).Observe(durationMs)
}

// RecordCRMRetry increments the retry counter for a reason.
func RecordCRMRetry(reason string) {
	globalManager.crmRetries.WithLabelValues(reason).Inc()
}

// RecordCRMError increments the CRM error counter for an error kind.
func RecordCRMError(kind string) {
	globalManager.crmErrors.WithLabelValues(kind).Inc()
}

// RecordTokenRefresh increments the token refresh counter.
func RecordTokenRefresh() {
	globalManager.tokenRefreshes.Inc()
}

// RecordTokenRefreshFailure increments the failed refresh counter.
func RecordTokenRefreshFailure() {
	globalManager.tokenRefreshFailures.Inc()
}

// RecordTokenRefreshCoalesced increments the coalesced refresh counter.
func RecordTokenRefreshCoalesced() {
	globalManager.tokenRefreshCoalesced.Inc()
}

// UpdateConnectedTenants sets the connected tenant gauge.
func UpdateConnectedTenants(count int) {
	globalManager.connectedTenants.Set(float64(count))
}

// RecordRateLimitWait records time spent waiting for a slot.
func RecordRateLimitWait(waitMs float64) {
	globalManager.rateLimitWait.Observe(waitMs)
}

// RecordRateLimitExhausted increments the window-exhausted counter.
func RecordRateLimitExhausted() {
	globalManager.rateLimitExhausted.Inc()
}

// RecordRateLimitAdmitted increments the admitted counter.
func RecordRateLimitAdmitted() {
	globalManager.rateLimitAdmitted.Inc()
}

// RecordPageFetched increments the page counter for a resource.
func RecordPageFetched(resource string) {
	globalManager.pagesFetched.WithLabelValues(resource).Inc()
}

// RecordPaginationCapHit increments the safety-cap counter.
func RecordPaginationCapHit() {
	globalManager.paginationCapHits.Inc()
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// UpdateCacheEntries sets the current cache entry gauge.
func UpdateCacheEntries(count int) {
	globalManager.cacheEntries.Set(float64(count))
}

// RecordSnapshotBuilt increments the snapshot counter.
func RecordSnapshotBuilt() {
	globalManager.snapshotsBuilt.Inc()
}

// RecordSnapshotBuildDuration records snapshot build latency in milliseconds.
func RecordSnapshotBuildDuration(durationMs float64) {
	globalManager.snapshotBuildDuration.Observe(durationMs)
}

// RecordRecordExcluded increments the excluded-record counter for a reason.
func RecordRecordExcluded(reason string) {
	globalManager.recordsExcluded.WithLabelValues(reason).Inc()
}

// RecordGuestTotalReset increments the guest sum reset counter.
func RecordGuestTotalReset() {
	globalManager.guestTotalResets.Inc()
}

// UpdateQueueSize sets the current warm queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the warm queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the warm queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueues.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeues.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordWarmJobDuplicate increments the duplicate warm job counter.
func RecordWarmJobDuplicate() {
	globalManager.warmJobsDuplicate.Inc()
}

// UpdateWorkerActiveCount sets the active worker gauge.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker job latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request latency in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint increments the endpoint error counter.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count gauge.
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
