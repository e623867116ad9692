// Package metrics provides Prometheus metrics for the vouchbase client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the vouchbase client.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ledger gateway calls
	ledgerCalls       *prometheus.CounterVec
	ledgerCallLatency *prometheus.HistogramVec

	// Write flows
	operationsStarted  *prometheus.CounterVec
	operationsSettled  *prometheus.CounterVec
	operationsRejected *prometheus.CounterVec
	operationLatency   *prometheus.HistogramVec
	operationBusy      prometheus.Gauge
	failuresByKind     *prometheus.CounterVec

	// Synchronizer
	refreshes       *prometheus.CounterVec
	refreshLatency  *prometheus.HistogramVec
	boardSize       prometheus.Gauge
	cachedProfiles  prometheus.Gauge
	globalBuilders  prometheus.Gauge
	globalVouches   prometheus.Gauge
	globalSkills    prometheus.Gauge
	lastRefreshUnix *prometheus.GaugeVec

	// Network guard
	networkMismatch prometheus.Gauge

	// Refresh queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueue  prometheus.Counter
	queueDequeue  prometheus.Counter
	queueRejected *prometheus.CounterVec
	workerCount   prometheus.Gauge
	workerErrors  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "vouchbase",
		subsystem:        "client",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// name applies the optional metric prefix.
func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counterVec := func(name, help string, keys ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, keys)
	}
	histVec := func(name, help string, keys ...string) *prometheus.HistogramVec {
		return auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
			Buckets: m.histogramBuckets,
		}, keys)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}

	m.ledgerCalls = counterVec("ledger_calls_total", "Ledger gateway calls by method and outcome", "method", "outcome")
	m.ledgerCallLatency = histVec("ledger_call_latency_milliseconds", "Ledger gateway call latency in milliseconds", "method")

	m.operationsStarted = counterVec("operations_started_total", "Write operations that left Idle", "kind")
	m.operationsSettled = counterVec("operations_settled_total", "Write operations that settled, by terminal state", "kind", "state")
	m.operationsRejected = counterVec("operations_rejected_total", "Write requests rejected before contacting the ledger", "kind", "reason")
	m.operationLatency = histVec("operation_latency_milliseconds", "End-to-end write latency (quote to settle)", "kind")
	m.operationBusy = gauge("operation_busy", "1 while a write operation is pending")
	m.failuresByKind = counterVec("failures_total", "Classified failures by taxonomy kind", "kind")

	m.refreshes = counterVec("refreshes_total", "Synchronizer refreshes by target and outcome", "target", "outcome")
	m.refreshLatency = histVec("refresh_latency_milliseconds", "Synchronizer refresh latency in milliseconds", "target")
	m.boardSize = gauge("board_size", "Builders on the current leaderboard snapshot")
	m.cachedProfiles = gauge("cached_profiles", "Profiles held in the profile cache")
	m.globalBuilders = gauge("ledger_builders", "Last observed ledger builder count")
	m.globalVouches = gauge("ledger_vouches", "Last observed ledger vouch count")
	m.globalSkills = gauge("ledger_skills_claimed", "Last observed ledger skills-claimed count")
	m.lastRefreshUnix = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("last_refresh_unix"),
		Help: "Unix time of the last successful refresh by target", ConstLabels: labels,
	}, []string{"target"})

	m.networkMismatch = gauge("network_mismatch", "1 while the connected chain differs from the required chain")

	m.queueSize = gauge("refresh_queue_size", "Current refresh queue length")
	m.queueCapacity = gauge("refresh_queue_capacity", "Refresh queue capacity")
	m.queueEnqueue = counter("refresh_queue_enqueue_total", "Refresh jobs enqueued")
	m.queueDequeue = counter("refresh_queue_dequeue_total", "Refresh jobs dequeued")
	m.queueRejected = counterVec("refresh_queue_rejected_total", "Refresh jobs not enqueued", "reason")
	m.workerCount = gauge("refresh_workers", "Refresh worker count")
	m.workerErrors = counter("refresh_worker_errors_total", "Refresh jobs that failed")

	m.httpRequests = counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = histVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "Heap allocation in bytes")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Ledger gateway.

// RecordLedgerCall records one gateway call.
func RecordLedgerCall(method, outcome string, latencyMs float64) {
	globalManager.ledgerCalls.WithLabelValues(method, outcome).Inc()
	globalManager.ledgerCallLatency.WithLabelValues(method).Observe(latencyMs)
}

// Write flows.

// RecordOperationStarted counts a write leaving Idle.
func RecordOperationStarted(kind string) {
	globalManager.operationsStarted.WithLabelValues(kind).Inc()
}

// RecordOperationSettled counts a write reaching Confirmed or Failed.
func RecordOperationSettled(kind, state string, latencyMs float64) {
	globalManager.operationsSettled.WithLabelValues(kind, state).Inc()
	globalManager.operationLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordOperationRejected counts a write refused at the orchestration boundary.
func RecordOperationRejected(kind, reason string) {
	globalManager.operationsRejected.WithLabelValues(kind, reason).Inc()
}

// UpdateOperationBusy mirrors the single-flight flag.
func UpdateOperationBusy(busy bool) {
	globalManager.operationBusy.Set(boolGauge(busy))
}

// RecordFailure counts a classified failure.
func RecordFailure(kind string) {
	globalManager.failuresByKind.WithLabelValues(kind).Inc()
}

// Synchronizer.

// RecordRefresh records a refresh attempt for target (board, stats, profile).
func RecordRefresh(target, outcome string, latencyMs float64) {
	globalManager.refreshes.WithLabelValues(target, outcome).Inc()
	globalManager.refreshLatency.WithLabelValues(target).Observe(latencyMs)
	if outcome == "ok" {
		globalManager.lastRefreshUnix.WithLabelValues(target).Set(float64(time.Now().Unix()))
	}
}

// UpdateBoardSize sets the leaderboard snapshot size.
func UpdateBoardSize(n int) {
	globalManager.boardSize.Set(float64(n))
}

// UpdateCachedProfiles sets the profile cache size.
func UpdateCachedProfiles(n int) {
	globalManager.cachedProfiles.Set(float64(n))
}

// UpdateGlobalStats mirrors the last observed ledger counters.
func UpdateGlobalStats(builders, vouches, skills uint64) {
	globalManager.globalBuilders.Set(float64(builders))
	globalManager.globalVouches.Set(float64(vouches))
	globalManager.globalSkills.Set(float64(skills))
}

// Network guard.

// UpdateNetworkMismatch mirrors the WrongNetwork advisory.
func UpdateNetworkMismatch(mismatch bool) {
	globalManager.networkMismatch.Set(boolGauge(mismatch))
}

// Refresh queue and workers.

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueRejected counts a job that was not enqueued.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the refresh worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
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

// System.

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
