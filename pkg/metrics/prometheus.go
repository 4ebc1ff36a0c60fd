package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds. Remote calls run into tens of seconds.
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 25000} //nolint:gochecknoglobals // bucket layout

// Manager manages all Prometheus metrics for the framerank service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Analysis pipeline
	analysesTotal     *prometheus.CounterVec
	analysisLatency   prometheus.Histogram
	stateTransitions  *prometheus.CounterVec
	fallbacksTotal    *prometheus.CounterVec
	peoplePerAnalysis prometheus.Histogram
	signalSources     *prometheus.CounterVec

	// Remote vision service
	remoteCalls   *prometheus.CounterVec
	remoteLatency prometheus.Histogram

	// Remote dispatch pool
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueRejected prometheus.Counter
	queueWait     prometheus.Histogram
	workersBusy   prometheus.Gauge

	// Scan counter
	scanCounterErrors prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "framerank",
		subsystem:        "analysis",
		histogramBuckets: defaultBuckets,
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
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.analysesTotal = m.counterVec("analyses_total", "Analyses by terminal state", "outcome")
	m.analysisLatency = m.histogram("latency_milliseconds", "End-to-end analysis latency in milliseconds", m.histogramBuckets)
	m.stateTransitions = m.counterVec("state_transitions_total", "Orchestrator state transitions by target state", "state")
	m.fallbacksTotal = m.counterVec("fallbacks_total", "Degraded paths taken by stage", "stage")
	m.peoplePerAnalysis = m.histogram("people", "People per ranked analysis", []float64{1, 2, 3, 4, 5, 6})
	m.signalSources = m.counterVec("signal_sources_total", "Ranked people by signal provenance", "source")

	m.remoteCalls = m.counterVec("remote_calls_total", "Remote vision calls by outcome code", "outcome")
	m.remoteLatency = m.histogram("remote_latency_milliseconds", "Remote vision call latency in milliseconds", m.histogramBuckets)

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "remote_queue_size",
		Help:      "Remote jobs waiting for a worker",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "remote_queue_capacity",
		Help:      "Maximum number of waiting remote jobs",
	})
	m.queueRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "remote_queue_rejected_total",
		Help:      "Remote jobs refused because the queue was full or closed",
	})
	m.queueWait = m.histogram("remote_queue_wait_milliseconds", "Time a remote job waited for a worker in milliseconds", m.histogramBuckets)
	m.workersBusy = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "remote_workers_busy",
		Help:      "Workers currently running a remote call",
	})

	m.scanCounterErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scan_counter_errors_total",
		Help:      "Failed scan counter reads and writes",
	})

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.rateLimited = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_rate_limited_total",
		Help:      "Requests rejected by the per-client rate limiter",
	})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")

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
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// UpdateQueueSize sets the number of waiting remote jobs.
func UpdateQueueSize(n int) {
	globalManager.queueSize.Set(float64(n))
}

// UpdateQueueCapacity sets the remote queue capacity.
func UpdateQueueCapacity(n int) {
	globalManager.queueCapacity.Set(float64(n))
}

// RecordQueueRejected counts a remote job refused by the queue.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// RecordQueueWait observes how long a remote job waited for a worker.
func RecordQueueWait(d time.Duration) {
	globalManager.queueWait.Observe(ms(d))
}

// AddWorkersBusy moves the busy worker gauge by delta.
func AddWorkersBusy(delta int) {
	globalManager.workersBusy.Add(float64(delta))
}

// RecordAnalysis counts a finished analysis and its latency.
func RecordAnalysis(outcome string, d time.Duration) {
	globalManager.analysesTotal.WithLabelValues(outcome).Inc()
	globalManager.analysisLatency.Observe(ms(d))
}

// RecordStateTransition counts entry into an orchestrator state.
func RecordStateTransition(state string) {
	globalManager.stateTransitions.WithLabelValues(state).Inc()
}

// RecordFallback counts a degraded path.
func RecordFallback(stage string) {
	globalManager.fallbacksTotal.WithLabelValues(stage).Inc()
}

// RecordRankedPeople observes the number of people in a ranked result and
// their signal sources.
func RecordRankedPeople(sources ...string) {
	globalManager.peoplePerAnalysis.Observe(float64(len(sources)))
	for _, s := range sources {
		globalManager.signalSources.WithLabelValues(s).Inc()
	}
}

// RecordRemoteCall records one remote vision call.
func RecordRemoteCall(d time.Duration, outcome string) {
	globalManager.remoteCalls.WithLabelValues(outcome).Inc()
	globalManager.remoteLatency.Observe(ms(d))
}

// RecordScanCounterError increments the scan counter error count.
func RecordScanCounterError() {
	globalManager.scanCounterErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited increments the rate limiter rejection count.
func RecordRateLimited() {
	globalManager.rateLimited.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

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
