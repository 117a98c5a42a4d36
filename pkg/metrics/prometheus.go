// Package metrics provides Prometheus metrics for the quill ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector the service exposes.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion path
	eventsAccepted prometheus.Counter
	eventsRejected *prometheus.CounterVec
	ingestLatency  prometheus.Histogram

	// Rate limiter
	rateLimited       prometheus.Counter
	activeRateWindows prometheus.Gauge

	// Event store
	appendLatency prometheus.Histogram
	queryLatency  prometheus.Histogram
	storeErrors   prometheus.Counter

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry avoids the default Go runtime collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers all collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "quill",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_accepted_total",
		Help:      "Total number of events accepted and persisted",
	})

	m.eventsRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_rejected_total",
			Help:      "Total number of rejected ingestion calls by reason",
		},
		[]string{"reason"},
	)

	m.ingestLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingest_duration_seconds",
		Help:      "End-to-end latency of one ingestion call",
		Buckets:   m.histogramBuckets,
	})

	m.rateLimited = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by the rate limiter",
	})

	m.activeRateWindows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_rate_windows",
		Help:      "Number of per-token rate windows currently held in memory",
	})

	m.appendLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_append_duration_seconds",
		Help:      "Latency of event store appends",
		Buckets:   m.histogramBuckets,
	})

	m.queryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_duration_seconds",
		Help:      "Latency of event store reads and aggregates",
		Buckets:   m.histogramBuckets,
	})

	m.storeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Total number of event store failures",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint, method and status",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by endpoint, method and status",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// GetRegistry returns the registry served by /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers against the global manager.

func RecordEventAccepted()              { globalManager.eventsAccepted.Inc() }
func RecordEventRejected(reason string) { globalManager.eventsRejected.WithLabelValues(reason).Inc() }
func RecordIngestLatency(sec float64)   { globalManager.ingestLatency.Observe(sec) }

func RecordRateLimited()            { globalManager.rateLimited.Inc() }
func UpdateActiveRateWindows(n int) { globalManager.activeRateWindows.Set(float64(n)) }

func RecordAppendLatency(sec float64) { globalManager.appendLatency.Observe(sec) }
func RecordQueryLatency(sec float64)  { globalManager.queryLatency.Observe(sec) }
func RecordStoreError()               { globalManager.storeErrors.Inc() }

func RecordHTTPRequest(endpoint, method, status string, sec float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(sec)
}
