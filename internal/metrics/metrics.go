package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const namespace = "sentinel"

// Collector provides a central place for all application metrics. It owns a
// private registry so tests can instantiate collectors freely without
// duplicate-registration panics.
type Collector struct {
	// Pipeline metrics
	JobsTotal       *prometheus.CounterVec
	JobAttempts     prometheus.Histogram
	JobDuration     prometheus.Histogram
	EventsParsed    prometheus.Counter
	EventsAnalyzed  prometheus.Counter
	SoftErrors      prometheus.Counter
	RetriesTotal    prometheus.Counter
	BackoffDuration prometheus.Histogram

	// Streaming metrics
	StreamEntriesTotal *prometheus.CounterVec

	// Notification sink metrics
	SinkPublishTotal  prometheus.Counter
	SinkPublishFailed prometheus.Counter

	// HTTP API metrics
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	HTTPRateLimited    prometheus.Counter
	HTTPUnauthorized   prometheus.Counter
	HTTPRequestsInWork prometheus.Gauge

	// Worker pool metrics
	WorkerQueueDepth prometheus.Gauge
	WorkerJobsTotal  *prometheus.CounterVec

	// Dead letter journal metrics
	DeadLetterWritten prometheus.Counter

	// System metrics
	SystemGoroutines prometheus.Gauge
	SystemMemAlloc   prometheus.Gauge

	registry *prometheus.Registry
}

// NewCollector creates a new metrics collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.initPipelineMetrics()
	c.initStreamMetrics()
	c.initSinkMetrics()
	c.initHTTPMetrics()
	c.initWorkerMetrics()
	c.initSystemMetrics()

	return c
}

func (c *Collector) initPipelineMetrics() {
	c.JobsTotal = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Total number of processing jobs by outcome",
		},
		[]string{"outcome"},
	)

	c.JobAttempts = promauto.With(c.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "job_attempts",
			Help:      "Number of attempts taken per job",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
	)

	c.JobDuration = promauto.With(c.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "job_duration_seconds",
			Help:      "End-to-end job duration including retries and backoff",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	c.EventsParsed = promauto.With(c.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_parsed_total",
			Help:      "Total events extracted by the parser",
		},
	)

	c.EventsAnalyzed = promauto.With(c.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_analyzed_total",
			Help:      "Total events with a persisted analysis",
		},
	)

	c.SoftErrors = promauto.With(c.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "soft_errors_total",
			Help:      "Per-event failures recorded without aborting the attempt",
		},
	)

	c.RetriesTotal = promauto.With(c.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "retries_total",
			Help:      "Total retry attempts across all jobs",
		},
	)

	c.BackoffDuration = promauto.With(c.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "backoff_duration_seconds",
			Help:      "Backoff delay slept before retry attempts",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		},
	)
}

func (c *Collector) initStreamMetrics() {
	c.StreamEntriesTotal = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "entries_total",
			Help:      "Total streaming entries processed by outcome",
		},
		[]string{"outcome"},
	)
}

func (c *Collector) initSinkMetrics() {
	c.SinkPublishTotal = promauto.With(c.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "publish_total",
			Help:      "Total update publish attempts to the notification sink",
		},
	)

	c.SinkPublishFailed = promauto.With(c.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "publish_failed_total",
			Help:      "Update publishes that failed; never affects job results",
		},
	)
}

func (c *Collector) initHTTPMetrics() {
	c.HTTPRequests = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	c.HTTPDuration = promauto.With(c.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.HTTPRateLimited = promauto.With(c.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)

	c.HTTPUnauthorized = promauto.With(c.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "unauthorized_total",
			Help:      "Requests rejected for a missing or invalid API key",
		},
	)

	c.HTTPRequestsInWork = promauto.With(c.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served",
		},
	)
}

func (c *Collector) initWorkerMetrics() {
	c.WorkerQueueDepth = promauto.With(c.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the async processing queue",
		},
	)

	c.WorkerJobsTotal = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Async jobs by outcome",
		},
		[]string{"outcome"},
	)

	c.DeadLetterWritten = promauto.With(c.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deadletter",
			Name:      "entries_written_total",
			Help:      "Terminally failed jobs written to the dead letter journal",
		},
	)
}

func (c *Collector) initSystemMetrics() {
	c.SystemGoroutines = promauto.With(c.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	c.SystemMemAlloc = promauto.With(c.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "mem_alloc_bytes",
			Help:      "Bytes of allocated heap objects",
		},
	)
}

// Registry exposes the private registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CollectSystem samples runtime statistics once.
func (c *Collector) CollectSystem() {
	c.SystemGoroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.SystemMemAlloc.Set(float64(m.Alloc))
}

// StartSystemCollection samples system metrics every interval until stop is
// closed.
func (c *Collector) StartSystemCollection(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.CollectSystem()
			}
		}
	}()
}
