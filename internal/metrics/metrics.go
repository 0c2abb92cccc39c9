// Package metrics exposes the service's Prometheus counters and gauges,
// plus the ambient Go-runtime and system snapshots served from
// /metrics and /metrics/system.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus instrument the service publishes.
type Metrics struct {
	sessionsTotal   prometheus.Counter
	sessionsActive  prometheus.Gauge
	sessionDuration prometheus.Histogram
	sessionsClosed  prometheus.Counter
	sessionErrors   prometheus.Counter

	requestsReceived prometheus.Counter
	framesSent       prometheus.Counter
	frameSize        prometheus.Histogram

	linesDelivered prometheus.Counter
	laggedEvents   prometheus.Counter
	linesDropped   prometheus.Counter

	controlGrants   prometheus.Counter
	controlReleases prometheus.Counter
	controlQueued   prometheus.Counter
	waitersPending  prometheus.Gauge

	errorsTotal   prometheus.Counter
	errorsByKind  *prometheus.CounterVec
	lastErrorTime prometheus.Gauge

	goroutinesCount prometheus.Gauge
	memoryUsage     prometheus.Gauge
	cpuUsage        prometheus.Gauge

	eventBusStatus     prometheus.Gauge
	eventBusReconnects prometheus.Counter
	eventBusPublished  prometheus.Counter

	startTime time.Time
	mu        sync.RWMutex
	sessions  int64
}

// NewMetrics registers every instrument with the default Prometheus
// registry and returns the handle used to update them.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		sessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_sessions_total",
			Help: "Total number of client sessions accepted",
		}),
		sessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "serialkeel_sessions_active",
			Help: "Number of currently connected sessions",
		}),
		sessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "serialkeel_session_duration_seconds",
			Help:    "Duration of client sessions",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_sessions_closed_total",
			Help: "Total number of sessions closed",
		}),
		sessionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_session_errors_total",
			Help: "Total number of transport-level session errors",
		}),

		requestsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_requests_received_total",
			Help: "Total number of requests received from clients",
		}),
		framesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_frames_sent_total",
			Help: "Total number of response/async frames sent to clients",
		}),
		frameSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "serialkeel_frame_size_bytes",
			Help:    "Size of frames written to client sockets",
			Buckets: []float64{64, 256, 1024, 4096, 16384, 65536},
		}),

		linesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_lines_delivered_total",
			Help: "Total number of lines delivered to subscribers across all observations",
		}),
		laggedEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_lagged_events_total",
			Help: "Total number of lag notices delivered to slow subscribers",
		}),
		linesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_lines_dropped_total",
			Help: "Total number of lines dropped from subscriber queues",
		}),

		controlGrants: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_control_grants_total",
			Help: "Total number of control grants issued, immediate or deferred",
		}),
		controlReleases: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_control_releases_total",
			Help: "Total number of control releases processed",
		}),
		controlQueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_control_queued_total",
			Help: "Total number of control requests that had to wait",
		}),
		waitersPending: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "serialkeel_waiters_pending",
			Help: "Current number of sessions waiting for control of a unit",
		}),

		errorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_errors_total",
			Help: "Total number of recorded errors (transport-level session errors; error frames sent to clients are not counted)",
		}),
		errorsByKind: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "serialkeel_errors_by_kind_total",
			Help: "Total number of recorded errors, by kind",
		}, []string{"kind"}),
		lastErrorTime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "serialkeel_last_error_timestamp",
			Help: "Unix timestamp of the last recorded error",
		}),

		goroutinesCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "serialkeel_goroutines",
			Help: "Number of goroutines",
		}),
		memoryUsage: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "serialkeel_memory_usage_bytes",
			Help: "Heap memory usage in bytes",
		}),
		cpuUsage: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "serialkeel_cpu_usage_percent",
			Help: "Process CPU usage percentage",
		}),

		eventBusStatus: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "serialkeel_eventbus_connection_status",
			Help: "Event bus connection status (1=connected, 0=disconnected)",
		}),
		eventBusReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_eventbus_reconnects_total",
			Help: "Total number of event bus reconnections",
		}),
		eventBusPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "serialkeel_eventbus_published_total",
			Help: "Total number of lifecycle events published to the event bus",
		}),
	}
}

func (m *Metrics) SessionOpened() {
	m.sessionsTotal.Inc()
	m.mu.Lock()
	m.sessions++
	m.mu.Unlock()
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionClosed(duration time.Duration) {
	m.sessionsClosed.Inc()
	m.mu.Lock()
	m.sessions--
	m.mu.Unlock()
	m.sessionsActive.Dec()
	m.sessionDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordSessionError() {
	m.sessionErrors.Inc()
	m.RecordError("session")
}

func (m *Metrics) IncrementRequestsReceived() { m.requestsReceived.Inc() }

func (m *Metrics) RecordFrameSent(size int) {
	m.framesSent.Inc()
	m.frameSize.Observe(float64(size))
}

func (m *Metrics) RecordLineDelivered() { m.linesDelivered.Inc() }

func (m *Metrics) RecordLagged(dropped int) {
	m.laggedEvents.Inc()
	m.linesDropped.Add(float64(dropped))
}

func (m *Metrics) RecordControlGrant()     { m.controlGrants.Inc() }
func (m *Metrics) RecordControlRelease()   { m.controlReleases.Inc() }
func (m *Metrics) RecordControlQueued()    { m.controlQueued.Inc() }
func (m *Metrics) SetWaitersPending(n int) { m.waitersPending.Set(float64(n)) }

func (m *Metrics) RecordError(kind string) {
	m.errorsTotal.Inc()
	m.errorsByKind.WithLabelValues(kind).Inc()
	m.lastErrorTime.SetToCurrentTime()
}

func (m *Metrics) UpdateGoroutinesCount(count int) { m.goroutinesCount.Set(float64(count)) }
func (m *Metrics) UpdateMemoryUsage(bytes uint64)  { m.memoryUsage.Set(float64(bytes)) }
func (m *Metrics) UpdateCPUUsage(percent float64)  { m.cpuUsage.Set(percent) }

func (m *Metrics) SetEventBusConnected(connected bool) {
	if connected {
		m.eventBusStatus.Set(1)
	} else {
		m.eventBusStatus.Set(0)
	}
}
func (m *Metrics) IncrementEventBusReconnects() { m.eventBusReconnects.Inc() }
func (m *Metrics) IncrementEventBusPublished()  { m.eventBusPublished.Inc() }

func (m *Metrics) GetActiveSessions() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions
}

func (m *Metrics) GetUptime() time.Duration { return time.Since(m.startTime) }

// LineRateTracker computes a smoothed lines-per-second rate from a
// monotonic counter sampled at arbitrary intervals.
type LineRateTracker struct {
	mu          sync.RWMutex
	lastCount   float64
	lastTime    time.Time
	currentRate float64
}

func NewLineRateTracker() *LineRateTracker {
	return &LineRateTracker{lastTime: time.Now()}
}

func (lrt *LineRateTracker) Update(currentCount float64) {
	lrt.mu.Lock()
	defer lrt.mu.Unlock()

	now := time.Now()
	delta := now.Sub(lrt.lastTime).Seconds()
	if delta > 0 {
		lrt.currentRate = (currentCount - lrt.lastCount) / delta
		lrt.lastCount = currentCount
		lrt.lastTime = now
	}
}

func (lrt *LineRateTracker) GetRate() float64 {
	lrt.mu.RLock()
	defer lrt.mu.RUnlock()
	return lrt.currentRate
}
