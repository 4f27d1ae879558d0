package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Operation metrics (storage, importer)
	OperationCalls    *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Editor metrics
	SessionsActive prometheus.Gauge
	Transitions    *prometheus.CounterVec
	Saves          *prometheus.CounterVec
	SaveDuration   prometheus.Histogram
	Reconciles     *prometheus.CounterVec
	ReconcileNodes *prometheus.CounterVec

	// Frame metrics
	FrameConnections prometheus.Gauge
	FrameMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests    int64   `json:"total_requests"`
	TotalErrors      int64   `json:"total_errors"`
	ActiveSessions   int64   `json:"active_sessions"`
	ActiveFrames     int64   `json:"active_frames"`
	SavesSucceeded   int64   `json:"saves_succeeded"`
	SavesFailed      int64   `json:"saves_failed"`
	AvgLatencyMillis float64 `json:"avg_latency_ms"`
	UptimeSeconds    float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a metrics collector backed by its own registry, so
// several instances can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editor_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "editor_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "editor_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "editor_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		OperationCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editor_operations_total",
				Help: "Total number of storage and import operations",
			},
			[]string{"component", "operation", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "editor_operation_duration_seconds",
				Help:    "Storage and import operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"component", "operation"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "editor_sessions_active",
				Help: "Number of open editing sessions",
			},
		),
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editor_transitions_total",
				Help: "State transitions by action and whether the document changed",
			},
			[]string{"action", "changed"},
		),
		Saves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editor_saves_total",
				Help: "Debounced document saves by outcome",
			},
			[]string{"status"},
		),
		SaveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "editor_save_duration_seconds",
				Help:    "Document save duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		Reconciles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editor_reconciles_total",
				Help: "Block snapshot reconciliations by mode",
			},
			[]string{"mode"},
		),
		ReconcileNodes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editor_reconcile_blocks_total",
				Help: "Blocks handled during reconciliation by outcome",
			},
			[]string{"outcome"},
		),

		FrameConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "editor_frame_connections",
				Help: "Number of connected rendered frames",
			},
		),
		FrameMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editor_frame_messages_total",
				Help: "Frame protocol messages by direction and kind",
			},
			[]string{"direction", "kind"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "editor_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordOperation records a storage or import operation
func (m *Metrics) RecordOperation(component, operation, status string, duration time.Duration) {
	m.OperationCalls.WithLabelValues(component, operation, status).Inc()
	m.OperationDuration.WithLabelValues(component, operation).Observe(duration.Seconds())
}

// RecordTransition records one reduced editor action.
func (m *Metrics) RecordTransition(action string, changed bool) {
	label := "false"
	if changed {
		label = "true"
	}
	m.Transitions.WithLabelValues(action, label).Inc()
}

// RecordSave records a debounced save attempt.
func (m *Metrics) RecordSave(status string, duration time.Duration) {
	m.Saves.WithLabelValues(status).Inc()
	m.SaveDuration.Observe(duration.Seconds())

	m.mu.Lock()
	if status == "success" {
		m.snapshot.SavesSucceeded++
	} else {
		m.snapshot.SavesFailed++
	}
	m.mu.Unlock()
}

// RecordReconcile records a reconciliation and its per-block outcomes.
func (m *Metrics) RecordReconcile(mode string, retained, synthesized, dropped, skipped int) {
	m.Reconciles.WithLabelValues(mode).Inc()
	m.ReconcileNodes.WithLabelValues("retained").Add(float64(retained))
	m.ReconcileNodes.WithLabelValues("synthesized").Add(float64(synthesized))
	m.ReconcileNodes.WithLabelValues("dropped").Add(float64(dropped))
	m.ReconcileNodes.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordFrameMessage records a frame protocol message
func (m *Metrics) RecordFrameMessage(direction, kind string) {
	m.FrameMessages.WithLabelValues(direction, kind).Inc()
}

// SetSessionsActive sets the number of open sessions
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// IncFrameConnections increments frame connections
func (m *Metrics) IncFrameConnections() {
	m.FrameConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveFrames++
	m.mu.Unlock()
}

// DecFrameConnections decrements frame connections
func (m *Metrics) DecFrameConnections() {
	m.FrameConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveFrames--
	m.mu.Unlock()
}

// Snapshot returns current values for the JSON summary endpoint.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	if s.TotalRequests > 0 {
		s.AvgLatencyMillis = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
