package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the backend.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Virtual filesystem metrics
	VFSOps           *prometheus.CounterVec
	FlushDuration    prometheus.Histogram
	FlushMutations   prometheus.Counter
	FlushErrors      prometheus.Counter
	PendingMutations *prometheus.GaugeVec

	// Workspace metrics
	WorkspacesOpen     prometheus.Gauge
	WorkspacesRestored prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSEvents      prometheus.Counter
}

// NewMetrics creates a metrics collector on a dedicated registry so
// tests never collide on duplicate registration.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		VFSOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_vfs_operations_total",
				Help: "Total number of virtual filesystem mutations",
			},
			[]string{"operation", "status"},
		),
		FlushDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "backend_vfs_flush_duration_seconds",
				Help:    "Duration of journal flushes to the durable store",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		FlushMutations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_vfs_flush_mutations_total",
				Help: "Total number of mutations persisted by flushes",
			},
		),
		FlushErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_vfs_flush_errors_total",
				Help: "Total number of flushes that ended with an error",
			},
		),
		PendingMutations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "backend_vfs_pending_mutations",
				Help: "Mutations queued but not yet persisted, per workspace",
			},
			[]string{"workspace"},
		),

		WorkspacesOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_workspaces_open",
				Help: "Number of open workspaces",
			},
		),
		WorkspacesRestored: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_workspaces_restored_total",
				Help: "Total number of workspaces restored from storage",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSEvents: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_ws_events_total",
				Help: "Total number of change events streamed to clients",
			},
		),
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordVFSOp records one tree mutation attempt.
func (m *Metrics) RecordVFSOp(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.VFSOps.WithLabelValues(operation, status).Inc()
}

// RecordFlush records one journal flush.
func (m *Metrics) RecordFlush(duration time.Duration, persisted int, err error) {
	m.FlushDuration.Observe(duration.Seconds())
	m.FlushMutations.Add(float64(persisted))
	if err != nil {
		m.FlushErrors.Inc()
	}
}

// SetPendingMutations sets the queued-mutation gauge for a workspace.
func (m *Metrics) SetPendingMutations(workspaceID string, n int) {
	m.PendingMutations.WithLabelValues(workspaceID).Set(float64(n))
}

// SetWorkspacesOpen sets the open-workspace gauge.
func (m *Metrics) SetWorkspacesOpen(n int) {
	m.WorkspacesOpen.Set(float64(n))
}

// IncWorkspacesRestored increments the restored-workspace counter.
func (m *Metrics) IncWorkspacesRestored() {
	m.WorkspacesRestored.Inc()
}

// IncWSConnections increments active WebSocket connections.
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements active WebSocket connections.
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// IncWSEvents increments the streamed-event counter.
func (m *Metrics) IncWSEvents() {
	m.WSEvents.Inc()
}
