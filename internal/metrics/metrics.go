package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the console's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	uploads        *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	rejected       *prometheus.CounterVec
	sessions       prometheus.Gauge
	historyCalls   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashanalytix_uploads_total",
			Help: "Completed uploads by kind and outcome",
		}, []string{"kind", "outcome"}),
		uploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crashanalytix_upload_duration_seconds",
			Help:    "Wall-clock time of detector uploads",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashanalytix_uploads_rejected_total",
			Help: "Submits rejected before reaching the detector",
		}, []string{"kind", "reason"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crashanalytix_console_sessions_active",
			Help: "Open console sessions",
		}),
		historyCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashanalytix_history_requests_total",
			Help: "Accident history lookups by operation and outcome",
		}, []string{"op", "outcome"}),
	}

	m.registry.MustRegister(
		m.uploads,
		m.uploadDuration,
		m.rejected,
		m.sessions,
		m.historyCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) UploadCompleted(kind, outcome string, elapsed time.Duration) {
	m.uploads.WithLabelValues(kind, outcome).Inc()
	m.uploadDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) UploadRejected(kind, reason string) {
	m.rejected.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) SessionOpened() {
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	m.sessions.Dec()
}

func (m *Metrics) HistoryRequest(op, outcome string) {
	m.historyCalls.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
