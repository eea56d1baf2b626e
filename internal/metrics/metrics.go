// Package metrics exposes the monitoring engine's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ProbesTotal        *prometheus.CounterVec
	ProbeLatency       *prometheus.HistogramVec
	NotificationsTotal *prometheus.CounterVec
	PersistErrorsTotal prometheus.Counter
	CycleDuration      *prometheus.HistogramVec
	Endpoints          prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ProbesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "everwatch_probes_total",
			Help: "The total number of probes applied, by outcome.",
		}, []string{"outcome"}), // ok, critical
		ProbeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "everwatch_probe_latency_seconds",
			Help:    "Latency of probes that completed an HTTP exchange.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "everwatch_notifications_total",
			Help: "The total number of status change notifications, by urgency.",
		}, []string{"urgency"}), // time_sensitive, regular
		PersistErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "everwatch_persist_errors_total",
			Help: "The total number of failed snapshot writes.",
		}),
		CycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "everwatch_cycle_duration_seconds",
			Help:    "Duration of full probe cycles.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"trigger"}), // timer, wake
		Endpoints: f.NewGauge(prometheus.GaugeOpts{
			Name: "everwatch_endpoints",
			Help: "Current number of monitored endpoints.",
		}),
	}
}

// ObserveProbe counts one applied probe and its latency, if measured.
func (m *Metrics) ObserveProbe(endpointID string, critical bool, latency time.Duration, measured bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if critical {
		outcome = "critical"
	}
	m.ProbesTotal.WithLabelValues(outcome).Inc()
	if measured {
		m.ProbeLatency.WithLabelValues(endpointID).Observe(latency.Seconds())
	}
}

// ForgetEndpoint drops the latency series of a removed endpoint.
func (m *Metrics) ForgetEndpoint(endpointID string) {
	if m == nil {
		return
	}
	m.ProbeLatency.DeleteLabelValues(endpointID)
}

// IncNotifications counts one forwarded notification.
func (m *Metrics) IncNotifications(timeSensitive bool) {
	if m == nil {
		return
	}
	urgency := "regular"
	if timeSensitive {
		urgency = "time_sensitive"
	}
	m.NotificationsTotal.WithLabelValues(urgency).Inc()
}

// IncPersistErrors counts one failed snapshot write.
func (m *Metrics) IncPersistErrors() {
	if m == nil {
		return
	}
	m.PersistErrorsTotal.Inc()
}

// ObserveCycle records how long a full cycle took.
func (m *Metrics) ObserveCycle(trigger string, d time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

// SetEndpoints records the current registry size.
func (m *Metrics) SetEndpoints(n int) {
	if m == nil {
		return
	}
	m.Endpoints.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
