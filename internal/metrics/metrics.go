// Package metrics exposes the bridge's Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cookbridge"

// knownStatuses bounds the status label.
var knownStatuses = map[string]bool{
	"success":   true,
	"failure":   true,
	"cancelled": true,
	"stale":     true,
}

func sanitizeStatus(s string) string {
	if knownStatuses[s] {
		return s
	}
	return "unknown"
}

// Metrics holds the bridge collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CooksTotal        *prometheus.CounterVec
	CookDuration      prometheus.Histogram
	SessionEvents     *prometheus.CounterVec
	ParamsDropped     prometheus.Counter
	ParamsClamped     prometheus.Counter
	TranslationErrors prometheus.Counter
	Instances         prometheus.Gauge
	QueueDepth        prometheus.Gauge
	SessionUp         prometheus.Gauge
}

// New registers the collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CooksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cook",
			Name:      "completed_total",
			Help:      "Completed cooks by outcome.",
		}, []string{"status"}),
		CookDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cook",
			Name:      "duration_seconds",
			Help:      "Time from submission to resolution of a cook.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Engine session lifecycle events.",
		}, []string{"event"}),
		ParamsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "params",
			Name:      "dropped_total",
			Help:      "Parameters dropped during marshalling.",
		}),
		ParamsClamped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "params",
			Name:      "clamped_total",
			Help:      "Parameters clamped to their declared bounds.",
		}),
		TranslationErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geometry",
			Name:      "translation_errors_total",
			Help:      "Cook outputs that could not be translated.",
		}),
		Instances: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instances",
			Help:      "Registered asset instances.",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Instances waiting to be cooked.",
		}),
		SessionUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "up",
			Help:      "1 while an engine session is open.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCook records one completed cook.
func (m *Metrics) ObserveCook(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.CooksTotal.WithLabelValues(sanitizeStatus(status)).Inc()
	if d > 0 {
		m.CookDuration.Observe(d.Seconds())
	}
}

// SessionEvent counts a lifecycle event such as "opened", "lost",
// "closed" or "open_failed", and updates SessionUp.
func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
	switch event {
	case "opened":
		m.SessionUp.Set(1)
	case "lost", "closed", "open_failed":
		m.SessionUp.Set(0)
	}
}

// Marshalled records a marshalling report.
func (m *Metrics) Marshalled(dropped, clamped int) {
	if m == nil {
		return
	}
	m.ParamsDropped.Add(float64(dropped))
	m.ParamsClamped.Add(float64(clamped))
}

// TranslationFailed counts an untranslatable output.
func (m *Metrics) TranslationFailed() {
	if m == nil {
		return
	}
	m.TranslationErrors.Inc()
}

// SetSizes updates the instance and queue gauges.
func (m *Metrics) SetSizes(instances, queued int) {
	if m == nil {
		return
	}
	m.Instances.Set(float64(instances))
	m.QueueDepth.Set(float64(queued))
}
