// Package metrics provides Prometheus collectors for the wall.
package metrics

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "videowall"

// Metrics holds the wall collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	barriers    *prometheus.CounterVec
	barrierWait prometheus.Histogram
	corrections *prometheus.CounterVec
	drift       *prometheus.HistogramVec
	kindSwitch  prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		barriers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "director",
			Name:      "barrier_resolutions_total",
			Help:      "Buffering barrier resolutions by outcome.",
		}, []string{"outcome"}),
		barrierWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "director",
			Name:      "barrier_wait_seconds",
			Help:      "Time spent buffering before playback started.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 4, 5, 7.5, 10},
		}),
		corrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "drift",
			Name:      "corrections_total",
			Help:      "Drift corrections applied to slave tiles.",
		}, []string{"engine", "action"}),
		drift: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "drift",
			Name:      "abs_drift_seconds",
			Help:      "Absolute drift observed when a correction was applied.",
			Buckets:   []float64{0.01, 0.02, 0.04, 0.08, 0.15, 0.25, 0.5, 1, 2, 5},
		}, []string{"engine"}),
		kindSwitch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "kind_switches_total",
			Help:      "Source-kind switches that rebuilt the tile set.",
		}),
	}

	reg.MustRegister(m.barriers, m.barrierWait, m.corrections, m.drift, m.kindSwitch)
	return m
}

// ObserveBarrier records a barrier resolution.
func (m *Metrics) ObserveBarrier(outcome string, waited time.Duration) {
	if m == nil {
		return
	}
	m.barriers.WithLabelValues(outcome).Inc()
	m.barrierWait.Observe(waited.Seconds())
}

// ObserveCorrection records one drift correction.
func (m *Metrics) ObserveCorrection(engine, action string, drift float64) {
	if m == nil {
		return
	}
	m.corrections.WithLabelValues(engine, action).Inc()
	m.drift.WithLabelValues(engine).Observe(math.Abs(drift))
}

// ObserveKindSwitch records a tile set rebuild.
func (m *Metrics) ObserveKindSwitch() {
	if m == nil {
		return
	}
	m.kindSwitch.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
