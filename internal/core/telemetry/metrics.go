// Package telemetry wires engine-level measurements into Prometheus
// and OpenTelemetry: one typed gauge/histogram per concern, registered
// once at construction. Every method is nil-safe so components can run
// without metrics in tests.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the engine populates.
type Metrics struct {
	tickDuration   prometheus.Histogram
	pollFailures   *prometheus.CounterVec
	activeAlerts   prometheus.Gauge
	scanDuration   prometheus.Histogram
	devicesTracked prometheus.Gauge
}

// NewMetrics constructs and registers the collectors against reg. A
// nil reg registers against the default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lanwatch",
			Subsystem: "engine",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one monitoring cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		pollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lanwatch",
			Subsystem: "engine",
			Name:      "poll_failures_total",
			Help:      "Count of poll tasks whose probe failed to reach the device.",
		}, []string{"device_id"}),
		activeAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lanwatch",
			Subsystem: "alerts",
			Name:      "active_count",
			Help:      "Number of currently active, unresolved alerts.",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lanwatch",
			Subsystem: "scanner",
			Name:      "scan_duration_seconds",
			Help:      "Wall-clock duration of one network sweep.",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		devicesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lanwatch",
			Subsystem: "engine",
			Name:      "devices_tracked",
			Help:      "Number of devices currently in the registry.",
		}),
	}

	for _, c := range []prometheus.Collector{m.tickDuration, m.pollFailures, m.activeAlerts, m.scanDuration, m.devicesTracked} {
		reg.MustRegister(c)
	}
	return m
}

// ObserveTick records the wall-clock duration of one monitoring cycle.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

// RecordPollFailure increments the failure counter for deviceID.
func (m *Metrics) RecordPollFailure(deviceID string) {
	if m == nil {
		return
	}
	m.pollFailures.WithLabelValues(deviceID).Inc()
}

// SetActiveAlerts sets the current active-alert gauge.
func (m *Metrics) SetActiveAlerts(n int) {
	if m == nil {
		return
	}
	m.activeAlerts.Set(float64(n))
}

// ObserveScan records the wall-clock duration of one sweep.
func (m *Metrics) ObserveScan(d time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(d.Seconds())
}

// SetDevicesTracked sets the registry-size gauge.
func (m *Metrics) SetDevicesTracked(n int) {
	if m == nil {
		return
	}
	m.devicesTracked.Set(float64(n))
}
