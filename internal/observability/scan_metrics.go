package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ScanCollector exposes alignment scan metrics. It satisfies
// core.MetricsRecorder.
type ScanCollector struct {
	gatherer prometheus.Gatherer

	ModeDuration *prometheus.HistogramVec
	Records      *prometheus.CounterVec
	Failures     *prometheus.CounterVec
	Bodies       prometheus.Gauge
	Timesteps    prometheus.Gauge
}

// NewScanCollector registers scan metrics against the provided registerer.
func NewScanCollector(reg prometheus.Registerer) (*ScanCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conflux_scan_mode_duration_seconds",
		Help:    "Time spent scanning one alignment mode, from group building to the final flush.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"mode"})
	duration, err := register(reg, duration, "conflux_scan_mode_duration_seconds")
	if err != nil {
		return nil, err
	}

	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conflux_alignment_records_total",
		Help: "Cumulative number of alignment intervals emitted, by mode.",
	}, []string{"mode"})
	records, err = register(reg, records, "conflux_alignment_records_total")
	if err != nil {
		return nil, err
	}

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conflux_scan_mode_failures_total",
		Help: "Modes rejected before scanning, by mode and reason (unknown, configuration).",
	}, []string{"mode", "reason"})
	failures, err = register(reg, failures, "conflux_scan_mode_failures_total")
	if err != nil {
		return nil, err
	}

	bodies, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "conflux_scan_bodies",
		Help: "Number of bodies in the most recent scan.",
	}), "conflux_scan_bodies")
	if err != nil {
		return nil, err
	}
	steps, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "conflux_scan_timesteps",
		Help: "Number of timesteps in the most recent scan.",
	}), "conflux_scan_timesteps")
	if err != nil {
		return nil, err
	}

	return &ScanCollector{
		gatherer:     gathererFor(reg),
		ModeDuration: duration,
		Records:      records,
		Failures:     failures,
		Bodies:       bodies,
		Timesteps:    steps,
	}, nil
}

// Gatherer returns the gatherer backing this collector.
func (c *ScanCollector) Gatherer() prometheus.Gatherer {
	if c == nil || c.gatherer == nil {
		return prometheus.DefaultGatherer
	}
	return c.gatherer
}

// SetScanShape records the size of the scan input.
func (c *ScanCollector) SetScanShape(bodies, steps int) {
	if c == nil {
		return
	}
	c.Bodies.Set(float64(bodies))
	c.Timesteps.Set(float64(steps))
}

// ObserveModeScan records one completed mode scan.
func (c *ScanCollector) ObserveModeScan(mode string, elapsed time.Duration, records int) {
	if c == nil {
		return
	}
	c.ModeDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	c.Records.WithLabelValues(mode).Add(float64(records))
}

// RecordModeFailure counts a rejected mode.
func (c *ScanCollector) RecordModeFailure(mode, reason string) {
	if c == nil {
		return
	}
	c.Failures.WithLabelValues(mode, reason).Inc()
}
