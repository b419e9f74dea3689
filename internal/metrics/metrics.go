// Package metrics records upgrade results as Prometheus metrics and writes
// them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the metrics of one run on a private registry.
// A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	phaseTotal    *prometheus.CounterVec
	rebootSeconds *prometheus.HistogramVec
	hosts         prometheus.Gauge
	lastRun       prometheus.Gauge
}

// NewRecorder creates a recorder with all metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		phaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "routeros",
				Subsystem: "upgrade",
				Name:      "phase_total",
				Help:      "Upgrade phases by phase and result",
			},
			[]string{"phase", "result"},
		),
		rebootSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "routeros",
				Subsystem: "upgrade",
				Name:      "reboot_seconds",
				Help:      "Time for a device to answer again after an upgrade reboot",
				Buckets:   prometheus.ExponentialBuckets(10, 2, 6), // 10s to ~5min
			},
			[]string{"phase"},
		),
		hosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "routeros",
			Subsystem: "upgrade",
			Name:      "hosts",
			Help:      "Number of hosts in the last run",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "routeros",
			Subsystem: "upgrade",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
	r.registry.MustRegister(r.phaseTotal, r.rebootSeconds, r.hosts, r.lastRun)
	return r
}

// Registry returns the registry holding the run's metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObservePhase counts a phase result such as "success", "timeout" or "skipped".
func (r *Recorder) ObservePhase(phase, result string) {
	if r == nil {
		return
	}
	r.phaseTotal.WithLabelValues(phase, result).Inc()
}

// ObserveReboot records how long a reboot took.
func (r *Recorder) ObserveReboot(phase string, d time.Duration) {
	if r == nil || d <= 0 {
		return
	}
	r.rebootSeconds.WithLabelValues(phase).Observe(d.Seconds())
}

// SetHosts records the batch size.
func (r *Recorder) SetHosts(n int) {
	if r == nil {
		return
	}
	r.hosts.Set(float64(n))
}

// MarkRun records the time the run finished.
func (r *Recorder) MarkRun(t time.Time) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(t.Unix()))
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
