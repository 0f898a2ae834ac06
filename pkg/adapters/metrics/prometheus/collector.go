// Package prometheus exposes orchestration metrics for scraping.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	runsSubmitted   *prometheus.CounterVec
	runsFinished    *prometheus.CounterVec
	nodeTransitions *prometheus.CounterVec
	restartAttempts prometheus.Counter
	activeRuns      prometheus.Gauge
	runDuration     *prometheus.HistogramVec
	hookDuration    *prometheus.HistogramVec
}

// NewCollector creates a new Prometheus metrics collector
func NewCollector() *Collector {
	return &Collector{
		runsSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_runs_submitted_total",
				Help: "Total number of runs submitted",
			},
			[]string{"status"},
		),
		runsFinished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_runs_finished_total",
				Help: "Total number of runs finished",
			},
			[]string{"status"},
		),
		nodeTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_node_transitions_total",
				Help: "Total number of node state transitions",
			},
			[]string{"to"},
		),
		restartAttempts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kestrel_restart_attempts_total",
				Help: "Total number of node restart attempts",
			},
		),
		activeRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kestrel_active_runs",
				Help: "Number of currently live runs",
			},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kestrel_run_duration_seconds",
				Help:    "Run duration from submission to finalization in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
			},
			[]string{"status"},
		),
		hookDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kestrel_hook_duration_seconds",
				Help:    "Lifecycle hook duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"hook"},
		),
	}
}

// RecordRunSubmitted records a run submission
func (c *Collector) RecordRunSubmitted(status string) {
	c.runsSubmitted.WithLabelValues(status).Inc()
}

// RecordRunFinished records a finalized run and its duration
func (c *Collector) RecordRunFinished(status string, duration time.Duration) {
	c.runsFinished.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordNodeTransition records a node state transition
func (c *Collector) RecordNodeTransition(to string) {
	c.nodeTransitions.WithLabelValues(to).Inc()
}

// ObserveHookDuration records how long a lifecycle hook ran
func (c *Collector) ObserveHookDuration(hook string, duration time.Duration) {
	c.hookDuration.WithLabelValues(hook).Observe(duration.Seconds())
}

// RecordRestartAttempt records one restart attempt of a degraded node
func (c *Collector) RecordRestartAttempt() {
	c.restartAttempts.Inc()
}

// SetActiveRuns sets the live run gauge
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}
