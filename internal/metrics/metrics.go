// Package metrics exposes Prometheus instrumentation for optimization runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/copyleftdev/descent/internal/optimization"
)

const namespace = "descent"

// Metrics records the outcome of every completed run.
type Metrics struct {
	runs        *prometheus.CounterVec
	iterations  *prometheus.HistogramVec
	duration    *prometheus.HistogramVec
	forcedSteps *prometheus.CounterVec
	activeJobs  prometheus.Gauge
}

// New registers the collectors with reg. Passing prometheus.DefaultRegisterer
// exposes them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed optimization runs by algorithm and termination reason",
		}, []string{"algorithm", "reason"}),
		iterations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_iterations",
			Help:      "Accepted iterations per run",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
		}, []string{"algorithm"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time per run",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 12),
		}, []string{"algorithm"}),
		forcedSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_steps_total",
			Help:      "Iterations that fell back to the minimal line-search step",
		}, []string{"algorithm"}),
		activeJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Optimization jobs currently running",
		}),
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(algorithm string, res *optimization.RunResult) {
	m.runs.WithLabelValues(algorithm, res.Reason.String()).Inc()
	m.iterations.WithLabelValues(algorithm).Observe(float64(res.Iterations))
	m.duration.WithLabelValues(algorithm).Observe(res.ElapsedSeconds())
	if res.ForcedSteps > 0 {
		m.forcedSteps.WithLabelValues(algorithm).Add(float64(res.ForcedSteps))
	}
}

// JobStarted increments the active job gauge.
func (m *Metrics) JobStarted() {
	m.activeJobs.Inc()
}

// JobFinished decrements the active job gauge.
func (m *Metrics) JobFinished() {
	m.activeJobs.Dec()
}
