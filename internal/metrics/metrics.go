// Package metrics exports run, step and cache activity as Prometheus
// metrics. A Metrics value observes both the graph runner and the result
// cache.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/gather/graph"
)

const namespace = "gather"

// Metrics holds the collectors registered for one process.
type Metrics struct {
	gatherer prometheus.Gatherer

	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	runSteps     *prometheus.HistogramVec
	lookups      *prometheus.CounterVec
	computations *prometheus.CounterVec
	computeTime  *prometheus.HistogramVec
}

// New registers the collectors with a fresh registry that also carries
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWith(reg, reg)
}

// NewWith registers the collectors with reg and serves them from g.
func NewWith(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: g,

		steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "steps_total",
			Help:      "Step invocations by graph, step and followed edge.",
		}, []string{"graph", "step", "edge"}),

		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "step_duration_seconds",
			Help:      "Step execution time.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"graph", "step"}),

		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "runs_total",
			Help:      "Completed runs by status and failure reason.",
		}, []string{"graph", "status", "reason"}),

		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed runs.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"graph", "status"}),

		runSteps: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "run_steps",
			Help:      "Step invocations per completed run.",
			Buckets:   prometheus.LinearBuckets(1, 2, 13),
		}, []string{"graph"}),

		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by adapter operation and result.",
		}, []string{"op", "result"}),

		computations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "computations_total",
			Help:      "Adapter calls made on cache misses by operation and outcome.",
		}, []string{"op", "outcome"}),

		computeTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "computation_duration_seconds",
			Help:      "Adapter call time on cache misses.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"op"}),
	}
}

// StepCompleted implements graph.Observer.
func (m *Metrics) StepCompleted(g, step, edge string, d time.Duration) {
	m.steps.WithLabelValues(g, step, edge).Inc()
	m.stepDuration.WithLabelValues(g, step).Observe(d.Seconds())
}

// RunCompleted implements graph.Observer.
func (m *Metrics) RunCompleted(g string, o *graph.Outcome) {
	status := string(o.Status)
	m.runs.WithLabelValues(g, status, string(o.Reason)).Inc()
	m.runDuration.WithLabelValues(g, status).Observe(o.Duration.Seconds())
	m.runSteps.WithLabelValues(g).Observe(float64(o.Steps))
}

// Lookup implements cache.Observer.
func (m *Metrics) Lookup(op, result string) {
	m.lookups.WithLabelValues(op, result).Inc()
}

// Computed implements cache.Observer.
func (m *Metrics) Computed(op string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.computations.WithLabelValues(op, outcome).Inc()
	m.computeTime.WithLabelValues(op).Observe(d.Seconds())
}

// Handler serves the registered metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
