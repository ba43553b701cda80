// Package metrics exposes Prometheus collectors for simulator runs and
// structural network edits. A nil *Registry is valid; every method is a no-op
// on it.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run results used as the "result" label.
const (
	RunCompleted = "completed"
	RunFaulted   = "faulted"
	RunCancelled = "cancelled"
)

// Node evaluation paths used as the "path" label.
const (
	PathSerial   = "serial"
	PathParallel = "parallel"
)

type Registry struct {
	registry *prometheus.Registry

	StepsTotal           prometheus.Counter
	StepDuration         prometheus.Histogram
	RunsTotal            *prometheus.CounterVec
	ActiveRuns           prometheus.Gauge
	NodeEvaluationsTotal *prometheus.CounterVec
	ProbeSamplesTotal    prometheus.Counter
	StructuralEditsTotal *prometheus.CounterVec
	PlanRebuildsTotal    prometheus.Counter
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}
	factory := promauto.With(reg)

	r.StepsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "nengosim_simulator_steps_total",
		Help: "Total number of simulator time steps executed",
	})
	r.StepDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "nengosim_simulator_step_duration_seconds",
		Help:    "Wall-clock duration of one simulator step",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	})
	r.RunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "nengosim_simulator_runs_total",
		Help: "Total number of simulator runs by result",
	}, []string{"result"})
	r.ActiveRuns = factory.NewGauge(prometheus.GaugeOpts{
		Name: "nengosim_simulator_active_runs",
		Help: "Number of runs currently in progress",
	})
	r.NodeEvaluationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "nengosim_node_evaluations_total",
		Help: "Total number of node evaluations by dispatch path",
	}, []string{"path"})
	r.ProbeSamplesTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "nengosim_probe_samples_total",
		Help: "Total number of probe samples taken",
	})
	r.StructuralEditsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "nengosim_network_structural_edits_total",
		Help: "Total number of structural network edits by kind",
	}, []string{"kind"})
	r.PlanRebuildsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "nengosim_simulator_plan_rebuilds_total",
		Help: "Total number of execution plan rebuilds",
	})
	return r
}

func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) RecordStep(duration time.Duration) {
	if r == nil {
		return
	}
	r.StepsTotal.Inc()
	r.StepDuration.Observe(duration.Seconds())
}

func (r *Registry) RunStarted() {
	if r == nil {
		return
	}
	r.ActiveRuns.Inc()
}

func (r *Registry) RunFinished(result string) {
	if r == nil {
		return
	}
	r.ActiveRuns.Dec()
	r.RunsTotal.WithLabelValues(result).Inc()
}

func (r *Registry) RecordNodeEvaluations(path string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.NodeEvaluationsTotal.WithLabelValues(path).Add(float64(n))
}

func (r *Registry) RecordProbeSamples(n int) {
	if r == nil || n == 0 {
		return
	}
	r.ProbeSamplesTotal.Add(float64(n))
}

func (r *Registry) RecordStructuralEdit(kind string) {
	if r == nil {
		return
	}
	r.StructuralEditsTotal.WithLabelValues(kind).Inc()
}

func (r *Registry) RecordPlanRebuild() {
	if r == nil {
		return
	}
	r.PlanRebuildsTotal.Inc()
}
