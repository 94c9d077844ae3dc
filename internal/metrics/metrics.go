// Package metrics exposes pipeline progress as Prometheus collectors.
//
// The Recorder owns a private registry so tests and repeated runs in one
// process never collide on the default registerer. A nil *Recorder is valid
// and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alexiswl/poreduck/internal/queue"
)

const (
	namespace = "poreduck"

	phaseLabel   = "phase"
	stageLabel   = "stage"
	commandLabel = "command"
)

// Recorder records pipeline metrics.
type Recorder struct {
	registry       *prometheus.Registry
	items          *prometheus.GaugeVec
	inFlight       prometheus.Gauge
	submissions    *prometheus.CounterVec
	failures       *prometheus.CounterVec
	passes         prometheus.Counter
	commandSeconds *prometheus.HistogramVec
}

// New builds a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items",
			Help:      "number of tracked items in each phase",
		}, []string{phaseLabel}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "items with a submitted but incomplete scheduler job",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "scheduler jobs submitted per stage",
		}, []string{stageLabel}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_failures_total",
			Help:      "scheduler jobs detected as failed per stage",
		}, []string{stageLabel}),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "pipeline passes completed",
		}),
		commandSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_command_seconds",
			Help:      "duration of scheduler CLI invocations",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{commandLabel}),
	}
	r.registry.MustRegister(
		r.items,
		r.inFlight,
		r.submissions,
		r.failures,
		r.passes,
		r.commandSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveItems sets the per-phase gauge and the in-flight gauge from a
// snapshot of the tracked items.
func (r *Recorder) ObserveItems(items []*queue.Item) {
	if r == nil {
		return
	}
	counts := make(map[queue.Phase]int, len(queue.AllPhases()))
	for _, item := range items {
		counts[item.Phase()]++
	}
	for _, phase := range queue.AllPhases() {
		r.items.With(prometheus.Labels{phaseLabel: string(phase)}).Set(float64(counts[phase]))
	}
	r.inFlight.Set(float64(queue.InFlightCount(items)))
}

// Submitted counts one job submission.
func (r *Recorder) Submitted(stage queue.StageName) {
	if r == nil {
		return
	}
	r.submissions.With(prometheus.Labels{stageLabel: string(stage)}).Inc()
}

// Failed counts one detected job failure.
func (r *Recorder) Failed(stage queue.StageName) {
	if r == nil {
		return
	}
	r.failures.With(prometheus.Labels{stageLabel: string(stage)}).Inc()
}

// PassCompleted counts one pipeline pass.
func (r *Recorder) PassCompleted() {
	if r == nil {
		return
	}
	r.passes.Inc()
}

// ObserveCommand records the duration of one scheduler CLI call.
func (r *Recorder) ObserveCommand(command string, seconds float64) {
	if r == nil {
		return
	}
	r.commandSeconds.With(prometheus.Labels{commandLabel: command}).Observe(seconds)
}
