package observability

import (
	"context"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flow"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	Steps          *prometheus.CounterVec
	StepDuration   *prometheus.HistogramVec
	Runs           *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	Branches       *prometheus.CounterVec
	InternalErrors prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of completed steps",
			},
			[]string{"task", "outcome"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of task executions",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"task"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of finished flows",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of whole flows",
				Buckets:   prometheus.DefBuckets,
			},
		),
		Branches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "switch_branches_total",
				Help:      "Switch evaluations by selected branch",
			},
			[]string{"node", "branch"},
		),
		InternalErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "internal_errors_total",
				Help:      "Suppressed contract violations such as double continuations",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.Steps, m.StepDuration, m.Runs, m.RunDuration, m.Branches, m.InternalErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks recording into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepDone: func(_ context.Context, e *domain.StepEvent) {
			m.Steps.WithLabelValues(e.Task, outcome(e.Err)).Inc()
			m.StepDuration.WithLabelValues(e.Task).Observe(e.Duration.Seconds())
		},
		OnBranch: func(_ context.Context, e *domain.BranchEvent) {
			branch := e.Branch
			if branch == "" {
				branch = "none"
			}
			m.Branches.WithLabelValues(e.NodeID, branch).Inc()
		},
		OnRunDone: func(_ context.Context, e *domain.RunEvent) {
			m.Runs.WithLabelValues(outcome(e.Err)).Inc()
			m.RunDuration.Observe(e.Duration.Seconds())
		},
		OnInternalError: func(context.Context, *domain.InternalErrorEvent) {
			m.InternalErrors.Inc()
		},
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
