package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepStart     EventType = "step_start"
	EventStepDone      EventType = "step_done"
	EventBranch        EventType = "branch"
	EventRunDone       EventType = "run_done"
	EventInternalError EventType = "internal_error"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// StepEvent represents the dispatch or completion of a step.
type StepEvent struct {
	EventBase
	StepID   string         `json:"step_id"`
	Task     string         `json:"task"`
	Params   map[string]any `json:"params,omitempty"`
	Err      error          `json:"-"`
	Duration time.Duration  `json:"duration,omitempty"`
}

// BranchEvent reports which branch a switch selected.
// Branch is empty when no case matched and there is no otherwise.
type BranchEvent struct {
	EventBase
	NodeID string `json:"node_id"`
	Branch string `json:"branch"`
}

// RunEvent represents the end of a flow.
type RunEvent struct {
	EventBase
	Status   Status        `json:"status"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// InternalErrorEvent carries a suppressed contract violation.
type InternalErrorEvent struct {
	EventBase
	Err *EngineInternalError `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks may be called from any goroutine that completes a task.
type LifecycleHooks struct {
	OnStepStart     func(context.Context, *StepEvent)
	OnStepDone      func(context.Context, *StepEvent)
	OnBranch        func(context.Context, *BranchEvent)
	OnRunDone       func(context.Context, *RunEvent)
	OnInternalError func(context.Context, *InternalErrorEvent)
}

// ChainHooks combines several hook sets; each callback fans out in order.
func ChainHooks(sets ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range sets {
		out.OnStepStart = chain(out.OnStepStart, h.OnStepStart)
		out.OnStepDone = chain(out.OnStepDone, h.OnStepDone)
		out.OnBranch = chain(out.OnBranch, h.OnBranch)
		out.OnRunDone = chain(out.OnRunDone, h.OnRunDone)
		out.OnInternalError = chain(out.OnInternalError, h.OnInternalError)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
