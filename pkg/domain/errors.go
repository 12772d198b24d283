package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned when a step names a task that is not registered.
	ErrTaskNotFound = errors.New("task not found")
	// ErrUnresolvedPath is returned when a placeholder references a missing Context path.
	ErrUnresolvedPath = errors.New("unresolved context path")
	// ErrMalformedPlaceholder is returned for unbalanced or empty placeholders.
	ErrMalformedPlaceholder = errors.New("malformed placeholder")
	// ErrDuplicateContinuation marks a continuation or completion invoked twice.
	ErrDuplicateContinuation = errors.New("continuation invoked more than once")
	// ErrLatePanic marks a task that panicked after it had already completed.
	ErrLatePanic = errors.New("task panicked after completion")

	ErrAlreadyPrepared = errors.New("flow already prepared")
	ErrNotPrepared     = errors.New("flow not prepared")
	ErrAlreadyRun      = errors.New("flow already run")
	ErrNoSnapshot      = errors.New("no assembly snapshot loaded")
)

// DefinitionError reports a malformed assembly or an unresolvable task type.
// It is raised before a flow starts running.
type DefinitionError struct {
	Path   string // Node ID or document location, may be empty
	Reason string
	Err    error
}

func (e *DefinitionError) Error() string {
	msg := "definition error"
	if e.Path != "" {
		msg += fmt.Sprintf(" at %s", e.Path)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// ParamResolutionError reports a parameter (or predicate) that could not be
// resolved against the Context. It aborts the owning step.
type ParamResolutionError struct {
	StepID string
	Param  string
	Expr   string
	Err    error
}

func (e *ParamResolutionError) Error() string {
	return fmt.Sprintf("step %s: cannot resolve %q (%s): %v", e.StepID, e.Param, e.Expr, e.Err)
}

func (e *ParamResolutionError) Unwrap() error { return e.Err }

// TaskExecutionError wraps the error a task passed to its continuation.
type TaskExecutionError struct {
	StepID string
	Task   string
	Err    error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("step %s (%s) failed: %v", e.StepID, e.Task, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }

// EngineInternalError describes a contract violation the engine detected and
// suppressed, such as a double continuation. It is logged, never delivered
// to the completion callback.
type EngineInternalError struct {
	StepID string
	Reason string
	// Err classifies the violation; nil means ErrDuplicateContinuation.
	Err error
}

func (e *EngineInternalError) Error() string {
	if e.StepID == "" {
		return "engine internal error: " + e.Reason
	}
	return fmt.Sprintf("engine internal error at step %s: %s", e.StepID, e.Reason)
}

func (e *EngineInternalError) Unwrap() error {
	if e.Err == nil {
		return ErrDuplicateContinuation
	}
	return e.Err
}
