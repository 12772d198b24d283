package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/registry"
	"github.com/expr-lang/expr"
	"github.com/google/uuid"
)

// Completion is the one-shot, error-first signal a Flow gives back to its host.
type Completion func(err error)

// Flow interprets one Snapshot against one Context. It is single-use.
type Flow struct {
	snap   *Snapshot
	runID  string
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	mu      sync.Mutex
	status  domain.Status
	data    *domain.Context
	done    Completion
	started time.Time

	finished atomic.Bool
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithLogger sets the structured logger. Every record carries the run ID.
func WithLogger(logger *slog.Logger) FlowOption {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) FlowOption {
	return func(f *Flow) {
		f.hooks = hooks
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) FlowOption {
	return func(f *Flow) {
		if id != "" {
			f.runID = id
		}
	}
}

// NewFlow creates a flow bound to snap.
func NewFlow(snap *Snapshot, opts ...FlowOption) (*Flow, error) {
	if snap == nil {
		return nil, &domain.DefinitionError{Reason: "cannot create flow", Err: domain.ErrNoSnapshot}
	}
	f := &Flow{
		snap:   snap,
		runID:  uuid.NewString(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("run_id", f.runID)
	return f, nil
}

// RunID returns the identifier attached to logs and events of this flow.
func (f *Flow) RunID() string { return f.runID }

// Status returns the current state of the flow.
func (f *Flow) Status() domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Prepare binds the Context and the completion callback.
func (f *Flow) Prepare(data *domain.Context, done Completion) error {
	if data == nil {
		return errors.New("prepare: context is nil")
	}
	if done == nil {
		return errors.New("prepare: completion is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != domain.StatusNone {
		return domain.ErrAlreadyPrepared
	}
	f.data = data
	f.done = done
	f.status = domain.StatusInitialized
	return nil
}

// Run starts interpreting the root node list. It returns once the first
// node has been dispatched; the outcome is delivered through the completion.
func (f *Flow) Run(ctx context.Context) error {
	f.mu.Lock()
	switch f.status {
	case domain.StatusNone:
		f.mu.Unlock()
		return domain.ErrNotPrepared
	case domain.StatusInitialized:
	default:
		f.mu.Unlock()
		return domain.ErrAlreadyRun
	}
	f.status = domain.StatusRunning
	f.started = time.Now()
	f.mu.Unlock()

	f.logger.Debug("flow started", "version", f.snap.Version())
	f.runList(ctx, f.data, f.snap.assembly.Nodes, func(err error) {
		f.finish(ctx, err)
	})
	return nil
}

// runList executes nodes in order and calls next once with the outcome.
// Nodes that complete synchronously are chained in a loop so long
// sequences do not grow the stack.
func (f *Flow) runList(ctx context.Context, data *domain.Context, nodes []domain.Node, next func(error)) {
	f.runFrom(ctx, data, nodes, 0, next)
}

func (f *Flow) runFrom(ctx context.Context, data *domain.Context, nodes []domain.Node, i int, next func(error)) {
	for ; i < len(nodes); i++ {
		var (
			mu       sync.Mutex
			returned bool
			advanced bool
		)
		idx := i
		f.runNode(ctx, data, &nodes[idx], func(err error) {
			if err != nil {
				next(err)
				return
			}
			mu.Lock()
			if !returned {
				advanced = true
				mu.Unlock()
				return
			}
			mu.Unlock()
			f.runFrom(ctx, data, nodes, idx+1, next)
		})

		mu.Lock()
		returned = true
		inline := advanced
		mu.Unlock()
		if !inline {
			// Pending or failed: the continuation owns the rest of the list.
			return
		}
	}
	next(nil)
}

func (f *Flow) runNode(ctx context.Context, data *domain.Context, node *domain.Node, next func(error)) {
	if err := ctx.Err(); err != nil {
		next(fmt.Errorf("node %s not started: %w", node.ID, err))
		return
	}

	switch node.Kind {
	case domain.KindStep:
		f.runStep(ctx, data, node, next)
	case domain.KindSwitch:
		f.runSwitch(ctx, data, node, next)
	case domain.KindSubFlow:
		f.runList(ctx, data, node.Nodes, next)
	case domain.KindParallel:
		f.runParallel(ctx, data, node, next)
	default:
		next(&domain.DefinitionError{Path: node.ID, Reason: fmt.Sprintf("unknown node kind %q", node.Kind)})
	}
}

func (f *Flow) runStep(ctx context.Context, data *domain.Context, node *domain.Node, next func(error)) {
	params, err := f.resolveParams(node, data)
	if err != nil {
		f.logger.Warn("parameter resolution failed", "step", node.ID, "task", node.Type, "error", err)
		next(err)
		return
	}

	handler, err := f.snap.registry.Lookup(node.Type)
	if err != nil {
		next(&domain.DefinitionError{Path: node.ID, Reason: fmt.Sprintf("task %q is not registered", node.Type), Err: domain.ErrTaskNotFound})
		return
	}

	start := time.Now()
	if f.hooks.OnStepStart != nil {
		f.hooks.OnStepStart(ctx, &domain.StepEvent{
			EventBase: f.event(domain.EventStepStart),
			StepID:    node.ID,
			Task:      node.Type,
			Params:    params,
		})
	}
	f.logger.Debug("step dispatched", "step", node.ID, "task", node.Type)

	var fired, chained atomic.Bool
	cont := func(taskErr error) {
		if !fired.CompareAndSwap(false, true) {
			f.internalError(ctx, node.ID, fmt.Sprintf("task %q invoked its continuation more than once", node.Type), domain.ErrDuplicateContinuation)
			return
		}
		elapsed := time.Since(start)
		if f.hooks.OnStepDone != nil {
			f.hooks.OnStepDone(ctx, &domain.StepEvent{
				EventBase: f.event(domain.EventStepDone),
				StepID:    node.ID,
				Task:      node.Type,
				Err:       taskErr,
				Duration:  elapsed,
			})
		}
		if taskErr != nil {
			f.logger.Debug("step failed", "step", node.ID, "task", node.Type, "duration", elapsed, "error", taskErr)
			next(&domain.TaskExecutionError{StepID: node.ID, Task: node.Type, Err: taskErr})
			return
		}
		f.logger.Debug("step completed", "step", node.ID, "task", node.Type, "duration", elapsed)
		next(nil)
	}

	f.invoke(ctx, node, handler, params, data, cont, &fired, &chained)
}

// invoke calls the handler, turning a panic raised by the handler itself
// into a task failure. Panics raised further down the continuation chain
// (hooks, later nodes, the host completion) are not the task's and are
// re-raised.
func (f *Flow) invoke(ctx context.Context, node *domain.Node, h registry.Handler, params map[string]any, data *domain.Context, cont registry.Continuation, fired, chained *atomic.Bool) {
	guarded := func(err error) {
		chained.Store(true)
		cont(err)
		chained.Store(false)
	}
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if chained.Load() {
			panic(r)
		}
		if fired.Load() {
			f.internalError(ctx, node.ID, fmt.Sprintf("task %q panicked after completing: %v", node.Type, r), domain.ErrLatePanic)
			return
		}
		cont(fmt.Errorf("task panicked: %v", r))
	}()
	h.Handle(ctx, params, data, guarded)
}

func (f *Flow) resolveParams(node *domain.Node, data *domain.Context) (map[string]any, error) {
	params := make(map[string]any, len(node.Params))
	if f.snap.resolver == nil {
		for k, v := range node.Params {
			params[k] = v
		}
		return params, nil
	}

	keys := make([]string, 0, len(node.Params))
	for k := range node.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		raw := node.Params[k]
		v, err := f.snap.resolver.Resolve(raw, data)
		if err != nil {
			return nil, &domain.ParamResolutionError{StepID: node.ID, Param: k, Expr: fmt.Sprint(raw), Err: err}
		}
		params[k] = v
	}
	return params, nil
}

func (f *Flow) runSwitch(ctx context.Context, data *domain.Context, node *domain.Node, next func(error)) {
	env := data.Snapshot()
	for i := range node.Cases {
		c := &node.Cases[i]
		out, err := expr.Run(f.snap.predicates[caseKey(node.ID, i)], env)
		if err != nil {
			next(&domain.ParamResolutionError{StepID: node.ID, Param: domain.KeyCondition, Expr: c.Condition, Err: err})
			return
		}
		matched, ok := out.(bool)
		if !ok {
			next(&domain.ParamResolutionError{
				StepID: node.ID,
				Param:  domain.KeyCondition,
				Expr:   c.Condition,
				Err:    fmt.Errorf("condition evaluated to %T, want bool", out),
			})
			return
		}
		if matched {
			f.branch(ctx, node.ID, fmt.Sprintf("case%d", i))
			f.runList(ctx, data, c.Nodes, next)
			return
		}
	}

	if node.Otherwise != nil {
		f.branch(ctx, node.ID, domain.KeyOtherwise)
		f.runList(ctx, data, node.Otherwise, next)
		return
	}
	// No match and no otherwise: the switch is skipped.
	f.branch(ctx, node.ID, "")
	next(nil)
}

func (f *Flow) branch(ctx context.Context, nodeID, label string) {
	f.logger.Debug("switch evaluated", "step", nodeID, "branch", label)
	if f.hooks.OnBranch != nil {
		f.hooks.OnBranch(ctx, &domain.BranchEvent{
			EventBase: f.event(domain.EventBranch),
			NodeID:    nodeID,
			Branch:    label,
		})
	}
}

// parallelGroup tracks the branches of one ParallelGroup execution.
type parallelGroup struct {
	mu      sync.Mutex
	pending int
	settled bool
}

func (f *Flow) runParallel(ctx context.Context, data *domain.Context, node *domain.Node, next func(error)) {
	if len(node.Branches) == 0 {
		next(nil)
		return
	}

	groupCtx, cancel := context.WithCancel(ctx)
	g := &parallelGroup{pending: len(node.Branches)}
	forks := make([]*domain.Context, len(node.Branches))
	for i := range node.Branches {
		forks[i] = data.Fork()
	}

	onBranchDone := func(label string, err error) {
		g.mu.Lock()
		if g.settled {
			g.mu.Unlock()
			if err != nil {
				f.logger.Debug("parallel branch failure swallowed", "step", node.ID, "branch", label, "error", err)
			}
			return
		}
		if err != nil {
			g.settled = true
			g.mu.Unlock()
			cancel()
			next(err)
			return
		}
		g.pending--
		if g.pending > 0 {
			g.mu.Unlock()
			return
		}
		g.settled = true
		g.mu.Unlock()
		cancel()

		for _, fork := range forks {
			data.Merge(fork)
		}
		next(nil)
	}

	for i := range node.Branches {
		b := &node.Branches[i]
		label := b.Label(i)
		fork := forks[i]
		go f.runList(groupCtx, fork, b.Nodes, func(err error) {
			onBranchDone(label, err)
		})
	}
}

func (f *Flow) finish(ctx context.Context, err error) {
	if !f.finished.CompareAndSwap(false, true) {
		f.internalError(ctx, "", "completion reached more than once", domain.ErrDuplicateContinuation)
		return
	}

	status := domain.StatusCompleted
	if err != nil {
		status = domain.StatusFailed
	}
	f.mu.Lock()
	f.status = status
	elapsed := time.Since(f.started)
	done := f.done
	f.mu.Unlock()

	if err != nil {
		f.logger.Info("flow failed", "duration", elapsed, "error", err)
	} else {
		f.logger.Debug("flow completed", "duration", elapsed)
	}
	if f.hooks.OnRunDone != nil {
		f.hooks.OnRunDone(ctx, &domain.RunEvent{
			EventBase: f.event(domain.EventRunDone),
			Status:    status,
			Err:       err,
			Duration:  elapsed,
		})
	}
	done(err)
}

func (f *Flow) internalError(ctx context.Context, stepID, reason string, kind error) {
	ierr := &domain.EngineInternalError{StepID: stepID, Reason: reason, Err: kind}
	f.logger.Warn("suppressed contract violation", "step", stepID, "error", ierr)
	if f.hooks.OnInternalError != nil {
		f.hooks.OnInternalError(ctx, &domain.InternalErrorEvent{
			EventBase: f.event(domain.EventInternalError),
			Err:       ierr,
		})
	}
}

func (f *Flow) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, RunID: f.runID}
}
