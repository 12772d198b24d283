package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aretw0/flow/internal/compiler"
	"github.com/aretw0/flow/internal/runtime"
	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/ports"
	"github.com/aretw0/flow/pkg/registry"
	"github.com/aretw0/flow/pkg/resolver"
)

// Flow is a single-use run of the current assembly snapshot.
type Flow = runtime.Flow

// Snapshot is an immutable, validated assembly bound to its task registry.
type Snapshot = runtime.Snapshot

// Completion is the one-shot, error-first result callback of a Flow.
type Completion = runtime.Completion

// ErrNotWatchable is returned by Watch when the loader cannot signal changes.
var ErrNotWatchable = errors.New("current loader does not support watching")

// Engine is the high-level entry point for the Flow library.
// It owns the current snapshot and creates one Flow per request.
type Engine struct {
	loader      ports.AssemblyLoader
	registry    *registry.Registry
	parser      *compiler.Parser
	compileOpts []runtime.CompileOption
	hooks       domain.LifecycleHooks
	logger      *slog.Logger

	snapshot atomic.Pointer[runtime.Snapshot]

	// mu serializes reloads and guards lastErr.
	mu      sync.Mutex
	lastErr error
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithResolver sets a custom parameter resolver.
func WithResolver(r resolver.Resolver) Option {
	return func(e *Engine) {
		e.compileOpts = append(e.compileOpts, runtime.WithResolver(r))
	}
}

// WithoutResolver passes raw parameters to tasks without resolving placeholders.
func WithoutResolver() Option {
	return func(e *Engine) {
		e.compileOpts = append(e.compileOpts, runtime.WithoutResolver())
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes an Engine and loads the first snapshot.
//
// If the first load fails, the error is returned and the Engine is still
// usable: every request is routed to the host's error path until a later
// Reload succeeds.
func New(loader ports.AssemblyLoader, reg *registry.Registry, opts ...Option) (*Engine, error) {
	if loader == nil {
		return nil, fmt.Errorf("assembly loader is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("task registry is required")
	}

	eng := &Engine{
		loader:   loader,
		registry: reg,
		parser:   compiler.NewParser(),
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	if err := eng.Reload(context.Background()); err != nil {
		return eng, err
	}
	return eng, nil
}

// Reload loads and compiles the assembly again. On success the new snapshot
// replaces the current one for flows created afterwards; flows already
// running keep theirs. On failure the previous snapshot stays in place.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.compile(ctx)
	if err != nil {
		e.lastErr = err
		if e.snapshot.Load() != nil {
			e.logger.Error("assembly reload failed, keeping previous snapshot", "error", err)
		} else {
			e.logger.Error("failed to load assembly", "error", err)
		}
		return err
	}

	e.snapshot.Store(snap)
	e.lastErr = nil
	e.logger.Info("assembly loaded", "version", snap.Version(), "tasks", snap.Assembly().StepTypes())
	return nil
}

func (e *Engine) compile(ctx context.Context) (*runtime.Snapshot, error) {
	raw, err := e.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load assembly: %w", err)
	}
	asm, err := e.parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	return runtime.Compile(asm, e.registry, e.compileOpts...)
}

// Snapshot returns the current snapshot, or nil if none was ever loaded.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Err returns the error of the last load attempt, nil if it succeeded.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Registry returns the task registry used to validate snapshots.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Loader returns the underlying AssemblyLoader used by the engine.
func (e *Engine) Loader() ports.AssemblyLoader {
	return e.loader
}

// NewFlow creates a Flow bound to the current snapshot.
// The snapshot pointer is read exactly once.
func (e *Engine) NewFlow(opts ...runtime.FlowOption) (*Flow, error) {
	snap := e.snapshot.Load()
	if snap == nil {
		err := &domain.DefinitionError{Reason: "engine has no assembly", Err: domain.ErrNoSnapshot}
		if last := e.Err(); last != nil {
			return nil, fmt.Errorf("%w: %w", err, last)
		}
		return nil, err
	}
	base := []runtime.FlowOption{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
	}
	return runtime.NewFlow(snap, append(base, opts...)...)
}

// Handle runs the assembly as one stage of a host chain: next is called
// exactly once, with nil to advance or an error to abort. Errors detected
// before the run starts are delivered synchronously.
func (e *Engine) Handle(ctx context.Context, data *domain.Context, next func(error)) {
	if data == nil {
		next(errors.New("handle: context is nil"))
		return
	}
	f, err := e.NewFlow()
	if err != nil {
		e.logger.Info("routing request to error handler", "error", err)
		next(err)
		return
	}

	data.Set(domain.KeyMessage, map[string]any{}, false)

	if err := f.Prepare(data, next); err != nil {
		next(err)
		return
	}
	if err := f.Run(ctx); err != nil {
		next(err)
	}
}

// Execute runs the assembly against data and waits for the outcome, or for
// ctx to end.
func (e *Engine) Execute(ctx context.Context, data *domain.Context) error {
	done := make(chan error, 1)
	e.Handle(ctx, data, func(err error) {
		done <- err
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch reloads the assembly every time the loader signals a change.
// It blocks until ctx ends. Failed reloads are logged and keep the
// previous snapshot.
func (e *Engine) Watch(ctx context.Context) error {
	w, ok := e.loader.(ports.Watchable)
	if !ok {
		return ErrNotWatchable
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch assembly: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			e.logger.Info("assembly changed, reloading")
			_ = e.Reload(ctx)
		}
	}
}
