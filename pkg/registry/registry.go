package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Continuation is the one-shot callback a handler invokes when its work is
// done: nil for success, an error for failure.
type Continuation func(err error)

// Handler is a configured task, invoked once per step execution.
// It must call next exactly once, from any goroutine.
//
// The "title" key of a step names the node and is never passed in params,
// so tasks must not define a parameter with that name.
type Handler interface {
	Handle(ctx context.Context, params map[string]any, data *domain.Context, next Continuation)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, params map[string]any, data *domain.Context, next Continuation)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, params map[string]any, data *domain.Context, next Continuation) {
	f(ctx, params, data, next)
}

// Factory builds a Handler from static configuration (configure once, invoke many).
type Factory interface {
	New(config map[string]any) (Handler, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(config map[string]any) (Handler, error)

// New calls f.
func (f FactoryFunc) New(config map[string]any) (Handler, error) {
	return f(config)
}

// Registry maps task names to configured handlers.
// It is populated at startup and read concurrently by running flows.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Handler
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]Handler),
	}
}

// Register configures a task through its factory and stores the handler.
// Misconfiguration is reported immediately as a *domain.DefinitionError.
func (r *Registry) Register(name string, factory Factory, config map[string]any) error {
	if f, ok := factory.(FactoryFunc); factory == nil || (ok && f == nil) {
		return &domain.DefinitionError{Path: name, Reason: "task factory is nil"}
	}
	if config == nil {
		config = map[string]any{}
	}
	handler, err := factory.New(config)
	if err != nil {
		return &domain.DefinitionError{Path: name, Reason: "task factory failed", Err: err}
	}
	return r.RegisterHandler(name, handler)
}

// RegisterHandler stores an already configured handler.
func (r *Registry) RegisterHandler(name string, handler Handler) error {
	if name == "" {
		return &domain.DefinitionError{Reason: "task name is empty"}
	}
	if handler == nil || isNilFunc(handler) {
		return &domain.DefinitionError{Path: name, Reason: "task handler is not invocable"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[name]; exists {
		return &domain.DefinitionError{Path: name, Reason: "task already registered"}
	}
	r.tasks[name] = handler
	return nil
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, error) {
	r.mu.RLock()
	h, ok := r.tasks[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &domain.DefinitionError{
			Path:   name,
			Reason: fmt.Sprintf("unknown task type %q", name),
			Err:    domain.ErrTaskNotFound,
		}
	}
	return h, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tasks[name]
	return ok
}

// Names returns the registered task names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeConfig decodes a static configuration map into a typed struct using
// "mapstructure" tags. Unknown keys are rejected.
func DecodeConfig(config map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(config); err != nil {
		return fmt.Errorf("invalid task config: %w", err)
	}
	return nil
}

func isNilFunc(h Handler) bool {
	f, ok := h.(HandlerFunc)
	return ok && f == nil
}
