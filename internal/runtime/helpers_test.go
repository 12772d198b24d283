package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/flow/internal/runtime"
	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/registry"
	"github.com/stretchr/testify/require"
)

// recorder collects what the test tasks observed.
type recorder struct {
	mu     sync.Mutex
	order  []string
	params []map[string]any
}

func (r *recorder) add(id string, params map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, id)
	r.params = append(r.params, params)
}

func (r *recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func (r *recorder) Params() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.params...)
}

func idOf(params map[string]any) string {
	return fmt.Sprint(params["id"])
}

// newTestRegistry wires the tasks used across the runtime tests.
func newTestRegistry(t *testing.T, rec *recorder) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry()

	tasks := map[string]registry.HandlerFunc{
		"record": func(_ context.Context, params map[string]any, _ *domain.Context, next registry.Continuation) {
			rec.add(idOf(params), params)
			next(nil)
		},
		"async": func(_ context.Context, params map[string]any, _ *domain.Context, next registry.Continuation) {
			go func() {
				time.Sleep(time.Millisecond)
				rec.add(idOf(params), params)
				next(nil)
			}()
		},
		"fail": func(_ context.Context, params map[string]any, _ *domain.Context, next registry.Continuation) {
			rec.add(idOf(params), params)
			next(errors.New("boom"))
		},
		"set": func(_ context.Context, params map[string]any, data *domain.Context, next registry.Continuation) {
			rec.add(idOf(params), params)
			data.Set(params["path"].(string), params["value"], true)
			next(nil)
		},
		"double": func(_ context.Context, params map[string]any, _ *domain.Context, next registry.Continuation) {
			rec.add(idOf(params), params)
			next(nil)
			next(nil)
		},
		"panic": func(_ context.Context, params map[string]any, _ *domain.Context, _ registry.Continuation) {
			rec.add(idOf(params), params)
			panic("kaboom")
		},
		"late-panic": func(_ context.Context, params map[string]any, _ *domain.Context, next registry.Continuation) {
			rec.add(idOf(params), params)
			next(nil)
			panic("after next")
		},
		"async-fail": func(_ context.Context, params map[string]any, _ *domain.Context, next registry.Continuation) {
			go func() {
				time.Sleep(20 * time.Millisecond)
				rec.add(idOf(params), params)
				next(errors.New("late boom"))
			}()
		},
		"wait": func(ctx context.Context, params map[string]any, _ *domain.Context, next registry.Continuation) {
			go func() {
				<-ctx.Done()
				rec.add(idOf(params), params)
				next(ctx.Err())
			}()
		},
	}
	for name, h := range tasks {
		require.NoError(t, reg.RegisterHandler(name, h))
	}
	return reg
}

func step(task, id string, extra ...any) domain.Node {
	params := map[string]any{"id": id}
	for i := 0; i+1 < len(extra); i += 2 {
		params[extra[i].(string)] = extra[i+1]
	}
	return domain.Node{Kind: domain.KindStep, Type: task, Params: params}
}

func compile(t *testing.T, reg *registry.Registry, nodes ...domain.Node) *runtime.Snapshot {
	t.Helper()
	snap, err := runtime.Compile(domain.NewAssembly("test", nodes), reg)
	require.NoError(t, err)
	return snap
}

// completion counts every invocation of a flow's completion callback.
type completion struct {
	mu    sync.Mutex
	calls []error
	ch    chan error
}

func newCompletion() *completion {
	return &completion{ch: make(chan error, 16)}
}

func (c *completion) Done(err error) {
	c.mu.Lock()
	c.calls = append(c.calls, err)
	c.mu.Unlock()
	c.ch <- err
}

func (c *completion) Calls() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.calls...)
}

func (c *completion) Wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-c.ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("flow did not complete")
		return nil
	}
}

func start(t *testing.T, snap *runtime.Snapshot, data *domain.Context, opts ...runtime.FlowOption) (*runtime.Flow, *completion) {
	t.Helper()
	f, err := runtime.NewFlow(snap, opts...)
	require.NoError(t, err)
	c := newCompletion()
	require.NoError(t, f.Prepare(data, c.Done))
	require.NoError(t, f.Run(context.Background()))
	return f, c
}
