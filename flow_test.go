package flow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/flow"
	"github.com/aretw0/flow/pkg/adapters/memory"
	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/registry"
	"github.com/aretw0/flow/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const v1 = `
version: "1"
assembly:
  execute:
    - mark: {id: v1-a}
    - gate
    - mark: {id: v1-b}
`

const v2 = `
version: "2"
assembly:
  execute:
    - mark: {id: v2-a}
    - mark: {id: v2-b}
`

// marks collects the ids seen by the "mark" task, per run.
type marks struct {
	mu  sync.Mutex
	ids map[*domain.Context][]string
}

func newRegistry(t *testing.T, m *marks, gate <-chan struct{}) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry()
	require.NoError(t, tasks.RegisterBuiltins(reg, nil))
	require.NoError(t, reg.RegisterHandler("mark", registry.HandlerFunc(
		func(_ context.Context, params map[string]any, data *domain.Context, next registry.Continuation) {
			m.mu.Lock()
			m.ids[data] = append(m.ids[data], params["id"].(string))
			m.mu.Unlock()
			next(nil)
		})))
	require.NoError(t, reg.RegisterHandler("gate", registry.HandlerFunc(
		func(ctx context.Context, _ map[string]any, _ *domain.Context, next registry.Continuation) {
			go func() {
				select {
				case <-gate:
					next(nil)
				case <-ctx.Done():
					next(ctx.Err())
				}
			}()
		})))
	return reg
}

func (m *marks) of(data *domain.Context) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids[data]
}

func TestEngine_Execute(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, tasks.RegisterBuiltins(reg, nil))

	loader := memory.NewLoader(`
assembly:
  execute:
    - set-variable: {name: message.greeting, value: "hello {{message.user}}"}
    - switch:
        case:
          - condition: 'message.user == "bob"'
            execute:
              - set-variable: {name: message.vip, value: true}
`)
	eng, err := flow.New(loader, reg)
	require.NoError(t, err)

	data := domain.NewContextFrom(map[string]any{"message": map[string]any{"user": "bob"}})
	require.NoError(t, eng.Execute(context.Background(), data))

	greeting, _ := data.Get("message.greeting")
	vip, _ := data.Get("message.vip")
	assert.Equal(t, "hello bob", greeting)
	assert.Equal(t, true, vip)
}

func TestEngine_HandleInitializesMessage(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, tasks.RegisterBuiltins(reg, nil))

	eng, err := flow.New(memory.NewLoader("assembly:\n  execute:\n    - set-variable: {name: message.ok, value: 1}\n"), reg)
	require.NoError(t, err)

	data := domain.NewContext()
	require.NoError(t, eng.Execute(context.Background(), data))
	assert.Equal(t, map[string]any{"ok": 1}, data.Message())

	// An existing message is kept.
	data = domain.NewContextFrom(map[string]any{"message": map[string]any{"user": "bob"}})
	require.NoError(t, eng.Execute(context.Background(), data))
	assert.Equal(t, map[string]any{"user": "bob", "ok": 1}, data.Message())
}

func TestEngine_ReloadIsolatesRunningFlows(t *testing.T) {
	m := &marks{ids: make(map[*domain.Context][]string)}
	gate := make(chan struct{})
	loader := memory.NewLoader(v1)

	eng, err := flow.New(loader, newRegistry(t, m, gate))
	require.NoError(t, err)
	assert.Equal(t, "1", eng.Snapshot().Version())

	// Started before the reload, parked on the gate.
	before := domain.NewContext()
	beforeDone := make(chan error, 1)
	eng.Handle(context.Background(), before, func(err error) { beforeDone <- err })
	assert.Equal(t, []string{"v1-a"}, m.of(before))

	loader.Update([]byte(v2))
	require.NoError(t, eng.Reload(context.Background()))
	assert.Equal(t, "2", eng.Snapshot().Version())

	after := domain.NewContext()
	require.NoError(t, eng.Execute(context.Background(), after))
	assert.Equal(t, []string{"v2-a", "v2-b"}, m.of(after))

	close(gate)
	select {
	case err := <-beforeDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("flow started before reload did not finish")
	}
	assert.Equal(t, []string{"v1-a", "v1-b"}, m.of(before))
}

func TestEngine_FailedReloadKeepsSnapshot(t *testing.T) {
	m := &marks{ids: make(map[*domain.Context][]string)}
	loader := memory.NewLoader(v2)
	eng, err := flow.New(loader, newRegistry(t, m, nil))
	require.NoError(t, err)

	loader.Update([]byte("assembly:\n  execute:\n    - unknown-task\n"))
	err = eng.Reload(context.Background())
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.ErrorIs(t, eng.Err(), domain.ErrTaskNotFound)

	data := domain.NewContext()
	require.NoError(t, eng.Execute(context.Background(), data))
	assert.Equal(t, []string{"v2-a", "v2-b"}, m.of(data))

	loader.Update([]byte(v2))
	require.NoError(t, eng.Reload(context.Background()))
	assert.NoError(t, eng.Err())
}

func TestEngine_InitialLoadFailureIsSticky(t *testing.T) {
	m := &marks{ids: make(map[*domain.Context][]string)}
	loader := memory.NewLoader("assembly:\n  execute:\n    - mark: {id: x}\n    - not-registered\n")

	eng, err := flow.New(loader, newRegistry(t, m, nil))
	require.Error(t, err)
	require.NotNil(t, eng)

	var defErr *domain.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.Nil(t, eng.Snapshot())

	// Every request goes to the error path synchronously, nothing is dispatched.
	data := domain.NewContext()
	var got error
	calls := 0
	eng.Handle(context.Background(), data, func(err error) {
		calls++
		got = err
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, got, domain.ErrNoSnapshot)
	assert.ErrorIs(t, got, domain.ErrTaskNotFound)
	assert.Empty(t, m.of(data))

	loader.Update([]byte(v2))
	require.NoError(t, eng.Reload(context.Background()))
	require.NoError(t, eng.Execute(context.Background(), data))
	assert.Equal(t, []string{"v2-a", "v2-b"}, m.of(data))
}

func TestEngine_Watch(t *testing.T) {
	m := &marks{ids: make(map[*domain.Context][]string)}
	loader := memory.NewLoader(v2)
	eng, err := flow.New(loader, newRegistry(t, m, nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	watchDone := make(chan error, 1)
	go func() { watchDone <- eng.Watch(ctx) }()

	// Give the watcher time to subscribe before changing the document.
	require.Eventually(t, func() bool {
		loader.Update([]byte("version: \"3\"\nassembly:\n  execute: []\n"))
		return eng.Snapshot().Version() == "3"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-watchDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestEngine_WatchUnsupported(t *testing.T) {
	reg := registry.NewRegistry()
	eng, err := flow.New(staticLoader("assembly:\n  execute: []\n"), reg)
	require.NoError(t, err)
	assert.ErrorIs(t, eng.Watch(context.Background()), flow.ErrNotWatchable)
}

func TestEngine_ExecuteHonorsContext(t *testing.T) {
	m := &marks{ids: make(map[*domain.Context][]string)}
	eng, err := flow.New(memory.NewLoader(v1), newRegistry(t, m, make(chan struct{})))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = eng.Execute(ctx, domain.NewContext())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_NewFlowReadsCurrentSnapshot(t *testing.T) {
	m := &marks{ids: make(map[*domain.Context][]string)}
	loader := memory.NewLoader(v2)
	eng, err := flow.New(loader, newRegistry(t, m, nil))
	require.NoError(t, err)

	f, err := eng.NewFlow()
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNone, f.Status())
	assert.NotEmpty(t, f.RunID())
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := flow.New(nil, registry.NewRegistry())
	assert.Error(t, err)
	_, err = flow.New(memory.NewLoader(v2), nil)
	assert.Error(t, err)
}

type staticLoader string

func (s staticLoader) Load(context.Context) ([]byte, error) {
	return []byte(s), nil
}
