package tasks_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/registry"
	"github.com/aretw0/flow/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// call invokes a handler and waits for its continuation.
func call(t *testing.T, ctx context.Context, h registry.Handler, params map[string]any, data *domain.Context) error {
	t.Helper()
	done := make(chan error, 2)
	h.Handle(ctx, params, data, func(err error) { done <- err })
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("continuation not invoked")
		return nil
	}
}

func build(t *testing.T, name string, config map[string]any) registry.Handler {
	t.Helper()
	h, err := tasks.Catalog(slog.Default())[name].New(config)
	require.NoError(t, err)
	return h
}

func TestRegisterBuiltins(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, tasks.RegisterBuiltins(reg, nil))
	assert.Equal(t, []string{"delay", "json-extract", "log", "set-variable", "throw"}, reg.Names())

	// Registering twice is a definition error.
	var defErr *domain.DefinitionError
	assert.ErrorAs(t, tasks.RegisterBuiltins(reg, nil), &defErr)
}

func TestSetVariable(t *testing.T) {
	data := domain.NewContextFrom(map[string]any{"user": "bob"})

	h := build(t, tasks.SetVariable, nil)
	require.NoError(t, call(t, context.Background(), h, map[string]any{"name": "message.to", "value": "bob"}, data))
	v, _ := data.Get("message.to")
	assert.Equal(t, "bob", v)

	require.NoError(t, call(t, context.Background(), h, map[string]any{"name": "user", "value": "eve", "overwrite": false}, data))
	v, _ = data.Get("user")
	assert.Equal(t, "bob", v)

	keep := build(t, tasks.SetVariable, map[string]any{"overwrite": false})
	require.NoError(t, call(t, context.Background(), keep, map[string]any{"name": "user", "value": "eve"}, data))
	v, _ = data.Get("user")
	assert.Equal(t, "bob", v)

	assert.Error(t, call(t, context.Background(), h, map[string]any{"value": 1}, data))
	assert.Error(t, call(t, context.Background(), h, map[string]any{"name": 3}, data))

	_, err := tasks.Catalog(nil)[tasks.SetVariable].New(map[string]any{"bogus": 1})
	assert.Error(t, err)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h, err := tasks.Catalog(logger)[tasks.Log].New(map[string]any{"level": "warn", "message": "fallback"})
	require.NoError(t, err)

	require.NoError(t, call(t, context.Background(), h, map[string]any{"message": "hello", "user": "bob"}, domain.NewContext()))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "user=bob")

	buf.Reset()
	require.NoError(t, call(t, context.Background(), h, map[string]any{}, domain.NewContext()))
	assert.Contains(t, buf.String(), "msg=fallback")

	_, err = tasks.Catalog(logger)[tasks.Log].New(map[string]any{"level": "loud"})
	assert.Error(t, err)
}

func TestDelay(t *testing.T) {
	h := build(t, tasks.Delay, map[string]any{"duration": "5ms"})

	start := time.Now()
	require.NoError(t, call(t, context.Background(), h, map[string]any{}, domain.NewContext()))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

	require.NoError(t, call(t, context.Background(), h, map[string]any{"duration": 1}, domain.NewContext()))
	assert.Error(t, call(t, context.Background(), h, map[string]any{"duration": "soon"}, domain.NewContext()))
	assert.Error(t, call(t, context.Background(), h, map[string]any{"duration": "-1s"}, domain.NewContext()))

	ctx, cancel := context.WithCancel(context.Background())
	long := build(t, tasks.Delay, map[string]any{"duration": "1h"})
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	assert.ErrorIs(t, call(t, ctx, long, map[string]any{}, domain.NewContext()), context.Canceled)
}

func TestThrow(t *testing.T) {
	h := build(t, tasks.Throw, map[string]any{"code": "E42"})

	err := call(t, context.Background(), h, map[string]any{"message": "denied"}, domain.NewContext())
	var thrown *tasks.Error
	require.True(t, errors.As(err, &thrown))
	assert.Equal(t, "E42", thrown.Code)
	assert.EqualError(t, err, "E42: denied")

	err = call(t, context.Background(), build(t, tasks.Throw, nil), map[string]any{}, domain.NewContext())
	assert.EqualError(t, err, "flow aborted")
}

func TestJSONExtract(t *testing.T) {
	h := build(t, tasks.JSONExtract, nil)
	data := domain.NewContext()

	body := `{"user": {"name": "bob", "tags": ["a", "b"]}, "count": 3}`
	require.NoError(t, call(t, context.Background(), h, map[string]any{"source": body, "path": "user.name", "target": "name"}, data))
	require.NoError(t, call(t, context.Background(), h, map[string]any{"source": body, "path": "user.tags.#", "target": "tags"}, data))
	require.NoError(t, call(t, context.Background(), h, map[string]any{"source": body, "path": "count", "target": "message.count"}, data))

	name, _ := data.Get("name")
	tags, _ := data.Get("tags")
	count, _ := data.Get("message.count")
	assert.Equal(t, "bob", name)
	assert.Equal(t, float64(2), tags)
	assert.Equal(t, float64(3), count)

	// Structured sources are encoded before querying.
	src := map[string]any{"items": []any{map[string]any{"id": "x"}}}
	require.NoError(t, call(t, context.Background(), h, map[string]any{"source": src, "path": "items.0.id", "target": "first"}, data))
	first, _ := data.Get("first")
	assert.Equal(t, "x", first)

	require.NoError(t, call(t, context.Background(), h, map[string]any{"source": body, "path": "nope", "target": "d", "default": "none"}, data))
	d, _ := data.Get("d")
	assert.Equal(t, "none", d)

	strict := build(t, tasks.JSONExtract, map[string]any{"required": true})
	assert.Error(t, call(t, context.Background(), strict, map[string]any{"source": body, "path": "nope", "target": "d"}, data))
	assert.Error(t, call(t, context.Background(), h, map[string]any{"source": "{not json", "path": "a", "target": "d"}, data))
	assert.Error(t, call(t, context.Background(), h, map[string]any{"path": "a", "target": "d"}, data))
	assert.Error(t, call(t, context.Background(), h, map[string]any{"source": body, "target": "d"}, data))
}

func TestJSONExtract_ParamTypes(t *testing.T) {
	h := build(t, tasks.JSONExtract, nil)
	data := domain.NewContext()
	body := `{"a": 1}`

	err := call(t, context.Background(), h, map[string]any{"source": body, "path": 42, "target": "d"}, data)
	assert.ErrorContains(t, err, `param "path" must be a string, got int`)
	assert.NotContains(t, err.Error(), "missing")

	err = call(t, context.Background(), h, map[string]any{"source": body, "path": "a", "target": []any{"d"}}, data)
	assert.ErrorContains(t, err, `param "target" must be a string`)

	err = call(t, context.Background(), h, map[string]any{"source": body, "path": "a"}, data)
	assert.ErrorContains(t, err, `missing "target"`)
}
