package registry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() registry.Handler {
	return registry.HandlerFunc(func(_ context.Context, _ map[string]any, _ *domain.Context, next registry.Continuation) {
		next(nil)
	})
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := registry.NewRegistry()

	var gotConfig map[string]any
	err := reg.Register("greet", registry.FactoryFunc(func(cfg map[string]any) (registry.Handler, error) {
		gotConfig = cfg
		return okHandler(), nil
	}), map[string]any{"prefix": "hi"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"prefix": "hi"}, gotConfig)

	h, err := reg.Lookup("greet")
	require.NoError(t, err)

	called := false
	h.Handle(context.Background(), nil, domain.NewContext(), func(err error) {
		called = true
		assert.NoError(t, err)
	})
	assert.True(t, called)
	assert.True(t, reg.Has("greet"))
	assert.Equal(t, []string{"greet"}, reg.Names())
}

func TestRegistry_NilConfigBecomesEmpty(t *testing.T) {
	reg := registry.NewRegistry()
	err := reg.Register("t", registry.FactoryFunc(func(cfg map[string]any) (registry.Handler, error) {
		assert.NotNil(t, cfg)
		return okHandler(), nil
	}), nil)
	require.NoError(t, err)
}

func TestRegistry_RejectsMisconfiguration(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		setup   func(r *registry.Registry) error
		wantErr error
	}{
		{
			name: "nil factory",
			setup: func(r *registry.Registry) error {
				return r.Register("t", nil, nil)
			},
		},
		{
			name: "nil factory func",
			setup: func(r *registry.Registry) error {
				var f registry.FactoryFunc
				return r.Register("t", f, nil)
			},
		},
		{
			name: "factory error",
			setup: func(r *registry.Registry) error {
				return r.Register("t", registry.FactoryFunc(func(map[string]any) (registry.Handler, error) {
					return nil, boom
				}), nil)
			},
			wantErr: boom,
		},
		{
			name: "factory returns nil handler",
			setup: func(r *registry.Registry) error {
				return r.Register("t", registry.FactoryFunc(func(map[string]any) (registry.Handler, error) {
					return nil, nil
				}), nil)
			},
		},
		{
			name: "nil handler func",
			setup: func(r *registry.Registry) error {
				var h registry.HandlerFunc
				return r.RegisterHandler("t", h)
			},
		},
		{
			name: "empty name",
			setup: func(r *registry.Registry) error {
				return r.RegisterHandler("", okHandler())
			},
		},
		{
			name: "duplicate",
			setup: func(r *registry.Registry) error {
				if err := r.RegisterHandler("t", okHandler()); err != nil {
					return err
				}
				return r.RegisterHandler("t", okHandler())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.setup(registry.NewRegistry())
			require.Error(t, err)

			var defErr *domain.DefinitionError
			assert.ErrorAs(t, err, &defErr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_LookupNotFound(t *testing.T) {
	reg := registry.NewRegistry()
	_, err := reg.Lookup("missing")

	var defErr *domain.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.Equal(t, "missing", defErr.Path)
}

func TestDecodeConfig(t *testing.T) {
	type cfg struct {
		Level   string        `mapstructure:"level"`
		Retries int           `mapstructure:"retries"`
		Wait    time.Duration `mapstructure:"wait"`
	}

	var c cfg
	err := registry.DecodeConfig(map[string]any{"level": "info", "retries": "3", "wait": "250ms"}, &c)
	require.NoError(t, err)
	assert.Equal(t, cfg{Level: "info", Retries: 3, Wait: 250 * time.Millisecond}, c)

	err = registry.DecodeConfig(map[string]any{"unknown": true}, &c)
	assert.Error(t, err)
}
