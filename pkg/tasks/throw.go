package tasks

import (
	"context"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/registry"
)

// Error is the failure produced by the throw task.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

type throwConfig struct {
	Code    string `mapstructure:"code"`
	Message string `mapstructure:"message"`
}

type throw struct {
	cfg throwConfig
}

func newThrow(config map[string]any) (registry.Handler, error) {
	cfg := throwConfig{Message: "flow aborted"}
	if err := registry.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return &throw{cfg: cfg}, nil
}

// Handle always fails the step.
func (t *throw) Handle(_ context.Context, params map[string]any, _ *domain.Context, next registry.Continuation) {
	e := &Error{Code: t.cfg.Code, Message: t.cfg.Message}
	if msg, ok, _ := stringParam(params, "message"); ok && msg != "" {
		e.Message = msg
	}
	if code, ok, _ := stringParam(params, "code"); ok && code != "" {
		e.Code = code
	}
	next(e)
}
