package tasks

import (
	"context"
	"fmt"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/registry"
)

type setVariableConfig struct {
	// Overwrite existing values. Defaults to true.
	Overwrite *bool `mapstructure:"overwrite"`
}

type setVariable struct {
	overwrite bool
}

func newSetVariable(config map[string]any) (registry.Handler, error) {
	var cfg setVariableConfig
	if err := registry.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	h := &setVariable{overwrite: true}
	if cfg.Overwrite != nil {
		h.overwrite = *cfg.Overwrite
	}
	return h, nil
}

// Handle writes params["value"] at the path params["name"].
// A per-step "overwrite" param overrides the static setting.
func (h *setVariable) Handle(_ context.Context, params map[string]any, data *domain.Context, next registry.Continuation) {
	name, ok, err := stringParam(params, "name")
	if err != nil {
		next(err)
		return
	}
	if !ok || name == "" {
		next(fmt.Errorf("%s: missing \"name\"", SetVariable))
		return
	}

	overwrite := h.overwrite
	if v, ok := params["overwrite"].(bool); ok {
		overwrite = v
	}
	data.Set(name, params["value"], overwrite)
	next(nil)
}
