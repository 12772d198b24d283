package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/registry"
	"github.com/tidwall/gjson"
)

type jsonExtractConfig struct {
	// Required makes a missing path a step failure instead of storing the default.
	Required bool `mapstructure:"required"`
}

type jsonExtract struct {
	required bool
}

func newJSONExtract(config map[string]any) (registry.Handler, error) {
	var cfg jsonExtractConfig
	if err := registry.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return &jsonExtract{required: cfg.Required}, nil
}

// Handle evaluates params["path"] (gjson syntax) over params["source"] and
// stores the result at params["target"]. A string source is read as JSON
// text; any other value is encoded first.
func (j *jsonExtract) Handle(_ context.Context, params map[string]any, data *domain.Context, next registry.Continuation) {
	path, ok, err := stringParam(params, "path")
	if err != nil {
		next(fmt.Errorf("%s: %w", JSONExtract, err))
		return
	}
	if !ok {
		next(fmt.Errorf("%s: missing \"path\"", JSONExtract))
		return
	}
	target, ok, err := stringParam(params, "target")
	if err != nil {
		next(fmt.Errorf("%s: %w", JSONExtract, err))
		return
	}
	if !ok || target == "" {
		next(fmt.Errorf("%s: missing \"target\"", JSONExtract))
		return
	}

	var doc string
	switch src := params["source"].(type) {
	case nil:
		next(fmt.Errorf("%s: missing \"source\"", JSONExtract))
		return
	case string:
		doc = src
	case []byte:
		doc = string(src)
	default:
		b, err := json.Marshal(src)
		if err != nil {
			next(fmt.Errorf("%s: encode source: %w", JSONExtract, err))
			return
		}
		doc = string(b)
	}
	if !gjson.Valid(doc) {
		next(fmt.Errorf("%s: source is not valid JSON", JSONExtract))
		return
	}

	result := gjson.Get(doc, path)
	if !result.Exists() {
		if j.required {
			next(fmt.Errorf("%s: path %q not found", JSONExtract, path))
			return
		}
		data.Set(target, params["default"], true)
		next(nil)
		return
	}
	data.Set(target, result.Value(), true)
	next(nil)
}
