package tasks

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/flow/pkg/registry"
)

// Built-in task names.
const (
	SetVariable = "set-variable"
	Log         = "log"
	Delay       = "delay"
	Throw       = "throw"
	JSONExtract = "json-extract"
)

// Catalog returns the factories of every built-in task, keyed by name.
// The logger is used by the log task; nil falls back to slog.Default().
func Catalog(logger *slog.Logger) map[string]registry.Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return map[string]registry.Factory{
		SetVariable: registry.FactoryFunc(newSetVariable),
		Log:         logFactory{logger: logger},
		Delay:       registry.FactoryFunc(newDelay),
		Throw:       registry.FactoryFunc(newThrow),
		JSONExtract: registry.FactoryFunc(newJSONExtract),
	}
}

// RegisterBuiltins registers every built-in task under its own name with an
// empty static configuration.
func RegisterBuiltins(reg *registry.Registry, logger *slog.Logger) error {
	for name, factory := range Catalog(logger) {
		if err := reg.Register(name, factory, nil); err != nil {
			return err
		}
	}
	return nil
}

func stringParam(params map[string]any, key string) (string, bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", true, fmt.Errorf("param %q must be a string, got %T", key, v)
	}
	return s, true, nil
}
