package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/registry"
)

type logConfig struct {
	Level   string `mapstructure:"level"`
	Message string `mapstructure:"message"`
}

type logFactory struct {
	logger *slog.Logger
}

func (f logFactory) New(config map[string]any) (registry.Handler, error) {
	var cfg logConfig
	if err := registry.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return &logTask{logger: f.logger, level: level, message: cfg.Message}, nil
}

type logTask struct {
	logger  *slog.Logger
	level   slog.Level
	message string
}

// Handle logs params["message"] (or the configured message). Every other
// param is attached as an attribute.
func (t *logTask) Handle(ctx context.Context, params map[string]any, _ *domain.Context, next registry.Continuation) {
	msg, _, err := stringParam(params, "message")
	if err != nil {
		next(err)
		return
	}
	if msg == "" {
		msg = t.message
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "message" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	attrs := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		attrs = append(attrs, k, params[k])
	}

	t.logger.Log(ctx, t.level, msg, attrs...)
	next(nil)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%s: unknown level %q", Log, s)
	}
}
