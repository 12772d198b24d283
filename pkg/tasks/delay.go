package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/registry"
)

type delayConfig struct {
	Duration time.Duration `mapstructure:"duration"`
}

type delay struct {
	duration time.Duration
}

func newDelay(config map[string]any) (registry.Handler, error) {
	var cfg delayConfig
	if err := registry.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Duration < 0 {
		return nil, fmt.Errorf("%s: negative duration %s", Delay, cfg.Duration)
	}
	return &delay{duration: cfg.Duration}, nil
}

// Handle completes asynchronously after the step (or static) duration.
func (d *delay) Handle(ctx context.Context, params map[string]any, _ *domain.Context, next registry.Continuation) {
	dur := d.duration
	if raw, ok := params["duration"]; ok {
		parsed, err := parseDuration(raw)
		if err != nil {
			next(err)
			return
		}
		dur = parsed
	}

	go func() {
		timer := time.NewTimer(dur)
		defer timer.Stop()
		select {
		case <-timer.C:
			next(nil)
		case <-ctx.Done():
			next(ctx.Err())
		}
	}()
}

// parseDuration accepts Go duration strings or a number of milliseconds.
func parseDuration(v any) (time.Duration, error) {
	var d time.Duration
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", Delay, err)
		}
		d = parsed
	case int:
		d = time.Duration(val) * time.Millisecond
	case int64:
		d = time.Duration(val) * time.Millisecond
	case float64:
		d = time.Duration(val * float64(time.Millisecond))
	case time.Duration:
		d = val
	default:
		return 0, fmt.Errorf("%s: unsupported duration %T", Delay, v)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", Delay, d)
	}
	return d, nil
}
