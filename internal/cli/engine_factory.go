package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/flow"
	"github.com/aretw0/flow/internal/compiler"
	"github.com/aretw0/flow/internal/config"
	"github.com/aretw0/flow/internal/logging"
	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/ports"
)

// Options are the global CLI flags.
type Options struct {
	ConfigPath string
	Assembly   string
	LogLevel   string
	LogFormat  string
}

// LoadConfig reads the config file when it exists and applies flag overrides.
// A missing file is only an error when the path was given explicitly.
func LoadConfig(opts Options, explicit bool) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		_, statErr := os.Stat(opts.ConfigPath)
		if statErr == nil || explicit {
			loaded, err := config.Load(opts.ConfigPath)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}

	if opts.Assembly != "" {
		cfg.Source = config.SourceFile
		cfg.Assembly = opts.Assembly
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}
	return cfg, cfg.Validate()
}

// NewLogger builds the logger described by cfg.
func NewLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return logging.New(level, format), nil
}

// NewEngine wires the configured loader and task registry into an Engine.
// The returned close function releases the loader.
func NewEngine(cfg *config.Config, logger *slog.Logger, hooks ...domain.LifecycleHooks) (*flow.Engine, func(), error) {
	reg, err := cfg.BuildRegistry(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("error building task registry: %w", err)
	}

	loader, err := cfg.OpenLoader(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening assembly source: %w", err)
	}
	closeLoader := closer(loader, logger)

	engine, err := flow.New(loader, reg,
		flow.WithLogger(logger),
		flow.WithLifecycleHooks(domain.ChainHooks(hooks...)),
	)
	if err != nil {
		closeLoader()
		return nil, nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, closeLoader, nil
}

// LoadAssembly fetches and parses the configured assembly without
// compiling it against a registry.
func LoadAssembly(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*domain.Assembly, error) {
	loader, err := cfg.OpenLoader(logger)
	if err != nil {
		return nil, err
	}
	defer closer(loader, logger)()

	data, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	return compiler.NewParser().Parse(data)
}

func closer(loader ports.AssemblyLoader, logger *slog.Logger) func() {
	return func() {
		c, ok := loader.(io.Closer)
		if !ok {
			return
		}
		if err := c.Close(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("failed to close assembly source", "error", err)
		}
	}
}
