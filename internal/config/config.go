// Package config loads the host configuration used by the flow CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/flow/pkg/adapters/file"
	"github.com/aretw0/flow/pkg/adapters/loam"
	"github.com/aretw0/flow/pkg/adapters/redis"
	"github.com/aretw0/flow/pkg/ports"
	"github.com/aretw0/flow/pkg/registry"
	"github.com/aretw0/flow/pkg/tasks"
	"gopkg.in/yaml.v3"
)

// Assembly sources.
const (
	SourceFile  = "file"
	SourceRedis = "redis"
	SourceLoam  = "loam"
)

// DefaultListen is the serve address used when none is configured.
const DefaultListen = ":8080"

// Config is the structure of flow.yaml.
type Config struct {
	Source    string       `yaml:"source" json:"source"`
	Assembly  string       `yaml:"assembly" json:"assembly"`
	Redis     RedisConfig  `yaml:"redis" json:"redis"`
	Loam      LoamConfig   `yaml:"loam" json:"loam"`
	Listen    string       `yaml:"listen" json:"listen"`
	LogLevel  string       `yaml:"log_level" json:"log_level"`
	LogFormat string       `yaml:"log_format" json:"log_format"`
	Tasks     []TaskConfig `yaml:"tasks" json:"tasks"`

	// baseDir anchors relative paths; it is the directory of the config file.
	baseDir string
}

// RedisConfig selects the key and change channel of the redis source.
type RedisConfig struct {
	Addr    string `yaml:"addr" json:"addr"`
	Key     string `yaml:"key" json:"key"`
	Channel string `yaml:"channel" json:"channel"`
}

// LoamConfig selects the repository and document of the loam source.
type LoamConfig struct {
	Dir string `yaml:"dir" json:"dir"`
	ID  string `yaml:"id" json:"id"`
}

// TaskConfig registers a built-in task under a new name with static config.
type TaskConfig struct {
	Name   string         `yaml:"name" json:"name"`
	Uses   string         `yaml:"uses" json:"uses"`
	Config map[string]any `yaml:"config" json:"config"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Source:   SourceFile,
		Assembly: "assembly.yaml",
		Listen:   DefaultListen,
		LogLevel: "info",
	}
}

// Load reads a configuration file (YAML or JSON), applies defaults and
// validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.baseDir = filepath.Dir(abs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the source settings and task entries.
func (c *Config) Validate() error {
	var errs []error
	switch c.Source {
	case SourceFile:
		if c.Assembly == "" {
			errs = append(errs, errors.New("assembly path is required for the file source"))
		}
	case SourceRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis source"))
		}
	case SourceLoam:
		if c.Loam.Dir == "" || c.Loam.ID == "" {
			errs = append(errs, errors.New("loam.dir and loam.id are required for the loam source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}

	seen := make(map[string]bool)
	for i, t := range c.Tasks {
		switch {
		case t.Name == "":
			errs = append(errs, fmt.Errorf("tasks[%d]: name is required", i))
		case t.Uses == "":
			errs = append(errs, fmt.Errorf("tasks[%d] %s: uses is required", i, t.Name))
		case seen[t.Name]:
			errs = append(errs, fmt.Errorf("tasks[%d]: duplicate task %q", i, t.Name))
		}
		seen[t.Name] = true
	}
	return errors.Join(errs...)
}

// AssemblyPath returns the assembly path resolved against the config dir.
func (c *Config) AssemblyPath() string {
	return c.resolve(c.Assembly)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.baseDir == "" {
		return p
	}
	return filepath.Join(c.baseDir, p)
}

// BuildRegistry registers the configured tasks, then every built-in whose
// name is still free.
func (c *Config) BuildRegistry(logger *slog.Logger) (*registry.Registry, error) {
	catalog := tasks.Catalog(logger)
	reg := registry.NewRegistry()

	for _, t := range c.Tasks {
		factory, ok := catalog[t.Uses]
		if !ok {
			return nil, fmt.Errorf("task %s: unknown built-in %q", t.Name, t.Uses)
		}
		if err := reg.Register(t.Name, factory, t.Config); err != nil {
			return nil, err
		}
	}
	for name, factory := range catalog {
		if reg.Has(name) {
			continue
		}
		if err := reg.Register(name, factory, nil); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// NewLoader connects a redis loader with the configured key and channel.
func (r RedisConfig) NewLoader() *redis.Loader {
	var opts []redis.Option
	if r.Key != "" {
		opts = append(opts, redis.WithKey(r.Key))
	}
	if r.Channel != "" {
		opts = append(opts, redis.WithChannel(r.Channel))
	}
	return redis.New(r.Addr, opts...)
}

// OpenLoader builds the assembly loader of the configured source.
// Loaders that hold connections also implement io.Closer.
func (c *Config) OpenLoader(logger *slog.Logger) (ports.AssemblyLoader, error) {
	switch c.Source {
	case SourceRedis:
		return c.Redis.NewLoader(), nil
	case SourceLoam:
		return loam.Open(c.resolve(c.Loam.Dir), c.Loam.ID)
	case SourceFile:
		return file.New(c.AssemblyPath(), file.WithLogger(logger))
	}
	return nil, fmt.Errorf("unknown source %q", c.Source)
}
