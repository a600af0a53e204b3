// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package config loads atom registry settings from files, the environment
// and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/open-policy-agent/atom/v1/atom"
	"github.com/open-policy-agent/atom/v1/logging"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "ATOM"

// Config is the top-level configuration.
type Config struct {
	Registry Registry `mapstructure:"registry"`
	Log      Log      `mapstructure:"log"`
	Bench    Bench    `mapstructure:"bench"`
}

// Registry configures how registries are built.
type Registry struct {
	HashedKeys bool `mapstructure:"hashed_keys"`
	AutoPrune  bool `mapstructure:"auto_prune"`
	Retain     int  `mapstructure:"retain"`
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Bench configures the bench command.
type Bench struct {
	Workers    int `mapstructure:"workers"`
	Iterations int `mapstructure:"iterations"`
	Keys       int `mapstructure:"keys"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Bench: Bench{
			Workers:    8,
			Iterations: 100000,
			Keys:       1024,
		},
	}
}

// SetDefaults registers the defaults with v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("registry.hashed_keys", d.Registry.HashedKeys)
	v.SetDefault("registry.auto_prune", d.Registry.AutoPrune)
	v.SetDefault("registry.retain", d.Registry.Retain)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("bench.workers", d.Bench.Workers)
	v.SetDefault("bench.iterations", d.Bench.Iterations)
	v.SetDefault("bench.keys", d.Bench.Keys)
}

// Load reads configuration into a Config. Values come, in increasing order
// of precedence, from the defaults, the YAML file at path (if not empty),
// ATOM_* environment variables and flags bound with BindFlags.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %v: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, c.Validate()
}

// BindFlags binds flags to configuration keys. The map is keyed by flag
// name; flags missing from fs are ignored.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks c for values that cannot be used.
func (c Config) Validate() error {
	var errs []error
	if c.Registry.Retain < 0 {
		errs = append(errs, fmt.Errorf("registry.retain must not be negative, got %d", c.Registry.Retain))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Bench.Workers < 1 {
		errs = append(errs, fmt.Errorf("bench.workers must be positive, got %d", c.Bench.Workers))
	}
	if c.Bench.Keys < 1 {
		errs = append(errs, fmt.Errorf("bench.keys must be positive, got %d", c.Bench.Keys))
	}
	if c.Bench.Iterations < 0 {
		errs = append(errs, fmt.Errorf("bench.iterations must not be negative, got %d", c.Bench.Iterations))
	}
	return errors.Join(errs...)
}

// RegistryOptions converts the registry section into registry options.
// observer may be nil.
func (c Config) RegistryOptions(logger logging.Logger, observer atom.Observer) []atom.Option {
	opts := []atom.Option{atom.WithLogger(logger)}
	if c.Registry.HashedKeys {
		opts = append(opts, atom.WithHashedKeys())
	}
	if c.Registry.AutoPrune {
		opts = append(opts, atom.WithAutoPrune())
	}
	if c.Registry.Retain > 0 {
		opts = append(opts, atom.WithRetain(c.Registry.Retain))
	}
	if observer != nil {
		opts = append(opts, atom.WithObserver(observer))
	}
	return opts
}
