// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/open-policy-agent/atom/v1/atom"
	"github.com/open-policy-agent/atom/v1/logging"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(viper.New(), "")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Defaults(), c); diff != "" {
		t.Fatalf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
registry:
  hashed_keys: true
  retain: 16
log:
  level: debug
bench:
  workers: 2
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ATOM_BENCH_WORKERS", "3")
	t.Setenv("ATOM_LOG_FORMAT", "json")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("workers", 0, "")
	fs.Bool("auto-prune", false, "")
	if err := fs.Parse([]string{"--workers=4", "--auto-prune"}); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	err := BindFlags(v, fs, map[string]string{
		"workers":    "bench.workers",
		"auto-prune": "registry.auto_prune",
		"missing":    "bench.keys",
	})
	if err != nil {
		t.Fatal(err)
	}

	c, err := Load(v, path)
	if err != nil {
		t.Fatal(err)
	}

	want := Config{
		Registry: Registry{HashedKeys: true, AutoPrune: true, Retain: 16},
		Log:      Log{Level: "debug", Format: "json"},
		Bench:    Bench{Workers: 4, Iterations: 100000, Keys: 1024},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		note    string
		mutate  func(*Config)
		wantErr string
	}{
		{note: "defaults", mutate: func(*Config) {}},
		{note: "negative retain", mutate: func(c *Config) { c.Registry.Retain = -1 }, wantErr: "registry.retain"},
		{note: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{note: "bad format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{note: "no workers", mutate: func(c *Config) { c.Bench.Workers = 0 }, wantErr: "bench.workers"},
		{note: "no keys", mutate: func(c *Config) { c.Bench.Keys = 0 }, wantErr: "bench.keys"},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			c := Defaults()
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatal(err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

type nopObserver struct{}

func (nopObserver) Hit()            {}
func (nopObserver) Miss(bool)       {}
func (nopObserver) Unregister(bool) {}
func (nopObserver) Prune(int)       {}

func TestRegistryOptions(t *testing.T) {
	c := Defaults()
	if n := len(c.RegistryOptions(logging.NewNoOpLogger(), nil)); n != 1 {
		t.Fatalf("expected only the logger option, got %d options", n)
	}

	c.Registry = Registry{HashedKeys: true, AutoPrune: true, Retain: 2}
	opts := c.RegistryOptions(logging.NewNoOpLogger(), nopObserver{})
	if len(opts) != 5 {
		t.Fatalf("expected 5 options, got %d", len(opts))
	}

	r := atom.NewRegistry(opts...)
	a := r.Register("configured")
	if b := r.Register("configured"); !a.Same(b) {
		t.Fatal("expected configured registry to deduplicate")
	}
}
