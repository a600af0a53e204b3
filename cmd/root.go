// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package cmd implements the atom command line tool.
package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/open-policy-agent/atom/v1/atom"
	"github.com/open-policy-agent/atom/v1/config"
	"github.com/open-policy-agent/atom/v1/logging"
	"github.com/open-policy-agent/atom/v1/metrics"
)

// RootCommand is the base CLI command that all subcommands are added to.
var RootCommand = newRootCommand()

// env is the state shared by subcommands once configuration is loaded.
type env struct {
	viper      *viper.Viper
	configFile string
	config     config.Config
	logger     *logging.StandardLogger
}

func newRootCommand() *cobra.Command {
	e := &env{viper: viper.New()}

	root := &cobra.Command{
		Use:           "atom",
		Short:         "String interning toolkit",
		Long:          "Intern strings through a deduplicating atom registry and report how much memory sharing saves.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&e.configFile, "config-file", "c", "", "set path of configuration file")
	root.PersistentFlags().String("log-level", "info", "set log level")
	root.PersistentFlags().String("log-format", "text", "set log format (text or json)")
	root.PersistentFlags().Bool("hashed-keys", false, "key the registry by content hash instead of content")
	root.PersistentFlags().Bool("auto-prune", false, "remove registry entries once their atoms are collected")
	root.PersistentFlags().Int("retain", 0, "keep the N most recently registered atoms reachable")

	root.AddCommand(newInternCommand(e))
	root.AddCommand(newBenchCommand(e))
	root.AddCommand(newVersionCommand())

	return root
}

var flagKeys = map[string]string{
	"log-level":   "log.level",
	"log-format":  "log.format",
	"hashed-keys": "registry.hashed_keys",
	"auto-prune":  "registry.auto_prune",
	"retain":      "registry.retain",
	"workers":     "bench.workers",
	"iterations":  "bench.iterations",
	"keys":        "bench.keys",
}

func (e *env) load(cmd *cobra.Command) error {
	if err := config.BindFlags(e.viper, cmd.Flags(), flagKeys); err != nil {
		return err
	}

	c, err := config.Load(e.viper, e.configFile)
	if err != nil {
		return err
	}
	e.config = c

	// Validate has already checked the level.
	level, _ := logging.ParseLevel(c.Log.Level)

	e.logger = logging.New()
	e.logger.SetOutput(cmd.ErrOrStderr())
	if c.Log.Format == "json" {
		e.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	e.logger.SetLevel(level)
	return nil
}

// newRegistry builds a registry from the loaded configuration, reporting
// events to a fresh collector.
func (e *env) newRegistry() (*atom.Registry, *metrics.Collector) {
	c := metrics.New(nil)
	r := atom.NewRegistry(e.config.RegistryOptions(e.logger.WithFields(map[string]any{"component": "registry"}), c)...)
	c.Track(r)
	return r, c
}
