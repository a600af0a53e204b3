// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"math/rand/v2"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/open-policy-agent/atom/v1/atom"
	"github.com/open-policy-agent/atom/v1/config"
)

type benchParams struct {
	format string
	hold   bool
	seed   uint64
}

func newBenchCommand(e *env) *cobra.Command {
	params := benchParams{}
	defaults := config.Defaults().Bench

	c := &cobra.Command{
		Use:   "bench",
		Short: "Register keys from many goroutines concurrently",
		Long: `Register keys from many goroutines concurrently.

Every worker registers randomly chosen keys from a fixed key space. Unless
--hold is given the workers drop their atoms immediately, so keys are
collected and resurrected while the benchmark runs.`,
		PreRunE: func(*cobra.Command, []string) error {
			return validateFormat(params.format)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd, e, params)
		},
	}

	c.Flags().Int("workers", defaults.Workers, "set number of concurrent workers")
	c.Flags().Int("iterations", defaults.Iterations, "set registrations per worker")
	c.Flags().Int("keys", defaults.Keys, "set size of the key space")
	c.Flags().BoolVar(&params.hold, "hold", false, "keep every registered atom reachable until the end of the run")
	c.Flags().Uint64Var(&params.seed, "seed", 1, "set random seed")
	c.Flags().StringVarP(&params.format, "format", "f", formatTable, "set output format (table, json or yaml)")

	return c
}

func runBench(cmd *cobra.Command, e *env, params benchParams) error {
	cfg := e.config.Bench
	r, collector := e.newRegistry()

	keys := make([]string, cfg.Keys)
	var keyBytes int64
	for i := range keys {
		keys[i] = "key-" + strconv.Itoa(i)
		keyBytes += int64(len(keys[i]))
	}

	e.logger.WithFields(map[string]any{
		"workers":    cfg.Workers,
		"iterations": cfg.Iterations,
		"keys":       cfg.Keys,
	}).Info("Starting benchmark.")

	var ops atomic.Int64
	start := time.Now()

	g, ctx := errgroup.WithContext(cmd.Context())
	for w := range cfg.Workers {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(params.seed, uint64(w)))
			var held map[atom.Atom]struct{}
			if params.hold {
				held = make(map[atom.Atom]struct{})
			}

			for i := range cfg.Iterations {
				if i%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				k := keys[rng.IntN(len(keys))]
				a := r.Register(k)
				if a.String() != k {
					return fmt.Errorf("registered %q but got %q", k, a.String())
				}
				if held != nil {
					held[a] = struct{}{}
				}
				ops.Add(1)
			}
			runtime.KeepAlive(held)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	e.logger.WithFields(map[string]any{
		"operations": ops.Load(),
		"elapsed":    elapsed.String(),
	}).Info("Benchmark finished.")

	rep := newReport(r, collector)
	rep.Operations = ops.Load()
	rep.Unique = cfg.Keys
	rep.BytesRead = keyBytes
	rep.ElapsedNS = elapsed.Nanoseconds()

	return writeReport(cmd.OutOrStdout(), params.format, rep)
}
