// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-policy-agent/atom/v1/atom"
)

const maxLineSize = 1 << 20

type internParams struct {
	format string
	paths  bool
}

func newInternCommand(e *env) *cobra.Command {
	params := internParams{}

	c := &cobra.Command{
		Use:   "intern [file...]",
		Short: "Intern every line of the input and report deduplication statistics",
		Long: `Intern every line of the input and report deduplication statistics.

Lines are read from the named files, or from standard input when no file is
given. With --paths every line is parsed as an escaped path such as
/data/users/0 and each segment is interned instead. Everything is registered
with a fresh registry and every distinct atom is kept reachable until the
report is written.`,
		PreRunE: func(*cobra.Command, []string) error {
			return validateFormat(params.format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntern(cmd, e, params, args)
		},
	}

	c.Flags().BoolVar(&params.paths, "paths", false, "treat every line as an escaped slash separated path and intern its segments")
	c.Flags().StringVarP(&params.format, "format", "f", formatTable, "set output format (table, json or yaml)")

	return c
}

func runIntern(cmd *cobra.Command, e *env, params internParams, args []string) error {
	r, collector := e.newRegistry()
	in := &interner{registry: r, paths: params.paths, seen: map[atom.Atom]struct{}{}}

	if len(args) == 0 {
		if err := in.read(cmd.InOrStdin()); err != nil {
			return fmt.Errorf("stdin: %w", err)
		}
	}
	for _, name := range args {
		if err := in.readFile(name); err != nil {
			return err
		}
	}

	e.logger.WithFields(map[string]any{
		"lines":  in.lines,
		"unique": len(in.seen),
	}).Debug("Finished interning input.")

	rep := newReport(r, collector)
	rep.Lines = in.lines
	rep.Unique = len(in.seen)
	rep.BytesRead = in.bytesRead
	rep.BytesRetained = in.bytesRetained

	return writeReport(cmd.OutOrStdout(), params.format, rep)
}

type interner struct {
	registry      *atom.Registry
	paths         bool
	seen          map[atom.Atom]struct{}
	lines         int
	bytesRead     int64
	bytesRetained int64
}

func (in *interner) readFile(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := in.read(f); err != nil {
		return fmt.Errorf("%v: %w", name, err)
	}
	return nil
}

func (in *interner) read(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		in.lines++
		in.bytesRead += int64(len(line))

		if !in.paths {
			in.add(in.registry.RegisterBytes(line))
			continue
		}

		path, ok := in.registry.ParsePathEscaped(string(line))
		if !ok {
			return fmt.Errorf("line %d: invalid path %q", in.lines, line)
		}
		for _, seg := range path {
			in.add(seg)
		}
	}
	return scanner.Err()
}

func (in *interner) add(a atom.Atom) {
	if _, ok := in.seen[a]; ok {
		return
	}
	in.seen[a] = struct{}{}
	in.bytesRetained += int64(a.Len())
}
