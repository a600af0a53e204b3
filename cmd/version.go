// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/open-policy-agent/atom/v1/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of atom",
		Long:  "Show version and build information for atom.",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return generateCmdOutput(cmd.OutOrStdout())
		},
	}
}

func generateCmdOutput(out io.Writer) error {
	_, err := fmt.Fprintf(out, "Version: %v\nBuild Commit: %v\nGo Version: %v\nPlatform: %v\n",
		version.Version, version.Vcs, version.GoVersion, version.Platform)
	return err
}
