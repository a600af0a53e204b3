// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package version contains version information that is set at build time.
package version

import (
	"runtime"
	"runtime/debug"
)

// Version is the canonical version of the atom tool.
var Version = "0.1.0-dev"

// GoVersion is the version of Go this was built with
var GoVersion = runtime.Version()

// Platform is the runtime OS and architecture of this binary
var Platform = runtime.GOOS + "/" + runtime.GOARCH

// Vcs is the revision this binary was built from. It is filled from the
// build info when not set through -ldflags.
var Vcs = ""

func init() {
	if Vcs != "" {
		return
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	dirty := false
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			Vcs = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if dirty && Vcs != "" {
		Vcs += "-dirty"
	}
}
