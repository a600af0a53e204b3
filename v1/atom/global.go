// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package atom

import "sync"

var global = sync.OnceValue(func() *Registry {
	return NewRegistry()
})

// Global returns the process-wide registry. It is created on first use.
func Global() *Registry {
	return global()
}

// Register registers text with the global registry.
func Register(text string) Atom {
	return Global().Register(text)
}

// Unregister removes text from the global registry.
func Unregister(text string) bool {
	return Global().Unregister(text)
}
