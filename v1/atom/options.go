// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package atom

import "github.com/open-policy-agent/atom/v1/logging"

// Option configures a Registry.
type Option func(*Registry)

// Observer receives registry events. Calls are made after the registry lock
// has been released, from whichever goroutine triggered the event.
type Observer interface {
	// Hit is called when Register found a live atom.
	Hit()
	// Miss is called when Register allocated. resurrected is true when a
	// stale reference for the content was replaced.
	Miss(resurrected bool)
	// Unregister is called for every Unregister call.
	Unregister(removed bool)
	// Prune is called with the number of stale references removed.
	Prune(n int)
}

// WithHashedKeys keys the table by a 64-bit hash of the content instead of
// the content itself. Candidates are verified against the content, so
// colliding strings are never confused.
func WithHashedKeys() Option {
	return func(r *Registry) {
		r.hashed = true
	}
}

// WithAutoPrune removes a reference from the table once the allocation it
// points to has been collected, instead of leaving a stale entry behind
// until it is overwritten, unregistered or pruned.
func WithAutoPrune() Option {
	return func(r *Registry) {
		r.autoPrune = true
	}
}

// WithRetain keeps the n most recently registered atoms reachable, so content
// that is registered in bursts survives collection between them. The table
// itself stays unbounded. Values of n below 1 disable retention.
func WithRetain(n int) Option {
	return func(r *Registry) {
		r.retainN = n
	}
}

// WithObserver sets the observer notified of registry events.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.observer = o
	}
}

// WithLogger sets the logger used by the registry.
func WithLogger(l logging.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}
