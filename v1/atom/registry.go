// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package atom

import (
	"runtime"
	"sync"
	"unicode/utf8"
	"unsafe"
	"weak"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/open-policy-agent/atom/v1/logging"
)

// Registry deduplicates atoms. Registering content that is already held by a
// live atom returns a handle to that same allocation; otherwise a new
// allocation is made and recorded. The registry holds only weak references,
// so it never keeps content alive by itself.
//
// A single mutex guards the whole table. No observer, logger or other caller
// supplied code runs while it is held.
type Registry struct {
	mu       sync.Mutex
	poisoned bool
	keys     table

	hashed    bool
	autoPrune bool
	retainN   int
	retain    *lru.Cache[string, Atom]
	observer  Observer
	logger    logging.Logger
}

// NewRegistry returns an empty registry seeded with the shared empty atom.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger: logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.hashed {
		r.keys = newHashTable()
	} else {
		r.keys = newContentTable()
	}
	r.keys.put(empty())

	if r.retainN > 0 {
		// lru.New only fails for non-positive sizes.
		r.retain, _ = lru.New[string, Atom](r.retainN)
	}

	return r
}

// Register returns an atom holding text. If the registry already references
// a live allocation with that content, the returned atom shares it.
func (r *Registry) Register(text string) Atom {
	return r.register(text, func() Atom { return New(text) })
}

// RegisterBytes is like Register but takes a byte slice. The slice is only
// copied when no live atom with its content is registered.
func (r *Registry) RegisterBytes(b []byte) Atom {
	key := unsafe.String(unsafe.SliceData(b), len(b))
	return r.register(key, func() Atom { return FromBytes(b) })
}

// RegisterValid is like Register but refuses text that is not valid UTF-8.
func (r *Registry) RegisterValid(text string) (Atom, error) {
	if !utf8.ValidString(text) {
		return Atom{}, invalidUTF8Error(text)
	}
	return r.Register(text), nil
}

func (r *Registry) register(key string, alloc func() Atom) Atom {
	var (
		a           Atom
		hit         bool
		resurrected bool
		w           weak.Pointer[entry]
	)

	r.locked(func(t table) {
		if e := t.get(key); e != nil {
			a, hit = Atom{e: e}, true
			return
		}
		a = alloc()
		w, resurrected = t.put(a.ptr())
	})

	if r.retain != nil {
		r.retain.Add(a.String(), a)
	}

	if hit {
		if r.observer != nil {
			r.observer.Hit()
		}
		return a
	}

	if r.autoPrune && a.e != empty() {
		runtime.AddCleanup(a.e, r.cleanup, cleanupArg{key: a.e.s, w: w})
	}
	if r.observer != nil {
		r.observer.Miss(resurrected)
	}
	return a
}

// Unregister removes the registry's reference for text, whether or not it is
// still live, and reports whether one was present. Atoms already handed out
// are not affected.
func (r *Registry) Unregister(text string) bool {
	var removed bool
	r.locked(func(t table) {
		removed = t.remove(text)
	})

	if r.retain != nil {
		r.retain.Remove(text)
	}
	if r.observer != nil {
		r.observer.Unregister(removed)
	}
	return removed
}

// Prune removes every stale reference and returns how many were removed.
func (r *Registry) Prune() int {
	var n int
	r.locked(func(t table) {
		n = t.prune()
	})

	if n > 0 {
		r.logger.WithFields(map[string]any{"pruned": n}).Debug("Removed stale atom registry entries.")
	}
	if r.observer != nil {
		r.observer.Prune(n)
	}
	return n
}

// Len returns the number of references held, live or stale.
func (r *Registry) Len() int {
	var n int
	r.locked(func(t table) {
		n = t.len()
	})
	return n
}

// Live returns the number of references whose content is still alive.
func (r *Registry) Live() int {
	var n int
	r.locked(func(t table) {
		n = t.live()
	})
	return n
}

// Poisoned reports whether a critical section on r failed to complete. A
// poisoned registry panics on every further table operation.
func (r *Registry) Poisoned() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poisoned
}

// locked runs fn with exclusive access to the table. If fn does not return
// normally the registry is poisoned before the lock is released.
func (r *Registry) locked(fn func(t table)) {
	var poisonedNow bool
	defer func() {
		if poisonedNow {
			r.logger.Error("Atom registry poisoned by an incomplete critical section.")
		}
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.poisoned {
		panic(poisonedError())
	}

	done := false
	defer func() {
		if !done {
			r.poisoned = true
			poisonedNow = true
		}
	}()

	fn(r.keys)
	done = true
}

type cleanupArg struct {
	key string
	w   weak.Pointer[entry]
}

// cleanup runs after an allocation registered with auto-prune is collected.
// The slot is only removed if it still refers to that allocation, so an
// entry that has been resurrected in the meantime is left alone.
func (r *Registry) cleanup(arg cleanupArg) {
	r.mu.Lock()
	if r.poisoned {
		r.mu.Unlock()
		return
	}
	dropped := r.keys.drop(arg.key, arg.w)
	r.mu.Unlock()

	if dropped {
		r.logger.Debug("Removed collected atom %q from registry.", arg.key)
		if r.observer != nil {
			r.observer.Prune(1)
		}
	}
}
