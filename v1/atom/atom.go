// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package atom implements immutable shared strings (atoms) and a concurrent
// registry that deduplicates them.
//
// An Atom is a handle to an immutable string allocation. Copying an Atom is
// cheap and never copies the string bytes. Atoms obtained from the same
// Registry share one allocation per distinct content for as long as at least
// one handle to that content is reachable. The registry itself only holds weak
// references, so content disappears once the last handle is collected.
package atom

import (
	"strings"
	"sync"
	"weak"

	"github.com/cespare/xxhash/v2"
)

// entry is the backing allocation shared by all handles to the same content.
type entry struct {
	s string
}

var empty = sync.OnceValue(func() *entry {
	return &entry{}
})

// Atom is an immutable, shareable string handle. The zero value is
// equivalent to Empty().
type Atom struct {
	e *entry
}

// New returns an atom holding a private copy of text. It never consults a
// registry, so the result shares its allocation with no other atom unless
// text is empty, in which case the shared empty atom is returned.
func New(text string) Atom {
	if text == "" {
		return Empty()
	}
	return Atom{e: &entry{s: strings.Clone(text)}}
}

// FromBytes is like New but takes its input as a byte slice.
func FromBytes(b []byte) Atom {
	if len(b) == 0 {
		return Empty()
	}
	return Atom{e: &entry{s: string(b)}}
}

// Of builds an unregistered atom from any string or byte slice type.
func Of[T ~string | ~[]byte](v T) Atom {
	return New(string(v))
}

// Parse returns New(text). It never fails.
func Parse(text string) (Atom, error) {
	return New(text), nil
}

// Empty returns the process-wide empty atom.
func Empty() Atom {
	return Atom{e: empty()}
}

// Default returns the default atom, which is Empty().
func Default() Atom {
	return Empty()
}

func (a Atom) ptr() *entry {
	if a.e == nil {
		return empty()
	}
	return a.e
}

// String returns the content without copying it.
func (a Atom) String() string {
	if a.e == nil {
		return ""
	}
	return a.e.s
}

// Clone returns an independent copy of the content.
func (a Atom) Clone() string {
	return strings.Clone(a.String())
}

// Len returns the length of the content in bytes.
func (a Atom) Len() int {
	return len(a.String())
}

// IsEmpty reports whether the content is the empty string.
func (a Atom) IsEmpty() bool {
	return a.Len() == 0
}

// Equal reports whether a and b hold the same content.
func (a Atom) Equal(b Atom) bool {
	if a.ptr() == b.ptr() {
		return true
	}
	return a.String() == b.String()
}

// Same reports whether a and b share one backing allocation.
func (a Atom) Same(b Atom) bool {
	return a.ptr() == b.ptr()
}

// Compare orders atoms by content, like strings.Compare.
func (a Atom) Compare(b Atom) int {
	if a.ptr() == b.ptr() {
		return 0
	}
	return strings.Compare(a.String(), b.String())
}

// Hash returns the xxhash of the content. Equal atoms hash equally whether or
// not they share an allocation.
func (a Atom) Hash() uint64 {
	return xxhash.Sum64String(a.String())
}

// Weak returns a non-owning reference to the atom's allocation.
func (a Atom) Weak() WeakAtom {
	return WeakAtom{p: weak.Make(a.ptr())}
}

// MarshalText encodes the atom as its content.
func (a Atom) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText replaces the atom with a new, unregistered atom holding text.
func (a *Atom) UnmarshalText(text []byte) error {
	*a = FromBytes(text)
	return nil
}

// Set implements pflag.Value.
func (a *Atom) Set(text string) error {
	*a = New(text)
	return nil
}

// Type implements pflag.Value.
func (Atom) Type() string {
	return "atom"
}

// WeakAtom is a non-owning reference to an atom's allocation. It does not
// keep the content alive. Two WeakAtoms are == if they were made from the
// same allocation, even after that allocation has been collected.
type WeakAtom struct {
	p weak.Pointer[entry]
}

// Upgrade returns the referenced atom if its allocation is still alive.
func (w WeakAtom) Upgrade() (Atom, bool) {
	e := w.p.Value()
	if e == nil {
		return Atom{}, false
	}
	return Atom{e: e}, true
}
