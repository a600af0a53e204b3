// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package atom

import (
	"errors"
	"slices"
	"strings"
	"sync"
)

// Path is a slash separated name whose segments are atoms. Paths parsed
// through the same registry share segment allocations, so comparing them is
// mostly pointer comparison.
type Path []Atom

var errInvalidEscape = errors.New("invalid escape sequence")

var builders = sync.Pool{
	New: func() any {
		return &strings.Builder{}
	},
}

func getBuilder(size int) *strings.Builder {
	sb := builders.Get().(*strings.Builder)
	sb.Grow(size)
	return sb
}

// putBuilder resets sb before pooling it. Reset drops the buffer rather than
// reusing it, so strings already taken from sb stay valid.
func putBuilder(sb *strings.Builder) {
	sb.Reset()
	builders.Put(sb)
}

// ParsePath splits str into segments and registers each of them. str must
// start with '/'.
func (r *Registry) ParsePath(str string) (path Path, ok bool) {
	if len(str) == 0 || str[0] != '/' {
		return nil, false
	}
	if len(str) == 1 {
		return Path{}, true
	}

	segments := strings.Split(str[1:], "/")
	path = make(Path, len(segments))
	for i, seg := range segments {
		path[i] = r.Register(seg)
	}
	return path, true
}

// ParsePathEscaped is like ParsePath but percent-decodes each segment
// before registering it.
func (r *Registry) ParsePathEscaped(str string) (path Path, ok bool) {
	if len(str) == 0 || str[0] != '/' {
		return nil, false
	}
	if len(str) == 1 {
		return Path{}, true
	}

	segments := strings.Split(str[1:], "/")
	path = make(Path, len(segments))
	for i, seg := range segments {
		a, err := r.registerUnescaped(seg)
		if err != nil {
			return nil, false
		}
		path[i] = a
	}
	return path, true
}

// MustParsePath is like ParsePath but panics if str cannot be parsed.
func (r *Registry) MustParsePath(str string) Path {
	path, ok := r.ParsePath(str)
	if !ok {
		panic(str)
	}
	return path
}

func hexToInt(c byte) (int, bool) {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0'), true
	case 'a' <= c && c <= 'f':
		return int(c - 'a' + 10), true
	case 'A' <= c && c <= 'F':
		return int(c - 'A' + 10), true
	}
	return 0, false
}

func (r *Registry) registerUnescaped(s string) (Atom, error) {
	if !strings.ContainsRune(s, '%') {
		return r.Register(s), nil
	}

	sb := getBuilder(len(s))
	defer putBuilder(sb)

	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			sb.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return Atom{}, errInvalidEscape
		}
		h1, ok1 := hexToInt(s[i+1])
		h2, ok2 := hexToInt(s[i+2])
		if !ok1 || !ok2 {
			return Atom{}, errInvalidEscape
		}
		sb.WriteByte(byte(h1<<4 | h2))
		i += 2
	}

	return r.Register(sb.String()), nil
}

// Compare orders paths segment by segment.
func (p Path) Compare(other Path) int {
	return slices.CompareFunc(p, other, Atom.Compare)
}

// Equal returns true if p and other hold equal segments.
func (p Path) Equal(other Path) bool {
	return slices.EqualFunc(p, other, Atom.Equal)
}

// HasPrefix returns true if p starts with other.
func (p Path) HasPrefix(other Path) bool {
	return len(other) <= len(p) && p[:len(other)].Equal(other)
}

const upperhex = "0123456789ABCDEF"

func shouldEscapePath(c byte) bool {
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return false
	}
	switch c {
	case '-', '_', '.', '~':
		return false
	}
	return true
}

// String returns the escaped form of p, which ParsePathEscaped accepts.
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}

	size := len(p)
	for i := range p {
		size += p[i].Len() + p[i].Len()/2
	}

	sb := getBuilder(size)
	defer putBuilder(sb)

	for i := range p {
		sb.WriteByte('/')
		s := p[i].String()
		for j := 0; j < len(s); j++ {
			c := s[j]
			if shouldEscapePath(c) {
				sb.WriteByte('%')
				sb.WriteByte(upperhex[c>>4])
				sb.WriteByte(upperhex[c&15])
			} else {
				sb.WriteByte(c)
			}
		}
	}

	return sb.String()
}
