// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package atom

import (
	"slices"
	"weak"

	"github.com/cespare/xxhash/v2"
)

// table maps content to weak references. Implementations are not
// synchronized; the registry serializes all access.
type table interface {
	// get returns the live allocation for text, or nil.
	get(text string) *entry

	// put records e, replacing whatever was stored for its content. It
	// reports whether a stale reference was displaced.
	put(e *entry) (weak.Pointer[entry], bool)

	// remove drops the reference for text, live or stale.
	remove(text string) bool

	// drop removes w from the slot for key if it is still stored there.
	drop(key string, w weak.Pointer[entry]) bool

	prune() int
	len() int
	live() int
}

// contentTable keys entries by their content. Map keys share their bytes
// with the entry's string, so content is not stored twice.
type contentTable map[string]weak.Pointer[entry]

func newContentTable() contentTable {
	return make(contentTable)
}

func (t contentTable) get(text string) *entry {
	w, ok := t[text]
	if !ok {
		return nil
	}
	return w.Value()
}

func (t contentTable) put(e *entry) (weak.Pointer[entry], bool) {
	_, stale := t[e.s]
	w := weak.Make(e)
	t[e.s] = w
	return w, stale
}

func (t contentTable) remove(text string) bool {
	if _, ok := t[text]; !ok {
		return false
	}
	delete(t, text)
	return true
}

func (t contentTable) drop(key string, w weak.Pointer[entry]) bool {
	if cur, ok := t[key]; ok && cur == w {
		delete(t, key)
		return true
	}
	return false
}

func (t contentTable) prune() int {
	n := 0
	for k, w := range t {
		if w.Value() == nil {
			delete(t, k)
			n++
		}
	}
	return n
}

func (t contentTable) len() int {
	return len(t)
}

func (t contentTable) live() int {
	n := 0
	for _, w := range t {
		if w.Value() != nil {
			n++
		}
	}
	return n
}

// hashTable keys entries by the xxhash of their content. Buckets hold every
// reference whose content hashes to the key and candidates are compared
// against the requested content after upgrade, so colliding strings are kept
// apart.
type hashTable map[uint64][]weak.Pointer[entry]

func newHashTable() hashTable {
	return make(hashTable)
}

func (t hashTable) get(text string) *entry {
	for _, w := range t[xxhash.Sum64String(text)] {
		if e := w.Value(); e != nil && e.s == text {
			return e
		}
	}
	return nil
}

// put compacts the bucket while inserting. A stale slot cannot be matched
// against content any more, so every stale slot in the bucket counts as
// displaced.
func (t hashTable) put(e *entry) (weak.Pointer[entry], bool) {
	h := xxhash.Sum64String(e.s)
	bucket := t[h]
	n := len(bucket)
	bucket = slices.DeleteFunc(bucket, func(w weak.Pointer[entry]) bool {
		v := w.Value()
		return v == nil || v.s == e.s
	})
	w := weak.Make(e)
	t[h] = append(bucket, w)
	return w, len(bucket) < n
}

func (t hashTable) remove(text string) bool {
	h := xxhash.Sum64String(text)
	bucket, ok := t[h]
	if !ok {
		return false
	}
	n := len(bucket)
	bucket = slices.DeleteFunc(bucket, func(w weak.Pointer[entry]) bool {
		v := w.Value()
		return v == nil || v.s == text
	})
	t.store(h, bucket)
	return len(bucket) < n
}

func (t hashTable) drop(key string, w weak.Pointer[entry]) bool {
	h := xxhash.Sum64String(key)
	bucket, ok := t[h]
	if !ok {
		return false
	}
	i := slices.Index(bucket, w)
	if i < 0 {
		return false
	}
	t.store(h, slices.Delete(bucket, i, i+1))
	return true
}

func (t hashTable) store(h uint64, bucket []weak.Pointer[entry]) {
	if len(bucket) == 0 {
		delete(t, h)
		return
	}
	t[h] = bucket
}

func (t hashTable) prune() int {
	n := 0
	for h, bucket := range t {
		before := len(bucket)
		bucket = slices.DeleteFunc(bucket, func(w weak.Pointer[entry]) bool {
			return w.Value() == nil
		})
		n += before - len(bucket)
		t.store(h, bucket)
	}
	return n
}

func (t hashTable) len() int {
	n := 0
	for _, bucket := range t {
		n += len(bucket)
	}
	return n
}

func (t hashTable) live() int {
	n := 0
	for _, bucket := range t {
		for _, w := range bucket {
			if w.Value() != nil {
				n++
			}
		}
	}
	return n
}
