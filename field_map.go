// Copyright 2025 The Archival Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package archival

import "unsafe"

// --- map[K]V ---

type mapField[K comparable, V any] struct {
	key FieldSerializer
	val FieldSerializer
}

// Map returns a field serializer for a Go map field (map[K]V). Entries are
// written in whatever order Go's map iteration produces; the wire format
// does not record or require a particular order.
func Map[K comparable, V any](key, val FieldSerializer) FieldSerializer {
	return mapField[K, V]{key: key, val: val}
}

func (mapField[K, V]) Allocates() bool  { return true }
func (mapField[K, V]) IsOptional() bool { return true }
func (mapField[K, V]) Type() Atom       { return AtomMap }

func (f mapField[K, V]) Size(w OArchive, obj unsafe.Pointer) int {
	m := *(*map[K]V)(obj)
	return w.SizeDictionary(newMapReader(f, m))
}

func (f mapField[K, V]) Write(w OArchive, obj unsafe.Pointer) error {
	m := *(*map[K]V)(obj)
	return w.WriteDictionary(newMapReader(f, m))
}

func (f mapField[K, V]) Read(r IArchive, obj unsafe.Pointer, byteBudget int) error {
	return r.ReadDictionary(&mapInserter[K, V]{key: f.key, val: f.val, m: (*map[K]V)(obj)})
}

// IsNil implements Nilable: a nil map and an empty map are both valid, but a
// codec with no wire-level null sentinel (protobuf) needs to know whether to
// omit the field entirely.
func (mapField[K, V]) IsNil(obj unsafe.Pointer) bool {
	return *(*map[K]V)(obj) == nil
}

// NewDictionaryReader and NewDictionaryInserter satisfy [MapField], letting
// the Protobuf codec frame each entry as its own (tag, submessage) pair
// instead of the single length-prefixed blob WriteDictionary produces.

func (f mapField[K, V]) NewDictionaryReader(obj unsafe.Pointer) DictionaryReader {
	m := *(*map[K]V)(obj)
	return newMapReader(f, m)
}

func (f mapField[K, V]) NewDictionaryInserter(obj unsafe.Pointer) DictionaryInserter {
	return &mapInserter[K, V]{key: f.key, val: f.val, m: (*map[K]V)(obj)}
}

// mapReader enumerates a map[K]V for a write. Go maps give no addressable
// slot for a key or value in place, so each Next advances a cursor into a
// lazily captured key list and copies that entry's key and value into
// struct fields that Key and Value point into.
type mapReader[K comparable, V any] struct {
	key, val FieldSerializer
	m        map[K]V
	keys     []K
	idx      int
	curKey   K
	curVal   V
}

func newMapReader[K comparable, V any](f mapField[K, V], m map[K]V) *mapReader[K, V] {
	return &mapReader[K, V]{key: f.key, val: f.val, m: m, idx: -1}
}

func (a *mapReader[K, V]) KeySerializer() FieldSerializer   { return a.key }
func (a *mapReader[K, V]) ValueSerializer() FieldSerializer { return a.val }
func (a *mapReader[K, V]) Len() int                         { return len(a.m) }

func (a *mapReader[K, V]) Next() bool {
	if a.keys == nil {
		a.keys = make([]K, 0, len(a.m))
		for k := range a.m {
			a.keys = append(a.keys, k)
		}
	}
	a.idx++
	if a.idx >= len(a.keys) {
		return false
	}
	a.curKey = a.keys[a.idx]
	a.curVal = a.m[a.curKey]
	return true
}

func (a *mapReader[K, V]) Key() unsafe.Pointer   { return unsafe.Pointer(&a.curKey) }
func (a *mapReader[K, V]) Value() unsafe.Pointer { return unsafe.Pointer(&a.curVal) }

// mapInserter populates a map[K]V during a read. Key and Close each commit
// whichever entry is currently pending before doing anything else, and
// Insert marks the current entry pending, since a Go map assignment needs
// both the key and the value in hand at once -- there is no addressable map
// slot to decode directly into.
type mapInserter[K comparable, V any] struct {
	key, val FieldSerializer
	m        *map[K]V
	curKey   K
	curVal   V
	pending  bool
}

func (a *mapInserter[K, V]) KeySerializer() FieldSerializer   { return a.key }
func (a *mapInserter[K, V]) ValueSerializer() FieldSerializer { return a.val }

func (a *mapInserter[K, V]) Reserve(n int) {
	if *a.m == nil {
		*a.m = make(map[K]V, n)
	}
}

func (a *mapInserter[K, V]) commit() {
	if !a.pending {
		return
	}
	if *a.m == nil {
		*a.m = make(map[K]V)
	}
	(*a.m)[a.curKey] = a.curVal
	a.pending = false
}

func (a *mapInserter[K, V]) Key() unsafe.Pointer {
	a.commit()
	var zero K
	a.curKey = zero
	return unsafe.Pointer(&a.curKey)
}

func (a *mapInserter[K, V]) Insert() unsafe.Pointer {
	var zero V
	a.curVal = zero
	a.pending = true
	return unsafe.Pointer(&a.curVal)
}

func (a *mapInserter[K, V]) Close() { a.commit() }
