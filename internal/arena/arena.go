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

// Package arena is the lifetime holder for objects materialized during a
// deserialization.
//
// This engine's arena has to run arbitrary Go destructors for arbitrary
// host types produced by user descriptors, so it is a stack of (pointer,
// destructor) pairs rather than a byte-bump allocator: register pushes,
// Free tears down in reverse insertion order. There is no random access
// and no removal.
package arena

// entry is one heap allocation owned by an Arena, plus the function that
// releases it.
type entry struct {
	ptr     any
	destroy func()
}

// Arena owns every object transitively allocated during one deserialization.
// A zero Arena is empty and ready to use.
type Arena struct {
	entries []entry
}

// Register records ptr as owned by the arena. destroy is called, with every
// other registered entry's destroy, in reverse insertion order when Free is
// called. destroy may be nil for types with nothing to release beyond
// ordinary garbage collection.
func (a *Arena) Register(ptr any, destroy func()) {
	a.entries = append(a.entries, entry{ptr: ptr, destroy: destroy})
}

// Len returns the number of allocations currently registered.
func (a *Arena) Len() int {
	return len(a.entries)
}

// Free tears down every registered allocation in reverse insertion order,
// then empties the arena. The arena may be reused afterward.
func (a *Arena) Free() {
	for i := len(a.entries) - 1; i >= 0; i-- {
		if d := a.entries[i].destroy; d != nil {
			d()
		}
	}
	a.entries = a.entries[:0]
}
