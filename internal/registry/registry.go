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

// Package registry implements the pointer-graph registry that lets the
// native codec serialize arbitrary object graphs -- including cycles and
// shared aliasing -- by reference rather than by value.
//
// It deliberately knows nothing about field serializers or wire formats:
// like internal/arena, it stores opaque payloads (any, unsafe.Pointer) and
// leaves interpretation to its caller. This keeps it reusable from both the
// write side and the read side of codec/native without importing the root
// archival package.
package registry

import (
	"errors"
	"unsafe"
)

// ErrAlias reports that a unique-pointer read resolved an id that had
// already been responsibly released to another caller -- two exclusive
// owners cannot alias the same object.
var ErrAlias = errors.New("registry: unique pointer alias violation")

// WriteTask is a pending payload emission: an object that has been minted
// an id but not yet had its bytes written to the stream.
type WriteTask struct {
	ID         uint32
	Serializer any
	Obj        unsafe.Pointer
}

// WriteRegistry is the write-side half of the pointer registry. Id 0 is
// reserved for the null pointer and is never stored
// here -- callers check for a nil object pointer themselves before
// consulting the registry. Id 1 is reserved for the root object, matching
// the read side's "id 1 is reserved for the root" invariant; every other id
// is minted in ascending order on first encounter.
type WriteRegistry struct {
	ids    map[unsafe.Pointer]uint32
	nextID uint32
	queue  []WriteTask
}

// NewWriteRegistry seeds the registry with the root object pre-assigned id
// 1 and already queued for emission, so a codec's drain loop can treat the
// root exactly like any other referenced object.
func NewWriteRegistry(root unsafe.Pointer, serializer any) *WriteRegistry {
	r := &WriteRegistry{ids: make(map[unsafe.Pointer]uint32), nextID: 2}
	r.ids[root] = 1
	r.queue = append(r.queue, WriteTask{ID: 1, Serializer: serializer, Obj: root})
	return r
}

// Reference resolves obj to its id, minting a fresh one and enqueueing a
// write task the first time obj is seen. obj must be non-nil.
func (r *WriteRegistry) Reference(obj unsafe.Pointer, serializer any) uint32 {
	if id, ok := r.ids[obj]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	r.ids[obj] = id
	r.queue = append(r.queue, WriteTask{ID: id, Serializer: serializer, Obj: obj})
	return id
}

// Next pops the next pending write task in FIFO order.
func (r *WriteRegistry) Next() (WriteTask, bool) {
	if len(r.queue) == 0 {
		return WriteTask{}, false
	}
	t := r.queue[0]
	r.queue = r.queue[1:]
	return t, true
}

// ReadTask is a queued population: an object that has been allocated and
// registered under an id but not yet had its fields read.
type ReadTask struct {
	ID         uint32
	Serializer any
	Obj        unsafe.Pointer
}

type readEntry struct {
	ptr      unsafe.Pointer
	free     func()
	released bool
}

// ReadRegistry is the read-side half of the pointer registry. It holds the
// id -> (address, free func) map and the FIFO of objects still waiting to
// be populated.
type ReadRegistry struct {
	objs  map[uint32]*readEntry
	queue []ReadTask
}

// NewReadRegistry seeds the registry with the root object pre-assigned id
// 1 and enqueues it so the drain loop populates it along with everything it
// transitively reaches.
func NewReadRegistry(root unsafe.Pointer, serializer any) *ReadRegistry {
	r := &ReadRegistry{objs: map[uint32]*readEntry{1: {ptr: root}}}
	r.queue = append(r.queue, ReadTask{ID: 1, Serializer: serializer, Obj: root})
	return r
}

// Next pops the next pending read task in FIFO order.
func (r *ReadRegistry) Next() (ReadTask, bool) {
	if len(r.queue) == 0 {
		return ReadTask{}, false
	}
	t := r.queue[0]
	r.queue = r.queue[1:]
	return t, true
}

// Lookup resolves id in Lookup responsibility mode: ownership of any
// allocation it makes stays with the registry, to be transferred to an
// arena later via Drain. id 0 always resolves to a nil pointer.
func (r *ReadRegistry) Lookup(id uint32, alloc func() (unsafe.Pointer, func()), serializer any) unsafe.Pointer {
	if id == 0 {
		return nil
	}
	if e, ok := r.objs[id]; ok {
		return e.ptr
	}
	ptr, free := alloc()
	r.objs[id] = &readEntry{ptr: ptr, free: free}
	r.queue = append(r.queue, ReadTask{ID: id, Serializer: serializer, Obj: ptr})
	return ptr
}

// Release resolves id in Release responsibility mode: the caller takes
// ownership of the object immediately, so the registry drops any free func
// for it (it will never be handed to an arena). If unique is true and id
// was already responsibly released once before, Release returns ErrAlias:
// two exclusive owners cannot share one object.
func (r *ReadRegistry) Release(id uint32, alloc func() (unsafe.Pointer, func()), serializer any, unique bool) (unsafe.Pointer, error) {
	if id == 0 {
		return nil, nil
	}
	e, ok := r.objs[id]
	if !ok {
		ptr, _ := alloc()
		e = &readEntry{ptr: ptr}
		r.objs[id] = e
		r.queue = append(r.queue, ReadTask{ID: id, Serializer: serializer, Obj: ptr})
	} else if unique && e.released {
		return nil, ErrAlias
	}
	e.released = true
	e.free = nil
	return e.ptr, nil
}

// arena is the minimal interface internal/arena.Arena satisfies; Drain is
// written against it instead of the concrete type so the two internal
// packages stay decoupled.
type arena interface {
	Register(ptr any, destroy func())
}

// Drain transfers every still-owned (free != nil) entry into dst and clears
// the registry's map, per the allocation arena's transfer contract:
// entries the caller already responsibly released are filtered out rather
// than moved.
func (r *ReadRegistry) Drain(dst arena) {
	for _, e := range r.objs {
		if e.free != nil {
			dst.Register(e.ptr, e.free)
		}
	}
	r.objs = make(map[uint32]*readEntry)
}
