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

import (
	"sync/atomic"
	"unsafe"
)

// --- owning pointer (*T) ---

type owningField[T any] struct {
	elem FieldSerializer
}

// Owning returns a field serializer for an owning pointer field (*T). The
// pointee is written exactly once, the first time its address is
// encountered, and owned exclusively: resolving the same reference id twice
// on read is an ErrAliasViolation.
func Owning[T any](elem FieldSerializer) FieldSerializer {
	return owningField[T]{elem: elem}
}

func (owningField[T]) Allocates() bool  { return true }
func (owningField[T]) IsOptional() bool { return true }
func (owningField[T]) Type() Atom       { return AtomReference }

func (f owningField[T]) Size(w OArchive, obj unsafe.Pointer) int {
	return w.SizeObjectReference(f.elem, unsafe.Pointer(*(**T)(obj)))
}

func (f owningField[T]) Write(w OArchive, obj unsafe.Pointer) error {
	return w.WriteObjectReference(f.elem, unsafe.Pointer(*(**T)(obj)))
}

func (f owningField[T]) Read(r IArchive, obj unsafe.Pointer, byteBudget int) error {
	alloc := func() (unsafe.Pointer, func()) {
		return unsafe.Pointer(new(T)), nil
	}
	ptr, err := r.ReadObjectReferenceResponsible(f.elem, alloc, true)
	if err != nil {
		return err
	}
	*(**T)(obj) = (*T)(ptr)
	return nil
}

func (owningField[T]) IsNil(obj unsafe.Pointer) bool {
	return *(**T)(obj) == nil
}

// --- raw, non-owning pointer (*T) ---

type rawField[T any] struct {
	elem FieldSerializer
}

// Raw returns a field serializer for a non-owning pointer field (*T). It
// shares the owning trait's static Go type -- Go has no separate "weak
// pointer" type -- and differs only in which archive read mode it uses: the
// referent's lifetime is someone else's (an Owning or Shared field
// elsewhere in the graph) responsibility, so Raw resolves the reference in
// lookup mode rather than taking ownership of it.
func Raw[T any](elem FieldSerializer) FieldSerializer {
	return rawField[T]{elem: elem}
}

func (rawField[T]) Allocates() bool  { return true }
func (rawField[T]) IsOptional() bool { return true }
func (rawField[T]) Type() Atom       { return AtomReference }

func (f rawField[T]) Size(w OArchive, obj unsafe.Pointer) int {
	return w.SizeObjectReference(f.elem, unsafe.Pointer(*(**T)(obj)))
}

func (f rawField[T]) Write(w OArchive, obj unsafe.Pointer) error {
	return w.WriteObjectReference(f.elem, unsafe.Pointer(*(**T)(obj)))
}

func (f rawField[T]) Read(r IArchive, obj unsafe.Pointer, byteBudget int) error {
	alloc := func() (unsafe.Pointer, func()) {
		return unsafe.Pointer(new(T)), nil
	}
	ptr, err := r.ReadObjectReference(f.elem, alloc)
	if err != nil {
		return err
	}
	*(**T)(obj) = (*T)(ptr)
	return nil
}

func (rawField[T]) IsNil(obj unsafe.Pointer) bool {
	return *(**T)(obj) == nil
}

// --- shared pointer (SharedPtr[T]) ---

type sharedField[T any] struct {
	elem FieldSerializer
}

// Shared returns a field serializer for a [SharedPtr] field. Every field
// that resolves the same reference id shares the same underlying
// [sharedBox], so UseCount reflects however many such fields the read
// populated, matching the wire format's single-writer-many-readers model:
// the value is written once (like Owning), but many identified fields
// across the graph may alias it.
func Shared[T any](elem FieldSerializer) FieldSerializer {
	return sharedField[T]{elem: elem}
}

func (sharedField[T]) Allocates() bool  { return true }
func (sharedField[T]) IsOptional() bool { return true }
func (sharedField[T]) Type() Atom       { return AtomReference }

func (f sharedField[T]) Size(w OArchive, obj unsafe.Pointer) int {
	sp := *(*SharedPtr[T])(obj)
	return w.SizeObjectReference(f.elem, unsafe.Pointer(sp.ptr))
}

func (f sharedField[T]) Write(w OArchive, obj unsafe.Pointer) error {
	sp := *(*SharedPtr[T])(obj)
	return w.WriteObjectReference(f.elem, unsafe.Pointer(sp.ptr))
}

func (f sharedField[T]) Read(r IArchive, obj unsafe.Pointer, byteBudget int) error {
	alloc := func() (unsafe.Pointer, func()) {
		box := &sharedBox[T]{}
		return unsafe.Pointer(&box.value), nil
	}
	ptr, err := r.ReadObjectReferenceResponsible(f.elem, alloc, false)
	if err != nil {
		return err
	}
	box := sharedBoxOf((*T)(ptr))
	atomic.AddInt32(&box.count, 1)
	*(*SharedPtr[T])(obj) = SharedPtr[T]{ptr: (*T)(ptr), count: &box.count}
	return nil
}

func (sharedField[T]) IsNil(obj unsafe.Pointer) bool {
	return (*(*SharedPtr[T])(obj)).ptr == nil
}
