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

// SharedPtr is a reference-counted pointer, standing in for a
// shared_ptr<T>-style shared ownership handle. Go has no built-in
// equivalent since the garbage collector makes refcounting unnecessary for
// memory safety, but use_count observability is part of this engine's wire
// semantics, not just memory management, so it is modeled explicitly here.
//
// The zero value is a valid, empty SharedPtr.
type SharedPtr[T any] struct {
	ptr   *T
	count *int32
}

// NewShared wraps v in a SharedPtr with an initial use count of 1.
func NewShared[T any](v *T) SharedPtr[T] {
	box := &sharedBox[T]{value: *v, count: 1}
	return SharedPtr[T]{ptr: &box.value, count: &box.count}
}

// Get returns the underlying pointer, or nil if the SharedPtr is empty.
func (p SharedPtr[T]) Get() *T { return p.ptr }

// UseCount returns the number of SharedPtr values currently sharing this
// pointer's referent, or 0 if the SharedPtr is empty.
func (p SharedPtr[T]) UseCount() int32 {
	if p.count == nil {
		return 0
	}
	return atomic.LoadInt32(p.count)
}

// sharedBox is the allocation a Shared field serializer hands out: value
// must be the first field so that a pointer to value (what AllocFunc and
// the registry traffic in) can be reinterpreted back into *sharedBox to
// reach the shared count.
type sharedBox[T any] struct {
	value T
	count int32
}

func sharedBoxOf[T any](valuePtr *T) *sharedBox[T] {
	return (*sharedBox[T])(unsafe.Pointer(valuePtr))
}
