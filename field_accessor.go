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

// accessorField serializes a value that has no fixed storage address --
// it is computed by a getter and applied through a setter, rather than read
// and written in place. Unlike every other field kind it ignores the
// fieldPtr offset machinery: the object pointer it receives is always the
// owning composite's own base address, since a getter/setter pair is a
// property/method pair rather than a data member.
type accessorField[T any] struct {
	elem FieldSerializer
	get  func(obj unsafe.Pointer) T
	set  func(obj unsafe.Pointer, v T)
}

// Accessor adds an identified field backed by a getter/setter pair instead
// of a struct field. get and set both receive a pointer to the owning
// composite, not to any sub-field -- cast it back to its concrete type, the
// way the containing type's own Describe method already knows to.
func Accessor[T any](b *Builder, id uint32, name string, elem FieldSerializer, get func(obj unsafe.Pointer) T, set func(obj unsafe.Pointer, v T)) {
	addIdentified(b, id, name, 0, accessorField[T]{elem: elem, get: get, set: set})
}

func (f accessorField[T]) Allocates() bool  { return f.elem.Allocates() }
func (f accessorField[T]) IsOptional() bool { return f.elem.IsOptional() }
func (f accessorField[T]) Type() Atom       { return f.elem.Type() }

func (f accessorField[T]) Size(w OArchive, obj unsafe.Pointer) int {
	v := f.get(obj)
	return f.elem.Size(w, unsafe.Pointer(&v))
}

func (f accessorField[T]) Write(w OArchive, obj unsafe.Pointer) error {
	v := f.get(obj)
	return f.elem.Write(w, unsafe.Pointer(&v))
}

func (f accessorField[T]) Read(r IArchive, obj unsafe.Pointer, byteBudget int) error {
	var v T
	if err := f.elem.Read(r, unsafe.Pointer(&v), byteBudget); err != nil {
		return err
	}
	f.set(obj, v)
	return nil
}
