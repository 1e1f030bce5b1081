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

// Integer is the set of Go integer types the integral trait recognizes.
// Enum-backed types typically satisfy this via a named ~int32 underlying
// type.
type Integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint
}

// Float is the set of Go floating point types the floating-point trait
// recognizes.
type Float interface {
	~float32 | ~float64
}

type boolField struct{}

// Bool returns a field serializer for a bool field, a special case of the
// atom/wire-kind mapping distinct from the other integral widths.
func Bool() FieldSerializer { return boolField{} }

func (boolField) Allocates() bool { return false }
func (boolField) Type() Atom      { return AtomBool }
func (boolField) IsOptional() bool { return false }

func (boolField) Size(w OArchive, obj unsafe.Pointer) int {
	return w.SizeBool()
}

func (boolField) Write(w OArchive, obj unsafe.Pointer) error {
	return w.WriteBool(*(*bool)(obj))
}

func (boolField) Read(r IArchive, obj unsafe.Pointer, byteBudget int) error {
	v, err := r.ReadBool()
	if err != nil {
		return err
	}
	*(*bool)(obj) = v
	return nil
}

type intField[T Integer] struct{}

// Int returns a field serializer for an integral field of type T. The atom
// width (i8/i16/i32/i64) is inferred from sizeof(T); values are carried on
// the wire as a bit-reinterpreted int64, so unsigned and signed types of the
// same width share one code path.
func Int[T Integer]() FieldSerializer { return intField[T]{} }

func (intField[T]) Allocates() bool  { return false }
func (intField[T]) IsOptional() bool { return false }

func (intField[T]) width() int {
	var z T
	return int(unsafe.Sizeof(z))
}

func (f intField[T]) Type() Atom {
	switch f.width() {
	case 1:
		return AtomI8
	case 2:
		return AtomI16
	case 4:
		return AtomI32
	default:
		return AtomI64
	}
}

func (f intField[T]) get(obj unsafe.Pointer) int64 {
	return int64(*(*T)(obj))
}

func (f intField[T]) Size(w OArchive, obj unsafe.Pointer) int {
	return w.SizeInteger(f.get(obj), f.width())
}

func (f intField[T]) Write(w OArchive, obj unsafe.Pointer) error {
	return w.WriteInteger(f.get(obj), f.width())
}

func (f intField[T]) Read(r IArchive, obj unsafe.Pointer, byteBudget int) error {
	v, err := r.ReadInteger(f.width())
	if err != nil {
		return err
	}
	*(*T)(obj) = T(v)
	return nil
}

type floatField[T Float] struct{}

// Float returns a field serializer for a floating point field of type T
// (float32 or float64).
func Float[T Float]() FieldSerializer { return floatField[T]{} }

func (floatField[T]) Allocates() bool  { return false }
func (floatField[T]) IsOptional() bool { return false }

func (floatField[T]) Type() Atom {
	var z T
	if unsafe.Sizeof(z) == 4 {
		return AtomF32
	}
	return AtomF64
}

func (f floatField[T]) Size(w OArchive, obj unsafe.Pointer) int {
	if f.Type() == AtomF32 {
		return w.SizeFloat32()
	}
	return w.SizeFloat64()
}

func (f floatField[T]) Write(w OArchive, obj unsafe.Pointer) error {
	if f.Type() == AtomF32 {
		return w.WriteFloat32(float32(*(*T)(obj)))
	}
	return w.WriteFloat64(float64(*(*T)(obj)))
}

func (f floatField[T]) Read(r IArchive, obj unsafe.Pointer, byteBudget int) error {
	if f.Type() == AtomF32 {
		v, err := r.ReadFloat32()
		if err != nil {
			return err
		}
		*(*T)(obj) = T(v)
		return nil
	}
	v, err := r.ReadFloat64()
	if err != nil {
		return err
	}
	*(*T)(obj) = T(v)
	return nil
}
