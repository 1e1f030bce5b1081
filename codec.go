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

// OArchive is the write-side codec contract. A codec package (codec/native,
// codec/protobuf) implements this once and reuses it for every [Descriptor]
// and [FieldSerializer] it drives.
type OArchive interface {
	WriteBool(v bool) error
	WriteInteger(v int64, width int) error
	WriteFloat32(v float32) error
	WriteFloat64(v float64) error
	// WriteString emits a length-prefixed sequence of count = len(data)/elemSize
	// elements, each elemSize bytes wide. UTF-8 strings use elemSize 1.
	WriteString(data []byte, elemSize int) error

	SizeBool() int
	SizeInteger(v int64, width int) int
	SizeFloat32() int
	SizeFloat64() int
	SizeString(data []byte, elemSize int) int

	// WriteDescriptor writes d's fields for obj. The codec, not the
	// descriptor, decides field ordering and framing.
	WriteDescriptor(d *Descriptor, obj unsafe.Pointer) error
	SizeDescriptor(d *Descriptor, obj unsafe.Pointer) int

	// WriteObject emits ser's payload for obj immediately, with whatever
	// root framing the codec uses. Only ever called once, for the root
	// object of a serialization.
	WriteObject(ser FieldSerializer, obj unsafe.Pointer) error

	// WriteObjectReference emits a reference to obj, registering it for
	// later emission if this is the first time obj has been seen.
	WriteObjectReference(ser FieldSerializer, obj unsafe.Pointer) error
	SizeObjectReference(ser FieldSerializer, obj unsafe.Pointer) int

	WriteArray(r ArrayReader) error
	SizeArray(r ArrayReader) int

	// WriteFixedPrimitive writes the width raw bytes at obj verbatim, with no
	// varint or length framing of any kind. It exists only for a fixed-size
	// array's constant-width elements (see [ArrayReader.ImmutableSize]):
	// unlike WriteInteger, which varint-encodes a value to its minimal
	// length, a fixed-size array has no per-element length prefix to absorb
	// that variance, so every element must occupy exactly width bytes
	// regardless of its value.
	WriteFixedPrimitive(obj unsafe.Pointer, width int) error

	WriteDictionary(r DictionaryReader) error
	SizeDictionary(r DictionaryReader) int
}

// IArchive is the read-side codec contract.
type IArchive interface {
	ReadBool() (bool, error)
	ReadInteger(width int) (int64, error)
	ReadFloat32() (float32, error)
	ReadFloat64() (float64, error)
	// ReadString reads a length-prefixed sequence of elements elemSize bytes
	// wide and returns the raw payload bytes (len(data) == count*elemSize).
	ReadString(elemSize int) ([]byte, error)

	// ReadObject is the root entry point: it seeds obj as id 1 (native
	// codec) or simply invokes ser on it (protobuf codec, which has no
	// object identity), then drains whatever work queue the read produces.
	// If owner is non-nil, heap allocations made while draining the queue
	// are transferred into it. If it is nil, allocations not claimed via
	// ReadObjectReferenceResponsible are not transferred to any arena, and
	// the read does not fail because of them.
	ReadObject(ser FieldSerializer, obj unsafe.Pointer, owner *Arena) error

	// ReadObjectReference resolves a reference in Lookup mode: ownership of
	// any allocation stays with the archive (and is eventually transferred
	// to an arena).
	ReadObjectReference(ser FieldSerializer, alloc AllocFunc) (unsafe.Pointer, error)

	// ReadObjectReferenceResponsible resolves a reference in Release mode:
	// the caller takes ownership immediately. If unique is true, resolving
	// an id that was already responsibly released is an ErrAliasViolation.
	ReadObjectReferenceResponsible(ser FieldSerializer, alloc AllocFunc, unique bool) (unsafe.Pointer, error)

	ReadArray(a ArrayAppender) error
	ReadDictionary(d DictionaryInserter) error

	// ReadFixedPrimitive reads exactly width raw bytes into obj verbatim, the
	// read-side counterpart to [OArchive.WriteFixedPrimitive].
	ReadFixedPrimitive(obj unsafe.Pointer, width int) error

	// ReadDescriptor reads d's fields into obj, consuming exactly
	// byteBudget bytes (an ErrFramingMismatch if more are consumed).
	ReadDescriptor(d *Descriptor, obj unsafe.Pointer, byteBudget int) error

	Skip(n int) error
	Count() int64
}

// AllocFunc allocates a zero-valued instance of some host type on first
// encounter of a reference id. The returned free function releases it; it
// is nil when the serializer's value type needs no explicit teardown.
type AllocFunc func() (ptr unsafe.Pointer, free func())

// ArrayReader lets a codec enumerate an in-memory sequence during a write.
type ArrayReader interface {
	ElementSerializer() FieldSerializer
	// ImmutableSize returns the per-element wire size if every element has
	// the same constant size, or 0 otherwise.
	ImmutableSize(w OArchive) int
	Len() int
	Get(i int) unsafe.Pointer
}

// ArrayAppender lets a codec grow an in-memory sequence during a read.
type ArrayAppender interface {
	ElementSerializer() FieldSerializer
	// Reserve is told the wire-declared length before any element is read.
	// A fixed-size array implementation uses this to enforce the
	// "must match the declared length or fail" invariant
	// (ErrSizeMismatch); a dynamic array implementation uses it to
	// preallocate storage.
	Reserve(n int) error
	// Allocate returns a pointer to a new, default-constructed slot. A
	// fixed-size array implementation also uses this to enforce its length
	// when the total count isn't known upfront (the Protobuf codec's
	// non-packed repeated fields grow one element per tag occurrence rather
	// than via a single Reserve call).
	Allocate() (unsafe.Pointer, error)
}

// ArrayField is implemented by a field serializer whose atom is AtomArray.
// The native codec never needs it (an array is always framed as one
// length-prefixed blob via WriteArray/ReadArray), but the Protobuf codec
// does: a repeated field is one (tag, element) pair per element rather than
// one tag for the whole array, so its writer and reader must enumerate
// elements directly instead of going through the single-blob Size/Write path.
type ArrayField interface {
	NewArrayReader(obj unsafe.Pointer) ArrayReader
	NewArrayAppender(obj unsafe.Pointer) ArrayAppender
}

// MapField is the AtomMap analogue of [ArrayField]: the Protobuf codec
// frames each entry as its own (tag, submessage) pair rather than a single
// length-prefixed blob for the whole map.
type MapField interface {
	NewDictionaryReader(obj unsafe.Pointer) DictionaryReader
	NewDictionaryInserter(obj unsafe.Pointer) DictionaryInserter
}

// DictionaryReader lets a codec enumerate an in-memory map during a write.
type DictionaryReader interface {
	KeySerializer() FieldSerializer
	ValueSerializer() FieldSerializer
	Len() int
	Next() bool
	Key() unsafe.Pointer
	Value() unsafe.Pointer
}

// DictionaryInserter lets a codec populate an in-memory map during a read.
// A call to Key or Close commits whichever entry is currently pending (key
// and value both decoded) before doing anything else, and Insert marks the
// current entry pending, so the codec never needs to know about commit
// timing.
type DictionaryInserter interface {
	KeySerializer() FieldSerializer
	ValueSerializer() FieldSerializer
	Reserve(n int)
	// Key returns a scratch slot to decode the next entry's key into.
	Key() unsafe.Pointer
	// Insert is called after Key's slot has been populated; it returns the
	// slot to decode the entry's value into.
	Insert() unsafe.Pointer
	// Close commits the last entry. The codec must call it once after the
	// read loop ends.
	Close()
}
