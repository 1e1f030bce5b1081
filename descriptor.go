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
	"fmt"
	"reflect"
	"sort"
	"sync"
	"unsafe"

	"google.golang.org/protobuf/encoding/protowire"
)

// FieldDescriptor is one field of a [Descriptor]: its wire identifier (0 for
// a positional field), its name, the byte offset of its storage within the
// owning composite, and the serializer that reads and writes it.
type FieldDescriptor struct {
	Identifier uint32
	Name       string
	Offset     uintptr
	Serializer FieldSerializer
}

// Descriptor is a runtime plan of fields for one user composite type. It is
// itself a [FieldSerializer]: a struct embedded in, or pointed to from,
// another struct is just another field whose serializer happens to be a
// Descriptor.
type Descriptor struct {
	Name       string
	Positional []*FieldDescriptor
	Identified map[uint32]*FieldDescriptor

	// PostHooks are run, in declaration order, once both the positional and
	// the identified fields have been populated. They are never written or
	// sized: a post-read hook has no wire payload of its own, only a
	// side effect on obj.
	PostHooks []*FieldDescriptor

	// identifiedByID is Identified's values in ascending identifier order.
	// The wire format does not require this (decoding is id-driven), but a
	// stable emission order makes golden-file tests reproducible.
	identifiedByID []*FieldDescriptor

	allocates bool
}

// PositionalFields returns the descriptor's positional fields in declaration
// order.
func (d *Descriptor) PositionalFields() []*FieldDescriptor { return d.Positional }

// IdentifiedFields returns the descriptor's identified fields in ascending
// identifier order.
func (d *Descriptor) IdentifiedFields() []*FieldDescriptor { return d.identifiedByID }

// PostHookFields returns the descriptor's post-read hooks in declaration
// order.
func (d *Descriptor) PostHookFields() []*FieldDescriptor { return d.PostHooks }

// ByIdentifier looks up an identified field by its wire identifier.
func (d *Descriptor) ByIdentifier(id uint32) (*FieldDescriptor, bool) {
	fd, ok := d.Identified[id]
	return fd, ok
}

// Allocates reports whether reading any field of this descriptor can
// allocate heap memory.
func (d *Descriptor) Allocates() bool { return d.allocates }

// Type is finalized_descriptor if the descriptor has no identified fields,
// or descriptor otherwise.
func (d *Descriptor) Type() Atom {
	if len(d.identifiedByID) == 0 {
		return AtomFinalizedDescriptor
	}
	return AtomDescriptor
}

// IsOptional is always false for a Descriptor: optionality is a property of
// the FieldDescriptor that embeds it, not of the descriptor itself.
func (d *Descriptor) IsOptional() bool { return false }

// Size computes the exact number of bytes Write would emit for obj under the
// native codec's framing: the sum of each positional field's size, plus, for
// each identified field, its tag varint, an optional length prefix, and its
// payload. The Protobuf codec sizes a descriptor with its own SizeDescriptor
// instead.
func (d *Descriptor) Size(w OArchive, obj unsafe.Pointer) int {
	total := 0
	for _, f := range d.Positional {
		total += f.Serializer.Size(w, fieldPtr(obj, f.Offset))
	}
	for _, f := range d.identifiedByID {
		fp := fieldPtr(obj, f.Offset)
		wk := f.Serializer.Type().WireKindOf()
		tag := protowire.EncodeTag(protowire.Number(f.Identifier), wk)
		total += protowire.SizeVarint(tag)
		payload := f.Serializer.Size(w, fp)
		if wk == WireLenDelimited {
			total += protowire.SizeVarint(uint64(payload))
		}
		total += payload
	}
	return total
}

// Write delegates to the archive: the codec, not the descriptor, decides
// field ordering and framing.
func (d *Descriptor) Write(w OArchive, obj unsafe.Pointer) error {
	return w.WriteDescriptor(d, obj)
}

// Read delegates to the archive.
func (d *Descriptor) Read(r IArchive, obj unsafe.Pointer, byteBudget int) error {
	return r.ReadDescriptor(d, obj, byteBudget)
}

// fieldPtr returns a pointer to the field at offset bytes into obj.
func fieldPtr(obj unsafe.Pointer, offset uintptr) unsafe.Pointer {
	return unsafe.Add(obj, offset)
}

// FieldPtr is fieldPtr exported for codec packages (codec/native,
// codec/protobuf), which must dereference a [FieldDescriptor]'s Offset the
// same way the root package's own Descriptor.Size does.
func FieldPtr(obj unsafe.Pointer, offset uintptr) unsafe.Pointer {
	return fieldPtr(obj, offset)
}

// Describable is implemented, on a pointer receiver, by any host type that
// wants to be serializable as a user composite (spec trait priority 1: user
// types expose a describe() yielding a descriptor). [DescriptorOf] calls
// Describe exactly once per type and caches the result.
type Describable interface {
	Describe(b *Builder)
}

// Builder accumulates the fields of one [Descriptor] while a type's
// Describe method runs. Fields are added with the free functions
// [Positional] and [Identified] rather than methods, because Go methods
// cannot carry their own type parameters (the field's element type must be
// inferred per call).
type Builder struct {
	base unsafe.Pointer
	d    *Descriptor
}

func offsetOf(base, field unsafe.Pointer) uintptr {
	return uintptr(field) - uintptr(base)
}

// Positional adds a required field, serialized in declaration order before
// any identified field.
func Positional[F any](b *Builder, name string, field *F, ser FieldSerializer) {
	fd := &FieldDescriptor{
		Name:       name,
		Offset:     offsetOf(b.base, unsafe.Pointer(field)),
		Serializer: ser,
	}
	b.d.Positional = append(b.d.Positional, fd)
	b.d.allocates = b.d.allocates || ser.Allocates()
}

// Identified adds an optional field with the given wire identifier. id must
// be nonzero and unique within the descriptor.
func Identified[F any](b *Builder, id uint32, name string, field *F, ser FieldSerializer) {
	addIdentified(b, id, name, offsetOf(b.base, unsafe.Pointer(field)), ser)
}

// addIdentified is the shared registration path for every kind of
// identified field, including the virtual one (Accessor) whose offset is
// meaningless and always 0. Post-read hooks are not identified fields and
// are kept on Descriptor.PostHooks instead.
func addIdentified(b *Builder, id uint32, name string, offset uintptr, ser FieldSerializer) {
	if id == 0 {
		panic("archival: identified field must have a nonzero identifier")
	}
	if _, dup := b.d.Identified[id]; dup {
		panic(fmt.Sprintf("archival: duplicate field identifier %d in %s", id, b.d.Name))
	}
	fd := &FieldDescriptor{
		Identifier: id,
		Name:       name,
		Offset:     offset,
		Serializer: ser,
	}
	b.d.Identified[id] = fd
	b.d.identifiedByID = append(b.d.identifiedByID, fd)
	sort.Slice(b.d.identifiedByID, func(i, j int) bool {
		return b.d.identifiedByID[i].Identifier < b.d.identifiedByID[j].Identifier
	})
	b.d.allocates = b.d.allocates || ser.Allocates()
}

var descriptorCache sync.Map // reflect.Type -> *Descriptor

// DescriptorOf returns the cached descriptor for T, building it on first
// use by calling Describe on a throwaway zero value of T. *T must implement
// [Describable], or DescriptorOf panics: a malformed descriptor is a
// programmer error caught once, at the one-time compile step, rather than
// on every subsequent use.
//
// The returned pointer is stable and is handed out before Describe returns,
// so a type that refers to itself through an [Owning], [Shared], or [Raw]
// field (e.g. a linked-list node) resolves correctly: the recursive call
// sees the same, still-being-populated *Descriptor.
func DescriptorOf[T any]() *Descriptor {
	var zero T
	rt := reflect.TypeOf(zero)
	if v, ok := descriptorCache.Load(rt); ok {
		return v.(*Descriptor)
	}

	d := &Descriptor{Name: rt.String(), Identified: map[uint32]*FieldDescriptor{}}
	actual, loaded := descriptorCache.LoadOrStore(rt, d)
	if loaded {
		return actual.(*Descriptor)
	}

	describable, ok := any(&zero).(Describable)
	if !ok {
		panic(fmt.Sprintf("archival: %s does not implement archival.Describable", rt))
	}
	b := &Builder{base: unsafe.Pointer(&zero), d: d}
	describable.Describe(b)
	return d
}

// Nilable is implemented by field serializers that can represent an absent
// value (the pointer kinds). Codecs that have no explicit null sentinel on
// the wire -- the Protobuf codec -- type-assert for this to decide whether
// to omit an identified field entirely.
type Nilable interface {
	IsNil(obj unsafe.Pointer) bool
}
