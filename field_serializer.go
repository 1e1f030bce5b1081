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

// FieldSerializer is the capability set shared by every serializable unit: a
// primitive, a container, a pointer, or a whole [Descriptor]. obj always
// points directly at the value owned by this serializer -- offset
// arithmetic to get there is the caller's job (a [Descriptor] does it for
// its own fields; a [Builder] does it once, at construction time).
type FieldSerializer interface {
	// Allocates reports whether reading this field can allocate heap memory
	// that must be tracked by an arena.
	Allocates() bool

	// Type returns the wire atom this serializer produces.
	Type() Atom

	// Size returns the number of bytes Write would emit for obj.
	Size(w OArchive, obj unsafe.Pointer) int

	// Write serializes obj.
	Write(w OArchive, obj unsafe.Pointer) error

	// Read deserializes into obj. byteBudget is the number of payload bytes
	// available, as determined by the wire kind in context (0 for varint
	// and descriptor-nested calls that manage their own framing).
	Read(r IArchive, obj unsafe.Pointer, byteBudget int) error

	// IsOptional reports whether this serializer backs an identified
	// (optional) field, as opposed to a positional (required) one.
	IsOptional() bool
}
