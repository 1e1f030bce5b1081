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

// EmbedField declares that base is a base-class subobject of the composite
// currently being described: its fields are serialized inline, in
// positional order, exactly as if they belonged to
// the derived type directly. B's own positional fields, identified fields,
// and post-read hooks are all copied into the derived descriptor with their
// offsets rebased onto base's own position, rather than nested behind a
// single opaque field:
// a positional field has no length prefix of its own in the native wire
// format, so a base type with identified fields could never be read back
// correctly if it were wrapped as one indivisible sub-descriptor with no
// outer framing to bound its read. Flattening also means an identifier
// collision between a base field and a derived field is caught by the
// same duplicate check [Identified] uses.
func EmbedField[B any](b *Builder, base *B) {
	baseOffset := offsetOf(b.base, unsafe.Pointer(base))
	bd := DescriptorOf[B]()
	for _, f := range bd.PositionalFields() {
		b.d.Positional = append(b.d.Positional, &FieldDescriptor{
			Name:       f.Name,
			Offset:     baseOffset + f.Offset,
			Serializer: f.Serializer,
		})
		b.d.allocates = b.d.allocates || f.Serializer.Allocates()
	}
	for _, f := range bd.IdentifiedFields() {
		addIdentified(b, f.Identifier, f.Name, baseOffset+f.Offset, f.Serializer)
	}
	for _, f := range bd.PostHookFields() {
		b.d.PostHooks = append(b.d.PostHooks, &FieldDescriptor{
			Name:       f.Name,
			Offset:     baseOffset + f.Offset,
			Serializer: f.Serializer,
		})
	}
}
