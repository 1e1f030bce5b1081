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

import "google.golang.org/protobuf/encoding/protowire"

// Atom is the kind of a serialized unit. It is distinct from the in-memory
// Go type backing a field: a time.Duration and an int64 are both the I64
// atom, for instance.
type Atom uint8

const (
	AtomIgnored Atom = iota
	AtomBool
	AtomI8
	AtomI16
	AtomI32
	AtomI64
	AtomF32
	AtomF64
	AtomReference
	AtomArray
	AtomString
	AtomMap
	AtomDescriptor
	AtomFinalizedDescriptor
)

func (a Atom) String() string {
	switch a {
	case AtomIgnored:
		return "ignored"
	case AtomBool:
		return "bool"
	case AtomI8:
		return "i8"
	case AtomI16:
		return "i16"
	case AtomI32:
		return "i32"
	case AtomI64:
		return "i64"
	case AtomF32:
		return "f32"
	case AtomF64:
		return "f64"
	case AtomReference:
		return "reference"
	case AtomArray:
		return "array"
	case AtomString:
		return "string"
	case AtomMap:
		return "map"
	case AtomDescriptor:
		return "descriptor"
	case AtomFinalizedDescriptor:
		return "finalized_descriptor"
	default:
		return "unknown"
	}
}

// WireKind is the four-value subcategory of an atom that determines framing
// for an identified field. Its values are numerically identical to
// [protowire.Type] (VARINT=0, B64=1 i.e. Fixed64Type, STRING=2 i.e.
// BytesType, B32=5 i.e. Fixed32Type): the native codec's tag arithmetic and
// varint coding are bit-for-bit the same as Protobuf's, so both codecs in
// this module share protowire's tag and varint helpers instead of
// reimplementing them.
type WireKind = protowire.Type

const (
	WireVarint      = protowire.VarintType
	WireB64         = protowire.Fixed64Type
	WireLenDelimited = protowire.BytesType
	WireB32         = protowire.Fixed32Type
)

// WireKindOf returns the wire kind used to frame an identified field of the
// given atom, for both the native and the Protobuf codec (the two codecs
// agree on this mapping; they differ in whether positional fields, repeated
// tags, and packing are permitted).
func (a Atom) WireKindOf() WireKind {
	switch a {
	case AtomBool, AtomI8, AtomI16, AtomI32, AtomI64:
		return WireVarint
	case AtomF64:
		return WireB64
	case AtomF32:
		return WireB32
	default:
		// string, descriptor, finalized_descriptor, array, map, reference (native only)
		return WireLenDelimited
	}
}

// FixedWidth returns the constant number of raw bytes a value of atom a
// occupies, or 0 if a has no constant width. This is unrelated to
// WireKindOf's varint framing for identified fields: it is the width an
// array element of this atom occupies when packed back-to-back in a
// fixed-size array's wire representation, which has no per-element tag or
// length to fall back on.
func (a Atom) FixedWidth() int {
	switch a {
	case AtomBool, AtomI8:
		return 1
	case AtomI16:
		return 2
	case AtomI32, AtomF32:
		return 4
	case AtomI64, AtomF64:
		return 8
	default:
		return 0
	}
}
