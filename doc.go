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

// Package archival is a schema-driven object-graph archive engine.
//
// It maps in-memory typed objects -- including pointer graphs with cycles,
// polymorphic containers, and primitive trees -- to and from a family of
// byte-stream encodings. A [Descriptor] is a declarative, per-type plan of
// fields and sub-codecs; two codecs interpret descriptors under different
// wire rules: the codec/native package, a length-prefixed format with an
// object-reference table that can round-trip arbitrary cyclic graphs, and
// the codec/protobuf package, a Protobuf-compatible wire format for
// descriptors built only from identified fields.
//
// A host type opts into serialization by implementing Describe on a pointer
// receiver:
//
//	type Node struct {
//		Value int32
//		Next  *Node
//	}
//
//	func (n *Node) Describe(b *archival.Builder) {
//		archival.Identified(b, 1, "value", &n.Value, archival.Int[int32]())
//		archival.Identified(b, 2, "next", &n.Next, archival.Owning[Node](archival.DescriptorOf[Node]()))
//	}
//
// Descriptors are built once per type and cached; offsets are computed from
// a throwaway zero value and reused for every instance of that type.
package archival
