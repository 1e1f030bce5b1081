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

// postHookField carries no wire payload of its own: it runs fn once every
// positional and identified field of the descriptor has been populated,
// typically to rebuild a derived index or cache that the wire format itself
// never stores.
type postHookField struct {
	fn func(obj unsafe.Pointer)
}

func (postHookField) Allocates() bool                                { return false }
func (postHookField) IsOptional() bool                               { return false }
func (postHookField) Type() Atom                                     { return AtomIgnored }
func (postHookField) Size(OArchive, unsafe.Pointer) int              { return 0 }
func (postHookField) Write(OArchive, unsafe.Pointer) error           { return nil }
func (f postHookField) Read(r IArchive, obj unsafe.Pointer, byteBudget int) error {
	f.fn(obj)
	return nil
}

// PostReadHook registers fn to run after every positional and identified
// field of this Describe call has been read, regardless of the order
// PostReadHook itself is called in relative to Positional/Identified.
// Tracking hooks on their own list, rather than folding them into
// Positional, is what makes this true: a positional-only ordering would
// run fn before any identified field had its value, since a reader
// populates positional fields first and identified fields second.
func PostReadHook(b *Builder, fn func(obj unsafe.Pointer)) {
	fd := &FieldDescriptor{Name: "posthook", Serializer: postHookField{fn: fn}}
	b.d.PostHooks = append(b.d.PostHooks, fd)
}
