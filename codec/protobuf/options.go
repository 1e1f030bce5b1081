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

// Package protobuf implements the archive engine's Protobuf-compatible
// codec: the same descriptor model as codec/native, but framed so a
// descriptor with only identified fields is byte-compatible
// with a .proto-generated message.
//
// There is no pointer registry here -- Protobuf has no notion of object
// identity -- so a reference field is simply the referent's own payload,
// embedded inline as a nested message. Cyclic or aliased graphs cannot
// round-trip through this codec; that limitation is inherent to the format,
// not an omission.
package protobuf

type config struct {
	maxDepth int
}

func defaultConfig() config {
	return config{maxDepth: 64}
}

// Option configures a Writer or Reader.
type Option struct{ apply func(*config) }

// WithMaxDepth bounds how many nested messages a Reader will descend into,
// guarding against unbounded recursion from a corrupt or hostile stream.
func WithMaxDepth(depth int) Option {
	return Option{func(c *config) { c.maxDepth = depth }}
}
