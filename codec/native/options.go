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

// Package native implements the archive engine's native length-prefixed
// codec: a writer and reader pair backed by the pointer registry, so
// arbitrary object graphs -- including cycles and shared aliasing --
// round-trip by reference.
package native

import "github.com/objectarc/archival"

type config struct {
	arena     *archival.Arena
	maxDepth  int
	sizeLimit int64
}

func defaultConfig() config {
	return config{maxDepth: 64, sizeLimit: -1}
}

// Option configures a Writer or Reader. The struct-of-closure shape (rather
// than a bare function type) keeps Option's identity distinct from any
// other function-typed option in the module.
type Option struct{ apply func(*config) }

// WithArena supplies the arena a Reader transfers registry-owned
// allocations into once ReadObject's drain loop finishes, when ReadObject
// is given no owner of its own. With neither, registry-owned allocations are
// not transferred anywhere; the read does not fail because of them.
func WithArena(a *archival.Arena) Option {
	return Option{func(c *config) { c.arena = a }}
}

// WithMaxDepth bounds how many nested ReadDescriptor calls may be active at
// once, guarding against a malicious or corrupt stream driving unbounded
// recursion through self-referential descriptors.
func WithMaxDepth(depth int) Option {
	return Option{func(c *config) { c.maxDepth = depth }}
}

// WithSizeLimit bounds the total number of bytes a Reader will consume, or
// a Writer will emit, from a single call. A negative limit (the default)
// means unbounded.
func WithSizeLimit(n int64) Option {
	return Option{func(c *config) { c.sizeLimit = n }}
}
