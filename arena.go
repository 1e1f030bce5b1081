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

import "github.com/objectarc/archival/internal/arena"

// Arena owns every heap allocation made while deserializing one object
// graph. Dropping it (calling Free) destroys all of them, in reverse
// insertion order, matching the source engine's Allocation arena.
type Arena = arena.Arena
