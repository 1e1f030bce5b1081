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

package native

import "math"

func floatBits32(v float32) uint32 { return math.Float32bits(v) }
func floatBits64(v float64) uint64 { return math.Float64bits(v) }

func floatFromBits32(bits uint32) float32 { return math.Float32frombits(bits) }
func floatFromBits64(bits uint64) float64 { return math.Float64frombits(bits) }
