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

package archival_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/objectarc/archival"
	"github.com/objectarc/archival/codec/native"
)

// cell stores its value doubled internally; the wire sees only the halved,
// externally meaningful form, through a getter/setter pair rather than a
// struct field at a fixed offset.
type cell struct {
	raw int32
}

func (c *cell) Describe(b *archival.Builder) {
	archival.Accessor[int32](b, 1, "value",
		archival.Int[int32](),
		func(obj unsafe.Pointer) int32 { return (*cell)(obj).raw / 2 },
		func(obj unsafe.Pointer, v int32) { (*cell)(obj).raw = v * 2 },
	)
}

func TestAccessor_RoundTripsThroughGetterSetter(t *testing.T) {
	in := cell{raw: 20}
	data, err := native.Marshal(&in)
	require.NoError(t, err)

	var out cell
	require.NoError(t, native.Unmarshal(data, &out))
	require.Equal(t, int32(20), out.raw)
}

// vector's Mag field is never written to the wire; PostReadHook derives it
// from X and Y immediately after they have been read.
type vector struct {
	X, Y int32
	Mag  int32
}

func (v *vector) Describe(b *archival.Builder) {
	archival.Positional(b, "x", &v.X, archival.Int[int32]())
	archival.Positional(b, "y", &v.Y, archival.Int[int32]())
	archival.PostReadHook(b, func(obj unsafe.Pointer) {
		vv := (*vector)(obj)
		vv.Mag = vv.X*vv.X + vv.Y*vv.Y
	})
}

func TestPostReadHook_RunsAfterPrecedingFieldsAreRead(t *testing.T) {
	in := vector{X: 3, Y: 4}
	data, err := native.Marshal(&in)
	require.NoError(t, err)

	var out vector
	require.NoError(t, native.Unmarshal(data, &out))
	require.EqualValues(t, 25, out.Mag)
}

// priced mixes a positional field with an identified one so its post-read
// hook can only produce the right Total if it runs after both kinds of
// field have been populated, not just the positional ones.
type priced struct {
	Qty      int32
	UnitCost int32
	Total    int32
}

func (p *priced) Describe(b *archival.Builder) {
	archival.Positional(b, "qty", &p.Qty, archival.Int[int32]())
	archival.Identified(b, 1, "unit_cost", &p.UnitCost, archival.Int[int32]())
	archival.PostReadHook(b, func(obj unsafe.Pointer) {
		pp := (*priced)(obj)
		pp.Total = pp.Qty * pp.UnitCost
	})
}

func TestPostReadHook_RunsAfterIdentifiedFieldsAreRead(t *testing.T) {
	in := priced{Qty: 3, UnitCost: 7}
	data, err := native.Marshal(&in)
	require.NoError(t, err)

	var out priced
	require.NoError(t, native.Unmarshal(data, &out))
	require.EqualValues(t, 21, out.Total)
}
