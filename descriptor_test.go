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

	"github.com/stretchr/testify/require"

	"github.com/objectarc/archival"
)

type point struct {
	X, Y int32
}

func (p *point) Describe(b *archival.Builder) {
	archival.Positional(b, "x", &p.X, archival.Int[int32]())
	archival.Positional(b, "y", &p.Y, archival.Int[int32]())
}

type widget struct {
	Origin point
	Name   string
	Tags   []string
}

func (w *widget) Describe(b *archival.Builder) {
	archival.EmbedField(b, &w.Origin)
	archival.Identified(b, 1, "name", &w.Name, archival.String())
	archival.Identified(b, 2, "tags", &w.Tags, archival.Slice[string](archival.String()))
}

func TestDescriptorOf_PositionalOnly(t *testing.T) {
	d := archival.DescriptorOf[point]()
	require.Len(t, d.PositionalFields(), 2)
	require.Empty(t, d.IdentifiedFields())
	require.Equal(t, archival.AtomFinalizedDescriptor, d.Type())
	require.False(t, d.Allocates())
}

func TestDescriptorOf_MixedFields(t *testing.T) {
	d := archival.DescriptorOf[widget]()
	require.Len(t, d.PositionalFields(), 2, "EmbedField flattens point's own x/y fields in directly")
	require.Len(t, d.IdentifiedFields(), 2)
	require.Equal(t, archival.AtomDescriptor, d.Type())
	require.True(t, d.Allocates(), "the Tags slice field allocates")

	fd, ok := d.ByIdentifier(2)
	require.True(t, ok)
	require.Equal(t, "tags", fd.Name)

	_, ok = d.ByIdentifier(99)
	require.False(t, ok)
}

func TestDescriptorOf_IsCached(t *testing.T) {
	d1 := archival.DescriptorOf[widget]()
	d2 := archival.DescriptorOf[widget]()
	require.Same(t, d1, d2)
}

func TestIdentified_DuplicateIDPanics(t *testing.T) {
	require.Panics(t, func() {
		archival.DescriptorOf[dupDescriber]()
	})
}

type dupDescriber struct {
	A, B int32
}

func (d *dupDescriber) Describe(b *archival.Builder) {
	archival.Identified(b, 1, "a", &d.A, archival.Int[int32]())
	archival.Identified(b, 1, "b", &d.B, archival.Int[int32]())
}

func TestIdentified_ZeroIDPanics(t *testing.T) {
	require.Panics(t, func() {
		archival.DescriptorOf[zeroIDDescriber]()
	})
}

type zeroIDDescriber struct{ A int32 }

func (d *zeroIDDescriber) Describe(b *archival.Builder) {
	archival.Identified(b, 0, "a", &d.A, archival.Int[int32]())
}

func TestDescriptorOf_RequiresDescribable(t *testing.T) {
	require.Panics(t, func() {
		archival.DescriptorOf[notDescribable]()
	})
}

type notDescribable struct{ A int32 }

func TestSharedPtr_UseCount(t *testing.T) {
	var empty archival.SharedPtr[int]
	require.Nil(t, empty.Get())
	require.EqualValues(t, 0, empty.UseCount())

	v := 42
	sp := archival.NewShared(&v)
	require.EqualValues(t, 1, sp.UseCount())
	require.Equal(t, 42, *sp.Get())
}
