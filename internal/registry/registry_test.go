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

package registry_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/objectarc/archival/internal/arena"
	"github.com/objectarc/archival/internal/registry"
)

func TestWriteRegistry_RootIsID1(t *testing.T) {
	var root int
	r := registry.NewWriteRegistry(unsafe.Pointer(&root), "root-serializer")

	task, ok := r.Next()
	require.True(t, ok)
	require.EqualValues(t, 1, task.ID)
	require.Equal(t, unsafe.Pointer(&root), task.Obj)

	_, ok = r.Next()
	require.False(t, ok, "nothing else was referenced")
}

func TestWriteRegistry_SameAddressSameID(t *testing.T) {
	var shared int
	var root int
	r := registry.NewWriteRegistry(unsafe.Pointer(&root), "root")
	r.Next()

	id1 := r.Reference(unsafe.Pointer(&shared), "elem")
	id2 := r.Reference(unsafe.Pointer(&shared), "elem")
	require.Equal(t, id1, id2, "the same address is minted exactly one id")

	task, ok := r.Next()
	require.True(t, ok)
	require.Equal(t, id1, task.ID)
	_, ok = r.Next()
	require.False(t, ok, "the second Reference call did not enqueue a second write task")
}

func TestWriteRegistry_IDsAreMintedInAscendingOrder(t *testing.T) {
	var root, a, b int
	r := registry.NewWriteRegistry(unsafe.Pointer(&root), "root")
	idA := r.Reference(unsafe.Pointer(&a), "a")
	idB := r.Reference(unsafe.Pointer(&b), "b")
	require.EqualValues(t, 2, idA)
	require.EqualValues(t, 3, idB)
}

func TestReadRegistry_LookupClosesCycles(t *testing.T) {
	var root int
	r := registry.NewReadRegistry(unsafe.Pointer(&root), "root")
	r.Next() // drain the pre-seeded root task

	var allocated int
	alloc := func() (unsafe.Pointer, func()) { allocated++; return unsafe.Pointer(new(int)), nil }

	p1 := r.Lookup(5, alloc, "elem")
	p2 := r.Lookup(5, alloc, "elem")
	require.Equal(t, p1, p2, "the second encounter of an id returns the already-registered address, closing the cycle")
	require.Equal(t, 1, allocated, "allocation happens exactly once per id")

	task, ok := r.Next()
	require.True(t, ok)
	require.EqualValues(t, 5, task.ID)
}

func TestReadRegistry_LookupNullIsNil(t *testing.T) {
	var root int
	r := registry.NewReadRegistry(unsafe.Pointer(&root), "root")
	ptr := r.Lookup(0, func() (unsafe.Pointer, func()) { return nil, nil }, "elem")
	require.Nil(t, ptr)
}

func TestReadRegistry_ReleaseUniqueRejectsSecondAlias(t *testing.T) {
	var root int
	r := registry.NewReadRegistry(unsafe.Pointer(&root), "root")
	alloc := func() (unsafe.Pointer, func()) { return unsafe.Pointer(new(int)), nil }

	_, err := r.Release(7, alloc, "elem", true)
	require.NoError(t, err)

	_, err = r.Release(7, alloc, "elem", true)
	require.ErrorIs(t, err, registry.ErrAlias)
}

func TestReadRegistry_ReleaseNonUniqueAllowsSharing(t *testing.T) {
	var root int
	r := registry.NewReadRegistry(unsafe.Pointer(&root), "root")
	alloc := func() (unsafe.Pointer, func()) { return unsafe.Pointer(new(int)), nil }

	p1, err := r.Release(9, alloc, "elem", false)
	require.NoError(t, err)
	p2, err := r.Release(9, alloc, "elem", false)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
}

func TestReadRegistry_DrainTransfersOnlyUnreleasedEntries(t *testing.T) {
	var root int
	r := registry.NewReadRegistry(unsafe.Pointer(&root), "root")
	lookupAlloc := func() (unsafe.Pointer, func()) { return unsafe.Pointer(new(int)), func() {} }
	releaseAlloc := func() (unsafe.Pointer, func()) { return unsafe.Pointer(new(int)), func() {} }

	r.Lookup(11, lookupAlloc, "elem")      // stays registry-owned
	r.Release(12, releaseAlloc, "elem", true) // caller takes ownership

	var a arena.Arena
	r.Drain(&a)
	require.Equal(t, 1, a.Len(), "only the Lookup-mode entry transfers to the arena")
}
