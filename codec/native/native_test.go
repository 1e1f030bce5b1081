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

package native_test

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/objectarc/archival"
	"github.com/objectarc/archival/codec/native"
)

// --- varint boundary behaviors ---

func TestVarint_150EncodesToTwoBytes(t *testing.T) {
	var buf bytes.Buffer
	w := native.New(&buf)
	require.NoError(t, w.WriteInteger(150, 4))
	require.Equal(t, []byte{0x96, 0x01}, buf.Bytes())

	r := native.NewReader(bytes.NewReader(buf.Bytes()))
	v, err := r.ReadInteger(4)
	require.NoError(t, err)
	require.EqualValues(t, 150, v)
}

func TestVarint_ZeroIsOneByte(t *testing.T) {
	var buf bytes.Buffer
	w := native.New(&buf)
	require.NoError(t, w.WriteInteger(0, 8))
	require.Equal(t, []byte{0x00}, buf.Bytes())
}

func TestVarint_NegativeOneIsTenBytesAllContinuation(t *testing.T) {
	var buf bytes.Buffer
	w := native.New(&buf)
	require.NoError(t, w.WriteInteger(-1, 8))
	require.Len(t, buf.Bytes(), 10)
	for _, b := range buf.Bytes()[:9] {
		require.NotZero(t, b&0x80, "every byte but the last carries a continuation bit")
	}
	require.Zero(t, buf.Bytes()[9]&0x80)

	r := native.NewReader(bytes.NewReader(buf.Bytes()))
	v, err := r.ReadInteger(8)
	require.NoError(t, err)
	require.EqualValues(t, -1, v)
}

// --- cyclic doubly-linked list ---

type node struct {
	Value int32
	Next  *node // owning
	Prev  *node // raw, non-owning
}

func (n *node) Describe(b *archival.Builder) {
	archival.Identified(b, 1, "value", &n.Value, archival.Int[int32]())
	archival.Identified(b, 2, "next", &n.Next, archival.Owning[node](archival.DescriptorOf[node]()))
	archival.Identified(b, 3, "prev", &n.Prev, archival.Raw[node](archival.DescriptorOf[node]()))
}

func TestNative_CyclicDoublyLinkedList(t *testing.T) {
	n1, n2, n3 := &node{Value: 1}, &node{Value: 2}, &node{Value: 3}
	n1.Next, n2.Next, n3.Next = n2, n3, n1
	n1.Prev, n2.Prev, n3.Prev = n3, n1, n2

	data, err := native.Marshal(n1)
	require.NoError(t, err)

	var out node
	require.NoError(t, native.Unmarshal(data, &out))

	require.EqualValues(t, 1, out.Value)
	require.EqualValues(t, 2, out.Next.Value)
	require.EqualValues(t, 3, out.Next.Next.Value)

	require.Same(t, &out, out.Next.Next.Next, "the cycle closes back onto the root's own address")
	require.Same(t, &out, out.Next.Prev, "node2's prev pointer aliases the root")
	require.Same(t, out.Next.Next, out.Prev, "node3 is reachable both via Next.Next and via the root's own Prev")
}

// --- shared pointers ---

type triple struct {
	A, B, C archival.SharedPtr[int]
}

func (t *triple) Describe(b *archival.Builder) {
	archival.Identified(b, 1, "a", &t.A, archival.Shared[int](archival.Int[int]()))
	archival.Identified(b, 2, "b", &t.B, archival.Shared[int](archival.Int[int]()))
	archival.Identified(b, 3, "c", &t.C, archival.Shared[int](archival.Int[int]()))
}

func TestNative_SharedPointerAliasing(t *testing.T) {
	a, bv := 5, 9
	in := triple{A: archival.NewShared(&a), B: archival.NewShared(&bv)}
	in.C = in.A // c aliases a

	data, err := native.Marshal(&in)
	require.NoError(t, err)

	var out triple
	require.NoError(t, native.Unmarshal(data, &out))

	require.Equal(t, 5, *out.A.Get())
	require.Same(t, out.A.Get(), out.C.Get(), "a and c alias the same address")
	require.NotEqual(t, out.A.Get(), out.B.Get())
	require.EqualValues(t, 2, out.A.UseCount())
	require.EqualValues(t, 1, out.B.UseCount())
}

// --- backward compatibility across identifier sets ---

type recordV1 struct {
	A, B int32
}

func (r *recordV1) Describe(b *archival.Builder) {
	archival.Identified(b, 1, "a", &r.A, archival.Int[int32]())
	archival.Identified(b, 2, "b", &r.B, archival.Int[int32]())
}

type recordV2 struct {
	A, C int32
}

func (r *recordV2) Describe(b *archival.Builder) {
	archival.Identified(b, 1, "a", &r.A, archival.Int[int32]())
	archival.Identified(b, 3, "c", &r.C, archival.Int[int32]())
}

func TestNative_UnknownIdentifierIsSkippedNotAnError(t *testing.T) {
	data, err := native.Marshal(&recordV1{A: 7, B: 99})
	require.NoError(t, err)

	var out recordV2
	require.NoError(t, native.Unmarshal(data, &out))
	require.EqualValues(t, 7, out.A, "shared identifier 1 round-trips")
	require.Zero(t, out.C, "field 3 was never on the wire, so it keeps its default")
}

// --- mixed fixed/counted array framing ---

func TestNative_FixedSizeArrayFraming(t *testing.T) {
	var buf bytes.Buffer
	w := native.New(&buf)
	vals := []int32{1, 2, 3, 111}
	ser := archival.Slice[int32](archival.Int[int32]())
	require.NoError(t, ser.Write(w, unsafe.Pointer(&vals)))

	data := buf.Bytes()
	require.Len(t, data, 4+4*4, "4-byte length header plus 4 elements of 4 bytes each")
	length := binary.LittleEndian.Uint32(data[:4])
	require.EqualValues(t, 4, length&0x7fffffff)
	require.Zero(t, length&0x80000000, "every element has a constant size, so the counted-mode flag is clear")
}

func TestNative_FixedSizeArrayFramingRoundTripsVaryingMagnitude(t *testing.T) {
	var buf bytes.Buffer
	w := native.New(&buf)
	vals := []int32{1, 300000000}
	ser := archival.Slice[int32](archival.Int[int32]())
	require.NoError(t, ser.Write(w, unsafe.Pointer(&vals)))

	data := buf.Bytes()
	require.Len(t, data, 4+4*2, "every element occupies a constant 4 bytes regardless of its magnitude")
	length := binary.LittleEndian.Uint32(data[:4])
	require.Zero(t, length&0x80000000)

	r := native.NewReader(bytes.NewReader(data))
	var roundTripped []int32
	require.NoError(t, ser.Read(r, unsafe.Pointer(&roundTripped), 0))
	require.Equal(t, vals, roundTripped)
}

func TestNative_CountedArrayFraming(t *testing.T) {
	var buf bytes.Buffer
	w := native.New(&buf)
	vals := []string{"x", "yy"}
	ser := archival.Slice[string](archival.String())
	require.NoError(t, ser.Write(w, unsafe.Pointer(&vals)))

	length := binary.LittleEndian.Uint32(buf.Bytes()[:4])
	require.EqualValues(t, 2, length&0x7fffffff)
	require.NotZero(t, length&0x80000000, "variable-size elements set the counted-mode flag")

	r := native.NewReader(bytes.NewReader(buf.Bytes()))
	var roundTripped []string
	require.NoError(t, ser.Read(r, unsafe.Pointer(&roundTripped), 0))
	require.Equal(t, vals, roundTripped)
}

// --- fixed array length mismatch ---

type fixed3 struct{ Arr [3]int32 }

func (f *fixed3) Describe(b *archival.Builder) {
	archival.Identified(b, 1, "arr", &f.Arr, archival.FixedArray[int32](3, archival.Int[int32]()))
}

type fixed4 struct{ Arr [4]int32 }

func (f *fixed4) Describe(b *archival.Builder) {
	archival.Identified(b, 1, "arr", &f.Arr, archival.FixedArray[int32](4, archival.Int[int32]()))
}

func TestNative_FixedArrayLengthMismatchFails(t *testing.T) {
	data, err := native.Marshal(&fixed3{Arr: [3]int32{1, 2, 3}})
	require.NoError(t, err)

	var out fixed4
	err = native.Unmarshal(data, &out)
	require.Error(t, err)
	kind, ok := archival.KindOf(err)
	require.True(t, ok)
	require.Equal(t, archival.ErrSizeMismatch, kind)
}

func TestNative_FixedArrayRoundTrips(t *testing.T) {
	data, err := native.Marshal(&fixed3{Arr: [3]int32{7, 8, 9}})
	require.NoError(t, err)
	var out fixed3
	require.NoError(t, native.Unmarshal(data, &out))
	require.Equal(t, [3]int32{7, 8, 9}, out.Arr)
}

// --- general round trip across primitives, strings, maps, and nested descriptors ---

type address struct {
	City string
	Zip  int32
}

func (a *address) Describe(b *archival.Builder) {
	archival.Identified(b, 1, "city", &a.City, archival.String())
	archival.Identified(b, 2, "zip", &a.Zip, archival.Int[int32]())
}

type person struct {
	Name    string
	Age     int32
	Height  float64
	Active  bool
	Home    address
	Aliases []string
	Scores  map[string]int32
}

func (p *person) Describe(b *archival.Builder) {
	archival.Identified(b, 1, "name", &p.Name, archival.String())
	archival.Identified(b, 2, "age", &p.Age, archival.Int[int32]())
	archival.Identified(b, 3, "height", &p.Height, archival.Float[float64]())
	archival.Identified(b, 4, "active", &p.Active, archival.Bool())
	archival.Identified(b, 5, "home", &p.Home, archival.DescriptorOf[address]())
	archival.Identified(b, 6, "aliases", &p.Aliases, archival.Slice[string](archival.String()))
	archival.Identified(b, 7, "scores", &p.Scores, archival.Map[string, int32](archival.String(), archival.Int[int32]()))
}

func TestNative_GeneralRoundTrip(t *testing.T) {
	in := person{
		Name:    "Ada",
		Age:     36,
		Height:  1.68,
		Active:  true,
		Home:    address{City: "London", Zip: 1010},
		Aliases: []string{"countess", "enchantress"},
		Scores:  map[string]int32{"math": 100, "logic": 98},
	}

	data, err := native.Marshal(&in)
	require.NoError(t, err)

	var out person
	require.NoError(t, native.Unmarshal(data, &out))
	require.Equal(t, in, out)
}

func TestNative_SizeMatchesWrittenBytes(t *testing.T) {
	in := person{Name: "Grace", Age: 85, Home: address{City: "NYC"}}
	var buf bytes.Buffer
	w := native.New(&buf)
	d := archival.DescriptorOf[person]()
	size := d.Size(w, unsafe.Pointer(&in))
	require.NoError(t, w.WriteDescriptor(d, unsafe.Pointer(&in)))
	require.Equal(t, size, buf.Len(), "Size must predict Write's output exactly")
}

type empty struct{}

func (*empty) Describe(*archival.Builder) {}

// --- embedded base type with identified fields of its own ---

type baseInfo struct {
	ID   int32
	Name string
}

func (b *baseInfo) Describe(bd *archival.Builder) {
	archival.Identified(bd, 1, "id", &b.ID, archival.Int[int32]())
	archival.Identified(bd, 2, "name", &b.Name, archival.String())
}

type derivedWidget struct {
	baseInfo
	Extra int32
}

func (d *derivedWidget) Describe(b *archival.Builder) {
	archival.EmbedField(b, &d.baseInfo)
	archival.Identified(b, 3, "extra", &d.Extra, archival.Int[int32]())
}

func TestNative_EmbedFieldFlattensIdentifiedFields(t *testing.T) {
	in := derivedWidget{baseInfo: baseInfo{ID: 7, Name: "gear"}, Extra: 99}
	data, err := native.Marshal(&in)
	require.NoError(t, err)

	var out derivedWidget
	require.NoError(t, native.Unmarshal(data, &out))
	require.Equal(t, in, out)
}

func TestNative_EmptyDescriptorEncodesAsTagAndZeroSize(t *testing.T) {
	data, err := native.Marshal(&empty{})
	require.NoError(t, err)
	// tag varint ((1<<3)|STRING=2) == 0x0a, size varint 0 == 0x00
	require.Equal(t, []byte{0x0a, 0x00}, data)
}
