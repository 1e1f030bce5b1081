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

import (
	"bytes"
	"io"
	"unsafe"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/objectarc/archival"
	"github.com/objectarc/archival/internal/registry"
)

// Writer implements [archival.OArchive] for the native length-prefixed
// wire format.
type Writer struct {
	dst     io.Writer
	n       int64
	cfg     config
	reg     *registry.WriteRegistry
	scratch []byte
}

// New returns a Writer that emits to dst.
func New(dst io.Writer, opts ...Option) *Writer {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(&cfg)
	}
	return &Writer{dst: dst, cfg: cfg}
}

// Marshal encodes v, whose descriptor is looked up via
// [archival.DescriptorOf], into a freshly allocated byte slice.
func Marshal[T any](v *T) ([]byte, error) {
	var buf bytes.Buffer
	w := New(&buf)
	if err := w.WriteObject(archival.DescriptorOf[T](), unsafe.Pointer(v)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *Writer) writeRaw(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if w.cfg.sizeLimit >= 0 && w.n+int64(len(b)) > w.cfg.sizeLimit {
		return archival.NewError(archival.ErrTooLarge, w.n, "write would exceed %d-byte limit", w.cfg.sizeLimit)
	}
	if _, err := w.dst.Write(b); err != nil {
		return archival.WrapError(archival.ErrStreamIO, w.n, err)
	}
	w.n += int64(len(b))
	return nil
}

func (w *Writer) writeVarint(v uint64) error {
	w.scratch = protowire.AppendVarint(w.scratch[:0], v)
	return w.writeRaw(w.scratch)
}

func (w *Writer) writeFixed32(v uint32) error {
	w.scratch = protowire.AppendFixed32(w.scratch[:0], v)
	return w.writeRaw(w.scratch)
}

func (w *Writer) writeFixed64(v uint64) error {
	w.scratch = protowire.AppendFixed64(w.scratch[:0], v)
	return w.writeRaw(w.scratch)
}

// --- primitives ---

func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.writeVarint(1)
	}
	return w.writeVarint(0)
}

func (w *Writer) SizeBool() int { return 1 }

// WriteInteger always uses varint framing regardless of width: signed
// values are reinterpreted bit-wise through the unsigned encoder, so a
// negative int8 varint-encodes exactly like a negative int64 (maximum
// length).
func (w *Writer) WriteInteger(v int64, width int) error {
	return w.writeVarint(uint64(v))
}

func (w *Writer) SizeInteger(v int64, width int) int {
	return protowire.SizeVarint(uint64(v))
}

func (w *Writer) WriteFloat32(v float32) error {
	return w.writeFixed32(floatBits32(v))
}

func (w *Writer) SizeFloat32() int { return 4 }

func (w *Writer) WriteFloat64(v float64) error {
	return w.writeFixed64(floatBits64(v))
}

func (w *Writer) SizeFloat64() int { return 8 }

func (w *Writer) WriteString(data []byte, elemSize int) error {
	if err := w.writeFixed32(uint32(len(data) / elemSize)); err != nil {
		return err
	}
	return w.writeRaw(data)
}

func (w *Writer) SizeString(data []byte, elemSize int) int { return 4 + len(data) }

// WriteFixedPrimitive copies width bytes out of obj's native in-memory
// representation verbatim. The host is assumed little-endian, matching
// every other fixed-width field on this wire (WriteFloat32, WriteFloat64),
// so no byte-swap is needed.
func (w *Writer) WriteFixedPrimitive(obj unsafe.Pointer, width int) error {
	return w.writeRaw(unsafe.Slice((*byte)(obj), width))
}

// --- descriptors ---

func (w *Writer) WriteDescriptor(d *archival.Descriptor, obj unsafe.Pointer) error {
	for _, f := range d.PositionalFields() {
		if err := f.Serializer.Write(w, archival.FieldPtr(obj, f.Offset)); err != nil {
			return err
		}
	}
	for _, f := range d.IdentifiedFields() {
		fp := archival.FieldPtr(obj, f.Offset)
		wk := f.Serializer.Type().WireKindOf()
		tag := protowire.EncodeTag(protowire.Number(f.Identifier), wk)
		if err := w.writeVarint(tag); err != nil {
			return err
		}
		if wk == archival.WireLenDelimited {
			if err := w.writeVarint(uint64(f.Serializer.Size(w, fp))); err != nil {
				return err
			}
		}
		if err := f.Serializer.Write(w, fp); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) SizeDescriptor(d *archival.Descriptor, obj unsafe.Pointer) int {
	return d.Size(w, obj)
}

// --- root object and references ---

// WriteObject is the root entry point: the root is minted id 1 and
// enqueued like any other reference, so the drain loop
// below emits it, and everything it transitively reaches, uniformly.
func (w *Writer) WriteObject(ser archival.FieldSerializer, obj unsafe.Pointer) error {
	w.reg = registry.NewWriteRegistry(obj, ser)
	for {
		task, ok := w.reg.Next()
		if !ok {
			return nil
		}
		if err := w.emit(task); err != nil {
			return err
		}
	}
}

func (w *Writer) emit(task registry.WriteTask) error {
	ser, ok := task.Serializer.(archival.FieldSerializer)
	if !ok {
		return archival.NewError(archival.ErrSerializerMissing, w.n, "queued object %d has no field serializer", task.ID)
	}
	tag := protowire.EncodeTag(protowire.Number(task.ID), archival.WireLenDelimited)
	if err := w.writeVarint(tag); err != nil {
		return err
	}
	if err := w.writeVarint(uint64(ser.Size(w, task.Obj))); err != nil {
		return err
	}
	return ser.Write(w, task.Obj)
}

// WriteObjectReference emits a 32-bit id inline, minting one via the
// registry on first encounter of obj (0 for a null pointer).
func (w *Writer) WriteObjectReference(ser archival.FieldSerializer, obj unsafe.Pointer) error {
	if obj == nil {
		return w.writeFixed32(0)
	}
	return w.writeFixed32(w.reg.Reference(obj, ser))
}

// SizeObjectReference is always 4: a reference is always a bare id, never
// the referent's own payload.
func (w *Writer) SizeObjectReference(archival.FieldSerializer, unsafe.Pointer) int { return 4 }

// --- arrays and dictionaries ---

func (w *Writer) WriteArray(r archival.ArrayReader) error {
	n := r.Len()
	if n > 0x7fffffff {
		return archival.NewError(archival.ErrTooLarge, w.n, "array has %d elements, more than a u31 can index", n)
	}
	immutable := r.ImmutableSize(w)
	length := uint32(n)
	if immutable == 0 {
		length |= 0x80000000
	}
	if err := w.writeFixed32(length); err != nil {
		return err
	}
	ser := r.ElementSerializer()
	for i := 0; i < n; i++ {
		el := r.Get(i)
		if immutable > 0 {
			if err := w.WriteFixedPrimitive(el, immutable); err != nil {
				return err
			}
			continue
		}
		if err := w.writeVarint(uint64(ser.Size(w, el))); err != nil {
			return err
		}
		if err := ser.Write(w, el); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) SizeArray(r archival.ArrayReader) int {
	n := r.Len()
	total := 4
	if immutable := r.ImmutableSize(w); immutable > 0 {
		return total + immutable*n
	}
	ser := r.ElementSerializer()
	for i := 0; i < n; i++ {
		size := ser.Size(w, r.Get(i))
		total += protowire.SizeVarint(uint64(size)) + size
	}
	return total
}

func (w *Writer) WriteDictionary(r archival.DictionaryReader) error {
	if err := w.writeFixed32(uint32(r.Len())); err != nil {
		return err
	}
	keySer, valSer := r.KeySerializer(), r.ValueSerializer()
	for r.Next() {
		if err := keySer.Write(w, r.Key()); err != nil {
			return err
		}
		if err := valSer.Write(w, r.Value()); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) SizeDictionary(r archival.DictionaryReader) int {
	total := 4
	keySer, valSer := r.KeySerializer(), r.ValueSerializer()
	for r.Next() {
		total += keySer.Size(w, r.Key()) + valSer.Size(w, r.Value())
	}
	return total
}
