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
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"unsafe"

	"github.com/objectarc/archival"
	"github.com/objectarc/archival/internal/registry"
)

// Reader implements [archival.IArchive] for the native length-prefixed wire
// format.
type Reader struct {
	src   *bufio.Reader
	n     int64
	cfg   config
	reg   *registry.ReadRegistry
	depth int
}

// NewReader returns a Reader consuming from src.
func NewReader(src io.Reader, opts ...Option) *Reader {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(&cfg)
	}
	return &Reader{src: bufio.NewReader(src), cfg: cfg}
}

// Unmarshal decodes data into v, whose descriptor is looked up via
// [archival.DescriptorOf].
func Unmarshal[T any](data []byte, v *T) error {
	r := NewReader(bytes.NewReader(data))
	owner := &archival.Arena{}
	return r.ReadObject(archival.DescriptorOf[T](), unsafe.Pointer(v), owner)
}

func (r *Reader) fail(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return archival.NewError(archival.ErrUnexpectedEOF, r.n, "unexpected end of stream")
	}
	return archival.WrapError(archival.ErrStreamIO, r.n, err)
}

func (r *Reader) readByte() (byte, error) {
	if r.cfg.sizeLimit >= 0 && r.n >= r.cfg.sizeLimit {
		return 0, archival.NewError(archival.ErrTooLarge, r.n, "read would exceed %d-byte limit", r.cfg.sizeLimit)
	}
	b, err := r.src.ReadByte()
	if err != nil {
		return 0, r.fail(err)
	}
	r.n++
	return b, nil
}

func (r *Reader) readN(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if r.cfg.sizeLimit >= 0 && r.n+int64(n) > r.cfg.sizeLimit {
		return nil, archival.NewError(archival.ErrTooLarge, r.n, "read would exceed %d-byte limit", r.cfg.sizeLimit)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.src, buf); err != nil {
		return nil, r.fail(err)
	}
	r.n += int64(n)
	return buf, nil
}

func (r *Reader) skipN(n int) error {
	if n == 0 {
		return nil
	}
	if r.cfg.sizeLimit >= 0 && r.n+int64(n) > r.cfg.sizeLimit {
		return archival.NewError(archival.ErrTooLarge, r.n, "skip would exceed %d-byte limit", r.cfg.sizeLimit)
	}
	copied, err := io.CopyN(io.Discard, r.src, int64(n))
	r.n += copied
	if err != nil {
		return r.fail(err)
	}
	return nil
}

// readVarint decodes a base-128 little-endian varint.
// protowire.ConsumeVarint is not used here because it operates on a byte
// slice, not an incremental stream; the decoding algorithm it documents is
// reproduced by hand instead.
func (r *Reader) readVarint() (uint64, error) {
	var v uint64
	for shift := uint(0); shift < 64; shift += 7 {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, archival.NewError(archival.ErrInvalidTag, r.n, "varint exceeds 10 bytes")
}

func (r *Reader) readFixed32() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) readFixed64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// --- primitives ---

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.readVarint()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *Reader) ReadInteger(width int) (int64, error) {
	v, err := r.readVarint()
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.readFixed32()
	if err != nil {
		return 0, err
	}
	return floatFromBits32(v), nil
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.readFixed64()
	if err != nil {
		return 0, err
	}
	return floatFromBits64(v), nil
}

func (r *Reader) ReadString(elemSize int) ([]byte, error) {
	count, err := r.readFixed32()
	if err != nil {
		return nil, err
	}
	return r.readN(int(count) * elemSize)
}

// ReadFixedPrimitive reads exactly width raw bytes into obj's native
// in-memory representation, the read-side counterpart to
// [Writer.WriteFixedPrimitive].
func (r *Reader) ReadFixedPrimitive(obj unsafe.Pointer, width int) error {
	b, err := r.readN(width)
	if err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(obj), width), b)
	return nil
}

// --- descriptors ---

func (r *Reader) ReadDescriptor(d *archival.Descriptor, obj unsafe.Pointer, byteBudget int) error {
	r.depth++
	defer func() { r.depth-- }()
	if r.cfg.maxDepth > 0 && r.depth > r.cfg.maxDepth {
		return archival.NewError(archival.ErrTooLarge, r.n, "descriptor nesting exceeds max depth %d", r.cfg.maxDepth)
	}

	limit := r.n + int64(byteBudget)
	for _, f := range d.PositionalFields() {
		if err := f.Serializer.Read(r, archival.FieldPtr(obj, f.Offset), 0); err != nil {
			return err
		}
	}
	for r.n < limit {
		tag, err := r.readVarint()
		if err != nil {
			return err
		}
		id := uint32(tag >> 3)
		wk := archival.WireKind(tag & 0x7)
		budget, err := r.payloadBudget(wk)
		if err != nil {
			return err
		}
		if fd, ok := d.ByIdentifier(id); ok {
			if err := fd.Serializer.Read(r, archival.FieldPtr(obj, fd.Offset), budget); err != nil {
				return err
			}
			continue
		}
		if err := r.skipPayload(wk, budget); err != nil {
			return err
		}
	}
	if r.n > limit {
		return archival.NewError(archival.ErrFramingMismatch, r.n, "descriptor consumed %d bytes past its %d-byte budget", r.n-limit, byteBudget)
	}
	for _, f := range d.PostHookFields() {
		if err := f.Serializer.Read(r, archival.FieldPtr(obj, f.Offset), 0); err != nil {
			return err
		}
	}
	return nil
}

// payloadBudget determines how many payload bytes follow a tag of the
// given wire kind: a length-delimited tag reads its
// own length prefix; b32/b64 are fixed width; varint carries no separate
// budget (ReadInteger/ReadBool consume exactly one varint themselves).
func (r *Reader) payloadBudget(wk archival.WireKind) (int, error) {
	switch wk {
	case archival.WireVarint:
		return 0, nil
	case archival.WireB32:
		return 4, nil
	case archival.WireB64:
		return 8, nil
	case archival.WireLenDelimited:
		n, err := r.readVarint()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	default:
		return 0, archival.NewError(archival.ErrInvalidTag, r.n, "tag decoded to unknown wire kind %d", wk)
	}
}

func (r *Reader) skipPayload(wk archival.WireKind, budget int) error {
	if wk == archival.WireVarint {
		_, err := r.readVarint()
		return err
	}
	return r.skipN(budget)
}

// --- root object and references ---

// ReadObject is the root entry point: it seeds id 1 with obj, then drains
// the work queue the registry builds as references
// are discovered, reading each queued object's own (tag, size) frame before
// delegating to its serializer.
func (r *Reader) ReadObject(ser archival.FieldSerializer, obj unsafe.Pointer, owner *archival.Arena) error {
	r.reg = registry.NewReadRegistry(obj, ser)
	for {
		task, ok := r.reg.Next()
		if !ok {
			break
		}
		taskSer, ok := task.Serializer.(archival.FieldSerializer)
		if !ok {
			return archival.NewError(archival.ErrSerializerMissing, r.n, "queued object %d has no field serializer", task.ID)
		}
		tag, err := r.readVarint()
		if err != nil {
			return err
		}
		if archival.WireKind(tag&0x7) != archival.WireLenDelimited {
			return archival.NewError(archival.ErrInvalidTag, r.n, "object framing expected a length-delimited tag")
		}
		if uint32(tag>>3) != task.ID {
			return archival.NewError(archival.ErrFramingMismatch, r.n, "expected object id %d, stream has %d", task.ID, uint32(tag>>3))
		}
		size, err := r.readVarint()
		if err != nil {
			return err
		}
		if err := taskSer.Read(r, task.Obj, int(size)); err != nil {
			return err
		}
	}
	if owner == nil {
		owner = r.cfg.arena
	}
	if owner != nil {
		r.reg.Drain(owner)
	}
	return nil
}

func (r *Reader) ReadObjectReference(ser archival.FieldSerializer, alloc archival.AllocFunc) (unsafe.Pointer, error) {
	id, err := r.readFixed32()
	if err != nil {
		return nil, err
	}
	return r.reg.Lookup(id, alloc, ser), nil
}

func (r *Reader) ReadObjectReferenceResponsible(ser archival.FieldSerializer, alloc archival.AllocFunc, unique bool) (unsafe.Pointer, error) {
	id, err := r.readFixed32()
	if err != nil {
		return nil, err
	}
	ptr, err := r.reg.Release(id, alloc, ser, unique)
	if err != nil {
		return nil, archival.WrapError(archival.ErrAliasViolation, r.n, err)
	}
	return ptr, nil
}

// --- arrays and dictionaries ---

func (r *Reader) ReadArray(a archival.ArrayAppender) error {
	lengthFlag, err := r.readFixed32()
	if err != nil {
		return err
	}
	n := int(lengthFlag &^ 0x80000000)
	counted := lengthFlag&0x80000000 != 0
	if err := a.Reserve(n); err != nil {
		return err
	}
	ser := a.ElementSerializer()
	width := ser.Type().FixedWidth()
	for i := 0; i < n; i++ {
		slot, err := a.Allocate()
		if err != nil {
			return err
		}
		if !counted {
			if err := r.ReadFixedPrimitive(slot, width); err != nil {
				return err
			}
			continue
		}
		sz, err := r.readVarint()
		if err != nil {
			return err
		}
		if err := ser.Read(r, slot, int(sz)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) ReadDictionary(d archival.DictionaryInserter) error {
	n, err := r.readFixed32()
	if err != nil {
		return err
	}
	d.Reserve(int(n))
	keySer, valSer := d.KeySerializer(), d.ValueSerializer()
	for i := uint32(0); i < n; i++ {
		if err := keySer.Read(r, d.Key(), 0); err != nil {
			return err
		}
		if err := valSer.Read(r, d.Insert(), 0); err != nil {
			return err
		}
	}
	d.Close()
	return nil
}

func (r *Reader) Skip(n int) error { return r.skipN(n) }

func (r *Reader) Count() int64 { return r.n }
