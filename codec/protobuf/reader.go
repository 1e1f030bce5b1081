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

package protobuf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"unsafe"

	"github.com/objectarc/archival"
)

// Reader implements [archival.IArchive] for the Protobuf-compatible wire
// format.
type Reader struct {
	src   *bufio.Reader
	n     int64
	cfg   config
	depth int

	// pending is the byte budget for whatever ReadString or
	// ReadObjectReference(Responsible) call comes next. Unlike
	// ReadDescriptor, those two IArchive methods take no explicit budget
	// parameter (codec/native does not need one: a string is self-framed
	// and a reference is always a bare 4-byte id there), so readMessage
	// stashes it here immediately before invoking the field's Read.
	pending int
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
	return r.ReadObject(archival.DescriptorOf[T](), unsafe.Pointer(v), nil)
}

func (r *Reader) fail(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return archival.NewError(archival.ErrUnexpectedEOF, r.n, "unexpected end of stream")
	}
	return archival.WrapError(archival.ErrStreamIO, r.n, err)
}

func (r *Reader) readByte() (byte, error) {
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
	copied, err := io.CopyN(io.Discard, r.src, int64(n))
	r.n += copied
	if err != nil {
		return r.fail(err)
	}
	return nil
}

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

// atEOF reports whether the stream has no more bytes, without consuming
// any. It is only meaningful at a message's top level, where -- unlike a
// nested message -- there is no outer length prefix to bound the read by.
func (r *Reader) atEOF() bool {
	_, err := r.src.Peek(1)
	return err != nil
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

// ReadString reads exactly r.pending bytes: the outer tag's length prefix
// already determined the payload length, so unlike codec/native a string
// field carries no length of its own on the wire.
func (r *Reader) ReadString(elemSize int) ([]byte, error) {
	return r.readN(r.pending)
}

// --- descriptors ---

// ReadDescriptor reads d's identified fields from exactly byteBudget
// bytes. d must have no positional fields, mirroring WriteDescriptor's
// ErrProtobufIncompat check.
func (r *Reader) ReadDescriptor(d *archival.Descriptor, obj unsafe.Pointer, byteBudget int) error {
	if len(d.PositionalFields()) > 0 {
		return archival.NewError(archival.ErrProtobufIncompat, r.n, "descriptor %s has positional fields, which the Protobuf codec cannot represent", d.Name)
	}
	return r.readMessage(d, obj, r.n+int64(byteBudget))
}

// readMessage drains tags belonging to d's fields until limit is reached.
// A limit of -1 means "until EOF", used only for the top-level message,
// which carries no outer length prefix.
func (r *Reader) readMessage(d *archival.Descriptor, obj unsafe.Pointer, limit int64) error {
	r.depth++
	defer func() { r.depth-- }()
	if r.cfg.maxDepth > 0 && r.depth > r.cfg.maxDepth {
		return archival.NewError(archival.ErrTooLarge, r.n, "message nesting exceeds max depth %d", r.cfg.maxDepth)
	}

	arrays := map[uint32]archival.ArrayAppender{}
	maps := map[uint32]archival.DictionaryInserter{}

	for {
		if limit >= 0 {
			if r.n >= limit {
				break
			}
		} else if r.atEOF() {
			break
		}

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

		fd, ok := d.ByIdentifier(id)
		if !ok {
			if err := r.skipPayload(wk, budget); err != nil {
				return err
			}
			continue
		}
		fp := archival.FieldPtr(obj, fd.Offset)

		if af, isArray := fd.Serializer.(archival.ArrayField); isArray {
			ap, seen := arrays[id]
			if !seen {
				ap = af.NewArrayAppender(fp)
				arrays[id] = ap
			}
			slot, err := ap.Allocate()
			if err != nil {
				return err
			}
			r.pending = budget
			if err := ap.ElementSerializer().Read(r, slot, budget); err != nil {
				return err
			}
			continue
		}
		if mf, isMap := fd.Serializer.(archival.MapField); isMap {
			mi, seen := maps[id]
			if !seen {
				mi = mf.NewDictionaryInserter(fp)
				maps[id] = mi
			}
			if err := r.readMapEntry(mi, r.n+int64(budget)); err != nil {
				return err
			}
			continue
		}

		r.pending = budget
		if err := fd.Serializer.Read(r, fp, budget); err != nil {
			return err
		}
	}

	for _, mi := range maps {
		mi.Close()
	}

	if limit >= 0 && r.n > limit {
		return archival.NewError(archival.ErrFramingMismatch, r.n, "message consumed %d bytes past its budget", r.n-limit)
	}
	for _, f := range d.PostHookFields() {
		if err := f.Serializer.Read(r, archival.FieldPtr(obj, f.Offset), 0); err != nil {
			return err
		}
	}
	return nil
}

// readMapEntry reads one map-entry submessage (two identified fields,
// id 1 = key and id 2 = value) into mi.
func (r *Reader) readMapEntry(mi archival.DictionaryInserter, limit int64) error {
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
		switch id {
		case 1:
			r.pending = budget
			if err := mi.KeySerializer().Read(r, mi.Key(), budget); err != nil {
				return err
			}
		case 2:
			r.pending = budget
			if err := mi.ValueSerializer().Read(r, mi.Insert(), budget); err != nil {
				return err
			}
		default:
			if err := r.skipPayload(wk, budget); err != nil {
				return err
			}
		}
	}
	if r.n > limit {
		return archival.NewError(archival.ErrFramingMismatch, r.n, "map entry consumed %d bytes past its budget", r.n-limit)
	}
	return nil
}

// payloadBudget determines how many payload bytes follow a tag of the
// given wire kind, so an unknown identifier on read can be skipped per
// wire kind.
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

// ReadObject is the root entry point. A Protobuf message has no outer
// length prefix, so the field-tag loop runs until the stream reports EOF
// rather than until a byte budget is exhausted. owner is accepted to
// satisfy [archival.IArchive] but unused: this codec allocates a fresh
// value on every reference occurrence (see ReadObjectReference) and hands
// ownership directly to the caller through the object graph itself, with
// nothing for an arena to track.
func (r *Reader) ReadObject(ser archival.FieldSerializer, obj unsafe.Pointer, owner *archival.Arena) error {
	d, ok := ser.(*archival.Descriptor)
	if !ok {
		return archival.NewError(archival.ErrProtobufIncompat, r.n, "Protobuf codec can only read a descriptor at the root")
	}
	if len(d.PositionalFields()) > 0 {
		return archival.NewError(archival.ErrProtobufIncompat, r.n, "descriptor %s has positional fields, which the Protobuf codec cannot represent", d.Name)
	}
	return r.readMessage(d, obj, -1)
}

// ReadObjectReference allocates a fresh value and reads the referent
// directly into it: Protobuf has no object-identity wire representation,
// so every occurrence of a reference field is an independent nested
// message, never a shared lookup: cyclic or aliased graphs are
// inherently unsupported by this wire format.
func (r *Reader) ReadObjectReference(ser archival.FieldSerializer, alloc archival.AllocFunc) (unsafe.Pointer, error) {
	budget := r.pending
	ptr, _ := alloc()
	if err := ser.Read(r, ptr, budget); err != nil {
		return nil, err
	}
	return ptr, nil
}

// ReadObjectReferenceResponsible behaves identically to
// ReadObjectReference: there is no registry to enforce the unique-alias
// invariant against, since every occurrence already allocates its own
// instance.
func (r *Reader) ReadObjectReferenceResponsible(ser archival.FieldSerializer, alloc archival.AllocFunc, unique bool) (unsafe.Pointer, error) {
	return r.ReadObjectReference(ser, alloc)
}

// --- arrays and dictionaries ---
//
// As with Writer, these exist only to satisfy [archival.IArchive]; the
// repeated-field and map-entry read paths are handled directly inside
// readMessage, which knows the enclosing field's identifier (needed to
// detect repeated tag occurrences) in a way ReadArray/ReadDictionary's
// signatures do not expose.

func (r *Reader) ReadArray(archival.ArrayAppender) error {
	return archival.NewError(archival.ErrProtobufIncompat, r.n, "Protobuf codec requires an array to be a message's own identified field")
}

func (r *Reader) ReadDictionary(archival.DictionaryInserter) error {
	return archival.NewError(archival.ErrProtobufIncompat, r.n, "Protobuf codec requires a map to be a message's own identified field")
}

// ReadFixedPrimitive is unreachable for the same reason
// [Writer.WriteFixedPrimitive] is: a repeated field here is always
// non-packed, one tag per element, so there is no packed fixed-width mode
// to read back.
func (r *Reader) ReadFixedPrimitive(unsafe.Pointer, int) error {
	return archival.NewError(archival.ErrProtobufIncompat, r.n, "Protobuf codec has no packed fixed-width array representation")
}

func (r *Reader) Skip(n int) error { return r.skipN(n) }

func (r *Reader) Count() int64 { return r.n }
