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

import "unsafe"

type stringField struct{}

// String returns a field serializer for a Go string field (elemSize 1).
func String() FieldSerializer { return stringField{} }

func (stringField) Allocates() bool  { return false }
func (stringField) IsOptional() bool { return false }
func (stringField) Type() Atom       { return AtomString }

func (stringField) Size(w OArchive, obj unsafe.Pointer) int {
	s := *(*string)(obj)
	return w.SizeString(unsafe.Slice(unsafe.StringData(s), len(s)), 1)
}

func (stringField) Write(w OArchive, obj unsafe.Pointer) error {
	s := *(*string)(obj)
	return w.WriteString(unsafe.Slice(unsafe.StringData(s), len(s)), 1)
}

func (stringField) Read(r IArchive, obj unsafe.Pointer, byteBudget int) error {
	data, err := r.ReadString(1)
	if err != nil {
		return err
	}
	*(*string)(obj) = string(data)
	return nil
}

type bytesField struct{}

// Bytes returns a field serializer for a []byte field, sharing the string
// atom's length-prefixed framing.
func Bytes() FieldSerializer { return bytesField{} }

func (bytesField) Allocates() bool  { return false }
func (bytesField) IsOptional() bool { return false }
func (bytesField) Type() Atom       { return AtomString }

func (bytesField) Size(w OArchive, obj unsafe.Pointer) int {
	b := *(*[]byte)(obj)
	return w.SizeString(b, 1)
}

func (bytesField) Write(w OArchive, obj unsafe.Pointer) error {
	b := *(*[]byte)(obj)
	return w.WriteString(b, 1)
}

func (bytesField) Read(r IArchive, obj unsafe.Pointer, byteBudget int) error {
	data, err := r.ReadString(1)
	if err != nil {
		return err
	}
	*(*[]byte)(obj) = data
	return nil
}

// Duration returns a field serializer for a time.Duration field. Per spec
// section 4.2 item 4, the unit (nanoseconds, fixed by the standard library)
// is a static property of the type and never travels on the wire: only the
// count is serialized. time.Duration's underlying representation is int64,
// so it shares intField's code path exactly -- the unsafe.Pointer reads and
// writes the same eight bytes either way.
func Duration() FieldSerializer { return intField[int64]{} }
