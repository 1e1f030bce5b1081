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

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes the ways an archive operation can fail. Unknown
// identified fields are deliberately absent from this list: per the wire
// format, an unrecognized identifier is skipped, not a failure.
type ErrorKind int

const (
	// ErrStreamIO means the underlying stream's Read returned an error other
	// than end of stream, or its Write returned an error.
	ErrStreamIO ErrorKind = iota
	// ErrUnexpectedEOF means a read encountered end of stream before the
	// required byte count was consumed.
	ErrUnexpectedEOF
	// ErrInvalidTag means a tag byte decoded to a wire kind not expected in
	// context.
	ErrInvalidTag
	// ErrFramingMismatch means a descriptor read consumed more bytes than
	// its declared byte budget.
	ErrFramingMismatch
	// ErrAliasViolation means a unique-pointer read found an id that had
	// already been responsibly released.
	ErrAliasViolation
	// ErrSizeMismatch means a fixed-length array deserialization received a
	// length that did not match the declared length.
	ErrSizeMismatch
	// ErrProtobufIncompat means a descriptor with positional fields was
	// offered to the Protobuf codec.
	ErrProtobufIncompat
	// ErrTooLarge means a fixed-wire array had more than 2^31-1 elements, or
	// a configured byte-size or nesting-depth limit was exceeded.
	ErrTooLarge
	// ErrSerializerMissing means a host type without a registered trait or
	// descriptor was referenced.
	ErrSerializerMissing
)

func (k ErrorKind) String() string {
	switch k {
	case ErrStreamIO:
		return "stream I/O error"
	case ErrUnexpectedEOF:
		return "unexpected EOF"
	case ErrInvalidTag:
		return "invalid tag"
	case ErrFramingMismatch:
		return "framing mismatch"
	case ErrAliasViolation:
		return "alias violation"
	case ErrSizeMismatch:
		return "size mismatch"
	case ErrProtobufIncompat:
		return "protobuf-incompatible descriptor"
	case ErrTooLarge:
		return "value too large"
	case ErrSerializerMissing:
		return "no serializer for type"
	default:
		return "unknown error"
	}
}

// Error is the error type returned by every public archive operation. The
// archive that produced it is no longer usable: there is no local recovery
// or rollback in this engine.
type Error struct {
	Kind   ErrorKind
	Offset int64 // bytes consumed or emitted when the failure was detected
	msg    string
	cause  error
}

func newError(kind ErrorKind, offset int64, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: offset, msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, offset int64, cause error) *Error {
	return &Error{Kind: kind, Offset: offset, cause: cause}
}

// NewError constructs an *Error for use by a codec package (codec/native,
// codec/protobuf), which cannot reach the unexported constructor this
// package uses internally.
func NewError(kind ErrorKind, offset int64, format string, args ...any) error {
	return newError(kind, offset, format, args...)
}

// WrapError constructs an *Error wrapping cause, for use by a codec
// package.
func WrapError(kind ErrorKind, offset int64, cause error) error {
	return wrapError(kind, offset, cause)
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("archival: %s at byte %d: %v", e.Kind, e.Offset, e.cause)
	}
	if e.msg != "" {
		return fmt.Sprintf("archival: %s at byte %d: %s", e.Kind, e.Offset, e.msg)
	}
	return fmt.Sprintf("archival: %s at byte %d", e.Kind, e.Offset)
}

// Unwrap implements error unwrapping via [errors.Unwrap].
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind, so that callers
// can write errors.Is(err, archival.ErrTooLarge) style checks by comparing
// against a sentinel built with Kind set and nothing else.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// KindOf returns the ErrorKind carried by err, if err is (or wraps) an
// *Error produced by this package.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
