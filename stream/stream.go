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

// Package stream defines the byte-transport contracts the archive engine's
// codecs read from and write to, plus a couple of concrete helpers used by
// tests and by deserialization paths that have no
// need for the pointer registry.
//
// InputStream and OutputStream are deliberately close to io.Reader and
// io.Writer: Go's io.Writer already carries the "all bytes or an error"
// all-or-nothing contract a filter stream needs, so OutputStream is
// io.Writer verbatim rather than a bespoke method.
package stream

import (
	"errors"
	"io"
)

// InputStream is the read-side stream contract. Eof reports whether a
// previous Read reached the end of the underlying source; Skip discards up
// to n bytes and reports how many were actually discarded.
type InputStream interface {
	io.Reader
	Eof() bool
	Skip(n int64) (int64, error)
}

// OutputStream is the write-side stream contract: write all of p or fail.
type OutputStream = io.Writer

// Flusher is implemented by an OutputStream that buffers internally.
type Flusher interface {
	Flush() error
}

// Lengther is implemented by an InputStream that knows its total length.
type Lengther interface {
	// Length returns the stream's total byte length, or false if unknown.
	Length() (n int64, ok bool)
}

// Teller is implemented by an InputStream that can report its read cursor.
type Teller interface {
	Tell() (int64, error)
}

// Clearer is implemented by an InputStream that can discard buffered state
// (e.g. after an error) without being recreated.
type Clearer interface {
	Clear()
}

// Seeker is implemented by an InputStream that supports random access. It
// returns a new InputStream positioned at offset, or an error if the
// underlying source does not support seeking.
type Seeker interface {
	Seek(offset int64) (InputStream, error)
}

// ErrSeekUnsupported is returned when a stream that embeds a non-seekable
// delegate is asked to Seek anyway. A stream that truly cannot seek simply
// doesn't implement Seeker; this is for composite streams that implement it
// conditionally.
var ErrSeekUnsupported = errors.New("stream: seek not supported")

// Filter wraps a lower stream and transforms byte ranges, e.g. for
// compression or checksumming. Transform must advance inUsed <= len(input)
// and outUsed <= len(output), and must make forward progress (consume
// input or produce output) unless it has reached the end of its data and
// flush is false. On the output side, a filter carries incomplete trailer
// bytes internally until it is asked to flush.
type Filter interface {
	Transform(input, output []byte, flush bool) (inUsed, outUsed int, err error)
}

// TransferResult reports how Transfer's byte-copy loop ended.
type TransferResult int

const (
	TransferOK TransferResult = iota
	TransferInputEOF
	TransferInputError
	TransferWriteFail
)

// Transfer copies bytes from src to dst through scratch, stopping after
// maxBytes have been copied, or, if maxBytes is negative, only when src
// reports EOF or an error. TransferOK is therefore unreachable when
// maxBytes is negative -- only TransferInputEOF ends that mode.
func Transfer(dst OutputStream, src InputStream, scratch []byte, maxBytes int64) (TransferResult, error) {
	if len(scratch) == 0 {
		return TransferInputError, errors.New("stream: empty scratch buffer")
	}
	var total int64
	for maxBytes < 0 || total < maxBytes {
		chunk := scratch
		if maxBytes >= 0 {
			if remaining := maxBytes - total; int64(len(chunk)) > remaining {
				chunk = chunk[:remaining]
			}
		}
		n, err := src.Read(chunk)
		if n > 0 {
			if _, werr := dst.Write(chunk[:n]); werr != nil {
				return TransferWriteFail, werr
			}
			total += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return TransferInputEOF, nil
			}
			return TransferInputError, err
		}
		if n == 0 {
			return TransferInputEOF, nil
		}
	}
	return TransferOK, nil
}
