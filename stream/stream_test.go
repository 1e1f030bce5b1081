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

package stream_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/objectarc/archival/stream"
)

func TestRingStream_RoundTrip(t *testing.T) {
	s := stream.NewRingStream(16)
	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	length, ok := s.Length()
	require.True(t, ok)
	require.EqualValues(t, 5, length)

	buf := make([]byte, 5)
	n, err = s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
	require.True(t, s.Eof())

	_, err = s.Read(buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestRingStream_SkipClampsToRemaining(t *testing.T) {
	s := stream.NewRingStreamFromBytes([]byte("abcdef"))
	n, err := s.Skip(4)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)

	n, err = s.Skip(100)
	require.NoError(t, err)
	require.EqualValues(t, 2, n, "skip clamps to what remains rather than erroring")
	require.True(t, s.Eof())
}

func TestRingStream_ClearResetsReadAndWritePosition(t *testing.T) {
	s := stream.NewRingStreamFromBytes([]byte("abc"))
	s.Clear()
	require.True(t, s.Eof())
	length, _ := s.Length()
	require.EqualValues(t, 0, length)
}

func TestRingStream_SeekSharesBackingBytes(t *testing.T) {
	s := stream.NewRingStreamFromBytes([]byte("abcdef"))
	seeked, err := s.Seek(3)
	require.NoError(t, err)

	buf := make([]byte, 3)
	n, err := seeked.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "def", string(buf[:n]))
}

func TestBoundedStream_EOFAtLimitEvenWithMoreData(t *testing.T) {
	src := stream.NewRingStreamFromBytes([]byte("abcdefgh"))
	bounded := stream.NewBoundedStream(src, 4)

	buf := make([]byte, 16)
	n, err := bounded.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "abcd", string(buf[:n]))

	n, err = bounded.Read(buf)
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
	require.True(t, bounded.Eof())
}

func TestBoundedWriter_RejectsOverLimitWrite(t *testing.T) {
	dst := stream.NewRingStream(8)
	bw := stream.NewBoundedWriter(dst, 4)

	n, err := bw.Write([]byte("ab"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = bw.Write([]byte("xyz"))
	require.ErrorIs(t, err, io.ErrShortWrite)
}

func TestTransfer_BoundedByMaxBytes(t *testing.T) {
	src := stream.NewRingStreamFromBytes([]byte("0123456789"))
	dst := stream.NewRingStream(16)

	result, err := stream.Transfer(dst, src, make([]byte, 3), 7)
	require.NoError(t, err)
	require.Equal(t, stream.TransferOK, result)
	require.Equal(t, "0123456", string(dst.Bytes()))
}

func TestTransfer_UnboundedRunsUntilEOF(t *testing.T) {
	src := stream.NewRingStreamFromBytes([]byte("0123456789"))
	dst := stream.NewRingStream(16)

	result, err := stream.Transfer(dst, src, make([]byte, 4), -1)
	require.NoError(t, err)
	require.Equal(t, stream.TransferInputEOF, result, "Ok is unreachable in unbounded mode")
	require.Equal(t, "0123456789", string(dst.Bytes()))
}

func TestTransfer_EmptyScratchIsAnError(t *testing.T) {
	src := stream.NewRingStreamFromBytes([]byte("x"))
	dst := stream.NewRingStream(16)
	_, err := stream.Transfer(dst, src, nil, 1)
	require.Error(t, err)
}
