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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/objectarc/archival"
)

func TestError_IsMatchesKindOnly(t *testing.T) {
	e1 := archival.NewError(archival.ErrSizeMismatch, 10, "expected %d, got %d", 3, 4)
	e2 := archival.NewError(archival.ErrSizeMismatch, 99, "a different message entirely")
	e3 := archival.NewError(archival.ErrTooLarge, 10, "unrelated kind")

	require.True(t, errors.Is(e1, e2), "two errors of the same kind match regardless of offset or message")
	require.False(t, errors.Is(e1, e3))
}

func TestError_KindOf(t *testing.T) {
	err := archival.NewError(archival.ErrAliasViolation, 5, "boom")
	kind, ok := archival.KindOf(err)
	require.True(t, ok)
	require.Equal(t, archival.ErrAliasViolation, kind)

	_, ok = archival.KindOf(errors.New("plain error"))
	require.False(t, ok)
}

func TestError_WrapPreservesCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := archival.WrapError(archival.ErrStreamIO, 0, cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "disk on fire")
}
