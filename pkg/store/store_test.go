package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func rec(b byte, n int) []byte {
	r := make([]byte, n)
	for i := range r {
		r[i] = b
	}
	return r
}

func TestAppendGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.store")
	s, err := Init(path, 8)
	require.NoError(t, err)
	defer s.Close()

	i1, err := s.Append(rec(1, 8))
	require.NoError(t, err)
	require.EqualValues(t, 1, i1)

	i2, err := s.Append(rec(2, 8))
	require.NoError(t, err)
	require.EqualValues(t, 2, i2)

	require.EqualValues(t, 2, s.Count())

	buf := make([]byte, 8)
	require.NoError(t, s.Get(i1, buf))
	require.Equal(t, rec(1, 8), buf)

	require.NoError(t, s.Get(i2, buf))
	require.Equal(t, rec(2, 8), buf)
}

func TestUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.store")
	s, err := Init(path, 4)
	require.NoError(t, err)
	defer s.Close()

	idx, err := s.Append(rec(9, 4))
	require.NoError(t, err)

	require.NoError(t, s.Update(idx, rec(7, 4)))

	buf := make([]byte, 4)
	require.NoError(t, s.Get(idx, buf))
	require.Equal(t, rec(7, 4), buf)
}

func TestInvalidIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.store")
	s, err := Init(path, 4)
	require.NoError(t, err)
	defer s.Close()

	buf := make([]byte, 4)
	require.ErrorIs(t, s.Get(0, buf), ErrInvalidIndex)
	require.ErrorIs(t, s.Get(1, buf), ErrInvalidIndex)

	_, err = s.Append(rec(1, 4))
	require.NoError(t, err)
	require.ErrorIs(t, s.Get(2, buf), ErrInvalidIndex)
}

func TestReopenPreservesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.store")
	s, err := Init(path, 4)
	require.NoError(t, err)

	idx, err := s.Append(rec(5, 4))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path, 4)
	require.NoError(t, err)
	defer s2.Close()

	require.EqualValues(t, 1, s2.Count())
	buf := make([]byte, 4)
	require.NoError(t, s2.Get(idx, buf))
	require.Equal(t, rec(5, 4), buf)
}

func TestWrongRecordSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.store")
	s, err := Init(path, 4)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append(rec(1, 3))
	require.ErrorIs(t, err, ErrShortRecord)
}
