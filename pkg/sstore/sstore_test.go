package sstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyStringIsOffsetZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.pool")
	p, err := Init(path)
	require.NoError(t, err)
	defer p.Close()

	off, err := p.InternString("")
	require.NoError(t, err)
	require.EqualValues(t, 0, off)

	got, err := p.GetString(0)
	require.NoError(t, err)
	require.Equal(t, "", got)
}

func TestInternDedupesIdenticalContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.pool")
	p, err := Init(path)
	require.NoError(t, err)
	defer p.Close()

	a, err := p.InternString("hello")
	require.NoError(t, err)
	b, err := p.InternString("hello")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestInternDistinguishesDifferentContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.pool")
	p, err := Init(path)
	require.NoError(t, err)
	defer p.Close()

	a, err := p.InternString("foo")
	require.NoError(t, err)
	b, err := p.InternString("bar")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestGetReturnsInternedBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.pool")
	p, err := Init(path)
	require.NoError(t, err)
	defer p.Close()

	off, err := p.InternString("the quick brown fox")
	require.NoError(t, err)

	got, err := p.GetString(off)
	require.NoError(t, err)
	require.Equal(t, "the quick brown fox", got)
}

func TestInternPropertyAcrossManyStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.pool")
	p, err := Init(path)
	require.NoError(t, err)
	defer p.Close()

	inputs := []string{"a", "bb", "ccc", "a", "bb", "", "dddd", "ccc"}
	offsets := make([]uint32, len(inputs))
	for i, s := range inputs {
		off, err := p.InternString(s)
		require.NoError(t, err)
		offsets[i] = off
	}

	for i := range inputs {
		for j := range inputs {
			if inputs[i] == inputs[j] {
				require.Equal(t, offsets[i], offsets[j], "equal content must share an offset: %q", inputs[i])
			} else {
				require.NotEqual(t, offsets[i], offsets[j], "distinct content must not share an offset: %q vs %q", inputs[i], inputs[j])
			}
		}
	}

	for i, s := range inputs {
		got, err := p.GetString(offsets[i])
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
}

func TestReopenPreservesDedupIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.pool")
	p, err := Init(path)
	require.NoError(t, err)

	off1, err := p.InternString("persisted")
	require.NoError(t, err)
	require.NoError(t, p.Close())

	p2, err := Open(path)
	require.NoError(t, err)
	defer p2.Close()

	got, err := p2.GetString(off1)
	require.NoError(t, err)
	require.Equal(t, "persisted", got)

	off2, err := p2.InternString("persisted")
	require.NoError(t, err)
	require.Equal(t, off1, off2)

	off3, err := p2.InternString("brand new")
	require.NoError(t, err)
	require.NotEqual(t, off1, off3)
}

func TestInternBytesVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.pool")
	p, err := Init(path)
	require.NoError(t, err)
	defer p.Close()

	b := []byte{0x00, 0x01, 0xFF, 0x10}
	off, err := p.Intern(b)
	require.NoError(t, err)

	got, err := p.Get(off)
	require.NoError(t, err)
	require.Equal(t, b, got)
}
