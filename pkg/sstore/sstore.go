// Package sstore implements the append-only, deduplicating string pool
// (C3). Offsets returned by Intern are byte positions into the backing
// file, not sequence numbers, and are stable for the lifetime of the pool
// file.
//
// On-disk encoding (the Open Question in spec.md §9 resolved): each entry
// is a uint16 little-endian length prefix followed by that many raw bytes,
// with no terminator. Offset 0 is reserved for the empty string, which
// Init/Open both guarantee is present, matching the store-wide convention
// that 0 means "none".
package sstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const maxStringLen = 1<<16 - 1

// Pool is a file-backed, deduplicating string table.
type Pool struct {
	path  string
	f     *os.File
	size  uint32
	index map[string]uint32 // content -> offset, for dedup
}

// Init creates path, truncating any existing file, and seeds offset 0 with
// the empty string.
func Init(path string) (*Pool, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("sstore: init %s: %w", path, err)
	}
	p := &Pool{path: path, f: f, index: make(map[string]uint32)}
	if _, err := p.writeEntry(nil); err != nil {
		f.Close()
		return nil, err
	}
	p.index[""] = 0
	return p, nil
}

// Open opens an existing pool file and rebuilds the in-memory dedup index
// by scanning every entry.
func Open(path string) (*Pool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("sstore: open %s: %w", path, err)
	}
	p := &Pool{path: path, f: f, index: make(map[string]uint32)}

	r := bufio.NewReader(f)
	var off uint32
	for {
		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			f.Close()
			return nil, fmt.Errorf("sstore: scan %s: %w", path, err)
		}
		n := binary.LittleEndian.Uint16(lenBuf[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			f.Close()
			return nil, fmt.Errorf("sstore: scan %s: %w", path, err)
		}
		if _, ok := p.index[string(buf)]; !ok {
			p.index[string(buf)] = off
		}
		off += uint32(2 + n)
	}
	p.size = off
	return p, nil
}

func (p *Pool) writeEntry(b []byte) (uint32, error) {
	off := p.size
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(b)))
	if _, err := p.f.WriteAt(lenBuf[:], int64(off)); err != nil {
		return 0, fmt.Errorf("sstore: write length at %s: %w", p.path, err)
	}
	if len(b) > 0 {
		if _, err := p.f.WriteAt(b, int64(off)+2); err != nil {
			return 0, fmt.Errorf("sstore: write bytes at %s: %w", p.path, err)
		}
	}
	if err := p.f.Sync(); err != nil {
		return 0, fmt.Errorf("sstore: sync %s: %w", p.path, err)
	}
	p.size = off + uint32(2+len(b))
	return off, nil
}

// Intern deduplicates b by content and returns its stable pool offset.
// intern(x) == intern(y) iff x and y are byte-equal.
func (p *Pool) Intern(b []byte) (uint32, error) {
	if len(b) > maxStringLen {
		return 0, fmt.Errorf("sstore: string of %d bytes exceeds %d byte limit", len(b), maxStringLen)
	}
	if off, ok := p.index[string(b)]; ok {
		return off, nil
	}
	off, err := p.writeEntry(b)
	if err != nil {
		return 0, err
	}
	p.index[string(b)] = off
	return off, nil
}

// InternString is a convenience wrapper around Intern for string values.
func (p *Pool) InternString(s string) (uint32, error) {
	return p.Intern([]byte(s))
}

// Get reads the bytes stored at offset.
func (p *Pool) Get(offset uint32) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := p.f.ReadAt(lenBuf[:], int64(offset)); err != nil {
		return nil, fmt.Errorf("sstore: read length at %d: %w", offset, err)
	}
	n := binary.LittleEndian.Uint16(lenBuf[:])
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := p.f.ReadAt(buf, int64(offset)+2); err != nil {
		return nil, fmt.Errorf("sstore: read bytes at %d: %w", offset, err)
	}
	return buf, nil
}

// GetString is a convenience wrapper around Get returning a string.
func (p *Pool) GetString(offset uint32) (string, error) {
	b, err := p.Get(offset)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Size returns the current file size in bytes (and thus the next offset an
// Intern of a new string would be written at).
func (p *Pool) Size() uint32 {
	return p.size
}

// Close flushes and closes the backing file.
func (p *Pool) Close() error {
	if p.f == nil {
		return nil
	}
	err := p.f.Close()
	p.f = nil
	return err
}
