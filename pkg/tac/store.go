package tac

import (
	"fmt"

	"stcc1/pkg/store"
)

// Store is the file-backed TAC instruction sequence produced by the
// translator and consumed by the execution engine. Unlike the AST and
// symbol-table stores, TAC is read back as a flat, fully-loaded array by
// the VM (§4.7.1), so it is not fronted by the HBUF cache.
type Store struct {
	s *store.Store
}

// Init creates a fresh TAC store file.
func Init(path string) (*Store, error) {
	s, err := store.Init(path, RecordSize)
	if err != nil {
		return nil, fmt.Errorf("tac: init: %w", err)
	}
	return &Store{s: s}, nil
}

// Open opens an existing TAC store file.
func Open(path string) (*Store, error) {
	s, err := store.Open(path, RecordSize)
	if err != nil {
		return nil, fmt.Errorf("tac: open: %w", err)
	}
	return &Store{s: s}, nil
}

// Append writes instr as the next instruction and returns its 1-based
// address.
func (s *Store) Append(instr Instr) (uint32, error) {
	idx, err := s.s.Append(instr.Encode())
	if err != nil {
		return 0, fmt.Errorf("tac: append: %w", err)
	}
	return idx, nil
}

// Get reads back the instruction at address.
func (s *Store) Get(addr uint32) (Instr, error) {
	buf := make([]byte, RecordSize)
	if err := s.s.Get(addr, buf); err != nil {
		return Instr{}, fmt.Errorf("tac: get %d: %w", addr, err)
	}
	return Decode(buf), nil
}

// Count returns the number of instructions stored.
func (s *Store) Count() uint32 {
	return s.s.Count()
}

// LoadAll reads the entire instruction sequence into memory, in address
// order, for the VM's flat in-memory code array.
func (s *Store) LoadAll() ([]Instr, error) {
	n := s.s.Count()
	out := make([]Instr, n)
	buf := make([]byte, RecordSize)
	for i := uint32(0); i < n; i++ {
		if err := s.s.Get(i+1, buf); err != nil {
			return nil, fmt.Errorf("tac: loadall %d: %w", i+1, err)
		}
		out[i] = Decode(buf)
	}
	return out, nil
}

// Close closes the backing file.
func (s *Store) Close() error {
	return s.s.Close()
}
