// Package symtab implements the symbol table (C5): a scoped tree of
// symbol entries persisted through a fixed-record store and addressed
// through the shared hashed LRU buffer (pkg/hbuf). Entries form a tree
// rooted at a file-scope pseudo-entry; scope semantics themselves are the
// parser's responsibility, this package only stores the links.
package symtab

import (
	"encoding/binary"
	"fmt"

	"stcc1/pkg/hbuf"
	"stcc1/pkg/store"
)

// RecordSize is the fixed on-disk width of a symbol entry:
// name(4) + kind(1) + scope_depth(1) + reserved(2) + parent(4) + child(4) +
// sibling(4) + next(4) + prev(4) + value(4) + line(4) = 36 bytes.
const RecordSize = 36

// Kind enumerates the category of a symbol-table entry.
type Kind uint8

const (
	KindFree Kind = iota
	KindVariable
	KindFunction
	KindTypedef
	KindLabel
	KindEnumerator
	KindStruct
	KindUnion
	KindEnum
	KindConstant
	KindUnknown
)

// Entry is the in-memory view of a symbol-table record.
type Entry struct {
	Name       uint32 // string-pool offset
	Kind       Kind
	ScopeDepth uint8
	Parent     uint32
	Child      uint32
	Sibling    uint32
	Next       uint32
	Prev       uint32
	Value      uint32 // optional, string-pool offset; 0 = none
	Line       uint32
}

func (e Entry) encode() []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], e.Name)
	buf[4] = byte(e.Kind)
	buf[5] = e.ScopeDepth
	binary.LittleEndian.PutUint32(buf[8:12], e.Parent)
	binary.LittleEndian.PutUint32(buf[12:16], e.Child)
	binary.LittleEndian.PutUint32(buf[16:20], e.Sibling)
	binary.LittleEndian.PutUint32(buf[20:24], e.Next)
	binary.LittleEndian.PutUint32(buf[24:28], e.Prev)
	binary.LittleEndian.PutUint32(buf[28:32], e.Value)
	binary.LittleEndian.PutUint32(buf[32:36], e.Line)
	return buf
}

func decode(buf []byte) Entry {
	return Entry{
		Name:       binary.LittleEndian.Uint32(buf[0:4]),
		Kind:       Kind(buf[4]),
		ScopeDepth: buf[5],
		Parent:     binary.LittleEndian.Uint32(buf[8:12]),
		Child:      binary.LittleEndian.Uint32(buf[12:16]),
		Sibling:    binary.LittleEndian.Uint32(buf[16:20]),
		Next:       binary.LittleEndian.Uint32(buf[20:24]),
		Prev:       binary.LittleEndian.Uint32(buf[24:28]),
		Value:      binary.LittleEndian.Uint32(buf[28:32]),
		Line:       binary.LittleEndian.Uint32(buf[32:36]),
	}
}

// Table is the file-backed symbol tree, fronted by a shared hbuf.Cache.
type Table struct {
	s     *store.Store
	cache *hbuf.Cache
	root  uint32
}

// NewRecord implements hbuf.Backend.
func (t *Table) NewRecord(kind hbuf.Kind) (uint32, []byte, error) {
	idx, err := t.s.Append(Entry{Kind: KindFree}.encode())
	if err != nil {
		return 0, nil, err
	}
	buf := make([]byte, RecordSize)
	copy(buf, Entry{Kind: KindFree}.encode())
	return idx, buf, nil
}

// Load implements hbuf.Backend.
func (t *Table) Load(kind hbuf.Kind, index uint32) ([]byte, error) {
	buf := make([]byte, RecordSize)
	if err := t.s.Get(index, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Writeback implements hbuf.Backend.
func (t *Table) Writeback(kind hbuf.Kind, index uint32, payload []byte) error {
	return t.s.Update(index, payload)
}

// Init creates a fresh symbol table file and installs the file-scope
// pseudo-root entry at index 1.
func Init(path string, cache *hbuf.Cache) (*Table, error) {
	s, err := store.Init(path, RecordSize)
	if err != nil {
		return nil, fmt.Errorf("symtab: init: %w", err)
	}
	t := &Table{s: s}
	if cache == nil {
		cache = hbuf.New(t, hbuf.DefaultCapacity, hbuf.DefaultBuckets)
	}
	t.cache = cache

	rootIdx, buf, err := t.cache.New(hbuf.KindSymbol)
	if err != nil {
		return nil, fmt.Errorf("symtab: create root: %w", err)
	}
	root := Entry{Kind: KindUnknown, ScopeDepth: 0}
	copy(buf, root.encode())
	t.cache.Touch(hbuf.KindSymbol, rootIdx)
	t.root = rootIdx
	return t, nil
}

// Open opens an existing symbol table file. The caller must know the root
// index (conventionally 1, as Init always allocates it first).
func Open(path string, cache *hbuf.Cache) (*Table, error) {
	s, err := store.Open(path, RecordSize)
	if err != nil {
		return nil, fmt.Errorf("symtab: open: %w", err)
	}
	t := &Table{s: s, root: 1}
	if cache == nil {
		cache = hbuf.New(t, hbuf.DefaultCapacity, hbuf.DefaultBuckets)
	}
	t.cache = cache
	return t, nil
}

// Root returns the index of the file-scope pseudo-entry.
func (t *Table) Root() uint32 {
	return t.root
}

// Add appends a new entry as the last child of parent and returns its
// stable index. Sibling/child links on parent are maintained.
func (t *Table) Add(parent uint32, e Entry) (uint32, error) {
	idx, buf, err := t.cache.New(hbuf.KindSymbol)
	if err != nil {
		return 0, fmt.Errorf("symtab: add: %w", err)
	}
	e.Parent = parent
	copy(buf, e.encode())
	t.cache.Touch(hbuf.KindSymbol, idx)

	parentBuf, err := t.cache.Get(hbuf.KindSymbol, parent)
	if err != nil {
		return 0, fmt.Errorf("symtab: add: load parent %d: %w", parent, err)
	}
	parentEntry := decode(parentBuf)
	if parentEntry.Child == 0 {
		parentEntry.Child = idx
		copy(parentBuf, parentEntry.encode())
		t.cache.Touch(hbuf.KindSymbol, parent)
	} else {
		// Walk to the last sibling and append there.
		last := parentEntry.Child
		for {
			lastBuf, err := t.cache.Get(hbuf.KindSymbol, last)
			if err != nil {
				return 0, fmt.Errorf("symtab: add: walk siblings: %w", err)
			}
			lastEntry := decode(lastBuf)
			if lastEntry.Sibling == 0 {
				lastEntry.Sibling = idx
				copy(lastBuf, lastEntry.encode())
				t.cache.Touch(hbuf.KindSymbol, last)
				break
			}
			last = lastEntry.Sibling
		}
	}
	return idx, nil
}

// Get reads back the entry at index.
func (t *Table) Get(index uint32) (Entry, error) {
	buf, err := t.cache.Get(hbuf.KindSymbol, index)
	if err != nil {
		return Entry{}, fmt.Errorf("symtab: get %d: %w", index, err)
	}
	return decode(buf), nil
}

// LookupByNameInScope walks the direct children of scope looking for an
// entry whose Name offset matches nameOffset. Returns 0 if not found.
func (t *Table) LookupByNameInScope(nameOffset uint32, scope uint32) (uint32, error) {
	scopeEntry, err := t.Get(scope)
	if err != nil {
		return 0, err
	}
	cur := scopeEntry.Child
	for i := 0; cur != 0 && i < 1000; i++ {
		e, err := t.Get(cur)
		if err != nil {
			return 0, err
		}
		if e.Name == nameOffset {
			return cur, nil
		}
		if e.Sibling == cur {
			break
		}
		cur = e.Sibling
	}
	return 0, nil
}

// Count returns the number of entries (including the root) in the table.
func (t *Table) Count() uint32 {
	return t.s.Count()
}

// IndexedEntry pairs a stable index with the entry stored there, for
// callers that need to iterate the whole table rather than walk the tree
// (the translator's function-table scan, chiefly).
type IndexedEntry struct {
	Index uint32
	Entry Entry
}

// All returns every entry in the table in index order (including the
// root), by a flat scan of the backing store rather than a tree walk.
// Used by the translator to build its name -> symbol function table by
// filtering for KindFunction.
func (t *Table) All() ([]IndexedEntry, error) {
	n := t.Count()
	out := make([]IndexedEntry, 0, n)
	for i := uint32(1); i <= n; i++ {
		e, err := t.Get(i)
		if err != nil {
			return nil, fmt.Errorf("symtab: all: %w", err)
		}
		out = append(out, IndexedEntry{Index: i, Entry: e})
	}
	return out, nil
}

// Close flushes the cache and closes the backing file.
func (t *Table) Close() error {
	if err := t.cache.Flush(); err != nil {
		return fmt.Errorf("symtab: close: %w", err)
	}
	return t.s.Close()
}
