// Package hbuf implements the hashed LRU buffer cache (HBUF) shared by the
// AST store and the symbol-table store. It is the single in-memory cache
// through which both passes touch their file-backed records, bounding peak
// working-set memory to a fixed slot count regardless of input size.
//
// HBUF is deliberately not a process-global singleton: callers construct one
// Cache per backing Store and thread it through their pipeline, which keeps
// tests reentrant (see DESIGN.md).
package hbuf

import (
	"fmt"
)

// Kind distinguishes which logical record space a slot belongs to, since a
// single cache instance is shared across AST and symbol-table entries that
// otherwise use overlapping index spaces.
type Kind uint8

const (
	KindAST Kind = iota
	KindSymbol
)

// Backend is the persistence contract a Cache evicts into. It is satisfied
// by the AST store and the symbol-table store, both of which wrap a
// store.Store of their own fixed record size.
type Backend interface {
	// NewRecord appends a fresh, zeroed placeholder record and returns its
	// stable 1-based index.
	NewRecord(kind Kind) (uint32, []byte, error)
	// Load reads the record at index into a freshly allocated buffer.
	Load(kind Kind, index uint32) ([]byte, error)
	// Writeback persists a dirty record.
	Writeback(kind Kind, index uint32, payload []byte) error
}

type key struct {
	kind  Kind
	index uint32
}

type slot struct {
	kind    Kind
	index   uint32
	dirty   bool
	payload []byte

	// hash chain
	hashNext, hashPrev *slot
	// LRU chain
	lruNext, lruPrev *slot
}

// Cache is a fixed-capacity pool of N slots, hashed for O(1) lookup and
// chained for LRU eviction.
type Cache struct {
	backend  Backend
	capacity int
	buckets  int

	slots   []slot
	free    []*slot // slots never yet assigned
	byKey   map[key]*slot
	buckArr [][]*slot // hash chain heads, indexed by stable_index mod buckets

	lruHead, lruTail *slot // head = most recently touched
}

// DefaultCapacity is the target slot count from the spec (N=100).
const DefaultCapacity = 100

// DefaultBuckets is the hash-chain bucket count (H=8).
const DefaultBuckets = 8

// New creates a Cache of the given slot capacity and hash bucket count,
// backed by backend. A capacity/bucket count of 0 selects the defaults.
func New(backend Backend, capacity, buckets int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	c := &Cache{
		backend:  backend,
		capacity: capacity,
		buckets:  buckets,
		slots:    make([]slot, capacity),
		byKey:    make(map[key]*slot, capacity),
		buckArr:  make([][]*slot, buckets),
	}
	c.free = make([]*slot, 0, capacity)
	for i := range c.slots {
		c.free = append(c.free, &c.slots[i])
	}
	return c
}

func (c *Cache) bucket(index uint32) int {
	return int(index % uint32(c.buckets))
}

func (c *Cache) hashInsert(s *slot) {
	b := c.bucket(s.index)
	c.buckArr[b] = append(c.buckArr[b], s)
}

func (c *Cache) hashRemove(s *slot) {
	b := c.bucket(s.index)
	chain := c.buckArr[b]
	for i, v := range chain {
		if v == s {
			c.buckArr[b] = append(chain[:i], chain[i+1:]...)
			return
		}
	}
}

func (c *Cache) lruRemove(s *slot) {
	if s.lruPrev != nil {
		s.lruPrev.lruNext = s.lruNext
	} else if c.lruHead == s {
		c.lruHead = s.lruNext
	}
	if s.lruNext != nil {
		s.lruNext.lruPrev = s.lruPrev
	} else if c.lruTail == s {
		c.lruTail = s.lruPrev
	}
	s.lruNext, s.lruPrev = nil, nil
}

func (c *Cache) lruPushHead(s *slot) {
	s.lruPrev = nil
	s.lruNext = c.lruHead
	if c.lruHead != nil {
		c.lruHead.lruPrev = s
	}
	c.lruHead = s
	if c.lruTail == nil {
		c.lruTail = s
	}
}

func (c *Cache) touchLRU(s *slot) {
	if c.lruHead == s {
		return
	}
	c.lruRemove(s)
	c.lruPushHead(s)
}

// evictOne evicts the current LRU tail, writing it back first if dirty, and
// returns the now-free slot. It returns an error if there is no tail to
// evict, which only a zero-capacity cache could reach and New prevents.
func (c *Cache) evictOne() (*slot, error) {
	victim := c.lruTail
	if victim == nil {
		return nil, fmt.Errorf("hbuf: cache empty, nothing to evict")
	}
	if victim.dirty {
		if err := c.backend.Writeback(victim.kind, victim.index, victim.payload); err != nil {
			return nil, fmt.Errorf("hbuf: writeback on eviction: %w", err)
		}
	}
	c.lruRemove(victim)
	delete(c.byKey, key{victim.kind, victim.index})
	c.hashRemove(victim)
	victim.dirty = false
	victim.payload = nil
	return victim, nil
}

// acquireSlot returns a slot ready to hold a new entry: a free slot if any
// remain, otherwise the evicted LRU tail.
func (c *Cache) acquireSlot() (*slot, error) {
	if n := len(c.free); n > 0 {
		s := c.free[n-1]
		c.free = c.free[:n-1]
		return s, nil
	}
	return c.evictOne()
}

// New allocates a fresh record of the given kind: it appends a placeholder
// through the backend to obtain a stable index, installs a zeroed slot for
// it at the LRU head, and returns the index and a payload buffer the caller
// fills in before calling Touch.
func (c *Cache) New(kind Kind) (uint32, []byte, error) {
	index, payload, err := c.backend.NewRecord(kind)
	if err != nil {
		return 0, nil, fmt.Errorf("hbuf: new record: %w", err)
	}
	s, err := c.acquireSlot()
	if err != nil {
		return 0, nil, err
	}
	s.kind = kind
	s.index = index
	s.payload = payload
	s.dirty = false
	c.byKey[key{kind, index}] = s
	c.hashInsert(s)
	c.lruPushHead(s)
	return index, s.payload, nil
}

// Get returns the payload for (kind, index), loading it from the backend on
// a cache miss and evicting the LRU tail if the cache is full.
func (c *Cache) Get(kind Kind, index uint32) ([]byte, error) {
	k := key{kind, index}
	if s, ok := c.byKey[k]; ok {
		c.touchLRU(s)
		return s.payload, nil
	}
	payload, err := c.backend.Load(kind, index)
	if err != nil {
		return nil, fmt.Errorf("hbuf: load: %w", err)
	}
	s, err := c.acquireSlot()
	if err != nil {
		return nil, err
	}
	s.kind = kind
	s.index = index
	s.payload = payload
	s.dirty = false
	c.byKey[k] = s
	c.hashInsert(s)
	c.lruPushHead(s)
	return s.payload, nil
}

// Touch marks the slot for (kind, index) dirty and moves it to the LRU
// head. The slot must already be resident (obtained via New or Get).
func (c *Cache) Touch(kind Kind, index uint32) {
	if s, ok := c.byKey[key{kind, index}]; ok {
		s.dirty = true
		c.touchLRU(s)
	}
}

// Flush persists every dirty slot without evicting it.
func (c *Cache) Flush() error {
	for k, s := range c.byKey {
		if s.dirty {
			if err := c.backend.Writeback(s.kind, s.index, s.payload); err != nil {
				return fmt.Errorf("hbuf: flush %v: %w", k, err)
			}
			s.dirty = false
		}
	}
	return nil
}

// Len reports the number of slots currently resident, for tests.
func (c *Cache) Len() int {
	return len(c.byKey)
}

// Capacity reports the configured slot count.
func (c *Cache) Capacity() int {
	return c.capacity
}
