package ast

import (
	"fmt"

	"stcc1/pkg/hbuf"
	"stcc1/pkg/store"
)

// maxChainIterations bounds sibling-chain walks so a miswritten or
// accidentally cyclic chain cannot hang a pass; it mirrors the
// translator's own cycle guard (§4.6).
const maxChainIterations = 1000

// ErrNotChainable is returned when Builder.Chain is asked to link a node
// kind with no reserved next-sibling slot.
var ErrNotChainable = fmt.Errorf("ast: node kind does not support chaining")

// ErrChainCycle is returned by chain walks that detect next == self.
var ErrChainCycle = fmt.Errorf("ast: sibling chain cycle detected")

// Store is the file-backed AST node store, fronted by a shared
// hbuf.Cache.
type Store struct {
	s     *store.Store
	cache *hbuf.Cache
}

// NewRecord implements hbuf.Backend.
func (s *Store) NewRecord(kind hbuf.Kind) (uint32, []byte, error) {
	idx, err := s.s.Append(Node{Type: KindFree}.encode())
	if err != nil {
		return 0, nil, err
	}
	buf := make([]byte, RecordSize)
	copy(buf, Node{Type: KindFree}.encode())
	return idx, buf, nil
}

// Load implements hbuf.Backend.
func (s *Store) Load(kind hbuf.Kind, index uint32) ([]byte, error) {
	buf := make([]byte, RecordSize)
	if err := s.s.Get(index, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Writeback implements hbuf.Backend.
func (s *Store) Writeback(kind hbuf.Kind, index uint32, payload []byte) error {
	return s.s.Update(index, payload)
}

// Init creates a fresh AST store file.
func Init(path string, cache *hbuf.Cache) (*Store, error) {
	underlying, err := store.Init(path, RecordSize)
	if err != nil {
		return nil, fmt.Errorf("ast: init: %w", err)
	}
	s := &Store{s: underlying}
	if cache == nil {
		cache = hbuf.New(s, hbuf.DefaultCapacity, hbuf.DefaultBuckets)
	}
	s.cache = cache
	return s, nil
}

// Open opens an existing AST store file.
func Open(path string, cache *hbuf.Cache) (*Store, error) {
	underlying, err := store.Open(path, RecordSize)
	if err != nil {
		return nil, fmt.Errorf("ast: open: %w", err)
	}
	s := &Store{s: underlying}
	if cache == nil {
		cache = hbuf.New(s, hbuf.DefaultCapacity, hbuf.DefaultBuckets)
	}
	s.cache = cache
	return s, nil
}

// Get reads back the node at index.
func (s *Store) Get(index uint32) (Node, error) {
	buf, err := s.cache.Get(hbuf.KindAST, index)
	if err != nil {
		return Node{}, fmt.Errorf("ast: get %d: %w", index, err)
	}
	return decodeNode(buf), nil
}

// put writes n into the slot at index and marks it dirty.
func (s *Store) put(index uint32, n Node) error {
	buf, err := s.cache.Get(hbuf.KindAST, index)
	if err != nil {
		return fmt.Errorf("ast: put %d: %w", index, err)
	}
	copy(buf, n.encode())
	s.cache.Touch(hbuf.KindAST, index)
	return nil
}

// Count returns the number of node slots appended so far.
func (s *Store) Count() uint32 {
	return s.s.Count()
}

// Close flushes the cache and closes the backing file.
func (s *Store) Close() error {
	if err := s.cache.Flush(); err != nil {
		return fmt.Errorf("ast: close: %w", err)
	}
	return s.s.Close()
}

// Builder is a thin construction API atop an AST Store, per §4.5. It
// tracks a phase name and running error/warning counts for the pass that
// owns it.
type Builder struct {
	store    *Store
	Phase    string
	Errors   int
	Warnings int
}

// NewBuilder wraps store for construction in the named phase.
func NewBuilder(s *Store, phase string) *Builder {
	return &Builder{store: s, Phase: phase}
}

func (b *Builder) newNode(kind Kind, tokenIdx uint32) (uint32, error) {
	idx, _, err := b.store.cache.New(hbuf.KindAST)
	if err != nil {
		return 0, fmt.Errorf("ast: builder new: %w", err)
	}
	n := Node{Type: kind, Flags: FlagParsed, TokenIdx: tokenIdx}
	if err := b.store.put(idx, n); err != nil {
		return 0, err
	}
	return idx, nil
}

func (b *Builder) setPayload(idx uint32, payload [PayloadSize]byte) error {
	n, err := b.store.Get(idx)
	if err != nil {
		return err
	}
	n.Payload = payload
	return b.store.put(idx, n)
}

// SetTypeIdx marks a node TYPED and records its resolved type reference.
func (b *Builder) SetTypeIdx(idx uint32, typeIdx uint16) error {
	n, err := b.store.Get(idx)
	if err != nil {
		return err
	}
	n.TypeIdx = typeIdx
	n.Flags |= FlagTyped
	return b.store.put(idx, n)
}

// SetFlags ORs extra flag bits onto the node, marking it MODIFIED so HBUF
// knows the slot needs writeback.
func (b *Builder) SetFlags(idx uint32, flags Flags) error {
	n, err := b.store.Get(idx)
	if err != nil {
		return err
	}
	n.Flags |= flags | FlagModified
	return b.store.put(idx, n)
}

// Children creates a generic/list-shaped node (PROGRAM, TRANSLATION_UNIT).
func (b *Builder) Children(kind Kind, tokenIdx uint32, p ChildrenPayload) (uint32, error) {
	idx, err := b.newNode(kind, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, p.encode())
}

// Binary creates a binary-operator expression node.
func (b *Builder) Binary(tokenIdx uint32, p BinaryPayload) (uint32, error) {
	idx, err := b.newNode(KindBinaryExpr, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, p.encode())
}

// Unary creates a unary-operator expression node.
func (b *Builder) Unary(tokenIdx uint32, p UnaryPayload) (uint32, error) {
	idx, err := b.newNode(KindUnaryExpr, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, p.encode())
}

// Compound creates a compound-statement (block) node.
func (b *Builder) Compound(tokenIdx uint32, p CompoundPayload) (uint32, error) {
	idx, err := b.newNode(KindCompoundStmt, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, p.encode())
}

// If creates an IF node (ElseStmt=0 for no else-branch).
func (b *Builder) If(tokenIdx uint32, p ConditionalPayload) (uint32, error) {
	idx, err := b.newNode(KindIfStmt, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, p.encode())
}

// While creates a WHILE node (ElseStmt is always 0).
func (b *Builder) While(tokenIdx uint32, p ConditionalPayload) (uint32, error) {
	idx, err := b.newNode(KindWhileStmt, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, p.encode())
}

// Call creates a call-expression node.
func (b *Builder) Call(tokenIdx uint32, p CallPayload) (uint32, error) {
	idx, err := b.newNode(KindCallExpr, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, p.encode())
}

// VarDecl creates a variable declaration node.
func (b *Builder) VarDecl(tokenIdx uint32, typeIdx uint16, p DeclPayload) (uint32, error) {
	idx, err := b.newNode(KindVarDecl, tokenIdx)
	if err != nil {
		return 0, err
	}
	if err := b.setPayload(idx, p.encode()); err != nil {
		return 0, err
	}
	if typeIdx != 0 {
		if err := b.SetTypeIdx(idx, typeIdx); err != nil {
			return 0, err
		}
	}
	return idx, nil
}

// Ident creates an identifier-expression node. The resolved symbol index
// is carried in the shared Binary payload shape's Value field, per the
// node-kind-discriminated reuse documented on BinaryPayload: Left/Right
// are unused (zero) for IDENT and literal nodes.
func (b *Builder) Ident(tokenIdx uint32, symbolIdx uint32) (uint32, error) {
	idx, err := b.newNode(KindIdentExpr, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, BinaryPayload{Value: uint64(symbolIdx)}.encode())
}

// LiteralInt creates an integer-literal node, value carried in the shared
// Binary payload shape's Value field (i64 for this node kind).
func (b *Builder) LiteralInt(tokenIdx uint32, value int64) (uint32, error) {
	idx, err := b.newNode(KindLiteralInt, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, BinaryPayload{Value: uint64(value)}.encode())
}

// ParamDecl creates a function-parameter node. Parameters share
// VarDecl's payload shape (Initializer/StorageClass/SpecifierFlags are
// unused) since both are "a named, typed declaration that chains to the
// next one".
func (b *Builder) ParamDecl(tokenIdx uint32, typeIdx uint16, p DeclPayload) (uint32, error) {
	idx, err := b.newNode(KindParamDecl, tokenIdx)
	if err != nil {
		return 0, err
	}
	if err := b.setPayload(idx, p.encode()); err != nil {
		return 0, err
	}
	if typeIdx != 0 {
		if err := b.SetTypeIdx(idx, typeIdx); err != nil {
			return 0, err
		}
	}
	return idx, nil
}

// FunctionDef creates a function definition node.
func (b *Builder) FunctionDef(tokenIdx uint32, typeIdx uint16, p FunctionDefPayload) (uint32, error) {
	idx, err := b.newNode(KindFunctionDef, tokenIdx)
	if err != nil {
		return 0, err
	}
	if err := b.setPayload(idx, p.encode()); err != nil {
		return 0, err
	}
	if typeIdx != 0 {
		if err := b.SetTypeIdx(idx, typeIdx); err != nil {
			return 0, err
		}
	}
	return idx, nil
}

// ExprStmt creates an expression-statement node.
func (b *Builder) ExprStmt(tokenIdx uint32, p ExprStmtPayload) (uint32, error) {
	idx, err := b.newNode(KindExprStmt, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, p.encode())
}

// ReturnStmt creates a return-statement node.
func (b *Builder) ReturnStmt(tokenIdx uint32, p ReturnStmtPayload) (uint32, error) {
	idx, err := b.newNode(KindReturnStmt, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, p.encode())
}

// Assign creates an assignment-expression node.
func (b *Builder) Assign(tokenIdx uint32, p AssignPayload) (uint32, error) {
	idx, err := b.newNode(KindAssignExpr, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, p.encode())
}

// Goto creates a goto-statement node.
func (b *Builder) Goto(tokenIdx uint32, p GotoPayload) (uint32, error) {
	idx, err := b.newNode(KindGotoStmt, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, p.encode())
}

// LabelStmt creates a label-statement node.
func (b *Builder) LabelStmt(tokenIdx uint32, p LabelStmtPayload) (uint32, error) {
	idx, err := b.newNode(KindLabelStmt, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, p.encode())
}

// SimpleStmt creates a BREAK/CONTINUE/EMPTY node.
func (b *Builder) SimpleStmt(kind Kind, tokenIdx uint32, p SimpleStmtPayload) (uint32, error) {
	switch kind {
	case KindBreakStmt, KindContinueStmt, KindEmptyStmt:
	default:
		return 0, fmt.Errorf("ast: %v is not a simple statement kind", kind)
	}
	idx, err := b.newNode(kind, tokenIdx)
	if err != nil {
		return 0, err
	}
	return idx, b.setPayload(idx, p.encode())
}

// ChainNextSibling sets node's next-sibling link, honoring the
// kind-specific offset (child2 for most chainable kinds, child4 for
// If/While). Returns ErrNotChainable for kinds with no reserved slot.
func (b *Builder) ChainNextSibling(node uint32, next uint32) error {
	n, err := b.store.Get(node)
	if err != nil {
		return err
	}
	switch n.Type {
	case KindCompoundStmt:
		p := decodeCompound(n.Payload)
		p.NextSibling = next
		n.Payload = p.encode()
	case KindIfStmt, KindWhileStmt:
		p := decodeConditional(n.Payload)
		p.NextSibling = next
		n.Payload = p.encode()
	case KindVarDecl, KindParamDecl:
		p := decodeDecl(n.Payload)
		p.NextSibling = next
		n.Payload = p.encode()
	case KindFunctionDef:
		p := decodeFunctionDef(n.Payload)
		p.NextSibling = next
		n.Payload = p.encode()
	case KindExprStmt:
		p := decodeExprStmt(n.Payload)
		p.NextSibling = next
		n.Payload = p.encode()
	case KindReturnStmt:
		p := decodeReturnStmt(n.Payload)
		p.NextSibling = next
		n.Payload = p.encode()
	case KindAssignExpr:
		p := decodeAssign(n.Payload)
		p.NextSibling = next
		n.Payload = p.encode()
	case KindGotoStmt:
		p := decodeGoto(n.Payload)
		p.NextSibling = next
		n.Payload = p.encode()
	case KindLabelStmt:
		p := decodeLabelStmt(n.Payload)
		p.NextSibling = next
		n.Payload = p.encode()
	case KindBreakStmt, KindContinueStmt, KindEmptyStmt:
		p := decodeSimpleStmt(n.Payload)
		p.NextSibling = next
		n.Payload = p.encode()
	default:
		return ErrNotChainable
	}
	return b.store.put(node, n)
}

// NextSibling reads the next-sibling link for node, per the same
// kind-specific offset rule as ChainNextSibling. Returns 0, ErrNotChainable
// for kinds with no reserved slot.
func (s *Store) NextSibling(node uint32) (uint32, error) {
	n, err := s.Get(node)
	if err != nil {
		return 0, err
	}
	switch n.Type {
	case KindCompoundStmt:
		return decodeCompound(n.Payload).NextSibling, nil
	case KindIfStmt, KindWhileStmt:
		return decodeConditional(n.Payload).NextSibling, nil
	case KindVarDecl, KindParamDecl:
		return decodeDecl(n.Payload).NextSibling, nil
	case KindFunctionDef:
		return decodeFunctionDef(n.Payload).NextSibling, nil
	case KindExprStmt:
		return decodeExprStmt(n.Payload).NextSibling, nil
	case KindReturnStmt:
		return decodeReturnStmt(n.Payload).NextSibling, nil
	case KindAssignExpr:
		return decodeAssign(n.Payload).NextSibling, nil
	case KindGotoStmt:
		return decodeGoto(n.Payload).NextSibling, nil
	case KindLabelStmt:
		return decodeLabelStmt(n.Payload).NextSibling, nil
	case KindBreakStmt, KindContinueStmt, KindEmptyStmt:
		return decodeSimpleStmt(n.Payload).NextSibling, nil
	default:
		return 0, ErrNotChainable
	}
}

// WalkChain calls fn for head and every subsequent sibling, stopping at 0.
// It detects next == self cycles and bounds iteration at
// maxChainIterations, per the translator's cycle-guard contract (§4.6).
func (s *Store) WalkChain(head uint32, fn func(idx uint32) error) error {
	cur := head
	for i := 0; cur != 0; i++ {
		if i >= maxChainIterations {
			return fmt.Errorf("ast: chain exceeds %d nodes, aborting", maxChainIterations)
		}
		if err := fn(cur); err != nil {
			return err
		}
		next, err := s.NextSibling(cur)
		if err != nil {
			return err
		}
		if next == cur {
			return ErrChainCycle
		}
		cur = next
	}
	return nil
}
