// Package ast implements the AST node model (C6): exactly-24-byte node
// records addressed through the shared hashed LRU buffer cache, with a
// 14-byte tagged-union payload per §3.4 of the data model.
package ast

import "encoding/binary"

// Kind is the node's type discriminant. Numeric ranges define the
// category (see §3.4.1) and must be preserved once persisted.
type Kind uint16

const (
	// Special (0..9)
	KindFree Kind = iota
	KindProgram
	KindTranslationUnit
	KindEOF
	KindError
)

const (
	// Declarations (10..29)
	KindFunctionDecl Kind = iota + 10
	KindFunctionDef
	KindVarDecl
	KindParamDecl
	KindFieldDecl
	KindTypedefDecl
	KindStructDecl
	KindUnionDecl
	KindEnumDecl
	KindEnumConstant
)

const (
	// Types (30..49)
	KindTypeBasic Kind = iota + 30
	KindTypePointer
	KindTypeArray
	KindTypeFunction
	KindTypeStruct
	KindTypeUnion
	KindTypeEnum
	KindTypeTypedef
	KindTypeQualifier
	KindTypeStorageClass
)

const (
	// Statements (50..79)
	KindCompoundStmt Kind = iota + 50
	KindExprStmt
	KindIfStmt
	KindWhileStmt
	KindForStmt
	KindDoWhileStmt
	KindSwitchStmt
	KindCaseStmt
	KindDefaultStmt
	KindBreakStmt
	KindContinueStmt
	KindReturnStmt
	KindGotoStmt
	KindLabelStmt
	KindEmptyStmt
)

const (
	// Expressions (80..129)
	KindLiteralExpr Kind = iota + 80
	KindIdentExpr
	KindBinaryExpr
	KindUnaryExpr
	KindAssignExpr
	KindCallExpr
	KindMemberExpr
	KindMemberPtrExpr
	KindIndexExpr
	KindCastExpr
	KindSizeofExpr
	KindConditionalExpr
	KindCommaExpr
	KindInitListExpr
	KindCompoundLiteralExpr
)

const (
	// Literal subkinds (130..139)
	KindLiteralInt Kind = iota + 130
	KindLiteralFloat
	KindLiteralChar
	KindLiteralString
)

// Flags is a bitset of node lifecycle/annotation markers.
type Flags uint16

const (
	FlagParsed Flags = 1 << iota
	FlagAnalyzed
	FlagTyped
	FlagOptimized
	FlagCodegen
	FlagError
	FlagModified
)

// RecordSize is the fixed on-disk width of an AST node: type(2) + flags(2)
// + token_idx(4) + type_idx(2) + payload(14) = 24 bytes.
const RecordSize = 24

// PayloadSize is the width of the tagged-union payload region.
const PayloadSize = 14

// Node is the in-memory view of a 24-byte AST record.
type Node struct {
	Type     Kind
	Flags    Flags
	TokenIdx uint32
	TypeIdx  uint16
	Payload  [PayloadSize]byte
}

func (n Node) encode() []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(n.Type))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(n.Flags))
	binary.LittleEndian.PutUint32(buf[4:8], n.TokenIdx)
	binary.LittleEndian.PutUint16(buf[8:10], n.TypeIdx)
	copy(buf[10:24], n.Payload[:])
	return buf
}

func decodeNode(buf []byte) Node {
	var n Node
	n.Type = Kind(binary.LittleEndian.Uint16(buf[0:2]))
	n.Flags = Flags(binary.LittleEndian.Uint16(buf[2:4]))
	n.TokenIdx = binary.LittleEndian.Uint32(buf[4:8])
	n.TypeIdx = binary.LittleEndian.Uint16(buf[8:10])
	copy(n.Payload[:], buf[10:24])
	return n
}

// pack24/unpack24 implement the Open Question #2 resolution: every
// AST-to-AST reference carried in a payload is a 3-byte (24-bit) packed
// index rather than a full 4-byte index, which is what makes every
// variant below fit the 14-byte budget.

func pack24(buf []byte, off int, v uint32) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
}

func unpack24(buf []byte, off int) uint32 {
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16
}

// ChildrenPayload holds up to four child indices, for generic/list-shaped
// nodes (PROGRAM, TRANSLATION_UNIT).
type ChildrenPayload struct {
	Child1, Child2, Child3, Child4 uint32
}

func (p ChildrenPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 0, p.Child1)
	pack24(buf[:], 3, p.Child2)
	pack24(buf[:], 6, p.Child3)
	pack24(buf[:], 9, p.Child4)
	return buf
}

func decodeChildren(buf [PayloadSize]byte) ChildrenPayload {
	return ChildrenPayload{
		Child1: unpack24(buf[:], 0),
		Child2: unpack24(buf[:], 3),
		Child3: unpack24(buf[:], 6),
		Child4: unpack24(buf[:], 9),
	}
}

// BinaryPayload covers general binary-operator expressions. Value
// discriminates on parent kind as one of {symbol_idx, string_pool_offset,
// i64, f64}; binary expressions are never directly chainable (they always
// sit inside a wrapping statement), so no next-sibling slot is reserved
// here.
type BinaryPayload struct {
	Left, Right uint32
	Value       uint64
}

func (p BinaryPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 0, p.Left)
	pack24(buf[:], 3, p.Right)
	binary.LittleEndian.PutUint64(buf[6:14], p.Value)
	return buf
}

func decodeBinary(buf [PayloadSize]byte) BinaryPayload {
	return BinaryPayload{
		Left:  unpack24(buf[:], 0),
		Right: unpack24(buf[:], 3),
		Value: binary.LittleEndian.Uint64(buf[6:14]),
	}
}

// UnaryPayload covers unary-operator expressions.
type UnaryPayload struct {
	Operand  uint32
	Operator uint16 // token kind of the operator
	Literal  uint32 // inline literal, when the operand folds to a constant
}

func (p UnaryPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 0, p.Operand)
	binary.LittleEndian.PutUint16(buf[3:5], p.Operator)
	binary.LittleEndian.PutUint32(buf[5:9], p.Literal)
	return buf
}

func decodeUnary(buf [PayloadSize]byte) UnaryPayload {
	return UnaryPayload{
		Operand:  unpack24(buf[:], 0),
		Operator: binary.LittleEndian.Uint16(buf[3:5]),
		Literal:  binary.LittleEndian.Uint32(buf[5:9]),
	}
}

// CompoundPayload covers compound statements (blocks). Per the chaining
// invariant, a compound statement is itself chainable, so NextSibling
// occupies the "child2" slot at byte offset 3.
type CompoundPayload struct {
	Declarations uint32
	NextSibling  uint32
	Statements   uint32
	ScopeIdx     uint32
}

func (p CompoundPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 0, p.Declarations)
	pack24(buf[:], 3, p.NextSibling)
	pack24(buf[:], 6, p.Statements)
	pack24(buf[:], 9, p.ScopeIdx)
	return buf
}

func decodeCompound(buf [PayloadSize]byte) CompoundPayload {
	return CompoundPayload{
		Declarations: unpack24(buf[:], 0),
		NextSibling:  unpack24(buf[:], 3),
		Statements:   unpack24(buf[:], 6),
		ScopeIdx:     unpack24(buf[:], 9),
	}
}

// ConditionalPayload covers if/while. child2 (offset 3) is reserved for
// ThenStmt, so per the invariant's documented exception, NextSibling moves
// to "child4" at offset 9. Else=0 for while.
type ConditionalPayload struct {
	Condition   uint32
	ThenStmt    uint32
	ElseStmt    uint32
	NextSibling uint32
}

func (p ConditionalPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 0, p.Condition)
	pack24(buf[:], 3, p.ThenStmt)
	pack24(buf[:], 6, p.ElseStmt)
	pack24(buf[:], 9, p.NextSibling)
	return buf
}

func decodeConditional(buf [PayloadSize]byte) ConditionalPayload {
	return ConditionalPayload{
		Condition:   unpack24(buf[:], 0),
		ThenStmt:    unpack24(buf[:], 3),
		ElseStmt:    unpack24(buf[:], 6),
		NextSibling: unpack24(buf[:], 9),
	}
}

// CallPayload covers call expressions. Calls are never directly
// chainable (they are always wrapped by an ExprStmt when used as a
// statement), so no next-sibling slot is needed.
type CallPayload struct {
	Function   uint32
	Arguments  uint32 // head of the argument chain
	ArgCount   uint8
	ReturnType uint32
}

func (p CallPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 0, p.Function)
	pack24(buf[:], 3, p.Arguments)
	buf[6] = p.ArgCount
	pack24(buf[:], 7, p.ReturnType)
	return buf
}

func decodeCall(buf [PayloadSize]byte) CallPayload {
	return CallPayload{
		Function:   unpack24(buf[:], 0),
		Arguments:  unpack24(buf[:], 3),
		ArgCount:   buf[6],
		ReturnType: unpack24(buf[:], 7),
	}
}

// DeclPayload covers VAR_DECL. var-decl chains via child2, so NextSibling
// occupies offset 3; TypeIdx is carried by the node header and not
// repeated here.
type DeclPayload struct {
	SymbolIdx      uint32
	NextSibling    uint32
	Initializer    uint32
	StorageClass   uint8
	SpecifierFlags uint16
}

func (p DeclPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 0, p.SymbolIdx)
	pack24(buf[:], 3, p.NextSibling)
	pack24(buf[:], 6, p.Initializer)
	buf[9] = p.StorageClass
	binary.LittleEndian.PutUint16(buf[10:12], p.SpecifierFlags)
	return buf
}

func decodeDecl(buf [PayloadSize]byte) DeclPayload {
	return DeclPayload{
		SymbolIdx:      unpack24(buf[:], 0),
		NextSibling:    unpack24(buf[:], 3),
		Initializer:    unpack24(buf[:], 6),
		StorageClass:   buf[9],
		SpecifierFlags: binary.LittleEndian.Uint16(buf[10:12]),
	}
}

// FunctionDefPayload covers FUNCTION_DECL/DEF. function-def chains via
// child2, matching the invariant.
type FunctionDefPayload struct {
	SymbolIdx   uint32
	NextSibling uint32
	Body        uint32
	Params      uint32 // head of the parameter chain
}

func (p FunctionDefPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 0, p.SymbolIdx)
	pack24(buf[:], 3, p.NextSibling)
	pack24(buf[:], 6, p.Body)
	pack24(buf[:], 9, p.Params)
	return buf
}

func decodeFunctionDef(buf [PayloadSize]byte) FunctionDefPayload {
	return FunctionDefPayload{
		SymbolIdx:   unpack24(buf[:], 0),
		NextSibling: unpack24(buf[:], 3),
		Body:        unpack24(buf[:], 6),
		Params:      unpack24(buf[:], 9),
	}
}

// ExprStmtPayload covers expression-statements. Chains via child2.
type ExprStmtPayload struct {
	Expr        uint32
	NextSibling uint32
}

func (p ExprStmtPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 0, p.Expr)
	pack24(buf[:], 3, p.NextSibling)
	return buf
}

func decodeExprStmt(buf [PayloadSize]byte) ExprStmtPayload {
	return ExprStmtPayload{
		Expr:        unpack24(buf[:], 0),
		NextSibling: unpack24(buf[:], 3),
	}
}

// ReturnStmtPayload covers return statements. Value=0 means a bare
// "return;". Chains via child2.
type ReturnStmtPayload struct {
	Value       uint32
	NextSibling uint32
}

func (p ReturnStmtPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 0, p.Value)
	pack24(buf[:], 3, p.NextSibling)
	return buf
}

func decodeReturnStmt(buf [PayloadSize]byte) ReturnStmtPayload {
	return ReturnStmtPayload{
		Value:       unpack24(buf[:], 0),
		NextSibling: unpack24(buf[:], 3),
	}
}

// AssignPayload covers assignment expressions. The chaining invariant
// explicitly lists "assignment" among the directly chainable kinds (an
// assignment used as a statement need not be wrapped in ExprStmt), so
// NextSibling occupies child2 here too.
type AssignPayload struct {
	Left        uint32
	NextSibling uint32
	Right       uint32
	ValueKind   uint8 // discriminates Right's constant-fold shape, if any
}

func (p AssignPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 0, p.Left)
	pack24(buf[:], 3, p.NextSibling)
	pack24(buf[:], 6, p.Right)
	buf[9] = p.ValueKind
	return buf
}

func decodeAssign(buf [PayloadSize]byte) AssignPayload {
	return AssignPayload{
		Left:        unpack24(buf[:], 0),
		NextSibling: unpack24(buf[:], 3),
		Right:       unpack24(buf[:], 6),
		ValueKind:   buf[9],
	}
}

// GotoPayload covers goto statements.
type GotoPayload struct {
	TargetLabel uint32
	NextSibling uint32
}

func (p GotoPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 0, p.TargetLabel)
	pack24(buf[:], 3, p.NextSibling)
	return buf
}

func decodeGoto(buf [PayloadSize]byte) GotoPayload {
	return GotoPayload{
		TargetLabel: unpack24(buf[:], 0),
		NextSibling: unpack24(buf[:], 3),
	}
}

// LabelStmtPayload covers "name: stmt" label statements. The labeled
// statement itself is carried inline (Stmt) rather than as the next
// sibling, matching C's grammar where the label prefixes exactly one
// statement.
type LabelStmtPayload struct {
	LabelSymbol uint32
	NextSibling uint32
	Stmt        uint32
}

func (p LabelStmtPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 0, p.LabelSymbol)
	pack24(buf[:], 3, p.NextSibling)
	pack24(buf[:], 6, p.Stmt)
	return buf
}

func decodeLabelStmt(buf [PayloadSize]byte) LabelStmtPayload {
	return LabelStmtPayload{
		LabelSymbol: unpack24(buf[:], 0),
		NextSibling: unpack24(buf[:], 3),
		Stmt:        unpack24(buf[:], 6),
	}
}

// SimpleStmtPayload covers BREAK/CONTINUE/EMPTY, which carry no data of
// their own beyond chaining.
type SimpleStmtPayload struct {
	NextSibling uint32
}

func (p SimpleStmtPayload) encode() [PayloadSize]byte {
	var buf [PayloadSize]byte
	pack24(buf[:], 3, p.NextSibling)
	return buf
}

func decodeSimpleStmt(buf [PayloadSize]byte) SimpleStmtPayload {
	return SimpleStmtPayload{NextSibling: unpack24(buf[:], 3)}
}

// Exported payload accessors. A consumer outside this package (the
// translator, chiefly) always switches on Node.Type first and then calls
// the matching accessor; these are thin, deliberately unchecked wrappers
// over the unexported decode helpers above.

// AsChildren decodes n's payload as a ChildrenPayload.
func (n Node) AsChildren() ChildrenPayload { return decodeChildren(n.Payload) }

// AsBinary decodes n's payload as a BinaryPayload.
func (n Node) AsBinary() BinaryPayload { return decodeBinary(n.Payload) }

// AsUnary decodes n's payload as a UnaryPayload.
func (n Node) AsUnary() UnaryPayload { return decodeUnary(n.Payload) }

// AsCompound decodes n's payload as a CompoundPayload.
func (n Node) AsCompound() CompoundPayload { return decodeCompound(n.Payload) }

// AsConditional decodes n's payload as a ConditionalPayload.
func (n Node) AsConditional() ConditionalPayload { return decodeConditional(n.Payload) }

// AsCall decodes n's payload as a CallPayload.
func (n Node) AsCall() CallPayload { return decodeCall(n.Payload) }

// AsDecl decodes n's payload as a DeclPayload.
func (n Node) AsDecl() DeclPayload { return decodeDecl(n.Payload) }

// AsFunctionDef decodes n's payload as a FunctionDefPayload.
func (n Node) AsFunctionDef() FunctionDefPayload { return decodeFunctionDef(n.Payload) }

// AsExprStmt decodes n's payload as an ExprStmtPayload.
func (n Node) AsExprStmt() ExprStmtPayload { return decodeExprStmt(n.Payload) }

// AsReturnStmt decodes n's payload as a ReturnStmtPayload.
func (n Node) AsReturnStmt() ReturnStmtPayload { return decodeReturnStmt(n.Payload) }

// AsAssign decodes n's payload as an AssignPayload.
func (n Node) AsAssign() AssignPayload { return decodeAssign(n.Payload) }

// AsGoto decodes n's payload as a GotoPayload.
func (n Node) AsGoto() GotoPayload { return decodeGoto(n.Payload) }

// AsLabelStmt decodes n's payload as a LabelStmtPayload.
func (n Node) AsLabelStmt() LabelStmtPayload { return decodeLabelStmt(n.Payload) }

// AsSimpleStmt decodes n's payload as a SimpleStmtPayload.
func (n Node) AsSimpleStmt() SimpleStmtPayload { return decodeSimpleStmt(n.Payload) }
