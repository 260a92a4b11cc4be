// Package tacgen implements the AST-to-TAC translator (C8): a structured
// recursion over the AST that emits three-address code into a tac.Store,
// managing temporaries, labels, and a name->label function table per
// spec §4.6.
package tacgen

import (
	"errors"
	"fmt"

	"stcc1/pkg/ast"
	"stcc1/pkg/report"
	"stcc1/pkg/sstore"
	"stcc1/pkg/symtab"
	"stcc1/pkg/tac"
	"stcc1/pkg/tokstore"
)

// maxTemps caps the 16-bit temp counter well below its theoretical range,
// per the translator's own default (spec §4.6).
const maxTemps = 1000

// errReported is an internal sentinel: it signals that a recoverable
// semantic error was already recorded on the Reporter, so the caller
// should fold it into a NONE return and keep translating rather than
// treat it as a fatal I/O/internal error that aborts the pass.
var errReported = errors.New("tacgen: diagnostic already reported")

// FuncInfo is the translator's per-function bookkeeping: a stable label
// id assigned up front (so forward calls resolve before the callee body
// is emitted) plus the instruction address once the function's LABEL is
// actually emitted, exported through Functions.
type FuncInfo struct {
	Label  uint16
	Addr   uint32
	IsMain bool
}

// Translator holds every store the AST->TAC pass touches plus its own
// temp/label allocators and function table.
type Translator struct {
	ast  *ast.Store
	toks *tokstore.Store
	syms *symtab.Table
	strs *sstore.Pool
	code *tac.Store
	rep  *report.Reporter

	nextTemp  uint16
	nextLabel uint16
	funcs     map[string]*FuncInfo
	errors    int
}

// New builds a Translator and pre-scans syms for every SYM_FUNCTION entry
// to populate the function table (§4.6 "Function table"), allocating each
// a label up front so a call that textually precedes its callee's
// definition still resolves.
func New(astStore *ast.Store, toks *tokstore.Store, syms *symtab.Table, strs *sstore.Pool, code *tac.Store, rep *report.Reporter) (*Translator, error) {
	t := &Translator{
		ast:       astStore,
		toks:      toks,
		syms:      syms,
		strs:      strs,
		code:      code,
		rep:       rep,
		nextLabel: 1,
		funcs:     make(map[string]*FuncInfo),
	}
	if err := t.buildFunctionTable(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Translator) buildFunctionTable() error {
	entries, err := t.syms.All()
	if err != nil {
		return fmt.Errorf("tacgen: scan function table: %w", err)
	}
	for _, ie := range entries {
		if ie.Entry.Kind != symtab.KindFunction {
			continue
		}
		name, err := t.strs.GetString(ie.Entry.Name)
		if err != nil {
			return fmt.Errorf("tacgen: function name at symbol %d: %w", ie.Index, err)
		}
		if _, exists := t.funcs[name]; exists {
			continue
		}
		t.funcs[name] = &FuncInfo{Label: t.allocLabel(), IsMain: name == "main"}
	}
	return nil
}

// Functions returns a snapshot of the function table, keyed by name.
// cmd/cc2's text dump does not use it: that listing comes from
// vm.Engine.Disassemble, which prints label operands as raw L<id>
// rather than function names.
func (t *Translator) Functions() map[string]FuncInfo {
	out := make(map[string]FuncInfo, len(t.funcs))
	for k, v := range t.funcs {
		out[k] = *v
	}
	return out
}

// ErrorCount returns the number of recoverable semantic errors
// accumulated during translation. A non-zero count after TranslateProgram
// means the driver should not hand the TAC file to the engine.
func (t *Translator) ErrorCount() int { return t.errors }

func (t *Translator) allocTemp() (tac.Operand, error) {
	if t.nextTemp >= maxTemps {
		return tac.NoneOperand, t.report(0, "temporary allocator exhausted (max %d)", maxTemps)
	}
	id := t.nextTemp
	t.nextTemp++
	return tac.Temp(id, 0), nil
}

func (t *Translator) allocLabel() uint16 {
	id := t.nextLabel
	t.nextLabel++
	return id
}

func (t *Translator) emit(op tac.Opcode, result, o1, o2 tac.Operand) (uint32, error) {
	addr, err := t.code.Append(tac.Instr{Opcode: op, Result: result, Operand1: o1, Operand2: o2})
	if err != nil {
		return 0, fmt.Errorf("tacgen: emit %v: %w", op, err)
	}
	return addr, nil
}

// report records a semantic error against tokenIdx (0 if none available)
// and returns errReported so the caller folds the failure into NONE
// instead of propagating a Go error, matching the "accumulate, don't
// abort" failure semantics of §4.6.
func (t *Translator) report(tokenIdx uint32, format string, args ...any) error {
	t.errors++
	loc := report.Location{TokenIdx: tokenIdx}
	if tokenIdx != 0 {
		if tok, err := t.toks.Get(tokenIdx); err == nil {
			loc.Line = tok.Line
			if f, err := t.strs.GetString(tok.File); err == nil {
				loc.File = f
			}
		}
	}
	t.rep.Errorf(report.Semantic, loc, 1, format, args...)
	return errReported
}

// binaryOpcodes maps the operator token kind (read from the node's own
// TokenIdx, per the design note that TACgen "maps token kind to opcode
// via a fixed table") to the TAC opcode it lowers to.
var binaryOpcodes = map[tokstore.Kind]tac.Opcode{
	tokstore.KindPlus:      tac.OpAdd,
	tokstore.KindMinus:     tac.OpSub,
	tokstore.KindStar:      tac.OpMul,
	tokstore.KindSlash:     tac.OpDiv,
	tokstore.KindPercent:   tac.OpMod,
	tokstore.KindAmp:       tac.OpAnd,
	tokstore.KindPipe:      tac.OpOr,
	tokstore.KindCaret:     tac.OpXor,
	tokstore.KindShl:       tac.OpShl,
	tokstore.KindShr:       tac.OpShr,
	tokstore.KindLess:      tac.OpLt,
	tokstore.KindGreater:   tac.OpGt,
	tokstore.KindLessEq:    tac.OpLe,
	tokstore.KindGreaterEq: tac.OpGe,
	tokstore.KindEqEq:      tac.OpEq,
	tokstore.KindNotEq:     tac.OpNe,
	tokstore.KindAndAnd:    tac.OpLogicalAnd,
	tokstore.KindOrOr:      tac.OpLogicalOr,
}

// TranslateProgram translates the top-level PROGRAM node in two ordered
// passes: globals first, then function bodies, so that a function body
// never references a global that has not yet been materialized (§4.6
// "Program").
func (t *Translator) TranslateProgram(programIdx uint32) error {
	node, err := t.ast.Get(programIdx)
	if err != nil {
		return fmt.Errorf("tacgen: program: %w", err)
	}
	if node.Type != ast.KindProgram {
		return fmt.Errorf("tacgen: expected PROGRAM node, got %v", node.Type)
	}
	head := node.AsChildren().Child1

	if err := t.ast.WalkChain(head, func(idx uint32) error {
		n, err := t.ast.Get(idx)
		if err != nil {
			return err
		}
		if n.Type != ast.KindVarDecl {
			return nil
		}
		_, err = t.translate(idx)
		return err
	}); err != nil {
		return fmt.Errorf("tacgen: globals pass: %w", err)
	}

	if err := t.ast.WalkChain(head, func(idx uint32) error {
		n, err := t.ast.Get(idx)
		if err != nil {
			return err
		}
		if n.Type != ast.KindFunctionDef {
			return nil
		}
		_, err = t.translate(idx)
		return err
	}); err != nil {
		return fmt.Errorf("tacgen: functions pass: %w", err)
	}
	return nil
}

// translate dispatches on node kind and returns the TAC operand the node
// evaluates to (NONE for statement-shaped nodes). idx==0 is the chain
// terminator / "no node" case and always yields NONE.
func (t *Translator) translate(idx uint32) (tac.Operand, error) {
	if idx == 0 {
		return tac.NoneOperand, nil
	}
	node, err := t.ast.Get(idx)
	if err != nil {
		return tac.NoneOperand, fmt.Errorf("tacgen: load node %d: %w", idx, err)
	}
	op, err := t.dispatch(node)
	if err == errReported {
		return tac.NoneOperand, nil
	}
	return op, err
}

func (t *Translator) dispatch(node ast.Node) (tac.Operand, error) {
	switch node.Type {
	case ast.KindLiteralInt:
		return t.translateLiteralInt(node)
	case ast.KindIdentExpr:
		return t.translateIdent(node)
	case ast.KindBinaryExpr:
		return t.translateBinary(node)
	case ast.KindUnaryExpr:
		return t.translateUnary(node)
	case ast.KindAssignExpr:
		return t.translateAssign(node)
	case ast.KindCallExpr:
		return t.translateCall(node)
	case ast.KindIfStmt:
		return t.translateIf(node)
	case ast.KindWhileStmt:
		return t.translateWhile(node)
	case ast.KindReturnStmt:
		return t.translateReturn(node)
	case ast.KindCompoundStmt:
		return t.translateCompound(node)
	case ast.KindExprStmt:
		return t.translateExprStmt(node)
	case ast.KindVarDecl:
		return t.translateVarDecl(node)
	case ast.KindFunctionDef:
		return t.translateFunctionDef(node)
	case ast.KindEmptyStmt:
		return tac.NoneOperand, nil
	case ast.KindBreakStmt, ast.KindContinueStmt:
		// Loop-exit/continue label tracking is outside the named
		// integer/control-flow/function-call subset this core commits
		// to (spec §1); reserved opcodes exist but nothing lowers here.
		return tac.NoneOperand, t.report(node.TokenIdx, "break/continue not supported by this translator")
	default:
		return tac.NoneOperand, t.report(node.TokenIdx, "translator: unsupported node kind %v", node.Type)
	}
}

// translateLiteralInt implements the "Integer literal" rule of §4.6: if
// the value fits the 24-bit immediate encoding (the Open Question #4
// resolution, see DESIGN.md), return it inline; otherwise lower it into a
// temp-assignment sequence.
func (t *Translator) translateLiteralInt(node ast.Node) (tac.Operand, error) {
	v32 := int32(int64(node.AsBinary().Value))
	if tac.ImmediateFits(v32) {
		return tac.Immediate(v32), nil
	}
	return t.loadConstant(v32)
}

// loadConstant assembles a full 32-bit constant into a fresh temp out of
// two 24-bit-safe immediates, since no single TAC immediate operand can
// carry more than 24 bits (Open Question #4).
func (t *Translator) loadConstant(v32 int32) (tac.Operand, error) {
	temp, err := t.allocTemp()
	if err != nil {
		return tac.NoneOperand, nil
	}
	high := int32(int16(uint32(v32) >> 16))
	low := int32(uint16(uint32(v32)))
	if _, err := t.emit(tac.OpAssign, temp, tac.Immediate(high), tac.NoneOperand); err != nil {
		return tac.NoneOperand, err
	}
	if _, err := t.emit(tac.OpShl, temp, temp, tac.Immediate(16)); err != nil {
		return tac.NoneOperand, err
	}
	if _, err := t.emit(tac.OpAdd, temp, temp, tac.Immediate(low)); err != nil {
		return tac.NoneOperand, err
	}
	return temp, nil
}

// translateIdent implements the "Identifier" rule: the node carries the
// resolved symbol index; zero means the parser never resolved it.
func (t *Translator) translateIdent(node ast.Node) (tac.Operand, error) {
	symbolIdx := uint32(node.AsBinary().Value)
	if symbolIdx == 0 {
		return tac.NoneOperand, t.report(node.TokenIdx, "identifier has no resolved symbol")
	}
	return tac.Var(uint16(symbolIdx), 0), nil
}

// translateBinary implements the "Binary op" rule.
func (t *Translator) translateBinary(node ast.Node) (tac.Operand, error) {
	p := node.AsBinary()
	left, err := t.translate(p.Left)
	if err != nil {
		return tac.NoneOperand, err
	}
	right, err := t.translate(p.Right)
	if err != nil {
		return tac.NoneOperand, err
	}
	tok, err := t.toks.Get(node.TokenIdx)
	if err != nil {
		return tac.NoneOperand, fmt.Errorf("tacgen: binary operator token %d: %w", node.TokenIdx, err)
	}
	opcode, ok := binaryOpcodes[tok.Kind]
	if !ok {
		return tac.NoneOperand, t.report(node.TokenIdx, "unsupported binary operator token kind %v", tok.Kind)
	}
	temp, err := t.allocTemp()
	if err != nil {
		return tac.NoneOperand, nil
	}
	if _, err := t.emit(opcode, temp, left, right); err != nil {
		return tac.NoneOperand, err
	}
	return temp, nil
}

// translateUnary implements the "Unary op" rule: '+' is a no-op pass
// through, '-' lowers to NEG, '!' to NOT, '~' to BITWISE_NOT.
func (t *Translator) translateUnary(node ast.Node) (tac.Operand, error) {
	p := node.AsUnary()
	operand, err := t.translate(p.Operand)
	if err != nil {
		return tac.NoneOperand, err
	}
	switch tokstore.Kind(p.Operator) {
	case tokstore.KindPlus:
		return operand, nil
	case tokstore.KindMinus:
		return t.unaryEmit(tac.OpNeg, operand)
	case tokstore.KindBang:
		return t.unaryEmit(tac.OpNot, operand)
	case tokstore.KindTilde:
		return t.unaryEmit(tac.OpBitwiseNot, operand)
	default:
		return tac.NoneOperand, t.report(node.TokenIdx, "unsupported unary operator token kind %v", p.Operator)
	}
}

func (t *Translator) unaryEmit(op tac.Opcode, operand tac.Operand) (tac.Operand, error) {
	temp, err := t.allocTemp()
	if err != nil {
		return tac.NoneOperand, nil
	}
	if _, err := t.emit(op, temp, operand, tac.NoneOperand); err != nil {
		return tac.NoneOperand, err
	}
	return temp, nil
}

// translateAssign implements the "Assignment" rule: translate rhs, then
// lhs, emit ASSIGN lhs, rhs, return lhs.
func (t *Translator) translateAssign(node ast.Node) (tac.Operand, error) {
	p := node.AsAssign()
	rhs, err := t.translate(p.Right)
	if err != nil {
		return tac.NoneOperand, err
	}
	lhs, err := t.translate(p.Left)
	if err != nil {
		return tac.NoneOperand, err
	}
	if lhs.Kind != tac.OperandVar && lhs.Kind != tac.OperandTemp {
		return tac.NoneOperand, t.report(node.TokenIdx, "left-hand side of assignment is not assignable")
	}
	if _, err := t.emit(tac.OpAssign, lhs, rhs, tac.NoneOperand); err != nil {
		return tac.NoneOperand, err
	}
	return lhs, nil
}

// translateIf implements the "If" rule: else_label and end_label are
// always both emitted, even with no else branch, since the conditional
// jump always targets else_label.
func (t *Translator) translateIf(node ast.Node) (tac.Operand, error) {
	p := node.AsConditional()
	elseLabel := t.allocLabel()
	endLabel := t.allocLabel()

	cond, err := t.translate(p.Condition)
	if err != nil {
		return tac.NoneOperand, err
	}
	if _, err := t.emit(tac.OpIfFalse, tac.NoneOperand, cond, tac.Label(elseLabel)); err != nil {
		return tac.NoneOperand, err
	}
	if _, err := t.translate(p.ThenStmt); err != nil {
		return tac.NoneOperand, err
	}
	if p.ElseStmt != 0 {
		if _, err := t.emit(tac.OpGoto, tac.NoneOperand, tac.Label(endLabel), tac.NoneOperand); err != nil {
			return tac.NoneOperand, err
		}
	}
	if _, err := t.emit(tac.OpLabel, tac.NoneOperand, tac.Label(elseLabel), tac.NoneOperand); err != nil {
		return tac.NoneOperand, err
	}
	if p.ElseStmt != 0 {
		if _, err := t.translate(p.ElseStmt); err != nil {
			return tac.NoneOperand, err
		}
	}
	if _, err := t.emit(tac.OpLabel, tac.NoneOperand, tac.Label(endLabel), tac.NoneOperand); err != nil {
		return tac.NoneOperand, err
	}
	return tac.NoneOperand, nil
}

// translateWhile implements the "While" rule. The loop body is carried in
// the shared ConditionalPayload's ThenStmt field (ElseStmt is always 0
// for WHILE, per the builder's While constructor).
func (t *Translator) translateWhile(node ast.Node) (tac.Operand, error) {
	p := node.AsConditional()
	startLabel := t.allocLabel()
	endLabel := t.allocLabel()

	if _, err := t.emit(tac.OpLabel, tac.NoneOperand, tac.Label(startLabel), tac.NoneOperand); err != nil {
		return tac.NoneOperand, err
	}
	cond, err := t.translate(p.Condition)
	if err != nil {
		return tac.NoneOperand, err
	}
	if _, err := t.emit(tac.OpIfFalse, tac.NoneOperand, cond, tac.Label(endLabel)); err != nil {
		return tac.NoneOperand, err
	}
	if _, err := t.translate(p.ThenStmt); err != nil {
		return tac.NoneOperand, err
	}
	if _, err := t.emit(tac.OpGoto, tac.NoneOperand, tac.Label(startLabel), tac.NoneOperand); err != nil {
		return tac.NoneOperand, err
	}
	if _, err := t.emit(tac.OpLabel, tac.NoneOperand, tac.Label(endLabel), tac.NoneOperand); err != nil {
		return tac.NoneOperand, err
	}
	return tac.NoneOperand, nil
}

// translateReturn implements the "Return" rule.
func (t *Translator) translateReturn(node ast.Node) (tac.Operand, error) {
	p := node.AsReturnStmt()
	if p.Value == 0 {
		_, err := t.emit(tac.OpReturnVoid, tac.NoneOperand, tac.NoneOperand, tac.NoneOperand)
		return tac.NoneOperand, err
	}
	v, err := t.translate(p.Value)
	if err != nil {
		return tac.NoneOperand, err
	}
	_, err = t.emit(tac.OpReturn, tac.NoneOperand, v, tac.NoneOperand)
	return tac.NoneOperand, err
}

// translateCompound implements the "Compound" rule: walk the statement
// chain per §3.4.3.
func (t *Translator) translateCompound(node ast.Node) (tac.Operand, error) {
	p := node.AsCompound()
	err := t.ast.WalkChain(p.Statements, func(idx uint32) error {
		_, err := t.translate(idx)
		return err
	})
	return tac.NoneOperand, err
}

func (t *Translator) translateExprStmt(node ast.Node) (tac.Operand, error) {
	p := node.AsExprStmt()
	_, err := t.translate(p.Expr)
	return tac.NoneOperand, err
}

// translateVarDecl implements the "Variable declaration" rule: emit
// nothing when there is no initializer.
func (t *Translator) translateVarDecl(node ast.Node) (tac.Operand, error) {
	p := node.AsDecl()
	if p.Initializer == 0 {
		return tac.NoneOperand, nil
	}
	init, err := t.translate(p.Initializer)
	if err != nil {
		return tac.NoneOperand, err
	}
	dest := tac.Var(uint16(p.SymbolIdx), 0)
	_, err = t.emit(tac.OpAssign, dest, init, tac.NoneOperand)
	return tac.NoneOperand, err
}

// translateCall implements the "Call" rule. Arguments are chained
// left-to-right through ExprStmt-shaped wrapper nodes: the chaining
// invariant (§3.4.3) lists "argument list" among the chained sibling
// lists, and ExprStmt's {Expr, NextSibling} shape is exactly a
// one-expression chain link, so the parser reuses it rather than
// inventing a dedicated argument-list node kind.
func (t *Translator) translateCall(node ast.Node) (tac.Operand, error) {
	p := node.AsCall()
	sym, err := t.syms.Get(p.Function)
	if err != nil {
		return tac.NoneOperand, fmt.Errorf("tacgen: call callee symbol %d: %w", p.Function, err)
	}
	name, err := t.strs.GetString(sym.Name)
	if err != nil {
		return tac.NoneOperand, fmt.Errorf("tacgen: call callee name: %w", err)
	}
	fi, ok := t.funcs[name]
	if !ok {
		return tac.NoneOperand, t.report(node.TokenIdx, "call to undeclared function %q", name)
	}

	if err := t.ast.WalkChain(p.Arguments, func(argIdx uint32) error {
		wrapper, err := t.ast.Get(argIdx)
		if err != nil {
			return err
		}
		argOperand, err := t.translate(wrapper.AsExprStmt().Expr)
		if err != nil {
			return err
		}
		_, err = t.emit(tac.OpParam, tac.NoneOperand, argOperand, tac.NoneOperand)
		return err
	}); err != nil {
		return tac.NoneOperand, fmt.Errorf("tacgen: call arguments: %w", err)
	}

	result, err := t.allocTemp()
	if err != nil {
		return tac.NoneOperand, nil
	}
	if _, err := t.emit(tac.OpCall, result, tac.Label(fi.Label), tac.NoneOperand); err != nil {
		return tac.NoneOperand, err
	}
	return result, nil
}

// translateFunctionDef implements the "Function definition" rule: look up
// the pre-allocated label in the function table, emit its LABEL, record
// the instruction address, then translate the body.
func (t *Translator) translateFunctionDef(node ast.Node) (tac.Operand, error) {
	p := node.AsFunctionDef()
	sym, err := t.syms.Get(p.SymbolIdx)
	if err != nil {
		return tac.NoneOperand, fmt.Errorf("tacgen: function symbol %d: %w", p.SymbolIdx, err)
	}
	name, err := t.strs.GetString(sym.Name)
	if err != nil {
		return tac.NoneOperand, fmt.Errorf("tacgen: function name: %w", err)
	}
	fi, ok := t.funcs[name]
	if !ok {
		return tac.NoneOperand, t.report(node.TokenIdx, "unknown function %q: not found in pre-scanned function table", name)
	}
	addr, err := t.emit(tac.OpLabel, tac.NoneOperand, tac.Label(fi.Label), tac.NoneOperand)
	if err != nil {
		return tac.NoneOperand, err
	}
	fi.Addr = addr

	// Bind each incoming parameter (the engine's per-frame PARAM slots,
	// populated from the caller's pending-params snapshot at CALL time) to
	// its variable id, in declaration order, before the body runs.
	paramIndex := uint32(0)
	if err := t.ast.WalkChain(p.Params, func(paramIdx uint32) error {
		param, err := t.ast.Get(paramIdx)
		if err != nil {
			return err
		}
		dp := param.AsDecl()
		if _, err := t.emit(tac.OpAssign, tac.Var(uint16(dp.SymbolIdx), 0), tac.Operand{Kind: tac.OperandParam, Index: paramIndex}, tac.NoneOperand); err != nil {
			return err
		}
		paramIndex++
		return nil
	}); err != nil {
		return tac.NoneOperand, fmt.Errorf("tacgen: function parameters: %w", err)
	}

	if _, err := t.translate(p.Body); err != nil {
		return tac.NoneOperand, err
	}
	return tac.NoneOperand, nil
}
