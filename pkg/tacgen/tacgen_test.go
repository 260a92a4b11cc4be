package tacgen

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"stcc1/pkg/ast"
	"stcc1/pkg/report"
	"stcc1/pkg/sstore"
	"stcc1/pkg/symtab"
	"stcc1/pkg/tac"
	"stcc1/pkg/tokstore"
)

// fixture bundles every store the translator touches, each backed by a
// fresh file under t.TempDir(), mirroring how cmd/cc2 wires them.
type fixture struct {
	strs *sstore.Pool
	toks *tokstore.Store
	syms *symtab.Table
	asts *ast.Store
	code *tac.Store
	rep  *report.Reporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	strs, err := sstore.Init(filepath.Join(dir, "strings"))
	require.NoError(t, err)
	toks, err := tokstore.Init(filepath.Join(dir, "tokens"))
	require.NoError(t, err)
	syms, err := symtab.Init(filepath.Join(dir, "symbols"), nil)
	require.NoError(t, err)
	asts, err := ast.Init(filepath.Join(dir, "ast"), nil)
	require.NoError(t, err)
	code, err := tac.Init(filepath.Join(dir, "tac"))
	require.NoError(t, err)

	return &fixture{
		strs: strs,
		toks: toks,
		syms: syms,
		asts: asts,
		code: code,
		rep:  report.New(0, 0),
	}
}

// intern interns a Go string and fails the test on error, for terser
// fixture setup below.
func (f *fixture) intern(t *testing.T, s string) uint32 {
	t.Helper()
	off, err := f.strs.InternString(s)
	require.NoError(t, err)
	return off
}

func (f *fixture) addSymbol(t *testing.T, name string, kind symtab.Kind) uint32 {
	t.Helper()
	idx, err := f.syms.Add(f.syms.Root(), symtab.Entry{Name: f.intern(t, name), Kind: kind})
	require.NoError(t, err)
	return idx
}

// buildProgram constructs:
//
//	int g;
//	int main() {
//	    int x;
//	    x = 1 + 2;
//	    return x;
//	}
//
// and returns the PROGRAM node index. The local x is entered in the
// symbol table only; no VarDecl node is built for it.
func (f *fixture) buildProgram(t *testing.T) uint32 {
	t.Helper()
	b := ast.NewBuilder(f.asts, "test")

	gIdx := f.addSymbol(t, "g", symtab.KindVariable)
	mainIdx := f.addSymbol(t, "main", symtab.KindFunction)
	xIdx := f.addSymbol(t, "x", symtab.KindVariable)

	plusTok, err := f.toks.Append(tokstore.Token{Kind: tokstore.KindPlus, Line: 3})
	require.NoError(t, err)

	lit1, err := b.LiteralInt(0, 1)
	require.NoError(t, err)
	lit2, err := b.LiteralInt(0, 2)
	require.NoError(t, err)
	sum, err := b.Binary(plusTok, ast.BinaryPayload{Left: lit1, Right: lit2})
	require.NoError(t, err)

	lhs, err := b.Ident(0, xIdx)
	require.NoError(t, err)
	assign, err := b.Assign(0, ast.AssignPayload{Left: lhs, Right: sum})
	require.NoError(t, err)
	assignStmt, err := b.ExprStmt(0, ast.ExprStmtPayload{Expr: assign})
	require.NoError(t, err)

	retVal, err := b.Ident(0, xIdx)
	require.NoError(t, err)
	retStmt, err := b.ReturnStmt(0, ast.ReturnStmtPayload{Value: retVal})
	require.NoError(t, err)

	require.NoError(t, b.ChainNextSibling(assignStmt, retStmt))

	body, err := b.Compound(0, ast.CompoundPayload{Statements: assignStmt})
	require.NoError(t, err)
	fn, err := b.FunctionDef(0, 0, ast.FunctionDefPayload{SymbolIdx: mainIdx, Body: body})
	require.NoError(t, err)

	global, err := b.VarDecl(0, 0, ast.DeclPayload{SymbolIdx: gIdx})
	require.NoError(t, err)
	require.NoError(t, b.ChainNextSibling(global, fn))

	program, err := b.Children(ast.KindProgram, 0, ast.ChildrenPayload{Child1: global})
	require.NoError(t, err)
	return program
}

func TestTranslateProgramEmitsExpectedInstructions(t *testing.T) {
	f := newFixture(t)
	program := f.buildProgram(t)

	tr, err := New(f.asts, f.toks, f.syms, f.strs, f.code, f.rep)
	require.NoError(t, err)
	require.NoError(t, tr.TranslateProgram(program))
	require.Equal(t, 0, tr.ErrorCount())
	require.False(t, f.rep.HasErrors())

	fns := tr.Functions()
	main, ok := fns["main"]
	require.True(t, ok)
	require.True(t, main.IsMain)
	require.NotZero(t, main.Addr)

	instrs, err := f.code.LoadAll()
	require.NoError(t, err)
	require.NotEmpty(t, instrs)

	var sawLabel, sawAdd, sawAssignToVar, sawReturn bool
	for _, in := range instrs {
		switch in.Opcode {
		case tac.OpLabel:
			sawLabel = true
		case tac.OpAdd:
			sawAdd = true
			require.Equal(t, tac.Immediate(1), in.Operand1)
			require.Equal(t, tac.Immediate(2), in.Operand2)
		case tac.OpAssign:
			if in.Result.Kind == tac.OperandVar {
				sawAssignToVar = true
			}
		case tac.OpReturn:
			sawReturn = true
			require.Equal(t, tac.OperandVar, in.Operand1.Kind)
		}
	}
	require.True(t, sawLabel, "expected a LABEL for main")
	require.True(t, sawAdd, "expected the 1+2 ADD")
	require.True(t, sawAssignToVar, "expected x's assignment")
	require.True(t, sawReturn, "expected the return")
}

func TestLiteralOutsideImmediateRangeLowersToLoadSequence(t *testing.T) {
	f := newFixture(t)
	tr, err := New(f.asts, f.toks, f.syms, f.strs, f.code, f.rep)
	require.NoError(t, err)

	b := ast.NewBuilder(f.asts, "test")
	bigIdx, err := b.LiteralInt(0, 1<<24)
	require.NoError(t, err)

	op, err := tr.translate(bigIdx)
	require.NoError(t, err)
	require.Equal(t, tac.OperandTemp, op.Kind)

	instrs, err := f.code.LoadAll()
	require.NoError(t, err)
	require.Len(t, instrs, 3)
	require.Equal(t, tac.OpAssign, instrs[0].Opcode)
	require.Equal(t, tac.OpShl, instrs[1].Opcode)
	require.Equal(t, tac.OpAdd, instrs[2].Opcode)
}

func TestCallToUndeclaredFunctionReportsErrorAndContinues(t *testing.T) {
	f := newFixture(t)
	b := ast.NewBuilder(f.asts, "test")

	ghostIdx := f.addSymbol(t, "ghost", symtab.KindVariable) // not KindFunction: never in the table
	call, err := b.Call(0, ast.CallPayload{Function: ghostIdx})
	require.NoError(t, err)

	tr, err := New(f.asts, f.toks, f.syms, f.strs, f.code, f.rep)
	require.NoError(t, err)

	op, err := tr.translate(call)
	require.NoError(t, err)
	require.Equal(t, tac.NoneOperand, op)
	require.Equal(t, 1, tr.ErrorCount())
	require.True(t, f.rep.HasErrors())
}

func TestUnresolvedIdentifierReportsErrorAndContinues(t *testing.T) {
	f := newFixture(t)
	b := ast.NewBuilder(f.asts, "test")

	ident, err := b.Ident(0, 0) // symbol index 0: never resolved by the parser
	require.NoError(t, err)

	tr, err := New(f.asts, f.toks, f.syms, f.strs, f.code, f.rep)
	require.NoError(t, err)

	op, err := tr.translate(ident)
	require.NoError(t, err)
	require.Equal(t, tac.NoneOperand, op)
	require.Equal(t, 1, tr.ErrorCount())
}

func TestFunctionParametersBindFromIncomingParamSlots(t *testing.T) {
	f := newFixture(t)
	b := ast.NewBuilder(f.asts, "test")

	addIdx := f.addSymbol(t, "add", symtab.KindFunction)
	aIdx := f.addSymbol(t, "a", symtab.KindVariable)
	bIdx := f.addSymbol(t, "b", symtab.KindVariable)

	param0, err := b.ParamDecl(0, 0, ast.DeclPayload{SymbolIdx: aIdx})
	require.NoError(t, err)
	param1, err := b.ParamDecl(0, 0, ast.DeclPayload{SymbolIdx: bIdx})
	require.NoError(t, err)
	require.NoError(t, b.ChainNextSibling(param0, param1))

	body, err := b.Compound(0, ast.CompoundPayload{})
	require.NoError(t, err)
	fn, err := b.FunctionDef(0, 0, ast.FunctionDefPayload{SymbolIdx: addIdx, Body: body, Params: param0})
	require.NoError(t, err)

	tr, err := New(f.asts, f.toks, f.syms, f.strs, f.code, f.rep)
	require.NoError(t, err)
	_, err = tr.translate(fn)
	require.NoError(t, err)

	instrs, err := f.code.LoadAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(instrs), 3)
	require.Equal(t, tac.OpLabel, instrs[0].Opcode)

	require.Equal(t, tac.OpAssign, instrs[1].Opcode)
	require.Equal(t, tac.OperandVar, instrs[1].Result.Kind)
	require.Equal(t, uint16(aIdx), instrs[1].Result.ID)
	require.Equal(t, tac.OperandParam, instrs[1].Operand1.Kind)
	require.Equal(t, uint32(0), instrs[1].Operand1.Index)

	require.Equal(t, tac.OpAssign, instrs[2].Opcode)
	require.Equal(t, uint16(bIdx), instrs[2].Result.ID)
	require.Equal(t, uint32(1), instrs[2].Operand1.Index)
}

func TestIfEmitsBothLabelsEvenWithoutElse(t *testing.T) {
	f := newFixture(t)
	b := ast.NewBuilder(f.asts, "test")

	cond, err := b.LiteralInt(0, 1)
	require.NoError(t, err)
	then, err := b.SimpleStmt(ast.KindEmptyStmt, 0, ast.SimpleStmtPayload{})
	require.NoError(t, err)
	ifNode, err := b.If(0, ast.ConditionalPayload{Condition: cond, ThenStmt: then})
	require.NoError(t, err)

	tr, err := New(f.asts, f.toks, f.syms, f.strs, f.code, f.rep)
	require.NoError(t, err)
	_, err = tr.translate(ifNode)
	require.NoError(t, err)

	instrs, err := f.code.LoadAll()
	require.NoError(t, err)
	labelCount := 0
	for _, in := range instrs {
		if in.Opcode == tac.OpLabel {
			labelCount++
		}
	}
	require.Equal(t, 2, labelCount, "IF always emits else_label and end_label")
}
