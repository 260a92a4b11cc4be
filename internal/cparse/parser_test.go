package cparse

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"stcc1/internal/clex"
	"stcc1/pkg/ast"
	"stcc1/pkg/report"
	"stcc1/pkg/sstore"
	"stcc1/pkg/symtab"
	"stcc1/pkg/tokstore"
)

// fixture bundles every store the lexer and parser touch, each backed by a
// fresh file under t.TempDir(), mirroring pkg/tacgen's fixture.
type fixture struct {
	toks *tokstore.Store
	strs *sstore.Pool
	syms *symtab.Table
	asts *ast.Store
	rep  *report.Reporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	toks, err := tokstore.Init(filepath.Join(dir, "tokens"))
	require.NoError(t, err)
	strs, err := sstore.Init(filepath.Join(dir, "strings"))
	require.NoError(t, err)
	syms, err := symtab.Init(filepath.Join(dir, "symbols"), nil)
	require.NoError(t, err)
	asts, err := ast.Init(filepath.Join(dir, "ast"), nil)
	require.NoError(t, err)

	return &fixture{toks: toks, strs: strs, syms: syms, asts: asts, rep: report.New(0, 0)}
}

// parse lexes and parses src, returning the PROGRAM node index and the
// fixture so the test can inspect the resulting AST and symbol table.
func parse(t *testing.T, src string) (uint32, *fixture) {
	t.Helper()
	f := newFixture(t)

	l, err := clex.New(strings.NewReader(src), "t.c", f.toks, f.strs, f.rep)
	require.NoError(t, err)
	require.NoError(t, l.Lex())

	b := ast.NewBuilder(f.asts, "test")
	p, err := New(f.toks, f.strs, f.syms, f.asts, b, f.rep, "t.c")
	require.NoError(t, err)

	program, err := p.ParseProgram()
	require.NoError(t, err)
	return program, f
}

func (f *fixture) node(t *testing.T, idx uint32) ast.Node {
	t.Helper()
	n, err := f.asts.Get(idx)
	require.NoError(t, err)
	return n
}

func TestParseGlobalVarDeclWithInitializer(t *testing.T) {
	program, f := parse(t, "int g = 41;")
	require.False(t, f.rep.HasErrors())

	root := f.node(t, program)
	require.Equal(t, ast.KindProgram, root.Type)

	decl := f.node(t, root.AsChildren().Child1)
	require.Equal(t, ast.KindVarDecl, decl.Type)
	require.NotZero(t, decl.AsDecl().Initializer)

	lit := f.node(t, decl.AsDecl().Initializer)
	require.Equal(t, ast.KindLiteralInt, lit.Type)
	require.EqualValues(t, 41, lit.AsBinary().Value)
}

func TestParseFunctionDefWithParamsAndLocals(t *testing.T) {
	src := "int add(int a, int b) { int r; r = a + b; return r; }"
	program, f := parse(t, src)
	require.False(t, f.rep.HasErrors())

	root := f.node(t, program)
	fn := f.node(t, root.AsChildren().Child1)
	require.Equal(t, ast.KindFunctionDef, fn.Type)

	fnSym, err := f.syms.Get(fn.AsFunctionDef().SymbolIdx)
	require.NoError(t, err)
	require.Equal(t, symtab.KindFunction, fnSym.Kind)

	params := fn.AsFunctionDef().Params
	require.NotZero(t, params)
	a := f.node(t, params)
	require.Equal(t, ast.KindParamDecl, a.Type)
	nextParam, err := f.asts.NextSibling(params)
	require.NoError(t, err)
	require.NotZero(t, nextParam)
	bParam := f.node(t, nextParam)
	require.Equal(t, ast.KindParamDecl, bParam.Type)

	body := f.node(t, fn.AsFunctionDef().Body)
	require.Equal(t, ast.KindCompoundStmt, body.Type)
	require.Equal(t, fn.AsFunctionDef().SymbolIdx, body.AsCompound().ScopeIdx)

	var stmtKinds []ast.Kind
	require.NoError(t, f.asts.WalkChain(body.AsCompound().Statements, func(idx uint32) error {
		stmtKinds = append(stmtKinds, f.node(t, idx).Type)
		return nil
	}))
	require.Equal(t, []ast.Kind{ast.KindVarDecl, ast.KindExprStmt, ast.KindReturnStmt}, stmtKinds)
}

func TestParseAssignmentProducesAssignExprNode(t *testing.T) {
	src := "int main() { int x; x = 1 + 2; return x; }"
	program, f := parse(t, src)
	require.False(t, f.rep.HasErrors())

	root := f.node(t, program)
	fn := f.node(t, root.AsChildren().Child1)
	body := f.node(t, fn.AsFunctionDef().Body)

	var exprStmt ast.Node
	require.NoError(t, f.asts.WalkChain(body.AsCompound().Statements, func(idx uint32) error {
		n := f.node(t, idx)
		if n.Type == ast.KindExprStmt {
			exprStmt = n
		}
		return nil
	}))
	require.Equal(t, ast.KindExprStmt, exprStmt.Type)

	assign := f.node(t, exprStmt.AsExprStmt().Expr)
	require.Equal(t, ast.KindAssignExpr, assign.Type)

	lhs := f.node(t, assign.AsAssign().Left)
	require.Equal(t, ast.KindIdentExpr, lhs.Type)

	rhs := f.node(t, assign.AsAssign().Right)
	require.Equal(t, ast.KindBinaryExpr, rhs.Type)
}

func TestParseIfWhileAndCallExpression(t *testing.T) {
	src := `
		int add(int a, int b) { return a + b; }
		int main() {
			int x;
			x = 0;
			while (x) {
				if (x) {
					x = add(x, 1);
				} else {
					x = 0;
				}
			}
			return x;
		}
	`
	program, f := parse(t, src)
	require.False(t, f.rep.HasErrors())

	root := f.node(t, program)
	addFn := f.node(t, root.AsChildren().Child1)
	require.Equal(t, ast.KindFunctionDef, addFn.Type)

	mainIdx, err := f.asts.NextSibling(root.AsChildren().Child1)
	require.NoError(t, err)
	mainFn := f.node(t, mainIdx)
	body := f.node(t, mainFn.AsFunctionDef().Body)

	var kinds []ast.Kind
	require.NoError(t, f.asts.WalkChain(body.AsCompound().Statements, func(idx uint32) error {
		kinds = append(kinds, f.node(t, idx).Type)
		return nil
	}))
	require.Equal(t, []ast.Kind{ast.KindVarDecl, ast.KindExprStmt, ast.KindWhileStmt, ast.KindReturnStmt}, kinds)
}

func TestParseUndeclaredIdentifierReportsErrorAndSynchronizes(t *testing.T) {
	program, f := parse(t, "int main() { return y; } int g;")
	require.True(t, f.rep.HasErrors())

	root := f.node(t, program)
	require.Equal(t, ast.KindProgram, root.Type)
	// Recovery should still pick up the trailing global declaration.
	second, err := f.asts.NextSibling(root.AsChildren().Child1)
	require.NoError(t, err)
	require.NotZero(t, second)
	require.Equal(t, ast.KindVarDecl, f.node(t, second).Type)
}

func TestParseMissingSemicolonReportsAndResynchronizes(t *testing.T) {
	_, f := parse(t, "int main() { int x return x; }")
	require.True(t, f.rep.HasErrors())
}
