// cc1t - STCC1 AST/symbol-table inspection tool
//
// Usage: cc1t <ast.out> <sym.out> <sstore.out>
//
// Dumps every AST node and every symbol table entry in human-readable
// form, one record per line, mirroring disasm.go's address-prefixed
// text-dump style.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"stcc1/pkg/ast"
	"stcc1/pkg/sstore"
	"stcc1/pkg/symtab"
)

var astKindMnemonics = map[ast.Kind]string{
	ast.KindFree:             "FREE",
	ast.KindProgram:          "PROGRAM",
	ast.KindTranslationUnit:  "TRANSLATION_UNIT",
	ast.KindFunctionDecl:     "FUNCTION_DECL",
	ast.KindFunctionDef:      "FUNCTION_DEF",
	ast.KindVarDecl:          "VAR_DECL",
	ast.KindParamDecl:        "PARAM_DECL",
	ast.KindCompoundStmt:     "COMPOUND_STMT",
	ast.KindExprStmt:         "EXPR_STMT",
	ast.KindIfStmt:           "IF_STMT",
	ast.KindWhileStmt:        "WHILE_STMT",
	ast.KindReturnStmt:       "RETURN_STMT",
	ast.KindBreakStmt:        "BREAK_STMT",
	ast.KindContinueStmt:     "CONTINUE_STMT",
	ast.KindGotoStmt:         "GOTO_STMT",
	ast.KindLabelStmt:        "LABEL_STMT",
	ast.KindEmptyStmt:        "EMPTY_STMT",
	ast.KindIdentExpr:        "IDENT_EXPR",
	ast.KindBinaryExpr:       "BINARY_EXPR",
	ast.KindUnaryExpr:        "UNARY_EXPR",
	ast.KindAssignExpr:       "ASSIGN_EXPR",
	ast.KindCallExpr:         "CALL_EXPR",
	ast.KindLiteralInt:       "LITERAL_INT",
	ast.KindLiteralFloat:     "LITERAL_FLOAT",
	ast.KindLiteralChar:      "LITERAL_CHAR",
	ast.KindLiteralString:    "LITERAL_STRING",
}

func astMnemonic(k ast.Kind) string {
	if m, ok := astKindMnemonics[k]; ok {
		return m
	}
	return fmt.Sprintf("KIND(%d)", uint16(k))
}

var symKindMnemonics = map[symtab.Kind]string{
	symtab.KindFree:       "FREE",
	symtab.KindVariable:   "VARIABLE",
	symtab.KindFunction:   "FUNCTION",
	symtab.KindTypedef:    "TYPEDEF",
	symtab.KindLabel:      "LABEL",
	symtab.KindEnumerator: "ENUMERATOR",
	symtab.KindStruct:     "STRUCT",
	symtab.KindUnion:      "UNION",
	symtab.KindEnum:       "ENUM",
	symtab.KindConstant:   "CONSTANT",
	symtab.KindUnknown:    "UNKNOWN",
}

func symMnemonic(k symtab.Kind) string {
	if m, ok := symKindMnemonics[k]; ok {
		return m
	}
	return fmt.Sprintf("KIND(%d)", uint8(k))
}

// payloadSummary renders the kind-specific fields of a node's payload,
// falling back to the raw generic four-child view for anything the
// translator/parser pair never actually produces.
func payloadSummary(n ast.Node) string {
	switch n.Type {
	case ast.KindProgram, ast.KindTranslationUnit:
		p := n.AsChildren()
		return fmt.Sprintf("child1=%d child2=%d child3=%d child4=%d", p.Child1, p.Child2, p.Child3, p.Child4)
	case ast.KindFunctionDef:
		p := n.AsFunctionDef()
		return fmt.Sprintf("sym=%d body=%d params=%d next=%d", p.SymbolIdx, p.Body, p.Params, p.NextSibling)
	case ast.KindVarDecl, ast.KindParamDecl:
		p := n.AsDecl()
		return fmt.Sprintf("sym=%d init=%d next=%d", p.SymbolIdx, p.Initializer, p.NextSibling)
	case ast.KindCompoundStmt:
		p := n.AsCompound()
		return fmt.Sprintf("stmts=%d scope=%d next=%d", p.Statements, p.ScopeIdx, p.NextSibling)
	case ast.KindIfStmt, ast.KindWhileStmt:
		p := n.AsConditional()
		return fmt.Sprintf("cond=%d then=%d else=%d next=%d", p.Condition, p.ThenStmt, p.ElseStmt, p.NextSibling)
	case ast.KindExprStmt:
		p := n.AsExprStmt()
		return fmt.Sprintf("expr=%d next=%d", p.Expr, p.NextSibling)
	case ast.KindReturnStmt:
		p := n.AsReturnStmt()
		return fmt.Sprintf("value=%d next=%d", p.Value, p.NextSibling)
	case ast.KindAssignExpr:
		p := n.AsAssign()
		return fmt.Sprintf("left=%d right=%d next=%d", p.Left, p.Right, p.NextSibling)
	case ast.KindGotoStmt:
		p := n.AsGoto()
		return fmt.Sprintf("target=%d next=%d", p.TargetLabel, p.NextSibling)
	case ast.KindLabelStmt:
		p := n.AsLabelStmt()
		return fmt.Sprintf("label=%d stmt=%d next=%d", p.LabelSymbol, p.Stmt, p.NextSibling)
	case ast.KindBreakStmt, ast.KindContinueStmt, ast.KindEmptyStmt:
		p := n.AsSimpleStmt()
		return fmt.Sprintf("next=%d", p.NextSibling)
	case ast.KindIdentExpr, ast.KindLiteralInt:
		p := n.AsBinary()
		return fmt.Sprintf("value=%d", p.Value)
	case ast.KindBinaryExpr:
		p := n.AsBinary()
		return fmt.Sprintf("left=%d right=%d value=%d", p.Left, p.Right, p.Value)
	case ast.KindUnaryExpr:
		p := n.AsUnary()
		return fmt.Sprintf("operand=%d operator=%d literal=%d", p.Operand, p.Operator, p.Literal)
	case ast.KindCallExpr:
		p := n.AsCall()
		return fmt.Sprintf("func_sym=%d args=%d argc=%d", p.Function, p.Arguments, p.ArgCount)
	default:
		p := n.AsChildren()
		return fmt.Sprintf("child1=%d child2=%d child3=%d child4=%d", p.Child1, p.Child2, p.Child3, p.Child4)
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 3 {
		usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), flag.Arg(1), flag.Arg(2)); err != nil {
		fmt.Fprintf(os.Stderr, "cc1t: %v\n", err)
		os.Exit(1)
	}
}

func run(astPath, symPath, sstorePath string) error {
	strs, err := sstore.Open(sstorePath)
	if err != nil {
		return fmt.Errorf("open string pool: %w", err)
	}
	defer strs.Close()

	syms, err := symtab.Open(symPath, nil)
	if err != nil {
		return fmt.Errorf("open symbol table: %w", err)
	}
	defer syms.Close()

	asts, err := ast.Open(astPath, nil)
	if err != nil {
		return fmt.Errorf("open ast store: %w", err)
	}
	defer asts.Close()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	fmt.Fprintf(w, "--- AST (%d nodes) ---\n", asts.Count())
	n := asts.Count()
	for i := uint32(1); i <= n; i++ {
		node, err := asts.Get(i)
		if err != nil {
			return fmt.Errorf("read node %d: %w", i, err)
		}
		fmt.Fprintf(w, "%6d: %-16s tok=%-6d type=%-4d flags=%04x %s\n",
			i, astMnemonic(node.Type), node.TokenIdx, node.TypeIdx, uint16(node.Flags), payloadSummary(node))
	}
	if n > 0 {
		fmt.Fprintf(w, "root (PROGRAM) = %d\n", n)
	}

	fmt.Fprintf(w, "\n--- Symbol table (%d entries) ---\n", syms.Count())
	entries, err := syms.All()
	if err != nil {
		return fmt.Errorf("scan symbol table: %w", err)
	}
	for _, ie := range entries {
		name, err := strs.GetString(ie.Entry.Name)
		if err != nil {
			name = "?"
		}
		fmt.Fprintf(w, "%6d: %-10s %-16q scope=%-3d parent=%-6d child=%-6d sibling=%-6d\n",
			ie.Index, symMnemonic(ie.Entry.Kind), name, ie.Entry.ScopeDepth, ie.Entry.Parent, ie.Entry.Child, ie.Entry.Sibling)
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <ast.out> <sym.out> <sstore.out>\n", os.Args[0])
}
