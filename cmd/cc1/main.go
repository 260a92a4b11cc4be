// cc1 - STCC1 parser driver
//
// Usage: cc1 [flags] <sstore.out> <tokens.out> <ast.out> <sym.out>
//
// Reads the string pool and token stream cc0 produced, parses them into
// an AST plus symbol table, and writes both out. The AST's PROGRAM node
// is always the last (highest-index) node appended, so downstream tools
// recover it with ast.Store.Count() rather than a separate root pointer.
package main

import (
	"flag"
	"fmt"
	"os"

	"stcc1/internal/cparse"
	"stcc1/pkg/ast"
	"stcc1/pkg/report"
	"stcc1/pkg/sstore"
	"stcc1/pkg/symtab"
	"stcc1/pkg/tokstore"
)

var (
	maxErrors   = flag.Int("max-errors", 20, "stop recording after this many errors (0 = unlimited)")
	maxWarnings = flag.Int("max-warnings", 100, "stop recording after this many warnings (0 = unlimited)")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 4 {
		usage()
		os.Exit(1)
	}
	sstorePath, tokensPath, astPath, symPath := flag.Arg(0), flag.Arg(1), flag.Arg(2), flag.Arg(3)

	if err := run(sstorePath, tokensPath, astPath, symPath); err != nil {
		fmt.Fprintf(os.Stderr, "cc1: %v\n", err)
		os.Exit(1)
	}
}

func run(sstorePath, tokensPath, astPath, symPath string) error {
	strs, err := sstore.Open(sstorePath)
	if err != nil {
		return fmt.Errorf("open string pool: %w", err)
	}
	defer strs.Close()

	toks, err := tokstore.Open(tokensPath)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	defer toks.Close()

	syms, err := symtab.Init(symPath, nil)
	if err != nil {
		return fmt.Errorf("init symbol table: %w", err)
	}
	defer syms.Close()

	asts, err := ast.Init(astPath, nil)
	if err != nil {
		return fmt.Errorf("init ast store: %w", err)
	}
	defer asts.Close()

	filename := sourceFilename(toks, strs)

	rep := report.New(*maxErrors, *maxWarnings)
	b := ast.NewBuilder(asts, "parse")

	p, err := cparse.New(toks, strs, syms, asts, b, rep, filename)
	if err != nil {
		return fmt.Errorf("create parser: %w", err)
	}
	if _, err := p.ParseProgram(); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	if rep.ErrorCount() > 0 {
		rep.Emit(os.Stderr)
		return fmt.Errorf("%d error(s)", rep.ErrorCount())
	}
	if rep.WarningCount() > 0 {
		rep.Emit(os.Stderr)
	}
	return nil
}

// sourceFilename recovers the original source path from the first
// token's interned File offset, since cc1's CLI contract carries no
// filename argument of its own.
func sourceFilename(toks *tokstore.Store, strs *sstore.Pool) string {
	if toks.Count() == 0 {
		return "<unknown>"
	}
	tok, err := toks.Get(1)
	if err != nil {
		return "<unknown>"
	}
	name, err := strs.GetString(tok.File)
	if err != nil || name == "" {
		return "<unknown>"
	}
	return name
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <sstore.out> <tokens.out> <ast.out> <sym.out>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}
