// cc2 - STCC1 TAC generator driver
//
// Usage: cc2 [flags] <sstore.out> <tokens.out> <ast.out> <sym.out> <tac.bin> <tac.txt>
//
// Translates the AST cc1 produced into three-address code, writing the
// binary instruction store to tac.bin and a human-readable disassembly
// (reusing pkg/vm's own disassembler, per its mnemonic table) to tac.txt.
package main

import (
	"flag"
	"fmt"
	"os"

	"stcc1/pkg/ast"
	"stcc1/pkg/report"
	"stcc1/pkg/sstore"
	"stcc1/pkg/symtab"
	"stcc1/pkg/tac"
	"stcc1/pkg/tacgen"
	"stcc1/pkg/tokstore"
	"stcc1/pkg/vm"
)

var (
	maxErrors   = flag.Int("max-errors", 20, "stop recording after this many errors (0 = unlimited)")
	maxWarnings = flag.Int("max-warnings", 100, "stop recording after this many warnings (0 = unlimited)")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 6 {
		usage()
		os.Exit(1)
	}
	sstorePath := flag.Arg(0)
	tokensPath := flag.Arg(1)
	astPath := flag.Arg(2)
	symPath := flag.Arg(3)
	tacBinPath := flag.Arg(4)
	tacTxtPath := flag.Arg(5)

	if err := run(sstorePath, tokensPath, astPath, symPath, tacBinPath, tacTxtPath); err != nil {
		fmt.Fprintf(os.Stderr, "cc2: %v\n", err)
		os.Exit(1)
	}
}

func run(sstorePath, tokensPath, astPath, symPath, tacBinPath, tacTxtPath string) error {
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

	programIdx := asts.Count()
	if programIdx == 0 {
		return fmt.Errorf("empty ast store")
	}

	code, err := tac.Init(tacBinPath)
	if err != nil {
		return fmt.Errorf("init tac store: %w", err)
	}

	rep := report.New(*maxErrors, *maxWarnings)
	tr, err := tacgen.New(asts, toks, syms, strs, code, rep)
	if err != nil {
		code.Close()
		return fmt.Errorf("create translator: %w", err)
	}

	translateErr := tr.TranslateProgram(programIdx)
	instrCount := code.Count()
	if err := code.Close(); err != nil {
		return fmt.Errorf("close tac store: %w", err)
	}
	if translateErr != nil {
		return fmt.Errorf("translate: %w", translateErr)
	}

	if rep.ErrorCount() > 0 {
		rep.Emit(os.Stderr)
		return fmt.Errorf("%d error(s)", rep.ErrorCount())
	}
	if rep.WarningCount() > 0 {
		rep.Emit(os.Stderr)
	}

	return writeTextDump(tacBinPath, symPath, sstorePath, tacTxtPath, instrCount)
}

// writeTextDump reloads the just-written tac.bin through a fresh vm.Engine
// (with symbol resolution enabled) and writes its disassembly, so the
// mnemonic/operand formatting rules live in exactly one place.
func writeTextDump(tacBinPath, symPath, sstorePath, tacTxtPath string, instrCount uint32) error {
	e := vm.New(vm.Config{
		EnableSymbolResolution: true,
		SymtabFile:             symPath,
		SstoreFile:             sstorePath,
	})
	if err := e.LoadCode(tacBinPath); err != nil {
		return fmt.Errorf("reload tac for disassembly: %w", err)
	}
	defer e.Close()

	out, err := os.Create(tacTxtPath)
	if err != nil {
		return fmt.Errorf("create text dump: %w", err)
	}
	defer out.Close()

	for _, line := range e.Disassemble(1, int(instrCount)) {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("write text dump: %w", err)
		}
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <sstore.out> <tokens.out> <ast.out> <sym.out> <tac.bin> <tac.txt>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}
