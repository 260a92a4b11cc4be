// cc0 - STCC1 lexer driver
//
// Usage: cc0 [flags] <source> <sstore.out> <tokens.out>
//
// Scans source, writing every interned lexeme to sstore.out and every
// token to tokens.out. Exits 0 on success, non-zero on I/O failure or if
// any lexical error was reported.
package main

import (
	"flag"
	"fmt"
	"os"

	"stcc1/internal/clex"
	"stcc1/pkg/report"
	"stcc1/pkg/sstore"
	"stcc1/pkg/tokstore"
)

var (
	maxErrors   = flag.Int("max-errors", 20, "stop recording after this many errors (0 = unlimited)")
	maxWarnings = flag.Int("max-warnings", 100, "stop recording after this many warnings (0 = unlimited)")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 3 {
		usage()
		os.Exit(1)
	}
	sourceFile, sstorePath, tokensPath := flag.Arg(0), flag.Arg(1), flag.Arg(2)

	if err := run(sourceFile, sstorePath, tokensPath); err != nil {
		fmt.Fprintf(os.Stderr, "cc0: %v\n", err)
		os.Exit(1)
	}
}

func run(sourceFile, sstorePath, tokensPath string) error {
	src, err := os.Open(sourceFile)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	strs, err := sstore.Init(sstorePath)
	if err != nil {
		return fmt.Errorf("init string pool: %w", err)
	}
	defer strs.Close()

	toks, err := tokstore.Init(tokensPath)
	if err != nil {
		return fmt.Errorf("init token store: %w", err)
	}
	defer toks.Close()

	rep := report.New(*maxErrors, *maxWarnings)

	l, err := clex.New(src, sourceFile, toks, strs, rep)
	if err != nil {
		return fmt.Errorf("create lexer: %w", err)
	}
	if err := l.Lex(); err != nil {
		return fmt.Errorf("lex: %w", err)
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

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <source> <sstore.out> <tokens.out>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}
