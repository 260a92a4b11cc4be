// cc0t - STCC1 token/string-pool inspection tool
//
// Usage: cc0t <sstore.out> <tokens.out>
//
// Dumps every token in tokens.out, one line per token, resolving each
// lexeme through sstore.out, in the disasm.go text-dump style used
// elsewhere in this pipeline.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"stcc1/pkg/sstore"
	"stcc1/pkg/tokstore"
)

var tokenMnemonics = map[tokstore.Kind]string{
	tokstore.KindEOF:           "EOF",
	tokstore.KindError:         "ERROR",
	tokstore.KindIdent:         "IDENT",
	tokstore.KindIntLiteral:    "INT_LITERAL",
	tokstore.KindFloatLiteral:  "FLOAT_LITERAL",
	tokstore.KindCharLiteral:   "CHAR_LITERAL",
	tokstore.KindStringLiteral: "STRING_LITERAL",
	tokstore.KindKeywordInt:      "KW_INT",
	tokstore.KindKeywordVoid:     "KW_VOID",
	tokstore.KindKeywordChar:     "KW_CHAR",
	tokstore.KindKeywordIf:       "KW_IF",
	tokstore.KindKeywordElse:     "KW_ELSE",
	tokstore.KindKeywordWhile:    "KW_WHILE",
	tokstore.KindKeywordFor:      "KW_FOR",
	tokstore.KindKeywordDo:       "KW_DO",
	tokstore.KindKeywordReturn:   "KW_RETURN",
	tokstore.KindKeywordBreak:    "KW_BREAK",
	tokstore.KindKeywordContinue: "KW_CONTINUE",
	tokstore.KindKeywordGoto:     "KW_GOTO",
	tokstore.KindLParen:    "LPAREN",
	tokstore.KindRParen:    "RPAREN",
	tokstore.KindLBrace:    "LBRACE",
	tokstore.KindRBrace:    "RBRACE",
	tokstore.KindLBracket:  "LBRACKET",
	tokstore.KindRBracket:  "RBRACKET",
	tokstore.KindSemicolon: "SEMI",
	tokstore.KindComma:     "COMMA",
	tokstore.KindAssign:    "ASSIGN",
	tokstore.KindPlus:      "PLUS",
	tokstore.KindMinus:     "MINUS",
	tokstore.KindStar:      "STAR",
	tokstore.KindSlash:     "SLASH",
	tokstore.KindPercent:   "PERCENT",
	tokstore.KindAmp:       "AMP",
	tokstore.KindPipe:      "PIPE",
	tokstore.KindCaret:     "CARET",
	tokstore.KindTilde:     "TILDE",
	tokstore.KindBang:      "BANG",
	tokstore.KindLess:      "LESS",
	tokstore.KindGreater:   "GREATER",
	tokstore.KindLessEq:    "LESS_EQ",
	tokstore.KindGreaterEq: "GREATER_EQ",
	tokstore.KindEqEq:      "EQ_EQ",
	tokstore.KindNotEq:     "NOT_EQ",
	tokstore.KindAndAnd:    "AND_AND",
	tokstore.KindOrOr:      "OR_OR",
	tokstore.KindShl:       "SHL",
	tokstore.KindShr:       "SHR",
	tokstore.KindColon:     "COLON",
	tokstore.KindQuestion:  "QUESTION",
}

func mnemonic(k tokstore.Kind) string {
	if m, ok := tokenMnemonics[k]; ok {
		return m
	}
	return fmt.Sprintf("KIND(%d)", uint16(k))
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), flag.Arg(1)); err != nil {
		fmt.Fprintf(os.Stderr, "cc0t: %v\n", err)
		os.Exit(1)
	}
}

func run(sstorePath, tokensPath string) error {
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

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	n := toks.Count()
	for i := uint32(1); i <= n; i++ {
		tok, err := toks.Get(i)
		if err != nil {
			return fmt.Errorf("read token %d: %w", i, err)
		}
		lexeme, err := strs.GetString(tok.Pos)
		if err != nil {
			return fmt.Errorf("resolve lexeme for token %d: %w", i, err)
		}
		file, err := strs.GetString(tok.File)
		if err != nil {
			file = "?"
		}
		fmt.Fprintf(w, "%6d: %-16s line %-5d %s:%q\n", i, mnemonic(tok.Kind), tok.Line, file, lexeme)
	}
	fmt.Fprintf(w, "\n%d string-pool bytes, %d tokens\n", strs.Size(), n)
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <sstore.out> <tokens.out>\n", os.Args[0])
}
