// Package tokstore implements the token store (C4): a sequence of
// fixed-width 16-byte records produced by the lexer and consumed by the
// parser, each referencing lexeme and filename text in the string pool
// rather than carrying it inline.
package tokstore

import (
	"encoding/binary"
	"fmt"

	"stcc1/pkg/store"
)

// RecordSize is the fixed on-disk width of a token record: kind(2) +
// reserved(2) + pos(4) + file(4) + line(4) = 16 bytes.
const RecordSize = 16

// Kind enumerates the lexical category of a token. The numeric values are
// a contract once persisted; append, never renumber.
type Kind uint16

const (
	KindEOF Kind = iota
	KindError
	KindIdent
	KindIntLiteral
	KindFloatLiteral
	KindCharLiteral
	KindStringLiteral

	// Keywords
	KindKeywordInt
	KindKeywordVoid
	KindKeywordChar
	KindKeywordIf
	KindKeywordElse
	KindKeywordWhile
	KindKeywordFor
	KindKeywordDo
	KindKeywordReturn
	KindKeywordBreak
	KindKeywordContinue
	KindKeywordGoto

	// Punctuators
	KindLParen
	KindRParen
	KindLBrace
	KindRBrace
	KindLBracket
	KindRBracket
	KindSemicolon
	KindComma
	KindAssign
	KindPlus
	KindMinus
	KindStar
	KindSlash
	KindPercent
	KindAmp
	KindPipe
	KindCaret
	KindTilde
	KindBang
	KindLess
	KindGreater
	KindLessEq
	KindGreaterEq
	KindEqEq
	KindNotEq
	KindAndAnd
	KindOrOr
	KindShl
	KindShr
	KindColon
	KindQuestion
)

// Token is the in-memory view of a token record.
type Token struct {
	Kind Kind
	Pos  uint32 // string-pool offset of lexeme text
	File uint32 // string-pool offset of source filename
	Line uint32
}

func (t Token) encode() []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(t.Kind))
	binary.LittleEndian.PutUint32(buf[4:8], t.Pos)
	binary.LittleEndian.PutUint32(buf[8:12], t.File)
	binary.LittleEndian.PutUint32(buf[12:16], t.Line)
	return buf
}

func decode(buf []byte) Token {
	return Token{
		Kind: Kind(binary.LittleEndian.Uint16(buf[0:2])),
		Pos:  binary.LittleEndian.Uint32(buf[4:8]),
		File: binary.LittleEndian.Uint32(buf[8:12]),
		Line: binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// Store wraps a fixed-record store.Store of token records.
type Store struct {
	s *store.Store
}

// Init creates a fresh token store at path.
func Init(path string) (*Store, error) {
	s, err := store.Init(path, RecordSize)
	if err != nil {
		return nil, fmt.Errorf("tokstore: init: %w", err)
	}
	return &Store{s: s}, nil
}

// Open opens an existing token store at path.
func Open(path string) (*Store, error) {
	s, err := store.Open(path, RecordSize)
	if err != nil {
		return nil, fmt.Errorf("tokstore: open: %w", err)
	}
	return &Store{s: s}, nil
}

// Append writes tok as a new record and returns its 1-based token index.
func (ts *Store) Append(tok Token) (uint32, error) {
	idx, err := ts.s.Append(tok.encode())
	if err != nil {
		return 0, fmt.Errorf("tokstore: append: %w", err)
	}
	return idx, nil
}

// Get reads back the token at index.
func (ts *Store) Get(index uint32) (Token, error) {
	buf := make([]byte, RecordSize)
	if err := ts.s.Get(index, buf); err != nil {
		return Token{}, fmt.Errorf("tokstore: get %d: %w", index, err)
	}
	return decode(buf), nil
}

// Count returns the number of tokens currently stored.
func (ts *Store) Count() uint32 {
	return ts.s.Count()
}

// Close flushes and closes the backing file.
func (ts *Store) Close() error {
	return ts.s.Close()
}
