package parser

import (
	"errors"
	"fmt"
)

// ErrSyntax is wrapped by every ParseError
var ErrSyntax = errors.New("syntax error")

// fragmentWidth bounds how much source text a ParseError quotes
const fragmentWidth = 24

// ParseError describes malformed SQL: where it went wrong and the text found there.
type ParseError struct {
	Pos      int
	Fragment string
	Msg      string
}

func newParseError(src string, pos int, msg string) *ParseError {
	return &ParseError{Pos: pos, Fragment: fragmentAt(src, pos), Msg: msg}
}

func fragmentAt(src string, pos int) string {
	if pos >= len(src) {
		return ""
	}
	rest := []rune(src[pos:])
	if len(rest) > fragmentWidth {
		return string(rest[:fragmentWidth])
	}
	return string(rest)
}

// Error implements error
func (e *ParseError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("syntax error at end of input: %s", e.Msg)
	}
	return fmt.Sprintf("syntax error at position %d near %q: %s", e.Pos, e.Fragment, e.Msg)
}

// Unwrap returns ErrSyntax
func (e *ParseError) Unwrap() error {
	return ErrSyntax
}

func tokenError(src string, tok Token, msg string) *ParseError {
	if tok.Type == TokenEOF {
		return &ParseError{Pos: tok.Pos, Msg: msg}
	}
	return &ParseError{Pos: tok.Pos, Fragment: src[tok.Pos:tok.End], Msg: msg}
}
