package parser

import "strings"

// TokenType classifies a lexical token
type TokenType int

const (
	// TokenEOF marks the end of input
	TokenEOF TokenType = iota
	// TokenIdent is a bare or back-quoted identifier. Keywords are bare
	// identifiers; the parser decides by context.
	TokenIdent
	// TokenString is a quoted string literal
	TokenString
	// TokenNumber is a numeric literal
	TokenNumber
	// TokenOperator is punctuation or an operator
	TokenOperator
)

// Token is one lexical token. Pos and End are byte offsets into the source.
type Token struct {
	Type   TokenType
	Text   string
	Pos    int
	End    int
	Quoted bool
}

// IsKeyword reports whether the token is the bare keyword kw (upper case).
func (t Token) IsKeyword(kw string) bool {
	return t.Type == TokenIdent && !t.Quoted && strings.EqualFold(t.Text, kw)
}

// IsOp reports whether the token is the operator op
func (t Token) IsOp(op string) bool {
	return t.Type == TokenOperator && t.Text == op
}

// reserved words end an expression or a source list and can never be used as
// bare aliases or column names.
var reserved = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP": true, "BY": true,
	"HAVING": true, "ORDER": true, "LIMIT": true, "OFFSET": true, "JOIN": true,
	"INNER": true, "LEFT": true, "RIGHT": true, "FULL": true, "OUTER": true,
	"CROSS": true, "ON": true, "AS": true, "AND": true, "OR": true, "NOT": true,
	"IN": true, "IS": true, "NULL": true, "LIKE": true, "BETWEEN": true,
	"CASE": true, "WHEN": true, "THEN": true, "ELSE": true, "END": true,
	"EXISTS": true, "DISTINCT": true, "UNION": true, "VALUES": true, "SET": true,
	"INTO": true, "ASC": true, "DESC": true, "TRUE": true, "FALSE": true,
}

func (t Token) isReserved() bool {
	return t.Type == TokenIdent && !t.Quoted && reserved[strings.ToUpper(t.Text)]
}
