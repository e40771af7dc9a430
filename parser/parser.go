// Package parser turns SQL text in the sheetsql dialect into a Statement.
//
// Keywords are case-insensitive and identifiers are case-sensitive.
// Identifiers may be bare or back-quoted; workbook and sheet names in DDL may
// also be single- or double-quoted.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/sheetsql/domain/model"
	"github.com/nao1215/sheetsql/function"
)

// Parser parses statements. Function calls are resolved against the registry.
// A Parser is safe for concurrent use.
type Parser struct {
	registry *function.Registry
}

// New creates a Parser
func New(registry *function.Registry) *Parser {
	if registry == nil {
		registry = function.NewRegistry()
	}
	return &Parser{registry: registry}
}

// Parse parses one statement. It never returns nil: on failure the statement
// has Success false and carries the error message and offending fragment.
func (p *Parser) Parse(sql string) *Statement {
	stmt, err := p.parse(sql)
	if err != nil {
		return &Statement{
			SQL:      sql,
			Error:    err.Msg,
			Fragment: err.Fragment,
			ErrorPos: err.Pos,
		}
	}
	return stmt
}

// Validate runs the grammar over sql and reports the first error, if any.
func (p *Parser) Validate(sql string) error {
	if _, err := p.parse(sql); err != nil {
		return err
	}
	return nil
}

func (p *Parser) parse(sql string) (*Statement, *ParseError) {
	tokens, lexErr := lex(sql)
	if lexErr != nil {
		return nil, lexErr
	}
	ps := &parseState{src: sql, tokens: tokens, registry: p.registry, subqueries: new(int)}
	stmt, err := ps.statement()
	if err != nil {
		return nil, err
	}
	ps.acceptOp(";")
	if tok := ps.peek(); tok.Type != TokenEOF {
		return nil, ps.errorAt(tok, "unexpected text after end of statement")
	}
	stmt.SQL = sql
	return stmt, nil
}

// parseState is the cursor over one token stream
type parseState struct {
	src        string
	tokens     []Token
	pos        int
	registry   *function.Registry
	subqueries *int
	// allowAggregates is true while parsing clauses where aggregates may appear
	allowAggregates bool
	inAggregate     bool
	// current is the statement whose clauses are being parsed
	current *Statement
}

func (ps *parseState) peek() Token {
	return ps.tokens[ps.pos]
}

func (ps *parseState) peekAt(offset int) Token {
	if ps.pos+offset >= len(ps.tokens) {
		return ps.tokens[len(ps.tokens)-1]
	}
	return ps.tokens[ps.pos+offset]
}

func (ps *parseState) advance() Token {
	tok := ps.tokens[ps.pos]
	if tok.Type != TokenEOF {
		ps.pos++
	}
	return tok
}

// lastEnd is the end offset of the most recently consumed token
func (ps *parseState) lastEnd() int {
	if ps.pos == 0 {
		return 0
	}
	return ps.tokens[ps.pos-1].End
}

func (ps *parseState) errorAt(tok Token, format string, args ...any) *ParseError {
	return tokenError(ps.src, tok, fmt.Sprintf(format, args...))
}

func (ps *parseState) acceptKeyword(kw string) bool {
	if ps.peek().IsKeyword(kw) {
		ps.pos++
		return true
	}
	return false
}

func (ps *parseState) expectKeyword(kw string) *ParseError {
	if !ps.acceptKeyword(kw) {
		return ps.errorAt(ps.peek(), "expected %s", kw)
	}
	return nil
}

func (ps *parseState) acceptOp(op string) bool {
	if ps.peek().IsOp(op) {
		ps.pos++
		return true
	}
	return false
}

func (ps *parseState) expectOp(op string) *ParseError {
	if !ps.acceptOp(op) {
		return ps.errorAt(ps.peek(), "expected %q", op)
	}
	return nil
}

// identifier reads a bare (non-reserved) or back-quoted identifier
func (ps *parseState) identifier(what string) (string, *ParseError) {
	tok := ps.peek()
	if tok.Type != TokenIdent || tok.isReserved() {
		return "", ps.errorAt(tok, "expected %s", what)
	}
	ps.pos++
	return tok.Text, nil
}

// entityName reads a workbook, sheet or index name, which may also be a
// quoted string, and checks its characters.
func (ps *parseState) entityName(what string) (string, *ParseError) {
	tok := ps.peek()
	var name string
	switch {
	case tok.Type == TokenString:
		ps.pos++
		name = tok.Text
	default:
		var err *ParseError
		if name, err = ps.identifier(what + " name"); err != nil {
			return "", err
		}
	}
	if err := model.ValidateName(what, name); err != nil {
		return "", ps.errorAt(tok, "invalid %s name %q: names may contain letters, digits, '_', '.' and '-'", what, name)
	}
	return name, nil
}

func (ps *parseState) statement() (*Statement, *ParseError) {
	tok := ps.peek()
	switch {
	case tok.IsKeyword("SELECT"):
		return ps.selectStatement()
	case tok.IsKeyword("INSERT"):
		return ps.insertStatement()
	case tok.IsKeyword("UPDATE"):
		return ps.updateStatement()
	case tok.IsKeyword("DELETE"):
		return ps.deleteStatement()
	case tok.IsKeyword("CREATE"):
		return ps.createStatement()
	case tok.IsKeyword("DROP"):
		return ps.dropStatement()
	case tok.IsKeyword("USE"):
		return ps.useStatement()
	case tok.IsKeyword("SHOW"):
		return ps.showStatement()
	case tok.Type == TokenEOF:
		return nil, ps.errorAt(tok, "empty statement")
	default:
		return nil, ps.errorAt(tok, "unknown statement %q", tok.Text)
	}
}

// nonNegativeInt reads an integer literal >= 0
func (ps *parseState) nonNegativeInt(what string) (int64, *ParseError) {
	tok := ps.peek()
	if tok.Type != TokenNumber {
		return 0, ps.errorAt(tok, "expected %s", what)
	}
	n, err := strconv.ParseInt(tok.Text, 10, 64)
	if err != nil || n < 0 {
		return 0, ps.errorAt(tok, "%s must be a non-negative integer", what)
	}
	ps.pos++
	return n, nil
}

// nextSubqueryKey allocates a key for an expression subquery
func (ps *parseState) nextSubqueryKey() string {
	*ps.subqueries++
	return "$subquery" + strconv.Itoa(*ps.subqueries)
}

// sourceText returns the source between a start offset and the last consumed token
func (ps *parseState) sourceText(start int) string {
	return strings.TrimSpace(ps.src[start:ps.lastEnd()])
}
