package parser

import (
	"strconv"
	"strings"
)

// expression parses with precedence OR < AND < NOT < comparison < || + - < * / % < unary
func (ps *parseState) expression() (Expr, *ParseError) {
	return ps.orExpr()
}

func (ps *parseState) orExpr() (Expr, *ParseError) {
	left, err := ps.andExpr()
	if err != nil {
		return nil, err
	}
	for ps.acceptKeyword("OR") {
		right, err := ps.andExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (ps *parseState) andExpr() (Expr, *ParseError) {
	left, err := ps.notExpr()
	if err != nil {
		return nil, err
	}
	for ps.acceptKeyword("AND") {
		right, err := ps.notExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (ps *parseState) notExpr() (Expr, *ParseError) {
	if ps.peek().IsKeyword("NOT") && !ps.peekAt(1).IsKeyword("EXISTS") {
		ps.pos++
		operand, err := ps.notExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "NOT", Operand: operand}, nil
	}
	return ps.comparison()
}

var comparisonOps = map[string]string{
	"=": "=", "!=": "!=", "<>": "!=", "<": "<", "<=": "<=", ">": ">", ">=": ">=",
}

func (ps *parseState) comparison() (Expr, *ParseError) {
	left, err := ps.additive()
	if err != nil {
		return nil, err
	}

	tok := ps.peek()
	if tok.Type == TokenOperator {
		if op, ok := comparisonOps[tok.Text]; ok {
			ps.pos++
			right, err := ps.additive()
			if err != nil {
				return nil, err
			}
			return &BinaryExpr{Op: op, Left: left, Right: right}, nil
		}
		return left, nil
	}

	if tok.IsKeyword("IS") {
		ps.pos++
		not := ps.acceptKeyword("NOT")
		if err := ps.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &IsNullExpr{Expr: left, Not: not}, nil
	}

	not := false
	if tok.IsKeyword("NOT") {
		next := ps.peekAt(1)
		if !next.IsKeyword("LIKE") && !next.IsKeyword("IN") && !next.IsKeyword("BETWEEN") {
			return left, nil
		}
		ps.pos++
		not = true
		tok = ps.peek()
	}

	switch {
	case tok.IsKeyword("LIKE"):
		ps.pos++
		pattern, err := ps.additive()
		if err != nil {
			return nil, err
		}
		return &LikeExpr{Expr: left, Pattern: pattern, Not: not}, nil

	case tok.IsKeyword("BETWEEN"):
		ps.pos++
		low, err := ps.additive()
		if err != nil {
			return nil, err
		}
		if err := ps.expectKeyword("AND"); err != nil {
			return nil, err
		}
		high, err := ps.additive()
		if err != nil {
			return nil, err
		}
		return &BetweenExpr{Expr: left, Low: low, High: high, Not: not}, nil

	case tok.IsKeyword("IN"):
		ps.pos++
		return ps.inTail(left, not)
	}
	return left, nil
}

func (ps *parseState) inTail(left Expr, not bool) (Expr, *ParseError) {
	if err := ps.expectOp("("); err != nil {
		return nil, err
	}
	if ps.peek().IsKeyword("SELECT") {
		key, err := ps.subquery()
		if err != nil {
			return nil, err
		}
		return &InExpr{Expr: left, Subquery: key, Not: not}, nil
	}
	var list []Expr
	for {
		e, err := ps.expression()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if !ps.acceptOp(",") {
			break
		}
	}
	if err := ps.expectOp(")"); err != nil {
		return nil, err
	}
	return &InExpr{Expr: left, List: list, Not: not}, nil
}

// subquery parses `SELECT ... )` after an opening parenthesis and registers
// it under a fresh key.
func (ps *parseState) subquery() (string, *ParseError) {
	sub, err := ps.nestedSelect()
	if err != nil {
		return "", err
	}
	if err := ps.expectOp(")"); err != nil {
		return "", err
	}
	key := ps.nextSubqueryKey()
	ps.current.addSubquery(key, sub)
	return key, nil
}

// nestedSelect parses a SELECT inside the current one, preserving the
// enclosing clause state.
func (ps *parseState) nestedSelect() (*Statement, *ParseError) {
	outer, allow, inAgg := ps.current, ps.allowAggregates, ps.inAggregate
	defer func() {
		ps.current, ps.allowAggregates, ps.inAggregate = outer, allow, inAgg
	}()
	ps.inAggregate = false
	start := ps.peek().Pos
	sub, err := ps.selectStatement()
	if err != nil {
		return nil, err
	}
	sub.SQL = ps.sourceText(start)
	return sub, nil
}

func (ps *parseState) additive() (Expr, *ParseError) {
	left, err := ps.multiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok := ps.peek()
		if !tok.IsOp("+") && !tok.IsOp("-") && !tok.IsOp("||") {
			return left, nil
		}
		ps.pos++
		right, err := ps.multiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: tok.Text, Left: left, Right: right}
	}
}

func (ps *parseState) multiplicative() (Expr, *ParseError) {
	left, err := ps.unary()
	if err != nil {
		return nil, err
	}
	for {
		tok := ps.peek()
		if !tok.IsOp("*") && !tok.IsOp("/") && !tok.IsOp("%") {
			return left, nil
		}
		ps.pos++
		right, err := ps.unary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: tok.Text, Left: left, Right: right}
	}
}

func (ps *parseState) unary() (Expr, *ParseError) {
	if ps.acceptOp("-") {
		operand, err := ps.unary()
		if err != nil {
			return nil, err
		}
		if lit, ok := operand.(*Literal); ok {
			switch v := lit.Value.(type) {
			case int64:
				return &Literal{Value: -v}, nil
			case float64:
				return &Literal{Value: -v}, nil
			}
		}
		return &UnaryExpr{Op: "-", Operand: operand}, nil
	}
	if ps.acceptOp("+") {
		return ps.unary()
	}
	return ps.primary()
}

func (ps *parseState) primary() (Expr, *ParseError) {
	tok := ps.peek()
	switch tok.Type {
	case TokenNumber:
		ps.pos++
		return numberLiteral(tok.Text), nil
	case TokenString:
		ps.pos++
		return &Literal{Value: tok.Text}, nil
	case TokenEOF:
		return nil, ps.errorAt(tok, "unexpected end of input, expected an expression")
	case TokenOperator:
		if tok.Text != "(" {
			return nil, ps.errorAt(tok, "unexpected %q, expected an expression", tok.Text)
		}
		ps.pos++
		if ps.peek().IsKeyword("SELECT") {
			key, err := ps.subquery()
			if err != nil {
				return nil, err
			}
			return &SubqueryExpr{Subquery: key}, nil
		}
		e, err := ps.expression()
		if err != nil {
			return nil, err
		}
		if err := ps.expectOp(")"); err != nil {
			return nil, err
		}
		return e, nil
	}

	// identifiers and keywords
	switch {
	case tok.IsKeyword("NULL"):
		ps.pos++
		return &Literal{Value: nil}, nil
	case tok.IsKeyword("TRUE"):
		ps.pos++
		return &Literal{Value: true}, nil
	case tok.IsKeyword("FALSE"):
		ps.pos++
		return &Literal{Value: false}, nil
	case tok.IsKeyword("CASE"):
		return ps.caseExpr()
	case tok.IsKeyword("EXISTS"), tok.IsKeyword("NOT") && ps.peekAt(1).IsKeyword("EXISTS"):
		not := ps.acceptKeyword("NOT")
		ps.pos++
		if err := ps.expectOp("("); err != nil {
			return nil, err
		}
		if !ps.peek().IsKeyword("SELECT") {
			return nil, ps.errorAt(ps.peek(), "expected SELECT in EXISTS")
		}
		key, err := ps.subquery()
		if err != nil {
			return nil, err
		}
		return &ExistsExpr{Subquery: key, Not: not}, nil
	case tok.isReserved():
		return nil, ps.errorAt(tok, "unexpected keyword %s, expected an expression", strings.ToUpper(tok.Text))
	}

	if ps.peekAt(1).IsOp("(") && !tok.Quoted {
		return ps.functionCall()
	}

	ps.pos++
	if ps.peek().IsOp(".") && ps.peekAt(1).Type == TokenIdent {
		ps.pos++
		name := ps.advance()
		return &ColumnRef{Table: tok.Text, Name: name.Text}, nil
	}
	return &ColumnRef{Name: tok.Text}, nil
}

func numberLiteral(text string) *Literal {
	if !strings.ContainsAny(text, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return &Literal{Value: i}
		}
	}
	f, _ := strconv.ParseFloat(text, 64)
	return &Literal{Value: f}
}

func (ps *parseState) functionCall() (Expr, *ParseError) {
	nameTok := ps.advance()
	fn, ok := ps.registry.Lookup(nameTok.Text)
	if !ok {
		return nil, ps.errorAt(nameTok, "unknown function %s", nameTok.Text)
	}
	ps.pos++ // (

	call := &FuncCall{Name: strings.ToUpper(fn.Name), Aggregate: fn.Aggregate}
	if fn.Aggregate {
		if !ps.allowAggregates {
			return nil, ps.errorAt(nameTok, "aggregate function %s is not allowed here", call.Name)
		}
		if ps.inAggregate {
			return nil, ps.errorAt(nameTok, "aggregate function calls cannot be nested")
		}
		ps.inAggregate = true
		defer func() { ps.inAggregate = false }()
	}

	switch {
	case ps.peek().IsOp("*"):
		if call.Name != "COUNT" {
			return nil, ps.errorAt(ps.peek(), "only COUNT accepts *")
		}
		ps.pos++
		call.Star = true
	case ps.peek().IsOp(")"):
	default:
		if fn.Aggregate && ps.acceptKeyword("DISTINCT") {
			call.Distinct = true
		}
		for {
			arg, err := ps.expression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if !ps.acceptOp(",") {
				break
			}
		}
	}
	if err := ps.expectOp(")"); err != nil {
		return nil, err
	}

	argCount := len(call.Args)
	if call.Star {
		argCount = 1
	}
	if err := fn.CheckArity(argCount); err != nil {
		return nil, ps.errorAt(nameTok, "%s", err.Error())
	}
	call.Text = ps.sourceText(nameTok.Pos)
	if fn.Aggregate && ps.current != nil {
		ps.current.Aggregates = append(ps.current.Aggregates, call)
	}
	return call, nil
}

func (ps *parseState) caseExpr() (Expr, *ParseError) {
	ps.pos++ // CASE
	c := &CaseExpr{}
	if !ps.peek().IsKeyword("WHEN") {
		operand, err := ps.expression()
		if err != nil {
			return nil, err
		}
		c.Operand = operand
	}
	for ps.acceptKeyword("WHEN") {
		cond, err := ps.expression()
		if err != nil {
			return nil, err
		}
		if err := ps.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		result, err := ps.expression()
		if err != nil {
			return nil, err
		}
		c.Whens = append(c.Whens, WhenClause{Cond: cond, Result: result})
	}
	if len(c.Whens) == 0 {
		return nil, ps.errorAt(ps.peek(), "expected WHEN")
	}
	if ps.acceptKeyword("ELSE") {
		e, err := ps.expression()
		if err != nil {
			return nil, err
		}
		c.Else = e
	}
	if err := ps.expectKeyword("END"); err != nil {
		return nil, err
	}
	return c, nil
}
