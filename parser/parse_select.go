package parser

func (ps *parseState) selectStatement() (*Statement, *ParseError) {
	stmt := &Statement{Kind: KindSelect, Success: true}
	ps.current = stmt
	ps.advance() // SELECT

	if ps.acceptKeyword("DISTINCT") {
		stmt.Distinct = true
	} else {
		ps.acceptKeyword("ALL")
	}

	ps.allowAggregates = true
	for {
		item, err := ps.selectItem()
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, item)
		if !ps.acceptOp(",") {
			break
		}
	}

	if ps.acceptKeyword("FROM") {
		if err := ps.sources(stmt); err != nil {
			return nil, err
		}
	}

	if ps.acceptKeyword("WHERE") {
		ps.allowAggregates = false
		where, err := ps.expression()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	if ps.acceptKeyword("GROUP") {
		if err := ps.expectKeyword("BY"); err != nil {
			return nil, err
		}
		ps.allowAggregates = false
		for {
			e, err := ps.expression()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, e)
			if !ps.acceptOp(",") {
				break
			}
		}
	}

	if ps.acceptKeyword("HAVING") {
		ps.allowAggregates = true
		having, err := ps.expression()
		if err != nil {
			return nil, err
		}
		stmt.Having = having
	}

	if ps.acceptKeyword("ORDER") {
		if err := ps.expectKeyword("BY"); err != nil {
			return nil, err
		}
		ps.allowAggregates = true
		for {
			e, err := ps.expression()
			if err != nil {
				return nil, err
			}
			item := OrderItem{Expr: e}
			if ps.acceptKeyword("DESC") {
				item.Desc = true
			} else {
				ps.acceptKeyword("ASC")
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			if !ps.acceptOp(",") {
				break
			}
		}
	}
	ps.allowAggregates = false

	if err := ps.limitClause(stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (ps *parseState) selectItem() (SelectItem, *ParseError) {
	tok := ps.peek()
	if tok.IsOp("*") {
		ps.pos++
		return SelectItem{Star: true, Text: "*"}, nil
	}
	if tok.Type == TokenIdent && !tok.isReserved() && ps.peekAt(1).IsOp(".") && ps.peekAt(2).IsOp("*") {
		ps.pos += 3
		return SelectItem{Star: true, StarTable: tok.Text, Text: ps.sourceText(tok.Pos)}, nil
	}

	e, err := ps.expression()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: e, Text: ps.sourceText(tok.Pos)}
	alias, err := ps.optionalAlias(true)
	if err != nil {
		return SelectItem{}, err
	}
	item.Alias = alias
	return item, nil
}

// optionalAlias reads `[AS] alias`. String literals are accepted as aliases
// when allowString is set.
func (ps *parseState) optionalAlias(allowString bool) (string, *ParseError) {
	if ps.acceptKeyword("AS") {
		tok := ps.peek()
		if allowString && tok.Type == TokenString {
			ps.pos++
			return tok.Text, nil
		}
		return ps.identifier("alias")
	}
	tok := ps.peek()
	if tok.Type == TokenIdent && !tok.isReserved() {
		ps.pos++
		return tok.Text, nil
	}
	return "", nil
}

func (ps *parseState) sources(stmt *Statement) *ParseError {
	first, err := ps.source(stmt)
	if err != nil {
		return err
	}
	stmt.Targets = append(stmt.Targets, first)

	for {
		if ps.acceptOp(",") {
			ref, err := ps.source(stmt)
			if err != nil {
				return err
			}
			stmt.Targets = append(stmt.Targets, ref)
			stmt.Joins = append(stmt.Joins, JoinClause{Type: JoinCross, Table: ref})
			continue
		}

		joinType, ok, err := ps.joinKeyword()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		ref, err := ps.source(stmt)
		if err != nil {
			return err
		}
		join := JoinClause{Type: joinType, Table: ref}
		if joinType != JoinCross && ps.acceptKeyword("ON") {
			ps.allowAggregates = false
			on, err := ps.expression()
			if err != nil {
				return err
			}
			join.On = on
		}
		if join.On == nil && (joinType == JoinLeft || joinType == JoinRight || joinType == JoinFull) {
			return ps.errorAt(ps.peek(), "expected ON after %s", joinType)
		}
		stmt.Targets = append(stmt.Targets, ref)
		stmt.Joins = append(stmt.Joins, join)
	}
}

// joinKeyword consumes `[INNER|LEFT [OUTER]|RIGHT [OUTER]|FULL [OUTER]|CROSS] JOIN`
func (ps *parseState) joinKeyword() (JoinType, bool, *ParseError) {
	tok := ps.peek()
	joinType := JoinInner
	switch {
	case tok.IsKeyword("JOIN"):
		ps.pos++
		return JoinInner, true, nil
	case tok.IsKeyword("INNER"):
	case tok.IsKeyword("LEFT"):
		joinType = JoinLeft
	case tok.IsKeyword("RIGHT"):
		joinType = JoinRight
	case tok.IsKeyword("FULL"):
		joinType = JoinFull
	case tok.IsKeyword("CROSS"):
		joinType = JoinCross
	default:
		return 0, false, nil
	}
	ps.pos++
	if joinType == JoinLeft || joinType == JoinRight || joinType == JoinFull {
		ps.acceptKeyword("OUTER")
	}
	if err := ps.expectKeyword("JOIN"); err != nil {
		return 0, false, err
	}
	return joinType, true, nil
}

// source reads `name [[AS] alias]` or `(SELECT ...) [AS] alias`
func (ps *parseState) source(stmt *Statement) (TableRef, *ParseError) {
	tok := ps.peek()
	if tok.IsOp("(") {
		ps.pos++
		if !ps.peek().IsKeyword("SELECT") {
			return TableRef{}, ps.errorAt(ps.peek(), "expected SELECT in derived table")
		}
		sub, err := ps.nestedSelect()
		if err != nil {
			return TableRef{}, err
		}
		if err := ps.expectOp(")"); err != nil {
			return TableRef{}, err
		}
		aliasTok := ps.peek()
		alias, err := ps.optionalAlias(false)
		if err != nil {
			return TableRef{}, err
		}
		if alias == "" {
			return TableRef{}, ps.errorAt(aliasTok, "derived table requires an alias")
		}
		if _, dup := stmt.Subqueries[alias]; dup {
			return TableRef{}, ps.errorAt(aliasTok, "duplicate derived table alias %q", alias)
		}
		stmt.addSubquery(alias, sub)
		return TableRef{Name: alias, Alias: alias, Subquery: sub}, nil
	}

	name, err := ps.identifier("sheet name")
	if err != nil {
		return TableRef{}, err
	}
	alias, err := ps.optionalAlias(false)
	if err != nil {
		return TableRef{}, err
	}
	return TableRef{Name: name, Alias: alias}, nil
}

func (ps *parseState) limitClause(stmt *Statement) *ParseError {
	if ps.acceptKeyword("LIMIT") {
		n, err := ps.nonNegativeInt("LIMIT count")
		if err != nil {
			return err
		}
		if ps.acceptOp(",") {
			// LIMIT offset, count
			count, err := ps.nonNegativeInt("LIMIT count")
			if err != nil {
				return err
			}
			offset := n
			stmt.Offset = &offset
			stmt.Limit = &count
			return nil
		}
		stmt.Limit = &n
	}
	if ps.acceptKeyword("OFFSET") {
		m, err := ps.nonNegativeInt("OFFSET")
		if err != nil {
			return err
		}
		stmt.Offset = &m
	}
	return nil
}
