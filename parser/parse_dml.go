package parser

// INSERT INTO sheet [(c, ...)] VALUES (e, ...), ...
func (ps *parseState) insertStatement() (*Statement, *ParseError) {
	ps.advance() // INSERT
	stmt := &Statement{Kind: KindInsert, Success: true}
	ps.current = stmt
	ps.allowAggregates = false

	if err := ps.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	sheet, err := ps.identifier("sheet name")
	if err != nil {
		return nil, err
	}
	stmt.Targets = []TableRef{{Name: sheet}}

	if ps.acceptOp("(") {
		seen := map[string]bool{}
		for {
			colTok := ps.peek()
			col, err := ps.identifier("column name")
			if err != nil {
				return nil, err
			}
			if seen[col] {
				return nil, ps.errorAt(colTok, "column %q listed twice", col)
			}
			seen[col] = true
			stmt.InsertColumns = append(stmt.InsertColumns, col)
			if !ps.acceptOp(",") {
				break
			}
		}
		if err := ps.expectOp(")"); err != nil {
			return nil, err
		}
	}

	if err := ps.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	for {
		rowTok := ps.peek()
		if err := ps.expectOp("("); err != nil {
			return nil, err
		}
		var row []Expr
		for {
			e, err := ps.expression()
			if err != nil {
				return nil, err
			}
			row = append(row, e)
			if !ps.acceptOp(",") {
				break
			}
		}
		if err := ps.expectOp(")"); err != nil {
			return nil, err
		}
		if stmt.InsertColumns != nil && len(row) != len(stmt.InsertColumns) {
			return nil, ps.errorAt(rowTok, "row has %d values for %d columns", len(row), len(stmt.InsertColumns))
		}
		if len(stmt.InsertRows) > 0 && len(row) != len(stmt.InsertRows[0]) {
			return nil, ps.errorAt(rowTok, "all rows must have the same number of values")
		}
		stmt.InsertRows = append(stmt.InsertRows, row)
		if !ps.acceptOp(",") {
			break
		}
	}
	return stmt, nil
}

// UPDATE sheet [[AS] alias] SET c = e, ... [WHERE e]
func (ps *parseState) updateStatement() (*Statement, *ParseError) {
	ps.advance() // UPDATE
	stmt := &Statement{Kind: KindUpdate, Success: true}
	ps.current = stmt
	ps.allowAggregates = false

	sheet, err := ps.identifier("sheet name")
	if err != nil {
		return nil, err
	}
	alias := ""
	if !ps.peek().IsKeyword("SET") {
		if alias, err = ps.optionalAlias(false); err != nil {
			return nil, err
		}
	}
	stmt.Targets = []TableRef{{Name: sheet, Alias: alias}}

	if err := ps.expectKeyword("SET"); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for {
		colTok := ps.peek()
		col, err := ps.identifier("column name")
		if err != nil {
			return nil, err
		}
		if ps.peek().IsOp(".") {
			if col != stmt.Targets[0].RefName() {
				return nil, ps.errorAt(colTok, "unknown table %q in SET", col)
			}
			ps.pos++
			if col, err = ps.identifier("column name"); err != nil {
				return nil, err
			}
		}
		if seen[col] {
			return nil, ps.errorAt(colTok, "column %q assigned twice", col)
		}
		seen[col] = true
		if err := ps.expectOp("="); err != nil {
			return nil, err
		}
		value, err := ps.expression()
		if err != nil {
			return nil, err
		}
		stmt.Assignments = append(stmt.Assignments, Assignment{Column: col, Value: value})
		if !ps.acceptOp(",") {
			break
		}
	}

	if err := ps.whereClause(stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

// DELETE FROM sheet [[AS] alias] [WHERE e]
func (ps *parseState) deleteStatement() (*Statement, *ParseError) {
	ps.advance() // DELETE
	stmt := &Statement{Kind: KindDelete, Success: true}
	ps.current = stmt
	ps.allowAggregates = false

	if err := ps.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	sheet, err := ps.identifier("sheet name")
	if err != nil {
		return nil, err
	}
	alias, err := ps.optionalAlias(false)
	if err != nil {
		return nil, err
	}
	stmt.Targets = []TableRef{{Name: sheet, Alias: alias}}

	if err := ps.whereClause(stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (ps *parseState) whereClause(stmt *Statement) *ParseError {
	if !ps.acceptKeyword("WHERE") {
		return nil
	}
	where, err := ps.expression()
	if err != nil {
		return err
	}
	stmt.Where = where
	return nil
}
