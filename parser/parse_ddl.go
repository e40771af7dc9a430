package parser

import (
	"strconv"
	"strings"

	"github.com/nao1215/sheetsql/domain/model"
)

// CREATE [OR REPLACE] WORKBOOK|SHEET ..., CREATE [UNIQUE] INDEX ...
func (ps *parseState) createStatement() (*Statement, *ParseError) {
	ps.advance() // CREATE
	stmt := &Statement{Success: true}
	ps.current = stmt

	if ps.acceptKeyword("OR") {
		if err := ps.expectKeyword("REPLACE"); err != nil {
			return nil, err
		}
		stmt.OrReplace = true
	}

	tok := ps.peek()
	switch {
	case tok.IsKeyword("WORKBOOK"), tok.IsKeyword("DATABASE"):
		ps.pos++
		stmt.Kind = KindCreateWorkbook
		name, err := ps.entityName("workbook")
		if err != nil {
			return nil, err
		}
		stmt.Name = name
		if ps.peek().IsOp("(") {
			if err := ps.options(stmt); err != nil {
				return nil, err
			}
		}
		return stmt, nil

	case tok.IsKeyword("SHEET"), tok.IsKeyword("TABLE"):
		ps.pos++
		stmt.Kind = KindCreateSheet
		name, err := ps.entityName("sheet")
		if err != nil {
			return nil, err
		}
		stmt.Name = name
		if ps.peek().IsOp("(") {
			if ps.peekAt(2).IsOp("=") {
				err = ps.options(stmt)
			} else {
				err = ps.columnSpecs(stmt)
			}
			if err != nil {
				return nil, err
			}
		}
		return stmt, nil

	case tok.IsKeyword("UNIQUE"), tok.IsKeyword("INDEX"):
		if stmt.OrReplace {
			return nil, ps.errorAt(tok, "OR REPLACE is not supported for indexes")
		}
		stmt.Unique = ps.acceptKeyword("UNIQUE")
		if err := ps.expectKeyword("INDEX"); err != nil {
			return nil, err
		}
		stmt.Kind = KindCreateIndex
		return ps.indexTail(stmt, true)
	}
	return nil, ps.errorAt(tok, "expected WORKBOOK, SHEET or INDEX after CREATE")
}

// indexTail reads `name ON sheet` and, for CREATE, `(col, ...)`
func (ps *parseState) indexTail(stmt *Statement, withColumns bool) (*Statement, *ParseError) {
	name, err := ps.entityName("index")
	if err != nil {
		return nil, err
	}
	stmt.IndexName = name
	if err := ps.expectKeyword("ON"); err != nil {
		return nil, err
	}
	sheet, err := ps.entityName("sheet")
	if err != nil {
		return nil, err
	}
	stmt.Targets = []TableRef{{Name: sheet}}
	if !withColumns {
		return stmt, nil
	}

	if err := ps.expectOp("("); err != nil {
		return nil, err
	}
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
		stmt.IndexColumns = append(stmt.IndexColumns, col)
		if !ps.acceptOp(",") {
			break
		}
	}
	if err := ps.expectOp(")"); err != nil {
		return nil, err
	}
	return stmt, nil
}

// options reads `(key=value, ...)`. The columns, overwrite options are folded
// into the statement.
func (ps *parseState) options(stmt *Statement) *ParseError {
	ps.advance() // (
	stmt.Options = map[string]string{}
	for {
		keyTok := ps.peek()
		key, err := ps.identifier("option name")
		if err != nil {
			return err
		}
		if err := ps.expectOp("="); err != nil {
			return err
		}
		valTok := ps.peek()
		switch valTok.Type {
		case TokenString, TokenNumber, TokenIdent:
			ps.pos++
		default:
			return ps.errorAt(valTok, "expected option value")
		}
		value := valTok.Text
		if _, dup := stmt.Options[key]; dup {
			return ps.errorAt(keyTok, "option %q given twice", key)
		}
		stmt.Options[key] = value

		switch strings.ToLower(key) {
		case "overwrite":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return ps.errorAt(valTok, "overwrite must be true or false")
			}
			stmt.OrReplace = stmt.OrReplace || b
		case "columns":
			if stmt.Kind == KindCreateSheet {
				for _, col := range strings.Split(value, ",") {
					col = strings.TrimSpace(col)
					if col == "" {
						return ps.errorAt(valTok, "empty column name in columns option")
					}
					stmt.ColumnDefs = append(stmt.ColumnDefs, ColumnSpec{Name: col, TypeName: "TEXT", Type: model.DataTypeText})
				}
			}
		}
		if !ps.acceptOp(",") {
			break
		}
	}
	return ps.expectOp(")")
}

// columnSpecs reads `(name TYPE [(n[,m])] [NOT NULL|NULL] [FORMAT 'p'], ...)`
func (ps *parseState) columnSpecs(stmt *Statement) *ParseError {
	ps.advance() // (
	seen := map[string]bool{}
	for {
		nameTok := ps.peek()
		var name string
		if nameTok.Type == TokenString {
			ps.pos++
			name = nameTok.Text
		} else {
			var err *ParseError
			if name, err = ps.identifier("column name"); err != nil {
				return err
			}
		}
		if seen[name] {
			return ps.errorAt(nameTok, "duplicate column name %q", name)
		}
		seen[name] = true

		spec := ColumnSpec{Name: name, TypeName: "TEXT", Type: model.DataTypeText}
		if typeTok := ps.peek(); typeTok.Type == TokenIdent && !typeTok.Quoted && !typeTok.isReserved() &&
			!typeTok.IsKeyword("FORMAT") {
			ps.pos++
			spec.TypeName = strings.ToUpper(typeTok.Text)
			spec.Type = model.ParseDataType(spec.TypeName)
			if ps.acceptOp("(") {
				if _, err := ps.nonNegativeInt("type length"); err != nil {
					return err
				}
				if ps.acceptOp(",") {
					if _, err := ps.nonNegativeInt("type scale"); err != nil {
						return err
					}
				}
				if err := ps.expectOp(")"); err != nil {
					return err
				}
			}
		}

		for {
			switch {
			case ps.acceptKeyword("NOT"):
				if err := ps.expectKeyword("NULL"); err != nil {
					return err
				}
				spec.NotNull = true
				continue
			case ps.acceptKeyword("NULL"):
				spec.NotNull = false
				continue
			case ps.peek().IsKeyword("FORMAT"):
				ps.pos++
				formatTok := ps.peek()
				if formatTok.Type != TokenString {
					return ps.errorAt(formatTok, "expected format pattern string")
				}
				ps.pos++
				spec.Format = formatTok.Text
				continue
			}
			break
		}
		stmt.ColumnDefs = append(stmt.ColumnDefs, spec)
		if !ps.acceptOp(",") {
			break
		}
	}
	return ps.expectOp(")")
}

// DROP WORKBOOK|SHEET [IF EXISTS] name, DROP INDEX name ON sheet
func (ps *parseState) dropStatement() (*Statement, *ParseError) {
	ps.advance() // DROP
	stmt := &Statement{Success: true}
	ps.current = stmt

	tok := ps.peek()
	switch {
	case tok.IsKeyword("WORKBOOK"), tok.IsKeyword("DATABASE"):
		stmt.Kind = KindDropWorkbook
	case tok.IsKeyword("SHEET"), tok.IsKeyword("TABLE"):
		stmt.Kind = KindDropSheet
	case tok.IsKeyword("INDEX"):
		stmt.Kind = KindDropIndex
	default:
		return nil, ps.errorAt(tok, "expected WORKBOOK, SHEET or INDEX after DROP")
	}
	ps.pos++

	if ps.acceptKeyword("IF") {
		if err := ps.expectKeyword("EXISTS"); err != nil {
			return nil, err
		}
		stmt.IfExists = true
	}
	if stmt.Kind == KindDropIndex {
		return ps.indexTail(stmt, false)
	}

	what := "workbook"
	if stmt.Kind == KindDropSheet {
		what = "sheet"
	}
	name, err := ps.entityName(what)
	if err != nil {
		return nil, err
	}
	stmt.Name = name
	return stmt, nil
}

// USE [WORKBOOK] name
func (ps *parseState) useStatement() (*Statement, *ParseError) {
	ps.advance() // USE
	stmt := &Statement{Kind: KindUseWorkbook, Success: true}
	if !ps.acceptKeyword("WORKBOOK") {
		ps.acceptKeyword("DATABASE")
	}
	name, err := ps.entityName("workbook")
	if err != nil {
		return nil, err
	}
	stmt.Name = name
	return stmt, nil
}

// SHOW WORKBOOKS | SHOW SHEETS
func (ps *parseState) showStatement() (*Statement, *ParseError) {
	ps.advance() // SHOW
	tok := ps.peek()
	switch {
	case tok.IsKeyword("WORKBOOKS"), tok.IsKeyword("DATABASES"):
		ps.pos++
		return &Statement{Kind: KindShowWorkbooks, Success: true}, nil
	case tok.IsKeyword("SHEETS"), tok.IsKeyword("TABLES"):
		ps.pos++
		return &Statement{Kind: KindShowSheets, Success: true}, nil
	}
	return nil, ps.errorAt(tok, "expected WORKBOOKS or SHEETS after SHOW")
}
