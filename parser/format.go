package parser

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// String renders the statement in canonical form: keywords upper case,
// identifiers back-quoted, single spaces, every select item labelled.
// Parsing the result yields an equivalent statement.
func (s *Statement) String() string {
	if !s.Success {
		return s.SQL
	}
	f := formatter{stmt: s}
	var b strings.Builder

	switch s.Kind {
	case KindSelect:
		f.selectStmt(&b)
	case KindInsert:
		f.insertStmt(&b)
	case KindUpdate:
		b.WriteString("UPDATE ")
		b.WriteString(tableRef(s.Table()))
		b.WriteString(" SET ")
		for i, a := range s.Assignments {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quoteIdent(a.Column))
			b.WriteString(" = ")
			b.WriteString(f.expr(a.Value))
		}
		f.where(&b)
	case KindDelete:
		b.WriteString("DELETE FROM ")
		b.WriteString(tableRef(s.Table()))
		f.where(&b)
	case KindCreateWorkbook, KindCreateSheet:
		b.WriteString("CREATE ")
		if s.OrReplace {
			b.WriteString("OR REPLACE ")
		}
		if s.Kind == KindCreateWorkbook {
			b.WriteString("WORKBOOK ")
		} else {
			b.WriteString("SHEET ")
		}
		b.WriteString(quoteIdent(s.Name))
		f.createTail(&b)
	case KindDropWorkbook, KindDropSheet:
		b.WriteString("DROP ")
		if s.Kind == KindDropWorkbook {
			b.WriteString("WORKBOOK ")
		} else {
			b.WriteString("SHEET ")
		}
		if s.IfExists {
			b.WriteString("IF EXISTS ")
		}
		b.WriteString(quoteIdent(s.Name))
	case KindUseWorkbook:
		b.WriteString("USE WORKBOOK ")
		b.WriteString(quoteIdent(s.Name))
	case KindCreateIndex:
		b.WriteString("CREATE ")
		if s.Unique {
			b.WriteString("UNIQUE ")
		}
		b.WriteString("INDEX ")
		b.WriteString(quoteIdent(s.IndexName))
		b.WriteString(" ON ")
		b.WriteString(quoteIdent(s.Table().Name))
		b.WriteString(" (")
		b.WriteString(joinIdents(s.IndexColumns))
		b.WriteString(")")
	case KindDropIndex:
		b.WriteString("DROP INDEX ")
		if s.IfExists {
			b.WriteString("IF EXISTS ")
		}
		b.WriteString(quoteIdent(s.IndexName))
		b.WriteString(" ON ")
		b.WriteString(quoteIdent(s.Table().Name))
	case KindShowWorkbooks:
		b.WriteString("SHOW WORKBOOKS")
	case KindShowSheets:
		b.WriteString("SHOW SHEETS")
	}
	return b.String()
}

// formatter renders expressions with access to the statement's subqueries
type formatter struct {
	stmt *Statement
}

func (f formatter) selectStmt(b *strings.Builder) {
	s := f.stmt
	b.WriteString("SELECT ")
	if s.Distinct {
		b.WriteString("DISTINCT ")
	}
	for i, item := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		switch {
		case item.Star && item.StarTable != "":
			b.WriteString(quoteIdent(item.StarTable) + ".*")
		case item.Star:
			b.WriteString("*")
		default:
			b.WriteString(f.expr(item.Expr))
			b.WriteString(" AS ")
			b.WriteString(quoteIdent(item.Label()))
		}
	}
	if len(s.Targets) > 0 {
		b.WriteString(" FROM ")
		b.WriteString(tableRef(s.Targets[0]))
		for _, j := range s.Joins {
			b.WriteString(" ")
			b.WriteString(j.Type.String())
			b.WriteString(" ")
			b.WriteString(tableRef(j.Table))
			if j.On != nil {
				b.WriteString(" ON ")
				b.WriteString(f.expr(j.On))
			}
		}
	}
	f.where(b)
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		for i, e := range s.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.expr(e))
		}
	}
	if s.Having != nil {
		b.WriteString(" HAVING ")
		b.WriteString(f.expr(s.Having))
	}
	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.expr(o.Expr))
			if o.Desc {
				b.WriteString(" DESC")
			} else {
				b.WriteString(" ASC")
			}
		}
	}
	if s.Limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.FormatInt(*s.Limit, 10))
	}
	if s.Offset != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.FormatInt(*s.Offset, 10))
	}
}

func (f formatter) insertStmt(b *strings.Builder) {
	s := f.stmt
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteIdent(s.Table().Name))
	if len(s.InsertColumns) > 0 {
		b.WriteString(" (")
		b.WriteString(joinIdents(s.InsertColumns))
		b.WriteString(")")
	}
	b.WriteString(" VALUES ")
	for i, row := range s.InsertRows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, e := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.expr(e))
		}
		b.WriteString(")")
	}
}

func (f formatter) where(b *strings.Builder) {
	if f.stmt.Where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(f.expr(f.stmt.Where))
	}
}

func (f formatter) createTail(b *strings.Builder) {
	s := f.stmt
	switch {
	case s.Options != nil:
		keys := make([]string, 0, len(s.Options))
		for k := range s.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quoteIdent(k))
			b.WriteString(" = ")
			b.WriteString(quoteString(s.Options[k]))
		}
		b.WriteString(")")
	case len(s.ColumnDefs) > 0:
		b.WriteString(" (")
		for i, c := range s.ColumnDefs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quoteIdent(c.Name))
			b.WriteString(" ")
			b.WriteString(c.TypeName)
			if c.NotNull {
				b.WriteString(" NOT NULL")
			}
			if c.Format != "" {
				b.WriteString(" FORMAT ")
				b.WriteString(quoteString(c.Format))
			}
		}
		b.WriteString(")")
	}
}

func tableRef(t TableRef) string {
	if t.Subquery != nil {
		return "(" + t.Subquery.String() + ") AS " + quoteIdent(t.Alias)
	}
	if t.Alias != "" {
		return quoteIdent(t.Name) + " AS " + quoteIdent(t.Alias)
	}
	return quoteIdent(t.Name)
}

func (f formatter) subquery(key string) string {
	if f.stmt != nil {
		if sub, ok := f.stmt.Subqueries[key]; ok {
			return sub.String()
		}
	}
	return key
}

func (f formatter) exprList(list []Expr) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = f.expr(e)
	}
	return strings.Join(parts, ", ")
}

func (f formatter) expr(e Expr) string {
	switch x := e.(type) {
	case nil:
		return "NULL"
	case *Literal:
		return formatLiteral(x.Value)
	case *ColumnRef:
		if x.Table != "" {
			return quoteIdent(x.Table) + "." + quoteIdent(x.Name)
		}
		return quoteIdent(x.Name)
	case *FuncCall:
		switch {
		case x.Star:
			return x.Name + "(*)"
		case x.Distinct:
			return x.Name + "(DISTINCT " + f.exprList(x.Args) + ")"
		default:
			return x.Name + "(" + f.exprList(x.Args) + ")"
		}
	case *BinaryExpr:
		return "(" + f.expr(x.Left) + " " + x.Op + " " + f.expr(x.Right) + ")"
	case *UnaryExpr:
		return "(" + x.Op + " " + f.expr(x.Operand) + ")"
	case *IsNullExpr:
		if x.Not {
			return "(" + f.expr(x.Expr) + " IS NOT NULL)"
		}
		return "(" + f.expr(x.Expr) + " IS NULL)"
	case *LikeExpr:
		return "(" + f.expr(x.Expr) + not(x.Not) + " LIKE " + f.expr(x.Pattern) + ")"
	case *InExpr:
		if x.Subquery != "" {
			return "(" + f.expr(x.Expr) + not(x.Not) + " IN (" + f.subquery(x.Subquery) + "))"
		}
		return "(" + f.expr(x.Expr) + not(x.Not) + " IN (" + f.exprList(x.List) + "))"
	case *BetweenExpr:
		return "(" + f.expr(x.Expr) + not(x.Not) + " BETWEEN " + f.expr(x.Low) + " AND " + f.expr(x.High) + ")"
	case *ExistsExpr:
		prefix := "EXISTS ("
		if x.Not {
			prefix = "NOT EXISTS ("
		}
		return "(" + prefix + f.subquery(x.Subquery) + "))"
	case *SubqueryExpr:
		return "(" + f.subquery(x.Subquery) + ")"
	case *CaseExpr:
		var b strings.Builder
		b.WriteString("CASE")
		if x.Operand != nil {
			b.WriteString(" " + f.expr(x.Operand))
		}
		for _, w := range x.Whens {
			b.WriteString(" WHEN " + f.expr(w.Cond) + " THEN " + f.expr(w.Result))
		}
		if x.Else != nil {
			b.WriteString(" ELSE " + f.expr(x.Else))
		}
		b.WriteString(" END")
		return b.String()
	default:
		return "?"
	}
}

func not(negated bool) string {
	if negated {
		return " NOT"
	}
	return ""
}

func formatLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		switch {
		case math.IsInf(x, 1):
			return "1e999"
		case math.IsInf(x, -1):
			return "-1e999"
		}
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEN") {
			s += ".0"
		}
		return s
	case string:
		return quoteString(x)
	default:
		return "NULL"
	}
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// String methods render expressions without statement context; subqueries
// appear as their keys.

func (e *Literal) String() string      { return formatter{}.expr(e) }
func (e *ColumnRef) String() string    { return formatter{}.expr(e) }
func (e *FuncCall) String() string     { return formatter{}.expr(e) }
func (e *BinaryExpr) String() string   { return formatter{}.expr(e) }
func (e *UnaryExpr) String() string    { return formatter{}.expr(e) }
func (e *IsNullExpr) String() string   { return formatter{}.expr(e) }
func (e *LikeExpr) String() string     { return formatter{}.expr(e) }
func (e *InExpr) String() string       { return formatter{}.expr(e) }
func (e *BetweenExpr) String() string  { return formatter{}.expr(e) }
func (e *ExistsExpr) String() string   { return formatter{}.expr(e) }
func (e *SubqueryExpr) String() string { return formatter{}.expr(e) }
func (e *CaseExpr) String() string     { return formatter{}.expr(e) }
