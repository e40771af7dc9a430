package sheetsql

import (
	"context"
	"fmt"
	"sort"

	"github.com/nao1215/sheetsql/domain/model"
	"github.com/nao1215/sheetsql/function"
	"github.com/nao1215/sheetsql/parser"
)

// ctxCheckInterval is how many rows a scan processes between context checks
const ctxCheckInterval = 1024

// handleSelect runs a SELECT: sources and joins, WHERE (index assisted for
// a single sheet), grouping, HAVING, projection, DISTINCT, ORDER BY, then
// OFFSET and LIMIT capped by the request's row limit.
func (e *Engine) handleSelect(ctx context.Context, req *Request) (*model.QueryResult, error) {
	stmt := req.Statement
	ec := newErrorContext("select", req.Workbook)
	wb, err := e.liveWorkbook(ctx, req.Workbook)
	if err != nil {
		return nil, err
	}

	q := &selectQuery{engine: e, ctx: ctx, workbook: wb}
	out, err := q.execute(stmt, req.MaxRows)
	if err != nil {
		return nil, classify(ec, err)
	}

	rows := make([]map[string]any, len(out.rows))
	for i, values := range out.rows {
		row := make(map[string]any, len(values))
		for j, def := range out.defs {
			row[def.Label] = values[j]
		}
		rows[i] = row
	}
	return &model.QueryResult{
		StatementType: stmt.Kind.String(),
		Columns:       out.defs,
		Rows:          rows,
		Success:       true,
	}, nil
}

// selectQuery executes one SELECT and its subqueries against a workbook
type selectQuery struct {
	engine   *Engine
	ctx      context.Context
	workbook *model.Workbook
	scanned  int
}

// projection is the output of a SELECT before it becomes a result
type projection struct {
	defs []model.ColumnDef
	rows [][]any
}

func (p *projection) relation(source string) *relation {
	cols := make([]column, len(p.defs))
	for i, d := range p.defs {
		cols[i] = column{source: source, name: d.Label, typ: d.Type}
	}
	return &relation{columns: cols, rows: p.rows}
}

// tick checks the context every ctxCheckInterval rows
func (q *selectQuery) tick() error {
	q.scanned++
	if q.scanned%ctxCheckInterval == 0 {
		return q.ctx.Err()
	}
	return nil
}

func (q *selectQuery) runSubquery(stmt *parser.Statement) (*relation, error) {
	out, err := q.execute(stmt, 0)
	if err != nil {
		return nil, err
	}
	return out.relation(""), nil
}

// outputItem is one output column after star expansion
type outputItem struct {
	def  model.ColumnDef
	expr parser.Expr
	// pos is the input column of a star item, else -1
	pos int
}

// outputRow is a projected row with the context it was computed in, kept
// for ORDER BY expressions.
type outputRow struct {
	values []any
	rc     rowContext
}

func (q *selectQuery) execute(stmt *parser.Statement, maxRows int) (*projection, error) {
	ev := newEvaluator(q.engine.registry, nil, stmt, q.runSubquery)

	input, err := q.from(stmt, ev)
	if err != nil {
		return nil, err
	}
	ev = ev.withColumns(input.columns)

	items, err := expandItems(stmt, input.columns, q.engine.registry)
	if err != nil {
		return nil, err
	}

	var rows []outputRow
	if len(stmt.GroupBy) > 0 || len(stmt.Aggregates) > 0 {
		rows, err = q.grouped(stmt, input, items, ev)
	} else {
		rows, err = q.plain(stmt, input, items, ev)
	}
	if err != nil {
		return nil, err
	}

	if stmt.Distinct {
		rows = distinct(rows)
	}
	if len(stmt.OrderBy) > 0 {
		if err := orderRows(stmt.OrderBy, rows, items, ev); err != nil {
			return nil, err
		}
	}
	rows = window(rows, stmt.Offset, stmt.Limit, maxRows)

	out := &projection{defs: make([]model.ColumnDef, len(items)), rows: make([][]any, len(rows))}
	for i, r := range rows {
		out.rows[i] = r.values
	}
	for i, item := range items {
		out.defs[i] = item.def
		if out.defs[i].Type == model.DataTypeMixed {
			out.defs[i].Type = inferType(out.rows, i)
		}
	}
	return out, nil
}

// from builds the input relation: the sources joined left to right, with
// the WHERE applied.
func (q *selectQuery) from(stmt *parser.Statement, ev *evaluator) (*relation, error) {
	if len(stmt.Targets) == 0 {
		input := &relation{rows: [][]any{{}}}
		return q.filter(input, nil, stmt.Where, ev)
	}

	first := stmt.Targets[0]
	rel, sheet, err := q.source(first)
	if err != nil {
		return nil, err
	}

	if len(stmt.Joins) == 0 {
		var positions []int
		if sheet != nil {
			indexes := q.engine.indexes.Indexes(q.workbook.Name, sheet.Name)
			var ok bool
			positions, ok, err = candidates(indexes, stmt.Where, sheet, first.RefName(), ev.withColumns(rel.columns))
			if err != nil {
				return nil, err
			}
			if !ok {
				positions = nil
			} else if positions == nil {
				positions = []int{}
			}
		}
		return q.filter(rel, positions, stmt.Where, ev)
	}

	for _, j := range stmt.Joins {
		right, _, err := q.source(j.Table)
		if err != nil {
			return nil, err
		}
		if rel, err = q.join(rel, right, j, ev); err != nil {
			return nil, err
		}
	}
	return q.filter(rel, nil, stmt.Where, ev)
}

// source resolves a FROM or JOIN entry. sheet is nil for derived tables.
func (q *selectQuery) source(ref parser.TableRef) (*relation, *model.Sheet, error) {
	if ref.Subquery != nil {
		out, err := q.execute(ref.Subquery, 0)
		if err != nil {
			return nil, nil, err
		}
		return out.relation(ref.RefName()), nil, nil
	}
	sheet, ok := q.workbook.Sheet(ref.Name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: sheet %s does not exist in workbook %s", ErrValidation, ref.Name, q.workbook.Name)
	}
	return sheetRelation(sheet, ref.RefName()), sheet, nil
}

// filter keeps the rows satisfying where. positions, when not nil, limits
// the rows considered.
func (q *selectQuery) filter(rel *relation, positions []int, where parser.Expr, ev *evaluator) (*relation, error) {
	ev = ev.withColumns(rel.columns)
	out := &relation{columns: rel.columns}
	keep := func(row []any) error {
		if err := q.tick(); err != nil {
			return err
		}
		ok, err := ev.predicate(where, rowContext{row: row})
		if err != nil {
			return err
		}
		if ok {
			out.rows = append(out.rows, row)
		}
		return nil
	}

	if positions != nil {
		for _, pos := range positions {
			if pos < len(rel.rows) {
				if err := keep(rel.rows[pos]); err != nil {
					return nil, err
				}
			}
		}
		return out, nil
	}
	for _, row := range rel.rows {
		if err := keep(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// join is a nested loop join of everything so far with one more source.
// Unmatched rows of the preserved side are padded with NULLs.
func (q *selectQuery) join(left, right *relation, j parser.JoinClause, ev *evaluator) (*relation, error) {
	out := &relation{columns: append(append([]column(nil), left.columns...), right.columns...)}
	ev = ev.withColumns(out.columns)
	leftNulls := make([]any, len(left.columns))
	rightNulls := make([]any, len(right.columns))
	rightMatched := make([]bool, len(right.rows))

	combine := func(l, r []any) []any {
		row := make([]any, 0, len(l)+len(r))
		return append(append(row, l...), r...)
	}

	for _, l := range left.rows {
		matched := false
		for ri, r := range right.rows {
			if err := q.tick(); err != nil {
				return nil, err
			}
			row := combine(l, r)
			ok, err := ev.predicate(j.On, rowContext{row: row})
			if err != nil {
				return nil, err
			}
			if ok {
				matched = true
				rightMatched[ri] = true
				out.rows = append(out.rows, row)
			}
		}
		if !matched && (j.Type == parser.JoinLeft || j.Type == parser.JoinFull) {
			out.rows = append(out.rows, combine(l, rightNulls))
		}
	}
	if j.Type == parser.JoinRight || j.Type == parser.JoinFull {
		for ri, r := range right.rows {
			if !rightMatched[ri] {
				out.rows = append(out.rows, combine(leftNulls, r))
			}
		}
	}
	return out, nil
}

// expandItems turns the select list into output columns, expanding stars.
// A star column whose name occurs in several sources is labelled source.name.
func expandItems(stmt *parser.Statement, columns []column, registry *function.Registry) ([]outputItem, error) {
	counts := make(map[string]int, len(columns))
	for _, c := range columns {
		counts[c.name]++
	}

	var items []outputItem
	for _, it := range stmt.Columns {
		if !it.Star {
			def := model.ColumnDef{Name: it.Text, Label: it.Label(), Type: model.DataTypeMixed}
			if ref, ok := it.Expr.(*parser.ColumnRef); ok {
				def.Name = ref.Name
				if pos, err := resolve(columns, ref); err == nil {
					def.Type = columns[pos].typ
				}
			}
			if f, ok := it.Expr.(*parser.FuncCall); ok {
				def.Type = funcType(registry, f, columns)
			}
			def.Aggregated = parser.ContainsAggregate(it.Expr)
			items = append(items, outputItem{def: def, expr: it.Expr, pos: -1})
			continue
		}

		found := false
		for i, c := range columns {
			if it.StarTable != "" && c.source != it.StarTable {
				continue
			}
			found = true
			label := c.name
			if counts[c.name] > 1 && c.source != "" {
				label = c.source + "." + c.name
			}
			items = append(items, outputItem{
				def: model.ColumnDef{Name: c.name, Label: label, Type: c.typ},
				pos: i,
			})
		}
		if it.StarTable != "" && !found {
			return nil, fmt.Errorf("%w: unknown source %s in %s", ErrValidation, it.StarTable, it.Text)
		}
	}
	return items, nil
}

// funcType is the declared return type of a call. MAX and MIN over a
// column keep the column's type.
func funcType(registry *function.Registry, f *parser.FuncCall, columns []column) model.DataType {
	switch f.Name {
	case "MAX", "MIN":
		if len(f.Args) == 1 {
			if ref, ok := f.Args[0].(*parser.ColumnRef); ok {
				if pos, err := resolve(columns, ref); err == nil {
					return columns[pos].typ
				}
			}
		}
	}
	if fn, ok := registry.Lookup(f.Name); ok {
		return fn.ReturnType
	}
	return model.DataTypeMixed
}

// inferType derives a column type from the values of an output column
func inferType(rows [][]any, col int) model.DataType {
	t := model.DataTypeMixed
	for _, row := range rows {
		v := row[col]
		if v == nil {
			continue
		}
		vt := model.TypeOf(v)
		switch {
		case t == model.DataTypeMixed:
			t = vt
		case t == vt:
		case t.IsNumeric() && vt.IsNumeric():
			t = model.DataTypeDecimal
		default:
			return model.DataTypeMixed
		}
	}
	return t
}

func project(items []outputItem, ev *evaluator, rc rowContext) ([]any, error) {
	values := make([]any, len(items))
	for i, item := range items {
		if item.pos >= 0 {
			if item.pos < len(rc.row) {
				values[i] = rc.row[item.pos]
			}
			continue
		}
		v, err := ev.eval(item.expr, rc)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func (q *selectQuery) plain(stmt *parser.Statement, input *relation, items []outputItem, ev *evaluator) ([]outputRow, error) {
	if stmt.Having != nil {
		return nil, fmt.Errorf("%w: HAVING requires GROUP BY or an aggregate", ErrValidation)
	}
	rows := make([]outputRow, 0, len(input.rows))
	for _, row := range input.rows {
		rc := rowContext{row: row}
		values, err := project(items, ev, rc)
		if err != nil {
			return nil, err
		}
		rows = append(rows, outputRow{values: values, rc: rc})
	}
	return rows, nil
}

// grouped aggregates the input. Groups keep the order in which their first
// row appears; without GROUP BY the whole input is one group, even when it
// is empty. Plain expressions see the first row of their group.
func (q *selectQuery) grouped(stmt *parser.Statement, input *relation, items []outputItem, ev *evaluator) ([]outputRow, error) {
	var order []string
	groups := make(map[string][][]any)
	if len(stmt.GroupBy) == 0 {
		order = []string{""}
		groups[""] = input.rows
	} else {
		for _, row := range input.rows {
			keyValues := make([]any, len(stmt.GroupBy))
			for i, g := range stmt.GroupBy {
				v, err := ev.eval(g, rowContext{row: row})
				if err != nil {
					return nil, err
				}
				keyValues[i] = v
			}
			key := model.TupleKey(keyValues)
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], row)
		}
	}

	var rows []outputRow
	for _, key := range order {
		members := groups[key]
		aggs, err := q.aggregate(stmt.Aggregates, members, ev)
		if err != nil {
			return nil, err
		}
		first := make([]any, len(input.columns))
		if len(members) > 0 {
			first = members[0]
		}
		rc := rowContext{row: first, aggs: aggs}

		ok, err := ev.predicate(stmt.Having, rc)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		values, err := project(items, ev, rc)
		if err != nil {
			return nil, err
		}
		rows = append(rows, outputRow{values: values, rc: rc})
	}
	return rows, nil
}

// countStar is the non-NULL value COUNT(*) counts for every row
const countStar int64 = 1

func (q *selectQuery) aggregate(calls []*parser.FuncCall, rows [][]any, ev *evaluator) (map[*parser.FuncCall]any, error) {
	aggs := make(map[*parser.FuncCall]any, len(calls))
	for _, call := range calls {
		fn, ok := q.engine.registry.Lookup(call.Name)
		if !ok || !fn.Aggregate {
			return nil, fmt.Errorf("%w: %s is not an aggregate function", ErrValidation, call.Name)
		}
		acc := fn.NewAggregator()
		seen := make(map[string]bool)
		for _, row := range rows {
			if err := q.tick(); err != nil {
				return nil, err
			}
			var v any = countStar
			if !call.Star {
				if len(call.Args) != 1 {
					return nil, fmt.Errorf("%w: %s expects one argument", ErrValidation, call.Name)
				}
				var err error
				if v, err = ev.eval(call.Args[0], rowContext{row: row}); err != nil {
					return nil, err
				}
			}
			if call.Distinct {
				if v == nil {
					continue
				}
				k := model.Key(v)
				if seen[k] {
					continue
				}
				seen[k] = true
			}
			if err := acc.Add(v); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrExecution, call.Name, err)
			}
		}
		aggs[call] = acc.Result()
	}
	return aggs, nil
}

func distinct(rows []outputRow) []outputRow {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		k := model.TupleKey(r.values)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// orderRows sorts stably. A key may be an output label, a 1-based output
// position or an expression over the input. NULLs sort last in both
// directions.
func orderRows(order []parser.OrderItem, rows []outputRow, items []outputItem, ev *evaluator) error {
	keys := make([][]any, len(rows))
	for i := range rows {
		keys[i] = make([]any, len(order))
	}

	for k, o := range order {
		pos := -1
		switch x := o.Expr.(type) {
		case *parser.Literal:
			n, ok := x.Value.(int64)
			if !ok {
				continue
			}
			if n < 1 || int(n) > len(items) {
				return fmt.Errorf("%w: ORDER BY position %d is out of range", ErrValidation, n)
			}
			pos = int(n) - 1
		case *parser.ColumnRef:
			if x.Table == "" {
				for i, item := range items {
					if item.def.Label == x.Name {
						pos = i
						break
					}
				}
			}
		}

		for i, r := range rows {
			if pos >= 0 {
				keys[i][k] = r.values[pos]
				continue
			}
			v, err := ev.eval(o.Expr, r.rc)
			if err != nil {
				return err
			}
			keys[i][k] = v
		}
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		for k, o := range order {
			va, vb := ka[k], kb[k]
			switch {
			case va == nil && vb == nil:
				continue
			case va == nil:
				return false
			case vb == nil:
				return true
			}
			c, _ := model.Compare(va, vb)
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	sorted := make([]outputRow, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
	return nil
}

// window applies OFFSET then LIMIT; a positive maxRows caps the result
func window(rows []outputRow, offset, limit *int64, maxRows int) []outputRow {
	if offset != nil {
		if *offset >= int64(len(rows)) {
			return nil
		}
		rows = rows[*offset:]
	}
	n := int64(len(rows))
	if limit != nil && *limit < n {
		n = *limit
	}
	if maxRows > 0 && int64(maxRows) < n {
		n = int64(maxRows)
	}
	return rows[:n]
}
