package sheetsql

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nao1215/sheetsql/cache"
	"github.com/nao1215/sheetsql/domain/model"
	"github.com/nao1215/sheetsql/index"
	"github.com/nao1215/sheetsql/parser"
)

// mutation is a staged change of one sheet. rows are the sheet rows after
// the change; nothing is visible until commit swaps them in.
type mutation struct {
	workbook *model.Workbook
	sheet    *model.Sheet
	rows     [][]any
	change   index.Change
}

func (e *Engine) handleInsert(ctx context.Context, req *Request) (*model.QueryResult, error) {
	stmt := req.Statement
	ec := newErrorContext("insert", req.Workbook).withSheet(stmt.Table().Name)
	wb, sheet, err := e.targetSheet(ctx, req)
	if err != nil {
		return nil, err
	}

	positions := make([]int, len(sheet.Columns))
	for i := range positions {
		positions[i] = i
	}
	if stmt.InsertColumns != nil {
		positions = positions[:0]
		for _, name := range stmt.InsertColumns {
			pos := sheet.ColumnIndex(name)
			if pos < 0 {
				return nil, ec.withDetails("unknown column %s", name).err(ErrValidation, nil)
			}
			positions = append(positions, pos)
		}
	}

	q := &selectQuery{engine: e, ctx: ctx, workbook: wb}
	ev := newEvaluator(e.registry, nil, stmt, q.runSubquery)
	staged := make([][]any, 0, len(stmt.InsertRows))
	for i, exprs := range stmt.InsertRows {
		if len(exprs) != len(positions) {
			return nil, ec.withDetails("row %d has %d values for %d columns", i+1, len(exprs), len(positions)).err(ErrValidation, nil)
		}
		row := make([]any, len(sheet.Columns))
		for j, expr := range exprs {
			v, err := ev.eval(expr, rowContext{})
			if err != nil {
				return nil, classify(ec, err)
			}
			row[positions[j]] = v
		}
		if err := conform(sheet, row); err != nil {
			return nil, ec.withDetails("row %d", i+1).err(ErrValidation, err)
		}
		staged = append(staged, row)
	}

	rows := make([][]any, 0, len(sheet.Rows)+len(staged))
	rows = append(append(rows, sheet.Rows...), staged...)
	m := &mutation{workbook: wb, sheet: sheet, rows: rows, change: index.Change{Appended: len(staged)}}
	if err := e.commit(ctx, req, m, ec); err != nil {
		return nil, err
	}
	return affected(stmt, int64(len(staged))), nil
}

func (e *Engine) handleUpdate(ctx context.Context, req *Request) (*model.QueryResult, error) {
	stmt := req.Statement
	ec := newErrorContext("update", req.Workbook).withSheet(stmt.Table().Name)
	wb, sheet, err := e.targetSheet(ctx, req)
	if err != nil {
		return nil, err
	}

	targets := make([]int, len(stmt.Assignments))
	for i, a := range stmt.Assignments {
		if targets[i] = sheet.ColumnIndex(a.Column); targets[i] < 0 {
			return nil, ec.withDetails("unknown column %s", a.Column).err(ErrValidation, nil)
		}
	}

	matched, ev, err := e.matchRows(ctx, wb, sheet, stmt)
	if err != nil {
		return nil, classify(ec, err)
	}

	rows := append([][]any(nil), sheet.Rows...)
	change := index.Change{Updated: matched, OldRows: make([][]any, len(matched))}
	for i, pos := range matched {
		old := sheet.Rows[pos]
		row := append([]any(nil), old...)
		for j, a := range stmt.Assignments {
			// every assignment sees the row as it was before the statement
			v, err := ev.eval(a.Value, rowContext{row: old})
			if err != nil {
				return nil, classify(ec, err)
			}
			row[targets[j]] = v
		}
		if err := conform(sheet, row); err != nil {
			return nil, ec.withDetails("row %d", pos+1).err(ErrValidation, err)
		}
		rows[pos] = row
		change.OldRows[i] = old
	}

	m := &mutation{workbook: wb, sheet: sheet, rows: rows, change: change}
	if err := e.commit(ctx, req, m, ec); err != nil {
		return nil, err
	}
	return affected(stmt, int64(len(matched))), nil
}

func (e *Engine) handleDelete(ctx context.Context, req *Request) (*model.QueryResult, error) {
	stmt := req.Statement
	ec := newErrorContext("delete", req.Workbook).withSheet(stmt.Table().Name)
	wb, sheet, err := e.targetSheet(ctx, req)
	if err != nil {
		return nil, err
	}

	matched, _, err := e.matchRows(ctx, wb, sheet, stmt)
	if err != nil {
		return nil, classify(ec, err)
	}

	drop := make(map[int]bool, len(matched))
	for _, pos := range matched {
		drop[pos] = true
	}
	rows := make([][]any, 0, len(sheet.Rows)-len(matched))
	for pos, row := range sheet.Rows {
		if !drop[pos] {
			rows = append(rows, row)
		}
	}

	m := &mutation{workbook: wb, sheet: sheet, rows: rows, change: index.Change{Deleted: matched}}
	if err := e.commit(ctx, req, m, ec); err != nil {
		return nil, err
	}
	return affected(stmt, int64(len(matched))), nil
}

// targetSheet resolves the workbook and sheet a DML statement writes
func (e *Engine) targetSheet(ctx context.Context, req *Request) (*model.Workbook, *model.Sheet, error) {
	wb, err := e.liveWorkbook(ctx, req.Workbook)
	if err != nil {
		return nil, nil, err
	}
	sheet, err := liveSheet(wb, req.Statement.Table().Name)
	if err != nil {
		return nil, nil, err
	}
	return wb, sheet, nil
}

// matchRows returns the positions of the rows satisfying the WHERE of an
// UPDATE or DELETE, in storage order. It also returns the evaluator bound
// to the sheet's columns.
func (e *Engine) matchRows(ctx context.Context, wb *model.Workbook, sheet *model.Sheet, stmt *parser.Statement) ([]int, *evaluator, error) {
	ref := stmt.Table().RefName()
	q := &selectQuery{engine: e, ctx: ctx, workbook: wb}
	rel := sheetRelation(sheet, ref)
	ev := newEvaluator(e.registry, rel.columns, stmt, q.runSubquery)

	positions, ok, err := candidates(e.indexes.Indexes(wb.Name, sheet.Name), stmt.Where, sheet, ref, ev)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		positions = make([]int, len(sheet.Rows))
		for i := range positions {
			positions[i] = i
		}
	}

	var matched []int
	for _, pos := range positions {
		if err := q.tick(); err != nil {
			return nil, nil, err
		}
		hit, err := ev.predicate(stmt.Where, rowContext{row: sheet.Rows[pos]})
		if err != nil {
			return nil, nil, err
		}
		if hit {
			matched = append(matched, pos)
		}
	}
	return matched, ev, nil
}

// conform coerces a row to the sheet's column types in place and enforces
// NOT NULL columns.
func conform(sheet *model.Sheet, row []any) error {
	for i, col := range sheet.Columns {
		v, err := model.Coerce(row[i], col.Type)
		if err != nil {
			return fmt.Errorf("column %s: %w", col.Name, err)
		}
		if v == nil && !col.Nullable {
			return fmt.Errorf("column %s does not accept NULL", col.Name)
		}
		row[i] = v
	}
	return nil
}

// commit makes a staged mutation visible. Under the sheet's write lock it
// checks unique indexes, invalidates the sheet's cache scope, persists the
// rows and swaps them in. Any failure, or a caller that stopped waiting,
// leaves the sheet as it was.
func (e *Engine) commit(ctx context.Context, req *Request, m *mutation, ec *errorContext) error {
	if err := e.indexes.CheckUnique(m.workbook.Name, m.sheet.Name, m.rows); err != nil {
		return ec.err(ErrValidation, err)
	}
	if err := e.invalidate(ctx, cache.SheetScope(m.workbook.Name, m.sheet.Name)); err != nil {
		return ec.withDetails("cache invalidation").err(ErrExecution, err)
	}
	if err := ctx.Err(); err != nil {
		return classify(ec, err)
	}
	if m.change.Size() == 0 {
		return nil
	}

	data := &model.SheetData{
		Columns:      m.sheet.Columns,
		Rows:         m.rows,
		HeaderRow:    m.sheet.HeaderRow,
		DataStartRow: m.sheet.DataStartRow,
	}
	if e.provider != nil {
		if err := e.provider.PersistSheet(ctx, m.workbook.Name, m.sheet.Name, data); err != nil {
			return classify(ec.withDetails("persist"), err)
		}
	}

	if !req.beginCommit() {
		e.restore(ctx, m.workbook.Name, m.sheet)
		return ErrTimeout
	}
	m.sheet.Rows = m.rows
	m.sheet.ModifiedAt = e.now()
	if err := e.indexes.Apply(m.workbook.Name, m.sheet.Name, m.rows, m.change); err != nil {
		e.logger.Error("index maintenance failed",
			zap.String("workbook", m.workbook.Name), zap.String("sheet", m.sheet.Name), zap.Error(err))
	}
	return nil
}

// restore writes the unchanged rows of a sheet back after its staged rows
// were persisted by a statement that is no longer awaited.
func (e *Engine) restore(ctx context.Context, workbook string, sheet *model.Sheet) {
	if e.provider == nil {
		return
	}
	if err := e.provider.PersistSheet(context.WithoutCancel(ctx), workbook, sheet.Name, sheet.Data()); err != nil {
		e.logger.Error("restoring abandoned sheet write failed",
			zap.String("workbook", workbook), zap.String("sheet", sheet.Name), zap.Error(err))
	}
}

func affected(stmt *parser.Statement, n int64) *model.QueryResult {
	return &model.QueryResult{
		StatementType: stmt.Kind.String(),
		AffectedRows:  n,
		Success:       true,
	}
}
