package sheetsql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/sheetsql/cache"
	"github.com/nao1215/sheetsql/domain/model"
	"github.com/nao1215/sheetsql/parser"
)

func (e *Engine) handleCreateWorkbook(ctx context.Context, req *Request) (*model.QueryResult, error) {
	stmt := req.Statement
	ec := newErrorContext("create workbook", stmt.Name)
	if err := model.ValidateName("workbook", stmt.Name); err != nil {
		return nil, ec.err(ErrValidation, err)
	}
	exists, err := e.workbooks.exists(ctx, stmt.Name)
	if err != nil {
		return nil, classify(ec, err)
	}
	if exists && !stmt.OrReplace {
		return nil, ec.withDetails("workbook already exists").err(ErrValidation, nil)
	}
	if exists {
		if err := e.invalidate(ctx, cache.WorkbookScope(stmt.Name)); err != nil {
			return nil, ec.withDetails("cache invalidation").err(ErrExecution, err)
		}
	}
	if !req.beginCommit() {
		return nil, ErrTimeout
	}

	e.indexes.DropWorkbook(stmt.Name)
	wb := model.NewWorkbook(stmt.Name, e.now())
	for k, v := range stmt.Options {
		wb.Options[k] = v
	}
	e.workbooks.put(wb)
	req.Session.use(stmt.Name)
	return affected(stmt, 1), nil
}

func (e *Engine) handleCreateSheet(ctx context.Context, req *Request) (*model.QueryResult, error) {
	stmt := req.Statement
	ec := newErrorContext("create sheet", req.Workbook).withSheet(stmt.Name)
	if err := model.ValidateName("sheet", stmt.Name); err != nil {
		return nil, ec.err(ErrValidation, err)
	}
	wb, err := e.liveWorkbook(ctx, req.Workbook)
	if err != nil {
		return nil, err
	}
	_, exists := wb.Sheet(stmt.Name)
	if exists && !stmt.OrReplace {
		return nil, ec.withDetails("sheet already exists").err(ErrValidation, nil)
	}

	sheet, err := newSheet(stmt)
	if err != nil {
		return nil, ec.err(ErrValidation, err)
	}
	if err := e.invalidate(ctx, cache.SheetScope(wb.Name, stmt.Name)); err != nil {
		return nil, ec.withDetails("cache invalidation").err(ErrExecution, err)
	}
	if !req.beginCommit() {
		return nil, ErrTimeout
	}

	if e.provider != nil {
		if err := e.provider.PersistSheet(ctx, wb.Name, sheet.Name, sheet.Data()); err != nil {
			return nil, classify(ec.withDetails("persist"), err)
		}
	}
	e.indexes.DropSheet(wb.Name, sheet.Name)
	e.workbooks.putSheet(wb, sheet)
	return affected(stmt, 1), nil
}

// newSheet builds an empty sheet from the column list or the columns,
// headerRow and dataStartRow options of a CREATE SHEET.
func newSheet(stmt *parser.Statement) (*model.Sheet, error) {
	if len(stmt.ColumnDefs) == 0 {
		return nil, fmt.Errorf("sheet %s declares no columns", stmt.Name)
	}
	seen := make(map[string]bool, len(stmt.ColumnDefs))
	columns := make([]model.Column, 0, len(stmt.ColumnDefs))
	for _, spec := range stmt.ColumnDefs {
		if seen[spec.Name] {
			return nil, fmt.Errorf("%w: %s", model.ErrDuplicateColumnName, spec.Name)
		}
		seen[spec.Name] = true
		columns = append(columns, model.Column{
			Name:     spec.Name,
			Type:     spec.Type,
			Nullable: !spec.NotNull,
			Format:   spec.Format,
		})
	}
	sheet := model.NewSheet(stmt.Name, columns)

	headerRow, hasHeader, err := intOption(stmt.Options, "headerRow")
	if err != nil {
		return nil, err
	}
	dataStartRow, hasStart, err := intOption(stmt.Options, "dataStartRow")
	if err != nil {
		return nil, err
	}
	if hasHeader {
		sheet.HeaderRow = headerRow
		sheet.DataStartRow = headerRow + 1
	}
	if hasStart {
		if dataStartRow <= sheet.HeaderRow {
			return nil, fmt.Errorf("dataStartRow %d must follow headerRow %d", dataStartRow, sheet.HeaderRow)
		}
		sheet.DataStartRow = dataStartRow
	}
	return sheet, nil
}

// intOption reads a non-negative integer option; option names are
// case-insensitive.
func intOption(options map[string]string, name string) (int, bool, error) {
	for k, v := range options {
		if !strings.EqualFold(k, name) {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, false, fmt.Errorf("option %s must be a non-negative integer, got %q", name, v)
		}
		return n, true, nil
	}
	return 0, false, nil
}

func (e *Engine) handleDropWorkbook(ctx context.Context, req *Request) (*model.QueryResult, error) {
	stmt := req.Statement
	ec := newErrorContext("drop workbook", stmt.Name)
	exists, err := e.workbooks.exists(ctx, stmt.Name)
	if err != nil {
		return nil, classify(ec, err)
	}
	if !exists {
		if stmt.IfExists {
			return affected(stmt, 0), nil
		}
		return nil, ec.withDetails("workbook does not exist").err(ErrNotFound, nil)
	}
	if err := e.invalidate(ctx, cache.WorkbookScope(stmt.Name)); err != nil {
		return nil, ec.withDetails("cache invalidation").err(ErrExecution, err)
	}
	if !req.beginCommit() {
		return nil, ErrTimeout
	}

	e.workbooks.drop(stmt.Name)
	e.indexes.DropWorkbook(stmt.Name)
	req.Session.forget(stmt.Name)
	return affected(stmt, 1), nil
}

func (e *Engine) handleDropSheet(ctx context.Context, req *Request) (*model.QueryResult, error) {
	stmt := req.Statement
	ec := newErrorContext("drop sheet", req.Workbook).withSheet(stmt.Name)
	wb, err := e.liveWorkbook(ctx, req.Workbook)
	if err != nil {
		return nil, err
	}
	sheet, ok := wb.Sheet(stmt.Name)
	if !ok {
		if stmt.IfExists {
			return affected(stmt, 0), nil
		}
		return nil, ec.withDetails("sheet does not exist").err(ErrNotFound, nil)
	}
	if err := e.invalidate(ctx, cache.SheetScope(wb.Name, stmt.Name)); err != nil {
		return nil, ec.withDetails("cache invalidation").err(ErrExecution, err)
	}
	if !req.beginCommit() {
		return nil, ErrTimeout
	}

	e.workbooks.dropSheet(wb, sheet)
	e.indexes.DropSheet(wb.Name, sheet.Name)
	return affected(stmt, 1), nil
}

func (e *Engine) handleUseWorkbook(ctx context.Context, req *Request) (*model.QueryResult, error) {
	stmt := req.Statement
	ec := newErrorContext("use workbook", stmt.Name)
	exists, err := e.workbooks.exists(ctx, stmt.Name)
	if err != nil {
		return nil, classify(ec, err)
	}
	if !exists {
		return nil, ec.withDetails("workbook does not exist").err(ErrValidation, nil)
	}
	req.Session.use(stmt.Name)
	return affected(stmt, 0), nil
}

func (e *Engine) handleCreateIndex(ctx context.Context, req *Request) (*model.QueryResult, error) {
	stmt := req.Statement
	ec := newErrorContext("create index", req.Workbook).withSheet(stmt.Table().Name).withDetails("index %s", stmt.IndexName)
	wb, sheet, err := e.targetSheet(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := e.invalidate(ctx, cache.SheetScope(wb.Name, sheet.Name)); err != nil {
		return nil, ec.err(ErrExecution, err)
	}
	if !req.beginCommit() {
		return nil, ErrTimeout
	}
	if _, err := e.indexes.Create(wb.Name, sheet, stmt.IndexName, stmt.IndexColumns, stmt.Unique); err != nil {
		return nil, classify(ec, err)
	}
	return affected(stmt, 1), nil
}

func (e *Engine) handleDropIndex(ctx context.Context, req *Request) (*model.QueryResult, error) {
	stmt := req.Statement
	ec := newErrorContext("drop index", req.Workbook).withSheet(stmt.Table().Name).withDetails("index %s", stmt.IndexName)
	wb, sheet, err := e.targetSheet(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, ok := e.indexes.Get(wb.Name, sheet.Name, stmt.IndexName); !ok {
		if stmt.IfExists {
			return affected(stmt, 0), nil
		}
		return nil, ec.err(ErrNotFound, nil)
	}
	if err := e.invalidate(ctx, cache.SheetScope(wb.Name, sheet.Name)); err != nil {
		return nil, ec.err(ErrExecution, err)
	}
	if !req.beginCommit() {
		return nil, ErrTimeout
	}
	if err := e.indexes.Drop(wb.Name, sheet, stmt.IndexName); err != nil {
		return nil, classify(ec, err)
	}
	return affected(stmt, 1), nil
}

func (e *Engine) handleShowWorkbooks(ctx context.Context, req *Request) (*model.QueryResult, error) {
	infos, err := e.workbooks.list(ctx)
	if err != nil {
		return nil, classify(newErrorContext("show workbooks", ""), err)
	}
	rows := make([]map[string]any, len(infos))
	for i, info := range infos {
		rows[i] = map[string]any{"name": info.Name, "sheets": int64(len(info.Sheets))}
	}
	return &model.QueryResult{
		StatementType: req.Statement.Kind.String(),
		Columns: []model.ColumnDef{
			{Name: "name", Label: "name", Type: model.DataTypeText},
			{Name: "sheets", Label: "sheets", Type: model.DataTypeInteger},
		},
		Rows:    rows,
		Success: true,
	}, nil
}

func (e *Engine) handleShowSheets(ctx context.Context, req *Request) (*model.QueryResult, error) {
	wb, err := e.liveWorkbook(ctx, req.Workbook)
	if err != nil {
		return nil, err
	}

	sheets := wb.ActiveSheets()
	names := make(map[string]bool, len(sheets))
	for _, s := range sheets {
		names[s.Name] = false
	}
	// row counts are read under the sheets' read locks
	release := e.locks.lockSheets(wb.Name, names)
	defer release()

	rows := make([]map[string]any, len(sheets))
	for i, s := range sheets {
		rows[i] = map[string]any{
			"name":    s.Name,
			"columns": strings.Join(s.ColumnNames(), ","),
			"rows":    int64(s.RowCount()),
		}
	}
	return &model.QueryResult{
		StatementType: req.Statement.Kind.String(),
		Columns: []model.ColumnDef{
			{Name: "name", Label: "name", Type: model.DataTypeText},
			{Name: "columns", Label: "columns", Type: model.DataTypeText},
			{Name: "rows", Label: "rows", Type: model.DataTypeInteger},
		},
		Rows:    rows,
		Success: true,
	}, nil
}
