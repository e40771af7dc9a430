package sheetsql

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/sheetsql/domain/model"
)

// SheetDataProvider loads and persists the rows of sheets
type SheetDataProvider interface {
	LoadSheet(ctx context.Context, workbook, sheet string) (*model.SheetData, error)
	PersistSheet(ctx context.Context, workbook, sheet string, data *model.SheetData) error
}

// WorkbookCatalog enumerates the workbooks that exist outside the engine
type WorkbookCatalog interface {
	Workbooks(ctx context.Context) ([]model.WorkbookInfo, error)
	Lookup(ctx context.Context, name string) (model.WorkbookInfo, bool, error)
}

// workbookLoader is implemented by providers that read a whole workbook at once
type workbookLoader interface {
	LoadWorkbook(ctx context.Context, workbook string) (map[string]*model.SheetData, error)
}

// sheetLoadConcurrency bounds the sheets loaded at once from a provider
// without a workbook loader
const sheetLoadConcurrency = 4

// workbookManager owns the in-memory workbooks of an engine. Workbooks known
// only to the catalog are loaded on first reference. Dropped workbooks stay
// as tombstones so that the catalog does not bring them back.
type workbookManager struct {
	mu        sync.Mutex
	workbooks map[string]*model.Workbook
	loads     singleflight.Group

	catalog  WorkbookCatalog
	provider SheetDataProvider
	now      func() time.Time
	logger   *zap.Logger
}

func newWorkbookManager(catalog WorkbookCatalog, provider SheetDataProvider, now func() time.Time, logger *zap.Logger) *workbookManager {
	return &workbookManager{
		workbooks: make(map[string]*model.Workbook),
		catalog:   catalog,
		provider:  provider,
		now:       now,
		logger:    logger,
	}
}

// get returns the live workbook with the given name, loading it from the
// catalog if needed. ok is false when no such workbook exists. Concurrent
// first references share one load.
func (m *workbookManager) get(ctx context.Context, name string) (*model.Workbook, bool, error) {
	if wb, ok := m.cached(name); ok {
		return wb, !wb.Deleted, nil
	}
	if m.catalog == nil {
		return nil, false, nil
	}

	v, err, _ := m.loads.Do(name, func() (any, error) {
		if wb, ok := m.cached(name); ok {
			return wb, nil
		}
		info, ok, err := m.catalog.Lookup(ctx, name)
		if err != nil || !ok {
			return (*model.Workbook)(nil), err
		}
		wb, err := m.load(ctx, info)
		if err != nil {
			return (*model.Workbook)(nil), err
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		// a CREATE or DROP that ran during the load wins
		if existing, ok := m.workbooks[name]; ok {
			return existing, nil
		}
		m.workbooks[name] = wb
		return wb, nil
	})
	if err != nil {
		return nil, false, err
	}
	wb, _ := v.(*model.Workbook)
	if wb == nil {
		return nil, false, nil
	}
	return wb, !wb.Deleted, nil
}

func (m *workbookManager) cached(name string) (*model.Workbook, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wb, ok := m.workbooks[name]
	return wb, ok
}

// exists reports whether a live workbook has the name, in memory or in the catalog
func (m *workbookManager) exists(ctx context.Context, name string) (bool, error) {
	if wb, ok := m.cached(name); ok {
		return !wb.Deleted, nil
	}
	if m.catalog == nil {
		return false, nil
	}
	_, ok, err := m.catalog.Lookup(ctx, name)
	return ok, err
}

func (m *workbookManager) load(ctx context.Context, info model.WorkbookInfo) (*model.Workbook, error) {
	start := m.now()
	data, err := m.loadSheets(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("load workbook %s: %w", info.Name, err)
	}

	wb := model.NewWorkbook(info.Name, m.now())
	for _, name := range info.Sheets {
		d, ok := data[name]
		if !ok {
			continue
		}
		sheet := model.NewSheet(name, d.Columns)
		sheet.Rows = d.Rows
		sheet.HeaderRow = d.HeaderRow
		sheet.DataStartRow = d.DataStartRow
		wb.PutSheet(sheet)
	}
	m.logger.Info("workbook loaded",
		zap.String("workbook", info.Name),
		zap.String("location", info.Location),
		zap.Int("sheets", len(wb.Sheets)),
		zap.Duration("elapsed", m.now().Sub(start)))
	return wb, nil
}

func (m *workbookManager) loadSheets(ctx context.Context, info model.WorkbookInfo) (map[string]*model.SheetData, error) {
	if m.provider == nil {
		return map[string]*model.SheetData{}, nil
	}
	if loader, ok := m.provider.(workbookLoader); ok {
		return loader.LoadWorkbook(ctx, info.Name)
	}

	var mu sync.Mutex
	out := make(map[string]*model.SheetData, len(info.Sheets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sheetLoadConcurrency)
	for _, name := range info.Sheets {
		g.Go(func() error {
			d, err := m.provider.LoadSheet(gctx, info.Name, name)
			if err != nil {
				return fmt.Errorf("sheet %s: %w", name, err)
			}
			mu.Lock()
			out[name] = d
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// put stores a new workbook, replacing any earlier one of the same name
func (m *workbookManager) put(wb *model.Workbook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workbooks[wb.Name] = wb
}

// putSheet adds or replaces a sheet of a workbook. Sheet sets change under
// m.mu so that list never sees them half updated.
func (m *workbookManager) putSheet(wb *model.Workbook, sheet *model.Sheet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	sheet.ModifiedAt = now
	wb.PutSheet(sheet)
	wb.ModifiedAt = now
}

// dropSheet soft-deletes a sheet
func (m *workbookManager) dropSheet(wb *model.Workbook, sheet *model.Sheet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	sheet.Deleted = true
	sheet.DeletedAt = now
	wb.ModifiedAt = now
}

// drop soft-deletes a workbook and its sheets. A workbook known only to the
// catalog gets a tombstone.
func (m *workbookManager) drop(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	wb, ok := m.workbooks[name]
	if !ok {
		wb = model.NewWorkbook(name, now)
		m.workbooks[name] = wb
	}
	wb.Deleted = true
	wb.DeletedAt = now
	wb.ModifiedAt = now
	for _, s := range wb.Sheets {
		if !s.Deleted {
			s.Deleted = true
			s.DeletedAt = now
		}
	}
}

// list returns the live workbooks of memory and catalog, sorted by name.
// Catalog workbooks that are not loaded are described without loading them.
func (m *workbookManager) list(ctx context.Context) ([]model.WorkbookInfo, error) {
	var infos []model.WorkbookInfo
	if m.catalog != nil {
		var err error
		infos, err = m.catalog.Workbooks(ctx)
		if err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	byName := make(map[string]model.WorkbookInfo, len(infos)+len(m.workbooks))
	for _, info := range infos {
		byName[info.Name] = info
	}
	for name, wb := range m.workbooks {
		if wb.Deleted {
			delete(byName, name)
			continue
		}
		info := byName[name]
		info.Name = name
		info.Sheets = info.Sheets[:0:0]
		for _, s := range wb.ActiveSheets() {
			info.Sheets = append(info.Sheets, s.Name)
		}
		byName[name] = info
	}

	out := make([]model.WorkbookInfo, 0, len(byName))
	for _, info := range byName {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
