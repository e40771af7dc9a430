package model

import (
	"fmt"
	"regexp"
	"time"
)

// namePattern restricts workbook, sheet and index names. Cache keys use ':' and
// ',' as separators, so neither may appear in a name.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// ValidateName checks a workbook, sheet or index name.
func ValidateName(kind, name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %s %q", ErrInvalidName, kind, name)
	}
	return nil
}

// Column describes one column of a sheet.
type Column struct {
	Name     string
	Position int
	Type     DataType
	Nullable bool
	// Format is an optional display pattern, e.g. a date format.
	Format  string
	Indexed bool
}

// Sheet is a table-equivalent ordered row set within a workbook.
// Row identity is the position in Rows.
type Sheet struct {
	Name         string
	Columns      []Column
	HeaderRow    int
	DataStartRow int
	Rows         [][]any
	HasIndex     bool
	Deleted      bool
	DeletedAt    time.Time
	ModifiedAt   time.Time
}

// NewSheet creates an empty sheet with the given columns.
func NewSheet(name string, columns []Column) *Sheet {
	for i := range columns {
		columns[i].Position = i
	}
	return &Sheet{
		Name:         name,
		Columns:      columns,
		HeaderRow:    0,
		DataStartRow: 1,
		Rows:         [][]any{},
	}
}

// RowCount returns the number of data rows
func (s *Sheet) RowCount() int {
	return len(s.Rows)
}

// ColumnIndex returns the position of the named column or -1.
func (s *Sheet) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in position order
func (s *Sheet) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Clone copies the sheet so that rows can be staged without touching the
// original. Cell values are immutable and shared.
func (s *Sheet) Clone() *Sheet {
	clone := *s
	clone.Columns = append([]Column(nil), s.Columns...)
	clone.Rows = make([][]any, len(s.Rows))
	for i, row := range s.Rows {
		clone.Rows[i] = append([]any(nil), row...)
	}
	return &clone
}

// Data returns the provider-facing view of the sheet.
func (s *Sheet) Data() *SheetData {
	return &SheetData{
		Columns:      s.Columns,
		Rows:         s.Rows,
		HeaderRow:    s.HeaderRow,
		DataStartRow: s.DataStartRow,
	}
}

// Workbook is a database-equivalent container of sheets.
type Workbook struct {
	Name       string
	Sheets     []*Sheet
	CreatedAt  time.Time
	ModifiedAt time.Time
	Deleted    bool
	DeletedAt  time.Time
	Options    map[string]string
}

// NewWorkbook creates an empty workbook.
func NewWorkbook(name string, now time.Time) *Workbook {
	return &Workbook{
		Name:       name,
		CreatedAt:  now,
		ModifiedAt: now,
		Options:    map[string]string{},
	}
}

// Sheet returns the live (not dropped) sheet with the given name.
func (w *Workbook) Sheet(name string) (*Sheet, bool) {
	for _, s := range w.Sheets {
		if s.Name == name && !s.Deleted {
			return s, true
		}
	}
	return nil, false
}

// PutSheet replaces the sheet with the same name, dropped or not, or appends it.
func (w *Workbook) PutSheet(sheet *Sheet) {
	for i, s := range w.Sheets {
		if s.Name == sheet.Name {
			w.Sheets[i] = sheet
			return
		}
	}
	w.Sheets = append(w.Sheets, sheet)
}

// ActiveSheets returns the sheets that have not been dropped, in declaration order.
func (w *Workbook) ActiveSheets() []*Sheet {
	sheets := make([]*Sheet, 0, len(w.Sheets))
	for _, s := range w.Sheets {
		if !s.Deleted {
			sheets = append(sheets, s)
		}
	}
	return sheets
}

// SheetData is the row and column payload exchanged with a sheet data provider.
type SheetData struct {
	Columns      []Column
	Rows         [][]any
	HeaderRow    int
	DataStartRow int
}

// WorkbookInfo describes a workbook known to a catalog.
type WorkbookInfo struct {
	Name string
	// Location is where the catalog keeps the workbook, e.g. a file path.
	Location string
	Format   string
	Sheets   []string
}
