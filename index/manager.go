package index

import (
	"fmt"
	"sync"

	"github.com/nao1215/sheetsql/domain/model"
)

// DefaultRebuildFraction is the share of dirty rows that triggers a full rebuild
const DefaultRebuildFraction = 0.25

// Change describes one committed mutation of a sheet, in the numbering of the
// rows before the mutation.
type Change struct {
	// Appended is the number of rows added at the end of the sheet
	Appended int
	// Updated lists the positions of rewritten rows; OldRows holds their
	// previous contents in the same order.
	Updated []int
	OldRows [][]any
	// Deleted lists the positions of removed rows
	Deleted []int
}

// Size returns the number of rows the change touches
func (c Change) Size() int {
	return c.Appended + len(c.Updated) + len(c.Deleted)
}

// Manager owns the indexes of every sheet of an engine, kept per
// (workbook, sheet) in declaration order.
type Manager struct {
	mu              sync.RWMutex
	rebuildFraction float64
	sheets          map[string]map[string][]*Index
	rebuilds        int64
}

// NewManager creates an index manager. A fraction <= 0 selects
// DefaultRebuildFraction.
func NewManager(rebuildFraction float64) *Manager {
	if rebuildFraction <= 0 {
		rebuildFraction = DefaultRebuildFraction
	}
	return &Manager{
		rebuildFraction: rebuildFraction,
		sheets:          make(map[string]map[string][]*Index),
	}
}

// Indexes returns the indexes of a sheet in declaration order
func (m *Manager) Indexes(workbook, sheet string) []*Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Index(nil), m.sheets[workbook][sheet]...)
}

// Get returns one index by name
func (m *Manager) Get(workbook, sheet, name string) (*Index, bool) {
	for _, idx := range m.Indexes(workbook, sheet) {
		if idx.name == name {
			return idx, true
		}
	}
	return nil, false
}

// Create builds an index over s and registers it. The sheet's HasIndex and
// Column.Indexed flags are updated.
func (m *Manager) Create(workbook string, s *model.Sheet, name string, columns []string, unique bool) (*Index, error) {
	if _, exists := m.Get(workbook, s.Name, name); exists {
		return nil, fmt.Errorf("%w: %s on %s", ErrDuplicateIndex, name, s.Name)
	}
	idx, err := Build(name, s, columns, unique)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	byName, ok := m.sheets[workbook]
	if !ok {
		byName = make(map[string][]*Index)
		m.sheets[workbook] = byName
	}
	byName[s.Name] = append(byName[s.Name], idx)
	indexes := append([]*Index(nil), byName[s.Name]...)
	m.mu.Unlock()

	Annotate(s, indexes)
	return idx, nil
}

// Drop removes an index and refreshes the sheet flags
func (m *Manager) Drop(workbook string, s *model.Sheet, name string) error {
	m.mu.Lock()
	list := m.sheets[workbook][s.Name]
	found := -1
	for i, idx := range list {
		if idx.name == name {
			found = i
			break
		}
	}
	if found < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s on %s", ErrIndexNotFound, name, s.Name)
	}
	list = append(list[:found:found], list[found+1:]...)
	if len(list) == 0 {
		delete(m.sheets[workbook], s.Name)
	} else {
		m.sheets[workbook][s.Name] = list
	}
	m.mu.Unlock()

	Annotate(s, list)
	return nil
}

// DropSheet forgets every index of a sheet
func (m *Manager) DropSheet(workbook, sheet string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sheets[workbook], sheet)
}

// DropWorkbook forgets every index of a workbook
func (m *Manager) DropWorkbook(workbook string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sheets, workbook)
}

// CheckUnique verifies that the staged rows of a sheet satisfy every unique
// index declared on it.
func (m *Manager) CheckUnique(workbook, sheet string, rows [][]any) error {
	for _, idx := range m.Indexes(workbook, sheet) {
		if err := idx.CheckRows(rows); err != nil {
			return err
		}
	}
	return nil
}

// Apply brings the indexes of a sheet up to date after a committed change.
// rows are the sheet rows after the change. Each index is patched
// incrementally unless its dirty count would exceed the rebuild fraction, in
// which case it is rebuilt from rows.
func (m *Manager) Apply(workbook, sheet string, rows [][]any, ch Change) error {
	for _, idx := range m.Indexes(workbook, sheet) {
		if err := m.apply(idx, rows, ch); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) apply(idx *Index, rows [][]any, ch Change) error {
	if float64(idx.Dirty()+ch.Size()) > m.rebuildFraction*float64(len(rows)) {
		m.mu.Lock()
		m.rebuilds++
		m.mu.Unlock()
		return idx.Rebuild(rows)
	}

	patch := func() error {
		for i, pos := range ch.Updated {
			if err := idx.OnUpdate(pos, ch.OldRows[i], rows[pos]); err != nil {
				return err
			}
		}
		idx.OnDelete(ch.Deleted)
		if ch.Appended > 0 {
			start := len(rows) - ch.Appended
			if err := idx.OnInsert(start, rows[start:]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := patch(); err != nil {
		// a failed patch leaves the index half applied; start over from rows
		return idx.Rebuild(rows)
	}
	return nil
}

// Rebuilds returns how many full rebuilds Apply has performed
func (m *Manager) Rebuilds() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rebuilds
}

// Annotate sets the HasIndex flag of s and the Indexed flag of its columns
// from the given indexes.
func Annotate(s *model.Sheet, indexes []*Index) {
	indexed := make(map[string]bool)
	for _, idx := range indexes {
		for _, col := range idx.columns {
			indexed[col] = true
		}
	}
	s.HasIndex = len(indexes) > 0
	for i := range s.Columns {
		s.Columns[i].Indexed = indexed[s.Columns[i].Name]
	}
}
