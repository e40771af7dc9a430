package sheetsql

import (
	"sort"
	"sync"

	"github.com/nao1215/sheetsql/parser"
)

// lockSet names the locks one statement holds. Locks are always taken in
// the same order, workbook first and then sheets sorted by name, so two
// statements can never wait on each other.
type lockSet struct {
	workbook      string
	workbookWrite bool
	// sheets maps sheet names to true for a write lock
	sheets map[string]bool
}

// locksFor derives the locks of a statement running in workbook
func locksFor(stmt *parser.Statement, workbook string) lockSet {
	ls := lockSet{workbook: workbook, sheets: map[string]bool{}}
	switch stmt.Kind {
	case parser.KindCreateWorkbook, parser.KindDropWorkbook:
		ls.workbook = stmt.Name
		ls.workbookWrite = true
	case parser.KindUseWorkbook:
		ls.workbook = stmt.Name
	case parser.KindShowWorkbooks:
		ls.workbook = ""
	case parser.KindCreateSheet, parser.KindDropSheet:
		// the sheet set of the workbook changes
		ls.workbookWrite = true
	case parser.KindSelect, parser.KindShowSheets:
		for _, name := range stmt.TargetTables() {
			ls.sheets[name] = false
		}
	default:
		for _, name := range stmt.TargetTables() {
			ls.sheets[name] = false
		}
		ls.sheets[stmt.Table().Name] = true
	}
	return ls
}

// lockManager hands out per-workbook and per-sheet reader/writer locks
type lockManager struct {
	mu        sync.Mutex
	workbooks map[string]*sync.RWMutex
	sheets    map[string]*sync.RWMutex
}

func newLockManager() *lockManager {
	return &lockManager{
		workbooks: make(map[string]*sync.RWMutex),
		sheets:    make(map[string]*sync.RWMutex),
	}
}

func (m *lockManager) workbookLock(name string) *sync.RWMutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.workbooks[name]
	if !ok {
		l = &sync.RWMutex{}
		m.workbooks[name] = l
	}
	return l
}

func (m *lockManager) sheetLock(workbook, sheet string) *sync.RWMutex {
	key := workbook + "\x00" + sheet
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.sheets[key]
	if !ok {
		l = &sync.RWMutex{}
		m.sheets[key] = l
	}
	return l
}

// acquire blocks until every lock of the set is held and returns the
// function releasing them in reverse order.
func (m *lockManager) acquire(ls lockSet) (release func()) {
	if ls.workbook == "" {
		return func() {}
	}
	l := m.workbookLock(ls.workbook)
	if ls.workbookWrite {
		l.Lock()
	} else {
		l.RLock()
	}
	releaseSheets := m.lockSheets(ls.workbook, ls.sheets)
	return func() {
		releaseSheets()
		if ls.workbookWrite {
			l.Unlock()
		} else {
			l.RUnlock()
		}
	}
}

// lockSheets takes sheet locks in name order. The caller must hold the
// workbook lock.
func (m *lockManager) lockSheets(workbook string, sheets map[string]bool) (release func()) {
	names := make([]string, 0, len(sheets))
	for name := range sheets {
		names = append(names, name)
	}
	sort.Strings(names)

	unlocks := make([]func(), 0, len(names))
	for _, name := range names {
		l := m.sheetLock(workbook, name)
		if sheets[name] {
			l.Lock()
			unlocks = append(unlocks, l.Unlock)
		} else {
			l.RLock()
			unlocks = append(unlocks, l.RUnlock)
		}
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}
