package sheetsql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/sheetsql/parser"
)

func TestLocksFor(t *testing.T) {
	t.Parallel()

	p := parser.New(nil)
	tests := []struct {
		name          string
		sql           string
		workbook      string
		workbookWrite bool
		sheets        map[string]bool
	}{
		{
			name:     "select reads every source",
			sql:      `SELECT * FROM a JOIN b ON a.id = b.id WHERE a.x IN (SELECT x FROM c)`,
			workbook: "w",
			sheets:   map[string]bool{"a": false, "b": false, "c": false},
		},
		{
			name:     "update writes its target and reads subqueries",
			sql:      `UPDATE a SET x = (SELECT MAX(y) FROM b)`,
			workbook: "w",
			sheets:   map[string]bool{"a": true, "b": false},
		},
		{
			name:     "insert writes its target",
			sql:      `INSERT INTO a VALUES (1)`,
			workbook: "w",
			sheets:   map[string]bool{"a": true},
		},
		{
			name:     "delete writes its target",
			sql:      `DELETE FROM a WHERE x = 1`,
			workbook: "w",
			sheets:   map[string]bool{"a": true},
		},
		{
			name:     "create index writes the sheet",
			sql:      `CREATE INDEX i ON a (x)`,
			workbook: "w",
			sheets:   map[string]bool{"a": true},
		},
		{
			name:          "create sheet writes the workbook",
			sql:           `CREATE SHEET a (x INT)`,
			workbook:      "w",
			workbookWrite: true,
			sheets:        map[string]bool{},
		},
		{
			name:          "drop workbook locks the named workbook",
			sql:           `DROP WORKBOOK other`,
			workbook:      "other",
			workbookWrite: true,
			sheets:        map[string]bool{},
		},
		{
			name:     "use reads the named workbook",
			sql:      `USE other`,
			workbook: "other",
			sheets:   map[string]bool{},
		},
		{
			name:   "show workbooks takes no lock",
			sql:    `SHOW WORKBOOKS`,
			sheets: map[string]bool{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stmt := p.Parse(tt.sql)
			require.True(t, stmt.Success, stmt.Error)
			ls := locksFor(stmt, "w")
			assert.Equal(t, tt.workbook, ls.workbook)
			assert.Equal(t, tt.workbookWrite, ls.workbookWrite)
			assert.Equal(t, tt.sheets, ls.sheets)
		})
	}
}

// acquired reports whether acquire(ls) completes within wait
func acquired(m *lockManager, ls lockSet, wait time.Duration) (bool, func()) {
	got := make(chan func(), 1)
	go func() { got <- m.acquire(ls) }()
	select {
	case release := <-got:
		return true, release
	case <-time.After(wait):
		return false, func() { (<-got)() }
	}
}

func TestLockManager(t *testing.T) {
	t.Parallel()

	read := func(sheets ...string) lockSet {
		ls := lockSet{workbook: "w", sheets: map[string]bool{}}
		for _, s := range sheets {
			ls.sheets[s] = false
		}
		return ls
	}
	write := func(sheet string) lockSet {
		return lockSet{workbook: "w", sheets: map[string]bool{sheet: true}}
	}

	t.Run("readers share a sheet", func(t *testing.T) {
		t.Parallel()

		m := newLockManager()
		release := m.acquire(read("a"))
		ok, again := acquired(m, read("a", "b"), time.Second)
		assert.True(t, ok)
		again()
		release()
	})

	t.Run("a writer excludes readers until released", func(t *testing.T) {
		t.Parallel()

		m := newLockManager()
		release := m.acquire(write("a"))
		ok, pending := acquired(m, read("a"), 50*time.Millisecond)
		assert.False(t, ok)
		release()
		pending()
	})

	t.Run("writers of different sheets do not wait", func(t *testing.T) {
		t.Parallel()

		m := newLockManager()
		release := m.acquire(write("a"))
		ok, other := acquired(m, write("b"), time.Second)
		assert.True(t, ok)
		other()
		release()
	})

	t.Run("a workbook writer excludes sheet readers", func(t *testing.T) {
		t.Parallel()

		m := newLockManager()
		release := m.acquire(lockSet{workbook: "w", workbookWrite: true, sheets: map[string]bool{}})
		ok, pending := acquired(m, read("a"), 50*time.Millisecond)
		assert.False(t, ok)
		release()
		pending()

		ok, other := acquired(m, lockSet{workbook: "x", workbookWrite: true}, time.Second)
		assert.True(t, ok, "other workbooks are independent")
		other()
	})

	t.Run("no workbook takes no lock", func(t *testing.T) {
		t.Parallel()

		m := newLockManager()
		release := m.acquire(lockSet{})
		release()
		assert.Empty(t, m.workbooks)
	})
}
