// Package index implements secondary indexes over sheet rows.
//
// An index maps the tuple of its member column values to the positions of the
// rows holding that tuple. Positions are row indexes into model.Sheet.Rows, so
// deletes shift the positions of every later row.
package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nao1215/sheetsql/domain/model"
)

var (
	// ErrUniqueViolation is returned when a unique index would hold a tuple twice
	ErrUniqueViolation = errors.New("unique index violation")
	// ErrUnknownColumn is returned when an index names a column the sheet lacks
	ErrUnknownColumn = errors.New("unknown column")
	// ErrDuplicateIndex is returned when an index name is already taken on a sheet
	ErrDuplicateIndex = errors.New("index already exists")
	// ErrIndexNotFound is returned when dropping an unknown index
	ErrIndexNotFound = errors.New("index not found")
)

// Type distinguishes single-column from composite indexes
type Type int

const (
	// TypeSingle indexes one column
	TypeSingle Type = iota
	// TypeComposite indexes an ordered list of columns
	TypeComposite
)

// String returns the type name
func (t Type) String() string {
	if t == TypeComposite {
		return "COMPOSITE"
	}
	return "SINGLE"
}

// bucket holds every row whose tuple has one equality key. lead keeps the
// leading column value of each row, parallel to rows, for range scans.
type bucket struct {
	values []any
	rows   []int
	lead   []any
}

// Index is a secondary index over one sheet
type Index struct {
	mu        sync.RWMutex
	name      string
	columns   []string
	positions []int
	unique    bool
	buckets   map[string]*bucket
	rowCount  int
	dirty     int
}

// Build creates an index over the current rows of sheet.
func Build(name string, sheet *model.Sheet, columns []string, unique bool) (*Index, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("index %s: no columns", name)
	}
	positions := make([]int, len(columns))
	for i, col := range columns {
		pos := sheet.ColumnIndex(col)
		if pos < 0 {
			return nil, fmt.Errorf("index %s: %w: %s", name, ErrUnknownColumn, col)
		}
		positions[i] = pos
	}
	idx := &Index{
		name:      name,
		columns:   append([]string(nil), columns...),
		positions: positions,
		unique:    unique,
	}
	if err := idx.rebuild(sheet.Rows); err != nil {
		return nil, err
	}
	return idx, nil
}

// Name returns the index name
func (x *Index) Name() string { return x.name }

// Columns returns the member columns in index order
func (x *Index) Columns() []string { return append([]string(nil), x.columns...) }

// Unique reports whether the index rejects duplicate tuples
func (x *Index) Unique() bool { return x.unique }

// Type returns TypeSingle or TypeComposite
func (x *Index) Type() Type {
	if len(x.columns) > 1 {
		return TypeComposite
	}
	return TypeSingle
}

// Dirty returns the number of rows patched since the last full rebuild
func (x *Index) Dirty() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dirty
}

// Len returns the number of indexed rows
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.rowCount
}

func (x *Index) tuple(row []any) []any {
	t := make([]any, len(x.positions))
	for i, pos := range x.positions {
		if pos < len(row) {
			t[i] = row[pos]
		}
	}
	return t
}

func hasNull(tuple []any) bool {
	for _, v := range tuple {
		if v == nil {
			return true
		}
	}
	return false
}

// Rebuild replaces the index contents with the given rows
func (x *Index) Rebuild(rows [][]any) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.rebuild(rows)
}

func (x *Index) rebuild(rows [][]any) error {
	buckets := make(map[string]*bucket, len(rows))
	for pos, row := range rows {
		t := x.tuple(row)
		key := model.TupleKey(t)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{values: t}
			buckets[key] = b
		} else if x.unique && !hasNull(t) {
			return x.violation(t)
		}
		b.rows = append(b.rows, pos)
		b.lead = append(b.lead, t[0])
	}
	x.buckets = buckets
	x.rowCount = len(rows)
	x.dirty = 0
	return nil
}

func (x *Index) violation(tuple []any) error {
	return fmt.Errorf("%w: index %s already holds %v", ErrUniqueViolation, x.name, tuple)
}

// CheckRows verifies that rows satisfy the uniqueness constraint without
// modifying the index. Non-unique indexes accept anything.
func (x *Index) CheckRows(rows [][]any) error {
	if !x.unique {
		return nil
	}
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		t := x.tuple(row)
		if hasNull(t) {
			continue
		}
		key := model.TupleKey(t)
		if _, dup := seen[key]; dup {
			return x.violation(t)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Lookup returns the positions of rows whose leading columns equal prefix,
// in storage order. prefix may be shorter than the column list. A NULL in
// prefix matches nothing.
func (x *Index) Lookup(prefix []any) []int {
	if len(prefix) == 0 || len(prefix) > len(x.columns) || hasNull(prefix) {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(prefix) == len(x.columns) {
		b, ok := x.buckets[model.TupleKey(prefix)]
		if !ok {
			return nil
		}
		return append([]int(nil), b.rows...)
	}

	var out []int
	for _, b := range x.buckets {
		if prefixEqual(b.values, prefix) {
			out = append(out, b.rows...)
		}
	}
	sort.Ints(out)
	return out
}

func prefixEqual(values, prefix []any) bool {
	for i, p := range prefix {
		if !model.Equal(values[i], p) {
			return false
		}
	}
	return true
}

// Range returns the positions of rows whose leading column lies between lo
// and hi, in storage order. A nil bound is open. NULL cells never match.
func (x *Index) Range(lo any, loInclusive bool, hi any, hiInclusive bool) []int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []int
	for _, b := range x.buckets {
		for i, v := range b.lead {
			if inRange(v, lo, loInclusive, hi, hiInclusive) {
				out = append(out, b.rows[i])
			}
		}
	}
	sort.Ints(out)
	return out
}

func inRange(v, lo any, loInclusive bool, hi any, hiInclusive bool) bool {
	if v == nil {
		return false
	}
	if lo != nil {
		c, ok := model.Compare(v, lo)
		if !ok || c < 0 || (c == 0 && !loInclusive) {
			return false
		}
	}
	if hi != nil {
		c, ok := model.Compare(v, hi)
		if !ok || c > 0 || (c == 0 && !hiInclusive) {
			return false
		}
	}
	return true
}

// OnInsert indexes rows appended at positions start, start+1, ...
// Nothing is applied when a row would violate uniqueness.
func (x *Index) OnInsert(start int, rows [][]any) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.unique {
		pending := make(map[string]struct{}, len(rows))
		for _, row := range rows {
			t := x.tuple(row)
			if hasNull(t) {
				continue
			}
			key := model.TupleKey(t)
			if _, taken := x.buckets[key]; taken {
				return x.violation(t)
			}
			if _, dup := pending[key]; dup {
				return x.violation(t)
			}
			pending[key] = struct{}{}
		}
	}
	for i, row := range rows {
		x.add(start+i, x.tuple(row))
	}
	x.rowCount += len(rows)
	x.dirty += len(rows)
	return nil
}

// add inserts pos keeping bucket rows sorted
func (x *Index) add(pos int, t []any) {
	key := model.TupleKey(t)
	b, ok := x.buckets[key]
	if !ok {
		b = &bucket{values: t}
		x.buckets[key] = b
	}
	i := sort.SearchInts(b.rows, pos)
	b.rows = append(b.rows, 0)
	copy(b.rows[i+1:], b.rows[i:])
	b.rows[i] = pos
	b.lead = append(b.lead, nil)
	copy(b.lead[i+1:], b.lead[i:])
	b.lead[i] = t[0]
}

func (x *Index) remove(pos int, t []any) {
	key := model.TupleKey(t)
	b, ok := x.buckets[key]
	if !ok {
		return
	}
	i := sort.SearchInts(b.rows, pos)
	if i == len(b.rows) || b.rows[i] != pos {
		return
	}
	b.rows = append(b.rows[:i], b.rows[i+1:]...)
	b.lead = append(b.lead[:i], b.lead[i+1:]...)
	if len(b.rows) == 0 {
		delete(x.buckets, key)
	}
}

// OnUpdate re-indexes the row at pos from oldRow to newRow.
func (x *Index) OnUpdate(pos int, oldRow, newRow []any) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	oldT, newT := x.tuple(oldRow), x.tuple(newRow)
	oldKey, newKey := model.TupleKey(oldT), model.TupleKey(newT)
	if oldKey == newKey {
		// same bucket; refresh the stored value in case its text form changed
		if b, ok := x.buckets[oldKey]; ok {
			if i := sort.SearchInts(b.rows, pos); i < len(b.rows) && b.rows[i] == pos {
				b.lead[i] = newT[0]
			}
		}
		x.dirty++
		return nil
	}
	if x.unique && !hasNull(newT) {
		if _, taken := x.buckets[newKey]; taken {
			return x.violation(newT)
		}
	}
	x.remove(pos, oldT)
	x.add(pos, newT)
	x.dirty++
	return nil
}

// OnDelete removes the rows at the given positions (old numbering) and shifts
// the positions of the remaining rows down.
func (x *Index) OnDelete(deleted []int) {
	if len(deleted) == 0 {
		return
	}
	sorted := append([]int(nil), deleted...)
	sort.Ints(sorted)

	x.mu.Lock()
	defer x.mu.Unlock()

	shift := func(pos int) (int, bool) {
		n := sort.SearchInts(sorted, pos)
		if n < len(sorted) && sorted[n] == pos {
			return 0, false
		}
		return pos - n, true
	}
	for key, b := range x.buckets {
		rows, lead := b.rows[:0], b.lead[:0]
		for i, pos := range b.rows {
			if np, keep := shift(pos); keep {
				rows = append(rows, np)
				lead = append(lead, b.lead[i])
			}
		}
		b.rows, b.lead = rows, lead
		if len(rows) == 0 {
			delete(x.buckets, key)
		}
	}
	x.rowCount -= len(sorted)
	x.dirty += len(sorted)
}

// NeedsRebuild reports whether the rows patched since the last rebuild exceed
// fraction of totalRows.
func (x *Index) NeedsRebuild(totalRows int, fraction float64) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.dirty == 0 {
		return false
	}
	return float64(x.dirty) > fraction*float64(totalRows)
}
