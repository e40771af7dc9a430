package index

// Choice is the index picked for a predicate. When Prefix > 0 the caller
// looks up the equality values of the first Prefix columns; otherwise the
// index serves a range over its single column.
type Choice struct {
	Index  *Index
	Prefix int
}

// Choose picks the index that best serves a conjunction of equality terms on
// eqCols and range terms on rangeCols. The index whose leading columns are
// most covered by equality terms wins, ties going to the earlier declared
// one. Failing that, the first single-column index with a range term is used.
func Choose(indexes []*Index, eqCols, rangeCols []string) (Choice, bool) {
	eq := make(map[string]bool, len(eqCols))
	for _, c := range eqCols {
		eq[c] = true
	}

	best := Choice{}
	for _, idx := range indexes {
		n := 0
		for _, col := range idx.columns {
			if !eq[col] {
				break
			}
			n++
		}
		if n > best.Prefix {
			best = Choice{Index: idx, Prefix: n}
		}
	}
	if best.Index != nil {
		return best, true
	}

	ranged := make(map[string]bool, len(rangeCols))
	for _, c := range rangeCols {
		ranged[c] = true
	}
	for _, idx := range indexes {
		if len(idx.columns) == 1 && ranged[idx.columns[0]] {
			return Choice{Index: idx}, true
		}
	}
	return Choice{}, false
}
