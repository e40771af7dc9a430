package sheetsql

import (
	"sort"

	"github.com/nao1215/sheetsql/domain/model"
	"github.com/nao1215/sheetsql/index"
	"github.com/nao1215/sheetsql/parser"
)

// bounds collects the range terms on one column
type bounds struct {
	lo, hi                   any
	loInclusive, hiInclusive bool
}

// accessPlan is what the top-level conjunction of a WHERE says about single
// columns of one sheet.
type accessPlan struct {
	eqCols    []string
	eq        map[string]any
	rangeCols []string
	ranges    map[string]*bounds
}

var flippedOps = map[string]string{"=": "=", "<": ">", "<=": ">=", ">": "<", ">=": "<="}

// conjuncts flattens the top-level AND terms of e
func conjuncts(e parser.Expr) []parser.Expr {
	if b, ok := e.(*parser.BinaryExpr); ok && b.Op == "AND" {
		return append(conjuncts(b.Left), conjuncts(b.Right)...)
	}
	if e == nil {
		return nil
	}
	return []parser.Expr{e}
}

// sheetColumn returns the column named by e if it is a reference to the
// sheet known as refName.
func sheetColumn(e parser.Expr, sheet *model.Sheet, refName string) (string, bool) {
	ref, ok := e.(*parser.ColumnRef)
	if !ok || (ref.Table != "" && ref.Table != refName) {
		return "", false
	}
	return ref.Name, sheet.ColumnIndex(ref.Name) >= 0
}

// planAccess extracts `column op constant` and `column BETWEEN constant AND
// constant` terms. Terms comparing with NULL are skipped since they never
// hold.
func planAccess(where parser.Expr, sheet *model.Sheet, refName string, ev *evaluator) (accessPlan, error) {
	p := accessPlan{eq: map[string]any{}, ranges: map[string]*bounds{}}

	constant := func(e parser.Expr) (any, bool, error) {
		if !isConstant(e) {
			return nil, false, nil
		}
		v, err := ev.eval(e, rowContext{})
		if err != nil || v == nil {
			return nil, false, err
		}
		return v, true, nil
	}

	for _, term := range conjuncts(where) {
		switch x := term.(type) {
		case *parser.BinaryExpr:
			op, ok := flippedOps[x.Op]
			if !ok {
				continue
			}
			col, isCol := sheetColumn(x.Left, sheet, refName)
			other := x.Right
			if !isCol {
				if col, isCol = sheetColumn(x.Right, sheet, refName); !isCol {
					continue
				}
				other = x.Left
			} else {
				op = x.Op
			}
			v, ok, err := constant(other)
			if err != nil {
				return p, err
			}
			if !ok {
				continue
			}
			p.add(col, op, v)
		case *parser.BetweenExpr:
			if x.Not {
				continue
			}
			col, isCol := sheetColumn(x.Expr, sheet, refName)
			if !isCol {
				continue
			}
			lo, okLo, err := constant(x.Low)
			if err != nil {
				return p, err
			}
			hi, okHi, err := constant(x.High)
			if err != nil {
				return p, err
			}
			if okLo && okHi {
				p.add(col, ">=", lo)
				p.add(col, "<=", hi)
			}
		}
	}
	return p, nil
}

func (p *accessPlan) add(col, op string, v any) {
	if op == "=" {
		if _, seen := p.eq[col]; !seen {
			p.eq[col] = v
			p.eqCols = append(p.eqCols, col)
		}
		return
	}
	b, ok := p.ranges[col]
	if !ok {
		b = &bounds{}
		p.ranges[col] = b
		p.rangeCols = append(p.rangeCols, col)
	}
	switch op {
	case ">", ">=":
		if b.lo == nil {
			b.lo, b.loInclusive = v, op == ">="
		}
	case "<", "<=":
		if b.hi == nil {
			b.hi, b.hiInclusive = v, op == "<="
		}
	}
}

// candidates narrows the rows of a sheet with an index. It returns the
// candidate positions in storage order, or ok false when no index applies
// and the sheet must be scanned. Candidates are a superset of the matching
// rows; the caller still evaluates the whole WHERE on each of them.
func candidates(indexes []*index.Index, where parser.Expr, sheet *model.Sheet, refName string, ev *evaluator) (positions []int, ok bool, err error) {
	if len(indexes) == 0 || where == nil {
		return nil, false, nil
	}
	p, err := planAccess(where, sheet, refName, ev)
	if err != nil {
		return nil, false, err
	}
	choice, ok := index.Choose(indexes, p.eqCols, p.rangeCols)
	if !ok {
		return nil, false, nil
	}

	if choice.Prefix > 0 {
		cols := choice.Index.Columns()[:choice.Prefix]
		prefix := make([]any, len(cols))
		for i, c := range cols {
			prefix[i] = p.eq[c]
		}
		positions = choice.Index.Lookup(prefix)
	} else {
		b := p.ranges[choice.Index.Columns()[0]]
		positions = choice.Index.Range(b.lo, b.loInclusive, b.hi, b.hiInclusive)
	}
	sort.Ints(positions)
	return positions, true, nil
}
