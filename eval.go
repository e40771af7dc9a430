package sheetsql

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/nao1215/sheetsql/domain/model"
	"github.com/nao1215/sheetsql/function"
	"github.com/nao1215/sheetsql/parser"
)

// column is one column of a relation. source is the name the originating
// sheet or derived table is referred to by.
type column struct {
	source string
	name   string
	typ    model.DataType
}

// relation is an ordered row set with a column layout
type relation struct {
	columns []column
	rows    [][]any
}

func sheetRelation(sheet *model.Sheet, refName string) *relation {
	cols := make([]column, len(sheet.Columns))
	for i, c := range sheet.Columns {
		cols[i] = column{source: refName, name: c.Name, typ: c.Type}
	}
	return &relation{columns: cols, rows: sheet.Rows}
}

// resolve finds the position of a column reference
func resolve(columns []column, ref *parser.ColumnRef) (int, error) {
	found := -1
	for i, c := range columns {
		if c.name != ref.Name || (ref.Table != "" && c.source != ref.Table) {
			continue
		}
		if found >= 0 {
			return -1, fmt.Errorf("%w: column %s is ambiguous", ErrValidation, ref)
		}
		found = i
	}
	if found < 0 {
		return -1, fmt.Errorf("%w: unknown column %s", ErrValidation, ref)
	}
	return found, nil
}

// rowContext is what an expression is evaluated against. aggs holds the
// aggregate values of the current group and is nil outside grouping.
type rowContext struct {
	row  []any
	aggs map[*parser.FuncCall]any
}

// subqueryRunner executes a nested SELECT
type subqueryRunner func(stmt *parser.Statement) (*relation, error)

// evaluator evaluates expressions over rows of one column layout. An
// evaluator is used by a single goroutine.
type evaluator struct {
	registry  *function.Registry
	columns   []column
	positions map[*parser.ColumnRef]int

	stmt       *parser.Statement
	run        subqueryRunner
	subResults map[string]*relation

	likes map[string]*regexp.Regexp
}

func newEvaluator(registry *function.Registry, columns []column, stmt *parser.Statement, run subqueryRunner) *evaluator {
	return &evaluator{
		registry:   registry,
		columns:    columns,
		positions:  make(map[*parser.ColumnRef]int),
		stmt:       stmt,
		run:        run,
		subResults: make(map[string]*relation),
		likes:      make(map[string]*regexp.Regexp),
	}
}

// withColumns returns an evaluator over another layout that shares the
// subquery results and pattern cache.
func (ev *evaluator) withColumns(columns []column) *evaluator {
	clone := *ev
	clone.columns = columns
	clone.positions = make(map[*parser.ColumnRef]int)
	return &clone
}

// subquery runs an uncorrelated subquery once per statement execution
func (ev *evaluator) subquery(key string) (*relation, error) {
	if rel, ok := ev.subResults[key]; ok {
		return rel, nil
	}
	sub, ok := ev.stmt.Subqueries[key]
	if !ok || ev.run == nil {
		return nil, fmt.Errorf("%w: subquery %s is not available", ErrExecution, key)
	}
	rel, err := ev.run(sub)
	if err != nil {
		return nil, err
	}
	ev.subResults[key] = rel
	return rel, nil
}

// predicate evaluates a condition; NULL and false both reject the row
func (ev *evaluator) predicate(e parser.Expr, rc rowContext) (bool, error) {
	if e == nil {
		return true, nil
	}
	v, err := ev.eval(e, rc)
	if err != nil {
		return false, err
	}
	ok, known := model.Truthy(v)
	return ok && known, nil
}

func (ev *evaluator) eval(e parser.Expr, rc rowContext) (any, error) {
	switch x := e.(type) {
	case *parser.Literal:
		return x.Value, nil
	case *parser.ColumnRef:
		pos, ok := ev.positions[x]
		if !ok {
			var err error
			if pos, err = resolve(ev.columns, x); err != nil {
				return nil, err
			}
			ev.positions[x] = pos
		}
		if pos >= len(rc.row) {
			return nil, nil
		}
		return rc.row[pos], nil
	case *parser.FuncCall:
		return ev.call(x, rc)
	case *parser.BinaryExpr:
		return ev.binary(x, rc)
	case *parser.UnaryExpr:
		return ev.unary(x, rc)
	case *parser.IsNullExpr:
		v, err := ev.eval(x.Expr, rc)
		if err != nil {
			return nil, err
		}
		return (v == nil) != x.Not, nil
	case *parser.LikeExpr:
		return ev.like(x, rc)
	case *parser.InExpr:
		return ev.in(x, rc)
	case *parser.BetweenExpr:
		return ev.between(x, rc)
	case *parser.ExistsExpr:
		rel, err := ev.subquery(x.Subquery)
		if err != nil {
			return nil, err
		}
		return (len(rel.rows) > 0) != x.Not, nil
	case *parser.SubqueryExpr:
		rel, err := ev.subquery(x.Subquery)
		if err != nil {
			return nil, err
		}
		if len(rel.columns) != 1 {
			return nil, fmt.Errorf("%w: scalar subquery returns %d columns", ErrValidation, len(rel.columns))
		}
		switch len(rel.rows) {
		case 0:
			return nil, nil
		case 1:
			return rel.rows[0][0], nil
		default:
			return nil, fmt.Errorf("%w: scalar subquery returns %d rows", ErrExecution, len(rel.rows))
		}
	case *parser.CaseExpr:
		return ev.caseExpr(x, rc)
	default:
		return nil, fmt.Errorf("%w: unsupported expression %T", ErrExecution, e)
	}
}

func (ev *evaluator) call(x *parser.FuncCall, rc rowContext) (any, error) {
	if x.Aggregate {
		if rc.aggs == nil {
			return nil, fmt.Errorf("%w: aggregate %s is not allowed here", ErrValidation, x.Name)
		}
		return rc.aggs[x], nil
	}
	fn, ok := ev.registry.Lookup(x.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", ErrValidation, function.ErrUnknownFunction, x.Name)
	}
	args := make([]any, len(x.Args))
	for i, a := range x.Args {
		v, err := ev.eval(a, rc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := fn.Call(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	return v, nil
}

func (ev *evaluator) binary(x *parser.BinaryExpr, rc rowContext) (any, error) {
	left, err := ev.eval(x.Left, rc)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case "AND":
		lv, lk := model.Truthy(left)
		if lk && !lv {
			return false, nil
		}
		right, err := ev.eval(x.Right, rc)
		if err != nil {
			return nil, err
		}
		rv, rk := model.Truthy(right)
		if rk && !rv {
			return false, nil
		}
		if lk && rk {
			return true, nil
		}
		return nil, nil
	case "OR":
		lv, lk := model.Truthy(left)
		if lk && lv {
			return true, nil
		}
		right, err := ev.eval(x.Right, rc)
		if err != nil {
			return nil, err
		}
		rv, rk := model.Truthy(right)
		if rk && rv {
			return true, nil
		}
		if lk && rk {
			return false, nil
		}
		return nil, nil
	}

	right, err := ev.eval(x.Right, rc)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case "=", "!=", "<", "<=", ">", ">=":
		return compare(x.Op, left, right), nil
	case "||":
		if left == nil || right == nil {
			return nil, nil
		}
		return model.Text(left) + model.Text(right), nil
	default:
		return arithmetic(x.Op, left, right)
	}
}

// compare applies a comparison operator; NULL operands yield NULL
func compare(op string, left, right any) any {
	c, ok := model.Compare(left, right)
	if !ok {
		return nil
	}
	switch op {
	case "=":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	default:
		return c >= 0
	}
}

// intOperand returns the exact integer held by an int64 or integer text
func intOperand(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case string:
		if strings.ContainsAny(x, ".eE") {
			return 0, false
		}
		return model.ToInt(strings.TrimSpace(x))
	}
	return 0, false
}

func arithmetic(op string, left, right any) (any, error) {
	if left == nil || right == nil {
		return nil, nil
	}
	lf, lok := model.ToFloat(left)
	rf, rok := model.ToFloat(right)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: operator %s needs numeric operands, got %q and %q",
			ErrExecution, op, model.Text(left), model.Text(right))
	}

	li, lint := intOperand(left)
	ri, rint := intOperand(right)
	if lint && rint {
		switch op {
		case "+":
			if s := li + ri; (s > li) == (ri > 0) {
				return s, nil
			}
		case "-":
			if d := li - ri; (d < li) == (ri > 0) {
				return d, nil
			}
		case "*":
			if li == 0 || ri == 0 {
				return int64(0), nil
			}
			if p := li * ri; p/ri == li && !(li == -1 && ri == math.MinInt64) && !(ri == -1 && li == math.MinInt64) {
				return p, nil
			}
		case "%":
			if ri == 0 {
				return nil, nil
			}
			return li % ri, nil
		}
	}

	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, nil
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, nil
		}
		return math.Mod(lf, rf), nil
	default:
		return nil, fmt.Errorf("%w: unknown operator %s", ErrExecution, op)
	}
}

func (ev *evaluator) unary(x *parser.UnaryExpr, rc rowContext) (any, error) {
	v, err := ev.eval(x.Operand, rc)
	if err != nil {
		return nil, err
	}
	if x.Op == "NOT" {
		b, known := model.Truthy(v)
		if !known {
			return nil, nil
		}
		return !b, nil
	}

	if v == nil {
		return nil, nil
	}
	if i, ok := intOperand(v); ok && i != math.MinInt64 {
		return -i, nil
	}
	if f, ok := model.ToFloat(v); ok {
		return -f, nil
	}
	return nil, fmt.Errorf("%w: cannot negate %q", ErrExecution, model.Text(v))
}

func (ev *evaluator) like(x *parser.LikeExpr, rc rowContext) (any, error) {
	v, err := ev.eval(x.Expr, rc)
	if err != nil {
		return nil, err
	}
	p, err := ev.eval(x.Pattern, rc)
	if err != nil {
		return nil, err
	}
	if v == nil || p == nil {
		return nil, nil
	}
	pattern := model.Text(p)
	re, ok := ev.likes[pattern]
	if !ok {
		re = likePattern(pattern)
		ev.likes[pattern] = re
	}
	return re.MatchString(model.Text(v)) != x.Not, nil
}

// likePattern translates a LIKE pattern: % matches any run of characters
// and _ matches exactly one.
func likePattern(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(`.*`)
		case '_':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)
	return regexp.MustCompile(b.String())
}

func (ev *evaluator) in(x *parser.InExpr, rc rowContext) (any, error) {
	v, err := ev.eval(x.Expr, rc)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}

	var candidates []any
	if x.Subquery != "" {
		rel, err := ev.subquery(x.Subquery)
		if err != nil {
			return nil, err
		}
		if len(rel.columns) != 1 {
			return nil, fmt.Errorf("%w: IN subquery returns %d columns", ErrValidation, len(rel.columns))
		}
		candidates = make([]any, len(rel.rows))
		for i, row := range rel.rows {
			candidates[i] = row[0]
		}
	} else {
		candidates = make([]any, len(x.List))
		for i, item := range x.List {
			if candidates[i], err = ev.eval(item, rc); err != nil {
				return nil, err
			}
		}
	}

	sawNull := false
	for _, c := range candidates {
		if c == nil {
			sawNull = true
			continue
		}
		if model.Equal(v, c) {
			return !x.Not, nil
		}
	}
	if sawNull {
		return nil, nil
	}
	return x.Not, nil
}

func (ev *evaluator) between(x *parser.BetweenExpr, rc rowContext) (any, error) {
	v, err := ev.eval(x.Expr, rc)
	if err != nil {
		return nil, err
	}
	lo, err := ev.eval(x.Low, rc)
	if err != nil {
		return nil, err
	}
	hi, err := ev.eval(x.High, rc)
	if err != nil {
		return nil, err
	}

	ge := compare(">=", v, lo)
	le := compare("<=", v, hi)
	var result any
	switch {
	case ge == false || le == false:
		result = false
	case ge == nil || le == nil:
		return nil, nil
	default:
		result = true
	}
	if x.Not {
		return !result.(bool), nil
	}
	return result, nil
}

func (ev *evaluator) caseExpr(x *parser.CaseExpr, rc rowContext) (any, error) {
	var operand any
	if x.Operand != nil {
		var err error
		if operand, err = ev.eval(x.Operand, rc); err != nil {
			return nil, err
		}
	}
	for _, w := range x.Whens {
		cond, err := ev.eval(w.Cond, rc)
		if err != nil {
			return nil, err
		}
		matched := false
		if x.Operand != nil {
			matched = model.Equal(operand, cond)
		} else {
			b, known := model.Truthy(cond)
			matched = b && known
		}
		if matched {
			return ev.eval(w.Result, rc)
		}
	}
	if x.Else == nil {
		return nil, nil
	}
	return ev.eval(x.Else, rc)
}

// isConstant reports whether e can be evaluated without a row
func isConstant(e parser.Expr) bool {
	constant := true
	parser.Walk(e, func(n parser.Expr) bool {
		switch x := n.(type) {
		case *parser.ColumnRef, *parser.ExistsExpr, *parser.SubqueryExpr:
			constant = false
		case *parser.InExpr:
			if x.Subquery != "" {
				constant = false
			}
		case *parser.FuncCall:
			if x.Aggregate {
				constant = false
			}
		}
		return constant
	})
	return constant
}
