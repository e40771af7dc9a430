package parser

// Expr is a node of an expression tree
type Expr interface {
	String() string
	exprNode()
}

// Literal is a constant: int64, float64, string, bool or nil
type Literal struct {
	Value any
}

// ColumnRef references a column, optionally qualified by a source name
type ColumnRef struct {
	Table string
	Name  string
}

// FuncCall is a call of a registered function. Name is upper case.
type FuncCall struct {
	Name      string
	Args      []Expr
	Distinct  bool
	Star      bool
	Aggregate bool
	// Text is the call's source text.
	Text string
}

// BinaryExpr applies a binary operator: OR AND = != < <= > >= + - * / % ||
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr applies NOT or unary minus
type UnaryExpr struct {
	Op      string
	Operand Expr
}

// IsNullExpr is `expr IS [NOT] NULL`
type IsNullExpr struct {
	Expr Expr
	Not  bool
}

// LikeExpr is `expr [NOT] LIKE pattern`
type LikeExpr struct {
	Expr    Expr
	Pattern Expr
	Not     bool
}

// InExpr is `expr [NOT] IN (list)` or `expr [NOT] IN (subquery)`.
// Subquery holds the key into Statement.Subqueries.
type InExpr struct {
	Expr     Expr
	List     []Expr
	Subquery string
	Not      bool
}

// BetweenExpr is `expr [NOT] BETWEEN low AND high`
type BetweenExpr struct {
	Expr Expr
	Low  Expr
	High Expr
	Not  bool
}

// ExistsExpr is `[NOT] EXISTS (subquery)`
type ExistsExpr struct {
	Subquery string
	Not      bool
}

// SubqueryExpr is a scalar subquery
type SubqueryExpr struct {
	Subquery string
}

// WhenClause is one WHEN ... THEN ... branch
type WhenClause struct {
	Cond   Expr
	Result Expr
}

// CaseExpr is a searched or simple CASE expression
type CaseExpr struct {
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

func (*Literal) exprNode()      {}
func (*ColumnRef) exprNode()    {}
func (*FuncCall) exprNode()     {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*IsNullExpr) exprNode()   {}
func (*LikeExpr) exprNode()     {}
func (*InExpr) exprNode()       {}
func (*BetweenExpr) exprNode()  {}
func (*ExistsExpr) exprNode()   {}
func (*SubqueryExpr) exprNode() {}
func (*CaseExpr) exprNode()     {}

// Walk visits e and its children depth first until fn returns false.
// Subqueries are not entered.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch x := e.(type) {
	case *FuncCall:
		for _, a := range x.Args {
			Walk(a, fn)
		}
	case *BinaryExpr:
		Walk(x.Left, fn)
		Walk(x.Right, fn)
	case *UnaryExpr:
		Walk(x.Operand, fn)
	case *IsNullExpr:
		Walk(x.Expr, fn)
	case *LikeExpr:
		Walk(x.Expr, fn)
		Walk(x.Pattern, fn)
	case *InExpr:
		Walk(x.Expr, fn)
		for _, a := range x.List {
			Walk(a, fn)
		}
	case *BetweenExpr:
		Walk(x.Expr, fn)
		Walk(x.Low, fn)
		Walk(x.High, fn)
	case *CaseExpr:
		Walk(x.Operand, fn)
		for _, w := range x.Whens {
			Walk(w.Cond, fn)
			Walk(w.Result, fn)
		}
		Walk(x.Else, fn)
	}
}

// ContainsAggregate reports whether an aggregate call appears in e
func ContainsAggregate(e Expr) bool {
	found := false
	Walk(e, func(n Expr) bool {
		if f, ok := n.(*FuncCall); ok && f.Aggregate {
			found = true
		}
		return !found
	})
	return found
}
