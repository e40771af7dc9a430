package parser

import "github.com/nao1215/sheetsql/domain/model"

// Kind is the statement kind of a parsed statement
type Kind int

const (
	// KindUnknown is the zero value; a successfully parsed statement never has it
	KindUnknown Kind = iota
	// KindCreateWorkbook is CREATE WORKBOOK
	KindCreateWorkbook
	// KindCreateSheet is CREATE SHEET
	KindCreateSheet
	// KindDropWorkbook is DROP WORKBOOK
	KindDropWorkbook
	// KindDropSheet is DROP SHEET
	KindDropSheet
	// KindUseWorkbook is USE [WORKBOOK]
	KindUseWorkbook
	// KindSelect is SELECT
	KindSelect
	// KindInsert is INSERT
	KindInsert
	// KindUpdate is UPDATE
	KindUpdate
	// KindDelete is DELETE
	KindDelete
	// KindCreateIndex is CREATE [UNIQUE] INDEX
	KindCreateIndex
	// KindDropIndex is DROP INDEX
	KindDropIndex
	// KindShowWorkbooks is SHOW WORKBOOKS
	KindShowWorkbooks
	// KindShowSheets is SHOW SHEETS
	KindShowSheets
)

var kindNames = map[Kind]string{
	KindUnknown:        "UNKNOWN",
	KindCreateWorkbook: "CREATE_WORKBOOK",
	KindCreateSheet:    "CREATE_SHEET",
	KindDropWorkbook:   "DROP_WORKBOOK",
	KindDropSheet:      "DROP_SHEET",
	KindUseWorkbook:    "USE_WORKBOOK",
	KindSelect:         "SELECT",
	KindInsert:         "INSERT",
	KindUpdate:         "UPDATE",
	KindDelete:         "DELETE",
	KindCreateIndex:    "CREATE_INDEX",
	KindDropIndex:      "DROP_INDEX",
	KindShowWorkbooks:  "SHOW_WORKBOOKS",
	KindShowSheets:     "SHOW_SHEETS",
}

// String returns the statement kind name, e.g. CREATE_WORKBOOK
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Kinds returns every statement kind a parse can produce
func Kinds() []Kind {
	return []Kind{
		KindCreateWorkbook, KindCreateSheet, KindDropWorkbook, KindDropSheet, KindUseWorkbook,
		KindSelect, KindInsert, KindUpdate, KindDelete,
		KindCreateIndex, KindDropIndex, KindShowWorkbooks, KindShowSheets,
	}
}

// IsDML reports whether the kind mutates sheet rows
func (k Kind) IsDML() bool {
	return k == KindInsert || k == KindUpdate || k == KindDelete
}

// NeedsWorkbook reports whether the statement runs inside a workbook
func (k Kind) NeedsWorkbook() bool {
	switch k {
	case KindCreateWorkbook, KindDropWorkbook, KindUseWorkbook, KindShowWorkbooks:
		return false
	default:
		return true
	}
}

// TableRef is a source in FROM or JOIN, or the target of a DML statement.
type TableRef struct {
	Name  string
	Alias string
	// Subquery is set for derived tables; Name then equals Alias.
	Subquery *Statement
}

// RefName is the name the source is referred to by in expressions
func (t TableRef) RefName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// JoinType is the type of a join clause
type JoinType int

const (
	// JoinInner is [INNER] JOIN
	JoinInner JoinType = iota
	// JoinLeft is LEFT [OUTER] JOIN
	JoinLeft
	// JoinRight is RIGHT [OUTER] JOIN
	JoinRight
	// JoinFull is FULL [OUTER] JOIN
	JoinFull
	// JoinCross is CROSS JOIN or a comma-separated source
	JoinCross
)

// String returns the SQL spelling
func (j JoinType) String() string {
	switch j {
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	case JoinFull:
		return "FULL JOIN"
	case JoinCross:
		return "CROSS JOIN"
	default:
		return "INNER JOIN"
	}
}

// JoinClause joins one more source to everything on its left.
type JoinClause struct {
	Type  JoinType
	Table TableRef
	On    Expr
}

// SelectItem is one entry of the projection list.
type SelectItem struct {
	Expr  Expr
	Alias string
	// Star is set for * and t.*; StarTable names the source for t.*.
	Star      bool
	StarTable string
	// Text is the item's source text.
	Text string
}

// Label is the output column key of a non-star item
func (s SelectItem) Label() string {
	if s.Alias != "" {
		return s.Alias
	}
	if c, ok := s.Expr.(*ColumnRef); ok {
		return c.Name
	}
	return s.Text
}

// OrderItem is one ORDER BY key
type OrderItem struct {
	Expr Expr
	Desc bool
}

// Assignment is one `column = expr` of an UPDATE
type Assignment struct {
	Column string
	Value  Expr
}

// ColumnSpec is a column declared by CREATE SHEET
type ColumnSpec struct {
	Name     string
	TypeName string
	Type     model.DataType
	NotNull  bool
	Format   string
}

// Statement is the parsed form of one SQL statement. A failed parse has
// Success false and is never executed.
type Statement struct {
	Kind    Kind
	SQL     string
	Success bool
	Error   string
	// Fragment is the offending source text of a failed parse.
	Fragment string
	ErrorPos int

	// Targets lists the sources (FROM then joins) of a SELECT, or the single
	// target of INSERT, UPDATE, DELETE, CREATE/DROP INDEX.
	Targets []TableRef
	Joins   []JoinClause

	Distinct   bool
	Columns    []SelectItem
	Where      Expr
	GroupBy    []Expr
	Having     Expr
	OrderBy    []OrderItem
	Limit      *int64
	Offset     *int64
	Aggregates []*FuncCall

	// Subqueries maps FROM aliases and $subquery<N> keys to nested statements.
	Subqueries    map[string]*Statement
	subqueryOrder []string

	InsertColumns []string
	InsertRows    [][]Expr
	Assignments   []Assignment

	// Name is the workbook or sheet named by a workbook/sheet statement.
	Name         string
	ColumnDefs   []ColumnSpec
	Options      map[string]string
	OrReplace    bool
	IfExists     bool
	IndexName    string
	IndexColumns []string
	Unique       bool
}

// Err returns the parse failure, or nil
func (s *Statement) Err() error {
	if s.Success {
		return nil
	}
	return &ParseError{Pos: s.ErrorPos, Fragment: s.Fragment, Msg: s.Error}
}

// SubqueryKeys returns the subquery keys in order of appearance
func (s *Statement) SubqueryKeys() []string {
	return append([]string(nil), s.subqueryOrder...)
}

func (s *Statement) addSubquery(key string, sub *Statement) {
	if s.Subqueries == nil {
		s.Subqueries = make(map[string]*Statement)
	}
	s.Subqueries[key] = sub
	s.subqueryOrder = append(s.subqueryOrder, key)
}

// Table returns the first target, the DML target for INSERT/UPDATE/DELETE.
func (s *Statement) Table() TableRef {
	if len(s.Targets) == 0 {
		return TableRef{}
	}
	return s.Targets[0]
}

// TargetTables returns the distinct sheet names the statement reads or
// writes, including those of subqueries, in order of first appearance.
func (s *Statement) TargetTables() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var walk func(st *Statement)
	walk = func(st *Statement) {
		switch st.Kind {
		case KindCreateSheet, KindDropSheet:
			add(st.Name)
			return
		}
		for _, t := range st.Targets {
			if t.Subquery == nil {
				add(t.Name)
			}
		}
		for _, key := range st.subqueryOrder {
			walk(st.Subqueries[key])
		}
	}
	walk(s)
	return names
}
