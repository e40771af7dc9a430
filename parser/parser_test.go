package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/sheetsql/domain/model"
	"github.com/nao1215/sheetsql/function"
)

func newTestParser() *Parser {
	return New(function.NewRegistry())
}

func mustParse(t *testing.T, sql string) *Statement {
	t.Helper()
	stmt := newTestParser().Parse(sql)
	require.True(t, stmt.Success, "parse %q: %s (near %q)", sql, stmt.Error, stmt.Fragment)
	return stmt
}

func TestParse_StatementKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sql  string
		kind Kind
	}{
		{`CREATE WORKBOOK "sales"`, KindCreateWorkbook},
		{`create or replace workbook sales (owner='ops')`, KindCreateWorkbook},
		{`CREATE SHEET "orders" (id INT, amount DECIMAL)`, KindCreateSheet},
		{`DROP WORKBOOK IF EXISTS sales`, KindDropWorkbook},
		{`drop sheet orders;`, KindDropSheet},
		{`USE sales`, KindUseWorkbook},
		{`use workbook sales`, KindUseWorkbook},
		{`SELECT * FROM orders`, KindSelect},
		{`INSERT INTO orders VALUES (1, 10.5), (2, 20.0)`, KindInsert},
		{`UPDATE orders SET amount=99 WHERE id=1`, KindUpdate},
		{`DELETE FROM orders WHERE id = 1`, KindDelete},
		{`CREATE UNIQUE INDEX idx_id ON orders (id)`, KindCreateIndex},
		{`DROP INDEX idx_id ON orders`, KindDropIndex},
		{`SHOW WORKBOOKS`, KindShowWorkbooks},
		{`show sheets`, KindShowSheets},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			t.Parallel()
			stmt := mustParse(t, tt.sql)
			assert.Equal(t, tt.kind, stmt.Kind)
			assert.Equal(t, tt.sql, stmt.SQL)
		})
	}
}

func TestParse_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sql      string
		fragment string
	}{
		{"misspelled keyword", `SELEKT * FORM orders`, "SELEKT"},
		{"misspelled FROM", `SELECT * FORM orders`, "FORM"},
		{"empty", ``, ""},
		{"unterminated string", `SELECT 'abc FROM t`, "'abc FROM t"},
		{"unknown function", `SELECT FOO(a) FROM t`, "FOO"},
		{"aggregate in WHERE", `SELECT a FROM t WHERE SUM(a) > 1`, "SUM"},
		{"nested aggregate", `SELECT SUM(COUNT(a)) FROM t`, "COUNT"},
		{"wrong arity", `SELECT UPPER(a, b) FROM t`, "UPPER"},
		{"derived table without alias", `SELECT * FROM (SELECT 1)`, ""},
		{"left join without on", `SELECT * FROM a LEFT JOIN b`, ""},
		{"invalid workbook name", `CREATE WORKBOOK "sales:2024"`, `"sales:2024"`},
		{"negative limit", `SELECT * FROM t LIMIT -1`, "-"},
		{"insert arity", `INSERT INTO t (a, b) VALUES (1)`, "("},
		{"trailing garbage", `SELECT 1 FROM t garbage more`, "more"},
		{"missing THEN", `SELECT CASE WHEN a ELSE 1 END FROM t`, "ELSE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stmt := newTestParser().Parse(tt.sql)
			require.NotNil(t, stmt)
			assert.False(t, stmt.Success)
			assert.Equal(t, KindUnknown, stmt.Kind)
			assert.NotEmpty(t, stmt.Error)
			assert.Equal(t, tt.fragment, stmt.Fragment)
			assert.ErrorIs(t, stmt.Err(), ErrSyntax)
		})
	}
}

func TestParser_Validate(t *testing.T) {
	t.Parallel()

	p := newTestParser()
	assert.NoError(t, p.Validate(`SELECT id FROM orders WHERE amount > 10`))

	err := p.Validate(`SELEKT * FORM orders`)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 0, parseErr.Pos)
	assert.Equal(t, "SELEKT", parseErr.Fragment)
}

func TestParse_Select(t *testing.T) {
	t.Parallel()

	stmt := mustParse(t, `select distinct o.id, SUM(amount) as total, c.name
		from orders o
		inner join customers as c on o.customer_id = c.id
		left outer join regions r on r.id = c.region_id
		where amount between 10 and 100 and c.name like 'A%'
		group by o.id, c.name
		having count(*) > 1
		order by total desc, 1
		limit 10 offset 5`)

	assert.True(t, stmt.Distinct)
	require.Len(t, stmt.Columns, 3)
	assert.Equal(t, "id", stmt.Columns[0].Label())
	assert.Equal(t, "total", stmt.Columns[1].Label())
	assert.Equal(t, "SUM(amount)", stmt.Columns[1].Text)

	require.Len(t, stmt.Targets, 3)
	assert.Equal(t, TableRef{Name: "orders", Alias: "o"}, stmt.Targets[0])
	require.Len(t, stmt.Joins, 2)
	assert.Equal(t, JoinInner, stmt.Joins[0].Type)
	assert.Equal(t, JoinLeft, stmt.Joins[1].Type)
	assert.Equal(t, "c", stmt.Joins[0].Table.RefName())

	assert.IsType(t, &BinaryExpr{}, stmt.Where)
	assert.Len(t, stmt.GroupBy, 2)
	assert.NotNil(t, stmt.Having)
	require.Len(t, stmt.OrderBy, 2)
	assert.True(t, stmt.OrderBy[0].Desc)
	assert.Equal(t, &Literal{Value: int64(1)}, stmt.OrderBy[1].Expr)
	assert.Equal(t, int64(10), *stmt.Limit)
	assert.Equal(t, int64(5), *stmt.Offset)

	require.Len(t, stmt.Aggregates, 2)
	assert.Equal(t, "SUM", stmt.Aggregates[0].Name)
	assert.True(t, stmt.Aggregates[1].Star)
	assert.Equal(t, []string{"orders", "customers", "regions"}, stmt.TargetTables())
}

func TestParse_ScenarioAggregateLabel(t *testing.T) {
	t.Parallel()

	stmt := mustParse(t, `SELECT SUM(amount) FROM orders`)
	require.Len(t, stmt.Columns, 1)
	assert.Equal(t, "SUM(amount)", stmt.Columns[0].Label())
	call, ok := stmt.Columns[0].Expr.(*FuncCall)
	require.True(t, ok)
	assert.True(t, call.Aggregate)
	assert.Equal(t, &ColumnRef{Name: "amount"}, call.Args[0])
}

func TestParse_LimitCommaForm(t *testing.T) {
	t.Parallel()

	stmt := mustParse(t, `SELECT * FROM t LIMIT 20, 5`)
	assert.Equal(t, int64(5), *stmt.Limit)
	assert.Equal(t, int64(20), *stmt.Offset)
}

func TestParse_CommaSourcesAreCrossJoins(t *testing.T) {
	t.Parallel()

	stmt := mustParse(t, `SELECT * FROM a, b x, c`)
	require.Len(t, stmt.Joins, 2)
	assert.Equal(t, JoinCross, stmt.Joins[0].Type)
	assert.Equal(t, "x", stmt.Joins[0].Table.RefName())
	assert.Equal(t, []string{"a", "b", "c"}, stmt.TargetTables())
}

func TestParse_Subqueries(t *testing.T) {
	t.Parallel()

	stmt := mustParse(t, `SELECT d.id FROM (SELECT id FROM orders WHERE amount > 10) AS d
		WHERE d.id IN (SELECT order_id FROM items) AND EXISTS (SELECT 1 FROM refunds)
		AND d.id > (SELECT MIN(id) FROM archive)`)

	assert.Equal(t, []string{"d", "$subquery1", "$subquery2", "$subquery3"}, stmt.SubqueryKeys())
	require.Contains(t, stmt.Subqueries, "d")
	assert.Equal(t, KindSelect, stmt.Subqueries["d"].Kind)
	assert.Equal(t, "SELECT id FROM orders WHERE amount > 10", stmt.Subqueries["d"].SQL)
	assert.Same(t, stmt.Subqueries["d"], stmt.Targets[0].Subquery)
	assert.Empty(t, stmt.Aggregates, "aggregates of subqueries stay with the subquery")
	assert.Len(t, stmt.Subqueries["$subquery3"].Aggregates, 1)
	assert.Equal(t, []string{"orders", "items", "refunds", "archive"}, stmt.TargetTables())
}

func TestParse_Expressions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sql  string
		want string
	}{
		{`SELECT a + b * 2 FROM t`, "(`a` + (`b` * 2))"},
		{`SELECT -a FROM t`, "(- `a`)"},
		{`SELECT -5 FROM t`, "-5"},
		{`SELECT 'it''s' FROM t`, "'it''s'"},
		{`SELECT a || 'x' FROM t`, "(`a` || 'x')"},
		{`SELECT a IS NOT NULL FROM t`, "(`a` IS NOT NULL)"},
		{`SELECT a NOT IN (1, 2) FROM t`, "(`a` NOT IN (1, 2))"},
		{`SELECT NOT a = 1 FROM t`, "(NOT (`a` = 1))"},
		{`SELECT a <> 1 FROM t`, "(`a` != 1)"},
		{`SELECT CASE a WHEN 1 THEN 'one' ELSE 'many' END FROM t`, "CASE `a` WHEN 1 THEN 'one' ELSE 'many' END"},
		{`SELECT COUNT(DISTINCT a) FROM t`, "COUNT(DISTINCT `a`)"},
		{`SELECT 2.0 FROM t`, "2.0"},
		{"SELECT `order id` FROM t", "`order id`"},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			t.Parallel()
			stmt := mustParse(t, tt.sql)
			assert.Equal(t, tt.want, stmt.Columns[0].Expr.String())
		})
	}
}

func TestParse_KeywordsAreCaseInsensitiveIdentifiersAreNot(t *testing.T) {
	t.Parallel()

	upper := mustParse(t, `SELECT Amount FROM Orders WHERE ID = 1`)
	lower := mustParse(t, `select Amount from Orders where ID = 1`)
	assert.Equal(t, upper.String(), lower.String())
	assert.Equal(t, []string{"Orders"}, lower.TargetTables())

	other := mustParse(t, `select amount from orders where id = 1`)
	assert.NotEqual(t, upper.String(), other.String())
}

func TestParse_CreateSheet(t *testing.T) {
	t.Parallel()

	t.Run("column definitions", func(t *testing.T) {
		t.Parallel()
		stmt := mustParse(t, `CREATE SHEET orders (id INT NOT NULL, amount DECIMAL(10,2), note VARCHAR(20) NULL, placed DATE FORMAT 'yyyy-MM-dd', extra)`)
		require.Len(t, stmt.ColumnDefs, 5)
		assert.Equal(t, ColumnSpec{Name: "id", TypeName: "INT", Type: model.DataTypeInteger, NotNull: true}, stmt.ColumnDefs[0])
		assert.Equal(t, model.DataTypeDecimal, stmt.ColumnDefs[1].Type)
		assert.False(t, stmt.ColumnDefs[2].NotNull)
		assert.Equal(t, "yyyy-MM-dd", stmt.ColumnDefs[3].Format)
		assert.Equal(t, model.DataTypeText, stmt.ColumnDefs[4].Type)
		assert.Equal(t, []string{"orders"}, stmt.TargetTables())
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()
		stmt := mustParse(t, `CREATE SHEET 'orders' (columns='id, amount', headerRow=2, overwrite=true)`)
		assert.True(t, stmt.OrReplace)
		assert.Equal(t, "2", stmt.Options["headerRow"])
		require.Len(t, stmt.ColumnDefs, 2)
		assert.Equal(t, "amount", stmt.ColumnDefs[1].Name)
	})

	t.Run("duplicate column", func(t *testing.T) {
		t.Parallel()
		stmt := newTestParser().Parse(`CREATE SHEET t (a INT, a TEXT)`)
		assert.False(t, stmt.Success)
	})
}

func TestParse_DML(t *testing.T) {
	t.Parallel()

	insert := mustParse(t, `INSERT INTO orders (id, amount) VALUES (1, 10.5), (2, NULL)`)
	assert.Equal(t, []string{"id", "amount"}, insert.InsertColumns)
	require.Len(t, insert.InsertRows, 2)
	assert.Equal(t, &Literal{Value: 10.5}, insert.InsertRows[0][1])
	assert.Equal(t, &Literal{Value: nil}, insert.InsertRows[1][1])

	update := mustParse(t, `UPDATE orders o SET o.amount = amount * 2, note = 'x' WHERE id IN (SELECT id FROM flagged)`)
	assert.Equal(t, "o", update.Table().RefName())
	require.Len(t, update.Assignments, 2)
	assert.Equal(t, "amount", update.Assignments[0].Column)
	assert.Equal(t, []string{"orders", "flagged"}, update.TargetTables())

	del := mustParse(t, `DELETE FROM orders`)
	assert.Nil(t, del.Where)
	assert.Equal(t, "orders", del.Table().Name)
}

func TestStatement_StringRoundTrip(t *testing.T) {
	t.Parallel()

	sqls := []string{
		`CREATE WORKBOOK "sales"`,
		`CREATE OR REPLACE WORKBOOK sales (owner='ops', region = 'eu')`,
		`CREATE SHEET "orders" (id INT, amount DECIMAL)`,
		`CREATE SHEET orders (columns='a,b', dataStartRow=3)`,
		`DROP WORKBOOK IF EXISTS sales`,
		`DROP SHEET orders`,
		`USE sales`,
		`SELECT SUM(amount) FROM orders`,
		`SELECT * FROM orders WHERE id=1`,
		`SELECT o.*, c.name AS customer FROM orders o JOIN customers c ON o.cid = c.id, regions WHERE NOT (a > 1 OR b IS NULL)`,
		`SELECT a, COUNT(*) FROM t GROUP BY a HAVING COUNT(*) > 1 ORDER BY 2 DESC LIMIT 3 OFFSET 1`,
		`SELECT x.a FROM (SELECT a FROM t WHERE a LIKE 'q\\%') x WHERE x.a NOT BETWEEN -1 AND 2.5`,
		`SELECT CASE WHEN a > 1 THEN 'big' END FROM t WHERE EXISTS (SELECT 1 FROM u) AND a IN (SELECT b FROM v)`,
		`INSERT INTO orders VALUES (1, 10.5), (2, 20.0)`,
		`INSERT INTO orders (id) VALUES (-3)`,
		`UPDATE orders SET amount=99 WHERE id=1`,
		`DELETE FROM orders WHERE id = 1`,
		`CREATE UNIQUE INDEX idx ON orders (id, amount)`,
		`DROP INDEX idx ON orders`,
		`SHOW WORKBOOKS`,
		`SHOW SHEETS`,
	}

	for _, sql := range sqls {
		t.Run(sql, func(t *testing.T) {
			t.Parallel()
			first := mustParse(t, sql)
			second := mustParse(t, first.String())

			assert.Equal(t, first.Kind, second.Kind)
			assert.Equal(t, first.TargetTables(), second.TargetTables())
			assert.Equal(t, first.String(), second.String(), "canonical form is a fixed point")
			if first.Kind == KindSelect {
				for i := range first.Columns {
					assert.Equal(t, first.Columns[i].Label(), second.Columns[i].Label())
				}
			}
		})
	}
}

func TestStatement_TargetTablesForDDL(t *testing.T) {
	t.Parallel()

	assert.Empty(t, mustParse(t, `CREATE WORKBOOK sales`).TargetTables())
	assert.Equal(t, []string{"orders"}, mustParse(t, `DROP SHEET IF EXISTS orders`).TargetTables())
	assert.Equal(t, []string{"orders"}, mustParse(t, `CREATE INDEX i ON orders (id)`).TargetTables())
}

func TestKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CREATE_WORKBOOK", KindCreateWorkbook.String())
	assert.Equal(t, "UNKNOWN", Kind(99).String())
	assert.True(t, KindUpdate.IsDML())
	assert.False(t, KindSelect.IsDML())
	assert.False(t, KindUseWorkbook.NeedsWorkbook())
	assert.True(t, KindShowSheets.NeedsWorkbook())
	assert.Len(t, Kinds(), 13)
}
