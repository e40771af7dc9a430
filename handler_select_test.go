package sheetsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/sheetsql/domain/model"
)

// setupShop creates a workbook with customers and orders
func setupShop(t *testing.T, e *Engine) *Session {
	t.Helper()

	sess := e.NewSession()
	mustRun(t, e, sess, `CREATE WORKBOOK shop`)
	mustRun(t, e, sess, `CREATE SHEET customers (id INT NOT NULL, name TEXT, city TEXT)`)
	mustRun(t, e, sess, `CREATE SHEET orders (id INT NOT NULL, cid INT, amount DECIMAL, region TEXT)`)
	mustRun(t, e, sess, `INSERT INTO customers VALUES
		(1, 'ann', 'oslo'),
		(2, 'bob', 'rome'),
		(3, 'cid', NULL)`)
	mustRun(t, e, sess, `INSERT INTO orders VALUES
		(10, 1, 5, 'east'),
		(11, 1, 7.5, 'west'),
		(12, 2, 20, 'east'),
		(13, 9, 1, NULL)`)
	return sess
}

// columnOf returns the values of one output column
func columnOf(res *model.QueryResult, label string) []any {
	return res.Column(label)
}

func TestSelect(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	sess := setupShop(t, e)

	tests := []struct {
		name  string
		sql   string
		label string
		want  []any
	}{
		{
			name:  "projection in storage order",
			sql:   `SELECT name FROM customers`,
			label: "name",
			want:  []any{"ann", "bob", "cid"},
		},
		{
			name:  "where with arithmetic",
			sql:   `SELECT id FROM orders WHERE amount * 2 > 10`,
			label: "id",
			want:  []any{int64(11), int64(12)},
		},
		{
			name:  "null never matches a comparison",
			sql:   `SELECT name FROM customers WHERE city <> 'oslo'`,
			label: "name",
			want:  []any{"bob"},
		},
		{
			name:  "is null",
			sql:   `SELECT name FROM customers WHERE city IS NULL`,
			label: "name",
			want:  []any{"cid"},
		},
		{
			name:  "order by descending with nulls last",
			sql:   `SELECT region FROM orders ORDER BY region DESC, id`,
			label: "region",
			want:  []any{"west", "east", "east", nil},
		},
		{
			name:  "order by ascending keeps nulls last",
			sql:   `SELECT city FROM customers ORDER BY city`,
			label: "city",
			want:  []any{"oslo", "rome", nil},
		},
		{
			name:  "limit and offset",
			sql:   `SELECT id FROM orders ORDER BY id LIMIT 2 OFFSET 1`,
			label: "id",
			want:  []any{int64(11), int64(12)},
		},
		{
			name:  "order by output position and alias",
			sql:   `SELECT id AS k FROM orders ORDER BY 1 DESC LIMIT 1`,
			label: "k",
			want:  []any{int64(13)},
		},
		{
			name:  "inner join",
			sql:   `SELECT o.id, c.name FROM orders o JOIN customers c ON o.cid = c.id ORDER BY o.id`,
			label: "name",
			want:  []any{"ann", "ann", "bob"},
		},
		{
			name:  "left join pads with nulls",
			sql:   `SELECT o.id, c.name FROM orders o LEFT JOIN customers c ON o.cid = c.id ORDER BY o.id`,
			label: "name",
			want:  []any{"ann", "ann", "bob", nil},
		},
		{
			name:  "right join keeps unmatched right rows",
			sql:   `SELECT c.name, o.id FROM orders o RIGHT JOIN customers c ON o.cid = c.id ORDER BY c.name, o.id`,
			label: "name",
			want:  []any{"ann", "ann", "bob", "cid"},
		},
		{
			name:  "group by with having",
			sql:   `SELECT region, SUM(amount) AS total FROM orders GROUP BY region HAVING COUNT(*) > 1`,
			label: "total",
			want:  []any{float64(25)},
		},
		{
			name:  "groups in first appearance order",
			sql:   `SELECT cid, COUNT(*) AS n FROM orders GROUP BY cid`,
			label: "n",
			want:  []any{int64(2), int64(1), int64(1)},
		},
		{
			name:  "aggregate over an empty input",
			sql:   `SELECT COUNT(*) AS n FROM orders WHERE id > 100`,
			label: "n",
			want:  []any{int64(0)},
		},
		{
			name:  "count skips nulls",
			sql:   `SELECT COUNT(city) AS n FROM customers`,
			label: "n",
			want:  []any{int64(2)},
		},
		{
			name:  "count distinct",
			sql:   `SELECT COUNT(DISTINCT cid) AS n FROM orders`,
			label: "n",
			want:  []any{int64(3)},
		},
		{
			name:  "distinct rows",
			sql:   `SELECT DISTINCT region FROM orders WHERE region IS NOT NULL`,
			label: "region",
			want:  []any{"east", "west"},
		},
		{
			name:  "in subquery",
			sql:   `SELECT id FROM orders WHERE cid IN (SELECT id FROM customers WHERE city = 'oslo')`,
			label: "id",
			want:  []any{int64(10), int64(11)},
		},
		{
			name:  "exists correlated by value",
			sql:   `SELECT name FROM customers WHERE EXISTS (SELECT id FROM orders WHERE amount > 10)`,
			label: "name",
			want:  []any{"ann", "bob", "cid"},
		},
		{
			name:  "scalar subquery",
			sql:   `SELECT id FROM orders WHERE amount = (SELECT MAX(amount) FROM orders)`,
			label: "id",
			want:  []any{int64(12)},
		},
		{
			name:  "derived table",
			sql:   `SELECT t.n FROM (SELECT cid, COUNT(*) AS n FROM orders GROUP BY cid) t WHERE t.cid = 1`,
			label: "n",
			want:  []any{int64(2)},
		},
		{
			name:  "like and between",
			sql:   `SELECT id FROM orders WHERE region LIKE 'e%' AND amount BETWEEN 1 AND 10`,
			label: "id",
			want:  []any{int64(10)},
		},
		{
			name:  "case expression",
			sql:   `SELECT CASE WHEN amount >= 10 THEN 'big' ELSE 'small' END AS size FROM orders ORDER BY id`,
			label: "size",
			want:  []any{"small", "small", "big", "small"},
		},
		{
			name:  "string functions",
			sql:   `SELECT UPPER(CONCAT(name, '-', city)) AS tag FROM customers WHERE id = 1`,
			label: "tag",
			want:  []any{"ANN-OSLO"},
		},
		{
			name:  "coalesce",
			sql:   `SELECT COALESCE(city, 'unknown') AS c FROM customers WHERE id = 3`,
			label: "c",
			want:  []any{"unknown"},
		},
		{
			name:  "select without from",
			sql:   `SELECT 1 + 2 AS three`,
			label: "three",
			want:  []any{int64(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := mustRun(t, e, sess, tt.sql, ExecOptions{Workbook: "shop"})
			assert.Equal(t, tt.want, columnOf(res, tt.label))
		})
	}
}

func TestSelectColumns(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	sess := setupShop(t, e)

	t.Run("star expands in sheet order", func(t *testing.T) {
		t.Parallel()

		res := mustRun(t, e, sess, `SELECT * FROM customers WHERE id = 1`, ExecOptions{Workbook: "shop"})
		assert.Equal(t, []string{"id", "name", "city"}, res.Labels())
		assert.Equal(t, model.DataTypeInteger, res.Columns[0].Type)
		assert.Equal(t, model.DataTypeText, res.Columns[1].Type)
	})

	t.Run("ambiguous star columns are qualified", func(t *testing.T) {
		t.Parallel()

		res := mustRun(t, e, sess, `SELECT * FROM orders o JOIN customers c ON o.cid = c.id`, ExecOptions{Workbook: "shop"})
		assert.Contains(t, res.Labels(), "o.id")
		assert.Contains(t, res.Labels(), "c.id")
		assert.Contains(t, res.Labels(), "amount")
	})

	t.Run("aggregate columns are flagged", func(t *testing.T) {
		t.Parallel()

		res := mustRun(t, e, sess, `SELECT region, AVG(amount) FROM orders GROUP BY region`, ExecOptions{Workbook: "shop"})
		require.Len(t, res.Columns, 2)
		assert.False(t, res.Columns[0].Aggregated)
		assert.True(t, res.Columns[1].Aggregated)
		assert.Equal(t, "AVG(amount)", res.Columns[1].Label)
		assert.Equal(t, model.DataTypeDecimal, res.Columns[1].Type)
	})
}

func TestSelectRowCap(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Query.MaxRows = 2
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	sess := setupShop(t, e)

	tests := []struct {
		name    string
		sql     string
		maxRows int
		want    int
	}{
		{name: "configured default caps", sql: `SELECT * FROM orders`, want: 2},
		{name: "call cap wins when smaller", sql: `SELECT * FROM orders`, maxRows: 1, want: 1},
		{name: "limit wins when smaller", sql: `SELECT * FROM orders LIMIT 1`, maxRows: 3, want: 1},
		{name: "cap wins over limit", sql: `SELECT * FROM orders LIMIT 3`, maxRows: 2, want: 2},
		{name: "negative removes the cap", sql: `SELECT * FROM orders`, maxRows: -1, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := mustRun(t, e, sess, tt.sql, ExecOptions{MaxRows: tt.maxRows})
			assert.Len(t, res.Rows, tt.want)
		})
	}
}

func TestSelectErrors(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	sess := setupShop(t, e)

	tests := []struct {
		name string
		sql  string
		kind model.ErrorKind
	}{
		{name: "unknown column", sql: `SELECT nope FROM orders`, kind: model.ErrorKindValidation},
		{name: "ambiguous column", sql: `SELECT id FROM orders o JOIN customers c ON o.cid = c.id`, kind: model.ErrorKindValidation},
		{name: "unknown function", sql: `SELECT FROBNICATE(id) FROM orders`, kind: model.ErrorKindValidation},
		{name: "having without grouping", sql: `SELECT id FROM orders HAVING id > 1`, kind: model.ErrorKindValidation},
		{name: "scalar subquery with several rows", sql: `SELECT (SELECT id FROM orders) AS x`, kind: model.ErrorKindExecution},
		{name: "arithmetic on text", sql: `SELECT name * 2 FROM customers`, kind: model.ErrorKindExecution},
		{name: "unknown star table", sql: `SELECT x.* FROM orders`, kind: model.ErrorKindValidation},
		{name: "missing workbook", sql: `SELECT * FROM orders`, kind: model.ErrorKindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := ExecOptions{Workbook: "shop"}
			if tt.name == "missing workbook" {
				opts.Workbook = "nothing"
			}
			res := run(t, e, sess, tt.sql, opts)
			assert.False(t, res.Success)
			assert.Equal(t, tt.kind, res.ErrorKind, res.Error)
		})
	}
}

func TestSelectIsStableAcrossCalls(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	sess := setupShop(t, e)

	first := mustRun(t, e, sess, `SELECT * FROM orders WHERE amount > 1`)
	for range 5 {
		again := mustRun(t, e, sess, `SELECT * FROM orders WHERE amount > 1`)
		assert.Equal(t, first.Rows, again.Rows)
	}
}
