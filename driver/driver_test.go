package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/sheetsql"
)

// openMemory opens a single-connection database so that USE and CREATE
// WORKBOOK carry over between statements.
func openMemory(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open(DriverName, MemoryDSN)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) sql.Result {
	t.Helper()

	res, err := db.Exec(query, args...)
	if err != nil {
		t.Fatalf("Exec(%q) error = %v", query, err)
	}
	return res
}

func TestNewDriver(t *testing.T) {
	t.Parallel()

	if d := NewDriver(); d == nil {
		t.Error("NewDriver() returned nil")
	}
}

func TestDriverOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dsn     string
		wantErr bool
	}{
		{name: "memory", dsn: MemoryDSN, wantErr: false},
		{name: "empty", dsn: "", wantErr: false},
		{name: "invalid parameter", dsn: ":memory:?cache=maybe", wantErr: true},
		{name: "missing workbook", dsn: ":memory:?workbook=nothing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			conn, err := NewDriver().Open(tt.dsn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if conn != nil {
				if err := conn.Close(); err != nil {
					t.Errorf("Close() error = %v", err)
				}
			}
		})
	}
}

func TestExecAndQuery(t *testing.T) {
	t.Parallel()

	db := openMemory(t)
	mustExec(t, db, `CREATE WORKBOOK sales`)
	mustExec(t, db, `CREATE SHEET orders (id INT NOT NULL, customer TEXT, amount DECIMAL)`)

	res := mustExec(t, db, `INSERT INTO orders VALUES (?, ?, ?), (?, ?, ?)`, 1, "ann", 9.5, 2, "bob's", 20.0)
	if n, err := res.RowsAffected(); err != nil || n != 2 {
		t.Fatalf("RowsAffected() = %d, %v, want 2", n, err)
	}
	if _, err := res.LastInsertId(); err == nil {
		t.Error("LastInsertId() error = nil, want error")
	}

	rows, err := db.Query(`SELECT id, customer FROM orders WHERE amount > ? ORDER BY id`, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		t.Fatalf("Columns() error = %v", err)
	}
	if len(cols) != 2 || cols[0] != "id" || cols[1] != "customer" {
		t.Errorf("Columns() = %v", cols)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		t.Fatalf("ColumnTypes() error = %v", err)
	}
	if got := types[0].DatabaseTypeName(); got != "INTEGER" {
		t.Errorf("DatabaseTypeName() = %q, want INTEGER", got)
	}

	var got []string
	for rows.Next() {
		var id int64
		var customer string
		if err := rows.Scan(&id, &customer); err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		got = append(got, customer)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("Rows error = %v", err)
	}
	if len(got) != 2 || got[0] != "ann" || got[1] != "bob's" {
		t.Errorf("customers = %v", got)
	}
}

func TestUpdateDeleteThroughPreparedStatement(t *testing.T) {
	t.Parallel()

	db := openMemory(t)
	mustExec(t, db, `CREATE WORKBOOK crm`)
	mustExec(t, db, `CREATE SHEET people (name TEXT, age INT)`)

	stmt, err := db.Prepare(`INSERT INTO people VALUES (?, ?)`)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	defer stmt.Close()
	for i, name := range []string{"a", "b", "c"} {
		if _, err := stmt.Exec(name, 20+i); err != nil {
			t.Fatalf("Exec() error = %v", err)
		}
	}

	res := mustExec(t, db, `UPDATE people SET age = age + 1 WHERE age >= ?`, 21)
	if n, _ := res.RowsAffected(); n != 2 {
		t.Errorf("updated %d rows, want 2", n)
	}
	res = mustExec(t, db, `DELETE FROM people WHERE name = ?`, "a")
	if n, _ := res.RowsAffected(); n != 1 {
		t.Errorf("deleted %d rows, want 1", n)
	}

	var count int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM people`).Scan(&count); err != nil {
		t.Fatalf("QueryRow() error = %v", err)
	}
	if count != 2 {
		t.Errorf("COUNT(*) = %d, want 2", count)
	}
}

func TestErrorsCarryKind(t *testing.T) {
	t.Parallel()

	db := openMemory(t)

	tests := []struct {
		name  string
		query string
		want  error
	}{
		{name: "parse error", query: `SELEKT 1`, want: sheetsql.ErrParse},
		{name: "no workbook", query: `SELECT * FROM orders`, want: sheetsql.ErrValidation},
		{name: "drop missing workbook", query: `DROP WORKBOOK nothing`, want: sheetsql.ErrNotFound},
	}
	for _, tt := range tests {
		_, err := db.Exec(tt.query)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: Exec(%q) error = %v, want %v", tt.name, tt.query, err, tt.want)
		}
	}

	if _, err := db.Begin(); !errors.Is(err, ErrBeginTxNotSupported) {
		t.Errorf("Begin() error = %v, want ErrBeginTxNotSupported", err)
	}
}

func TestSessionPerConnection(t *testing.T) {
	t.Parallel()

	engine, err := sheetsql.New(sheetsql.DefaultConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer engine.Close()

	connector := NewConnector(engine, DSN{})
	ctx := context.Background()
	first, err := connector.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer first.Close()
	second, err := connector.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer second.Close()

	if _, err := first.(*Connection).ExecContext(ctx, `CREATE WORKBOOK shared`, nil); err != nil {
		t.Fatalf("ExecContext() error = %v", err)
	}
	if got := first.(*Connection).Session().CurrentWorkbook(); got != "shared" {
		t.Errorf("first session workbook = %q, want shared", got)
	}
	if got := second.(*Connection).Session().CurrentWorkbook(); got != "" {
		t.Errorf("second session workbook = %q, want empty", got)
	}

	// the workbook itself is shared through the engine
	if _, err := second.(*Connection).ExecContext(ctx, `USE shared`, nil); err != nil {
		t.Errorf("USE on second connection error = %v", err)
	}
	if err := connector.Close(); err != nil {
		t.Errorf("Close() of a shared connector error = %v", err)
	}
}

func TestBind(t *testing.T) {
	t.Parallel()

	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		query   string
		args    []driver.Value
		want    string
		wantErr error
	}{
		{
			name:  "no placeholders",
			query: `SELECT 1`,
			want:  `SELECT 1`,
		},
		{
			name:  "every literal type",
			query: `INSERT INTO t VALUES (?, ?, ?, ?, ?, ?)`,
			args:  []driver.Value{int64(-3), 1.25, true, "it's", nil, when},
			want:  `INSERT INTO t VALUES (-3, 1.25, TRUE, 'it''s', NULL, '2024-03-01 12:30:00')`,
		},
		{
			name:  "placeholders inside quotes and comments are text",
			query: "SELECT '?', \"a?\" FROM t WHERE x = ? -- why?\n",
			args:  []driver.Value{[]byte("v")},
			want:  "SELECT '?', \"a?\" FROM t WHERE x = 'v' -- why?\n",
		},
		{
			name:    "too few arguments",
			query:   `SELECT ?, ?`,
			args:    []driver.Value{int64(1)},
			wantErr: ErrArgumentCount,
		},
		{
			name:    "unsupported type",
			query:   `SELECT ?`,
			args:    []driver.Value{struct{}{}},
			wantErr: ErrUnsupportedArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := bind(tt.query, named(tt.args))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("bind() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("bind() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("bind() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := bind(`SELECT ?`, []driver.NamedValue{{Name: "id", Ordinal: 1, Value: int64(1)}}); !errors.Is(err, ErrNamedArgument) {
		t.Errorf("bind() with a named argument error = %v, want ErrNamedArgument", err)
	}
}
