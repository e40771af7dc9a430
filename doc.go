// Package sheetsql provides a SQL engine over spreadsheet workbooks.
//
// Workbooks are databases, sheets are tables, the header row of a sheet
// defines its columns and the rows below it are records. Statements use a
// MySQL-like dialect and run against workbooks held in memory, optionally
// backed by a directory of XLSX, CSV, TSV or Parquet files.
//
// # Features
//
//   - SELECT with joins, grouping, aggregates, HAVING, DISTINCT, ORDER BY,
//     LIMIT and OFFSET, subqueries and CASE expressions
//   - INSERT, UPDATE and DELETE that either fully apply or change nothing
//   - CREATE/DROP WORKBOOK, CREATE/DROP SHEET, USE, SHOW WORKBOOKS and
//     SHOW SHEETS
//   - Secondary indexes (CREATE [UNIQUE] INDEX) used for equality and
//     range predicates
//   - A three-tier result cache (in-process LRU, redis, sqlite) invalidated
//     by every write to a sheet it read
//   - Per-session current workbook, safe for concurrent sessions
//
// # Basic Usage
//
//	engine, err := sheetsql.New(sheetsql.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	sess := engine.NewSession()
//	ctx := context.Background()
//	engine.Query(ctx, sess, "CREATE WORKBOOK sales", sheetsql.ExecOptions{})
//	engine.Query(ctx, sess, "CREATE SHEET orders (id INTEGER, amount DECIMAL)", sheetsql.ExecOptions{})
//	engine.Query(ctx, sess, "INSERT INTO orders VALUES (1, 9.5), (2, 20)", sheetsql.ExecOptions{})
//
//	res := engine.Query(ctx, sess, "SELECT SUM(amount) AS total FROM orders", sheetsql.ExecOptions{UseCache: true})
//	if !res.Success {
//	    log.Fatal(res.Error)
//	}
//	fmt.Println(res.Rows[0]["total"])
//
// # Results and Errors
//
// Execute and Query never return a Go error. Every failure is reported in
// the result with Success false, one ErrorKind and a message; ResultError
// turns it back into an error matching ErrParse, ErrValidation,
// ErrNotFound, ErrUnsupportedStatement or ErrExecution.
//
// # Storage
//
// When Config.Storage.BaseDir is set, every file or directory below it is a
// workbook loaded on first use, and every committed write is persisted
// before it becomes visible. See package storage.
//
// # database/sql
//
// Package driver registers the engine as the "sheetsql" database/sql
// driver.
package sheetsql
