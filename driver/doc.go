// Package driver registers the sheetsql engine as the "sheetsql"
// database/sql driver.
//
// The data source name selects a directory of workbook files, or memory
// only, plus engine settings:
//
//	import _ "github.com/nao1215/sheetsql/driver"
//	db, err := sql.Open("sheetsql", "./workbooks?workbook=sales&cache=true")
//
// All connections of one *sql.DB share an engine. Each connection is one
// engine session, so USE affects only the connection that ran it.
package driver
