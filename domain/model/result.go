package model

import "time"

// ErrorKind classifies a failed statement
type ErrorKind string

const (
	// ErrorKindNone marks a successful result
	ErrorKindNone ErrorKind = ""
	// ErrorKindParse marks malformed SQL
	ErrorKindParse ErrorKind = "PARSE"
	// ErrorKindValidation marks a statement rejected before any side effect
	ErrorKindValidation ErrorKind = "VALIDATION"
	// ErrorKindNotFound marks a DROP of an unknown entity
	ErrorKindNotFound ErrorKind = "NOT_FOUND"
	// ErrorKindUnsupported marks a recognized statement without a handler
	ErrorKindUnsupported ErrorKind = "UNSUPPORTED"
	// ErrorKindExecution marks a runtime failure
	ErrorKindExecution ErrorKind = "EXECUTION"
)

// ColumnDef describes one output column of a projection.
type ColumnDef struct {
	// Name is the source column or expression text.
	Name string
	// Label is the key used in result rows: the alias, or Name when there is none.
	Label      string
	Type       DataType
	Aggregated bool
}

// QueryResult is the outcome of one statement: a projection, a mutation
// summary, or a failure. A result is never modified after it is returned.
type QueryResult struct {
	StatementType string
	Columns       []ColumnDef
	Rows          []map[string]any
	AffectedRows  int64
	Duration      time.Duration
	Success       bool
	ErrorKind     ErrorKind
	Error         string
	FromCache     bool
}

// Labels returns the row keys in column order
func (r *QueryResult) Labels() []string {
	labels := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		labels[i] = c.Label
	}
	return labels
}

// Column returns the values of one output column in row order
func (r *QueryResult) Column(label string) []any {
	values := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		values[i] = row[label]
	}
	return values
}

// WithCacheHit returns a shallow copy marked as served from cache. Rows are
// shared since results are immutable.
func (r *QueryResult) WithCacheHit(elapsed time.Duration) *QueryResult {
	clone := *r
	clone.FromCache = true
	clone.Duration = elapsed
	return &clone
}
