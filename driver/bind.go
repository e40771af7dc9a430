package driver

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// countPlaceholders returns the number of ? placeholders outside quotes and
// comments.
func countPlaceholders(query string) int {
	n := 0
	scanPlaceholders(query, func(int) { n++ })
	return n
}

// scanPlaceholders calls fn with the byte offset of every ? placeholder
func scanPlaceholders(query string, fn func(pos int)) {
	for i := 0; i < len(query); i++ {
		switch c := query[i]; c {
		case '\'', '"', '`':
			// quotes are escaped by doubling, which this loop treats as
			// two adjacent quoted sections
			for i++; i < len(query) && query[i] != c; i++ {
			}
		case '-':
			if i+1 < len(query) && query[i+1] == '-' {
				for i < len(query) && query[i] != '\n' {
					i++
				}
			}
		case '?':
			fn(i)
		}
	}
}

// bind replaces the ? placeholders of query with SQL literals of args
func bind(query string, args []driver.NamedValue) (string, error) {
	for _, a := range args {
		if a.Name != "" {
			return "", fmt.Errorf("%w: %s", ErrNamedArgument, a.Name)
		}
	}
	if n := countPlaceholders(query); n != len(args) {
		return "", fmt.Errorf("%w: %d placeholders, %d arguments", ErrArgumentCount, n, len(args))
	}
	if len(args) == 0 {
		return query, nil
	}

	var b strings.Builder
	last, next := 0, 0
	var bindErr error
	scanPlaceholders(query, func(pos int) {
		if bindErr != nil {
			return
		}
		lit, err := literal(args[next].Value)
		if err != nil {
			bindErr = fmt.Errorf("argument %d: %w", next+1, err)
			return
		}
		b.WriteString(query[last:pos])
		b.WriteString(lit)
		last = pos + 1
		next++
	})
	if bindErr != nil {
		return "", bindErr
	}
	b.WriteString(query[last:])
	return b.String(), nil
}

// literal formats a driver value as a SQL literal
func literal(v driver.Value) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		return quote(x), nil
	case []byte:
		return quote(string(x)), nil
	case time.Time:
		return quote(x.Format("2006-01-02 15:04:05.999999999")), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedArgument, v)
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
