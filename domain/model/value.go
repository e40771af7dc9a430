package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Cell values are one of nil, int64, float64, string, bool or time.Time (UTC).

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05.999999999"
)

// number is a numeric view of a cell value
type number struct {
	i     int64
	f     float64
	isInt bool
}

func asNumber(v any) (number, bool) {
	switch x := v.(type) {
	case int64:
		return number{i: x, f: float64(x), isInt: true}, true
	case int:
		return number{i: int64(x), f: float64(x), isInt: true}, true
	case float64:
		return number{f: x}, true
	case string:
		return parseNumber(x)
	default:
		return number{}, false
	}
}

func parseNumber(s string) (number, bool) {
	if s == "" {
		return number{}, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return number{i: i, f: float64(i), isInt: true}, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return number{}, false
	}
	// Reject hexadecimal floats, only decimal notation counts as numeric text
	if strings.ContainsAny(s, "xXpP") {
		return number{}, false
	}
	return number{f: f}, true
}

// asExactInt reports the int64 a number equals exactly, if any.
func (n number) asExactInt() (int64, bool) {
	if n.isInt {
		return n.i, true
	}
	if n.f != math.Trunc(n.f) || n.f < math.MinInt64 || n.f >= math.MaxInt64 {
		return 0, false
	}
	return int64(n.f), true
}

func compareNumbers(a, b number) int {
	ai, aok := a.asExactInt()
	bi, bok := b.asExactInt()
	if aok && bok {
		return cmpOrdered(ai, bi)
	}
	return cmpOrdered(a.f, b.f)
}

func cmpOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Compare orders two cell values. ok is false when either side is NULL, in
// which case the comparison is UNKNOWN.
func Compare(a, b any) (c int, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if ta, isTime := a.(time.Time); isTime {
		if tb, isTime := b.(time.Time); isTime {
			return ta.Compare(tb), true
		}
		return cmpOrdered(Text(a), Text(b)), true
	}
	if _, isTime := b.(time.Time); isTime {
		return cmpOrdered(Text(a), Text(b)), true
	}
	if ba, isBool := a.(bool); isBool {
		if bb, isBool := b.(bool); isBool {
			return cmpOrdered(boolRank(ba), boolRank(bb)), true
		}
		return cmpOrdered(Text(a), Text(b)), true
	}
	if _, isBool := b.(bool); isBool {
		return cmpOrdered(Text(a), Text(b)), true
	}
	na, aNum := asNumber(a)
	nb, bNum := asNumber(b)
	if aNum && bNum {
		return compareNumbers(na, nb), true
	}
	return cmpOrdered(Text(a), Text(b)), true
}

func boolRank(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Equal reports whether two values compare equal. NULL equals nothing.
func Equal(a, b any) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}

// Key returns an equality key for v: Key(a) == Key(b) exactly when
// Compare(a, b) reports 0. NULL gets its own key so that GROUP BY and
// DISTINCT can collect NULLs together.
func Key(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case time.Time, bool:
		return "s:" + Text(x)
	}
	if n, ok := asNumber(v); ok {
		if i, exact := n.asExactInt(); exact {
			return "n:" + strconv.FormatInt(i, 10)
		}
		return "n:" + strconv.FormatFloat(n.f, 'g', -1, 64)
	}
	return "s:" + Text(v)
}

// TupleKey joins the keys of several values.
func TupleKey(values []any) string {
	if len(values) == 1 {
		return Key(values[0])
	}
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(Key(v))
	}
	return b.String()
}

// Text returns the canonical text form of a value. NULL is the empty string.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		x = x.UTC()
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(dateLayout)
		}
		return x.Format(dateTimeLayout)
	default:
		return fmt.Sprint(x)
	}
}

// ToFloat converts a numeric value to float64
func ToFloat(v any) (float64, bool) {
	n, ok := asNumber(v)
	if !ok {
		return 0, false
	}
	return n.f, true
}

// ToInt converts a value that holds an exact integer to int64
func ToInt(v any) (int64, bool) {
	n, ok := asNumber(v)
	if !ok {
		return 0, false
	}
	return n.asExactInt()
}

// IsNumeric reports whether v is a number or numeric text
func IsNumeric(v any) bool {
	_, ok := asNumber(v)
	return ok
}

// Truthy evaluates a value as a predicate result. known is false for NULL.
func Truthy(v any) (value, known bool) {
	switch x := v.(type) {
	case nil:
		return false, false
	case bool:
		return x, true
	case string:
		if strings.EqualFold(x, "true") {
			return true, true
		}
		if n, ok := parseNumber(x); ok {
			return n.f != 0, true
		}
		return false, true
	}
	if n, ok := asNumber(v); ok {
		return n.f != 0, true
	}
	return true, true
}

// Coerce converts v to the representation used by columns of type t.
func Coerce(v any, t DataType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case DataTypeText:
		return Text(v), nil
	case DataTypeInteger:
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		if i, ok := ToInt(v); ok {
			return i, nil
		}
	case DataTypeDecimal:
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		if f, ok := ToFloat(v); ok {
			return f, nil
		}
	case DataTypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "1":
				return true, nil
			case "false", "0":
				return false, nil
			}
		case int64:
			if x == 0 || x == 1 {
				return x == 1, nil
			}
		}
	case DataTypeDateTime:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			if ts, ok := ParseDateTime(x); ok {
				return ts, nil
			}
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("%w: cannot convert %q to %s", ErrTypeMismatch, Text(v), t)
}

// ParseCell converts raw spreadsheet text to a typed cell value. Empty text is
// NULL; text that does not fit the column type is kept as-is.
func ParseCell(raw string, t DataType) any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	v, err := Coerce(raw, t)
	if err != nil {
		return raw
	}
	return v
}

// TypeOf returns the data type that describes a single value.
func TypeOf(v any) DataType {
	switch v.(type) {
	case int64, int:
		return DataTypeInteger
	case float64:
		return DataTypeDecimal
	case bool:
		return DataTypeBoolean
	case time.Time:
		return DataTypeDateTime
	case string:
		return DataTypeText
	default:
		return DataTypeMixed
	}
}
