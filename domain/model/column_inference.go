package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Common datetime patterns to detect
var datetimePatterns = []struct {
	pattern *regexp.Regexp
	formats []string // Multiple formats for the same pattern
}{
	// ISO8601 formats with timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`),
		[]string{time.RFC3339, time.RFC3339Nano},
	},
	// ISO8601 formats without timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999"},
	},
	// ISO8601 date and time with space
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02 15:04:05", "2006-01-02 15:04:05.999999999"},
	},
	// ISO8601 date only
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		[]string{"2006-01-02"},
	},
	// US formats
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4} \d{1,2}:\d{2}:\d{2}( (AM|PM))?$`),
		[]string{"1/2/2006 15:04:05", "1/2/2006 3:04:05 PM", "01/02/2006 15:04:05"},
	},
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`),
		[]string{"1/2/2006", "01/02/2006"},
	},
	// European formats
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4} \d{1,2}:\d{2}:\d{2}$`),
		[]string{"2.1.2006 15:04:05", "02.01.2006 15:04:05"},
	},
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`),
		[]string{"2.1.2006", "02.01.2006"},
	},
}

// ParseDateTime parses a string in one of the supported datetime layouts.
// The result is always in UTC.
func ParseDateTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, dp := range datetimePatterns {
		if !dp.pattern.MatchString(value) {
			continue
		}
		// Try each format for this pattern
		for _, format := range dp.formats {
			if t, err := time.Parse(format, value); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// isBoolean reports whether a cell spells a boolean the way spreadsheets export them
func isBoolean(value string) bool {
	switch strings.ToLower(value) {
	case "true", "false":
		return true
	default:
		return false
	}
}

// InferColumnType infers the column type from a slice of raw cell values
func InferColumnType(values []string) DataType {
	if len(values) == 0 {
		return DataTypeText
	}

	hasDatetime := false
	hasDecimal := false
	hasInteger := false
	hasBoolean := false
	hasText := false

	for _, value := range values {
		// Skip empty values for type inference
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		if isBoolean(value) {
			hasBoolean = true
			continue
		}

		// Check if it's a datetime first (before checking numbers)
		if _, ok := ParseDateTime(value); ok {
			hasDatetime = true
			continue
		}

		if _, err := strconv.ParseInt(value, 10, 64); err == nil {
			hasInteger = true
			continue
		}

		if _, err := strconv.ParseFloat(value, 64); err == nil {
			hasDecimal = true
			continue
		}

		// If it's not a number or datetime, it's text
		hasText = true
		break // If any value is text, the whole column is text
	}

	switch {
	case hasText:
		return DataTypeText
	case hasBoolean && (hasDatetime || hasDecimal || hasInteger):
		return DataTypeMixed
	case hasBoolean:
		return DataTypeBoolean
	case hasDatetime && (hasDecimal || hasInteger):
		return DataTypeMixed
	case hasDatetime:
		return DataTypeDateTime
	case hasDecimal:
		return DataTypeDecimal
	case hasInteger:
		return DataTypeInteger
	default:
		// Default to TEXT if no values were found
		return DataTypeText
	}
}

// InferColumns builds column definitions from a header and raw records
func InferColumns(header []string, records [][]string) []Column {
	columns := make([]Column, len(header))
	for i, name := range header {
		var values []string
		for _, record := range records {
			if i < len(record) {
				values = append(values, record[i])
			}
		}
		columns[i] = Column{
			Name:     strings.TrimSpace(name),
			Position: i,
			Type:     InferColumnType(values),
			Nullable: true,
		}
	}
	return columns
}
