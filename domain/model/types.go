// Package model provides the domain model for sheetsql: workbooks, sheets,
// columns, cell values and query results.
package model

import (
	"strings"
)

// DataType represents the inferred or declared type of a sheet column
type DataType int

const (
	// DataTypeText represents TEXT columns
	DataTypeText DataType = iota
	// DataTypeInteger represents INTEGER columns
	DataTypeInteger
	// DataTypeDecimal represents DECIMAL columns
	DataTypeDecimal
	// DataTypeBoolean represents BOOLEAN columns
	DataTypeBoolean
	// DataTypeDateTime represents DATE, DATETIME and TIME columns
	DataTypeDateTime
	// DataTypeMixed represents columns whose type could not be resolved
	DataTypeMixed
)

const (
	sqlTypeText     = "TEXT"
	sqlTypeInteger  = "INTEGER"
	sqlTypeDecimal  = "DECIMAL"
	sqlTypeBoolean  = "BOOLEAN"
	sqlTypeDateTime = "DATETIME"
	sqlTypeMixed    = "MIXED"
)

// String returns the SQL type name
func (dt DataType) String() string {
	switch dt {
	case DataTypeText:
		return sqlTypeText
	case DataTypeInteger:
		return sqlTypeInteger
	case DataTypeDecimal:
		return sqlTypeDecimal
	case DataTypeBoolean:
		return sqlTypeBoolean
	case DataTypeDateTime:
		return sqlTypeDateTime
	default:
		return sqlTypeMixed
	}
}

// IsNumeric reports whether the type holds numbers
func (dt DataType) IsNumeric() bool {
	return dt == DataTypeInteger || dt == DataTypeDecimal
}

// ParseDataType maps a SQL type name such as "INT", "VARCHAR(20)" or
// "DECIMAL(10,2)" to a DataType. Unknown names map to DataTypeMixed.
func ParseDataType(name string) DataType {
	name = strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	switch name {
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT":
		return DataTypeInteger
	case "DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL", "NUMBER":
		return DataTypeDecimal
	case "BOOL", "BOOLEAN":
		return DataTypeBoolean
	case "DATE", "DATETIME", "TIMESTAMP", "TIME":
		return DataTypeDateTime
	case "TEXT", "VARCHAR", "CHAR", "STRING", "NVARCHAR", "LONGTEXT":
		return DataTypeText
	default:
		return DataTypeMixed
	}
}
