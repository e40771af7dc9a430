package model

import "errors"

var (
	// ErrDuplicateColumnName is returned when a sheet declares the same column twice
	ErrDuplicateColumnName = errors.New("duplicate column name")

	// ErrInvalidName is returned when a workbook, sheet, column or index name
	// contains characters outside [A-Za-z0-9_.-]
	ErrInvalidName = errors.New("invalid name")

	// ErrTypeMismatch is returned when a value cannot be coerced to a column type
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrCorruptResult is returned when an encoded query result cannot be decoded
	ErrCorruptResult = errors.New("corrupt query result payload")
)
