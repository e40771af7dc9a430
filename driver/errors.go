package driver

import "errors"

// Predefined errors
var (
	// ErrInvalidDSN is returned when a data source name cannot be parsed
	ErrInvalidDSN = errors.New("sheetsql driver: invalid data source name")

	// ErrBeginTxNotSupported is returned by Begin; statements commit one by one
	ErrBeginTxNotSupported = errors.New("sheetsql driver: transactions are not supported")

	// ErrArgumentCount is returned when the number of arguments does not
	// match the placeholders of a statement
	ErrArgumentCount = errors.New("sheetsql driver: argument count mismatch")

	// ErrUnsupportedArgument is returned for argument types that have no
	// SQL literal
	ErrUnsupportedArgument = errors.New("sheetsql driver: unsupported argument type")

	// ErrNamedArgument is returned for named arguments; only ? placeholders
	// are supported
	ErrNamedArgument = errors.New("sheetsql driver: named arguments are not supported")

	// ErrConnClosed is returned when a closed connection is used
	ErrConnClosed = errors.New("sheetsql driver: connection is closed")
)
