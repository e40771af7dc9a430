package sheetsql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/sheetsql/domain/model"
	"github.com/nao1215/sheetsql/index"
	"github.com/nao1215/sheetsql/parser"
	"github.com/nao1215/sheetsql/storage"
)

// Error kinds. Every failed statement wraps exactly one of them.
var (
	// ErrParse indicates malformed SQL; the statement never executes
	ErrParse = errors.New("sheetsql: parse error")

	// ErrValidation indicates a statement rejected before any side effect,
	// e.g. a missing workbook context, an unknown sheet or column, or a value
	// that cannot be coerced to its column type
	ErrValidation = errors.New("sheetsql: validation error")

	// ErrNotFound indicates a DROP of an entity that does not exist
	ErrNotFound = errors.New("sheetsql: not found")

	// ErrUnsupportedStatement indicates a recognized statement without a handler
	ErrUnsupportedStatement = errors.New("sheetsql: unsupported statement")

	// ErrExecution indicates a runtime failure during scan, join, aggregation
	// or commit
	ErrExecution = errors.New("sheetsql: execution error")
)

var (
	// ErrNoWorkbook is returned when a statement needs a workbook and neither
	// the options nor the session name one
	ErrNoWorkbook = fmt.Errorf("%w: no workbook selected", ErrValidation)

	// ErrTimeout is returned when a statement outlives its timeout
	ErrTimeout = fmt.Errorf("%w: statement timed out", ErrExecution)

	// ErrClosed is returned by an engine after Close
	ErrClosed = fmt.Errorf("%w: engine closed", ErrExecution)
)

// errorContext describes where an error occurred
type errorContext struct {
	operation string
	workbook  string
	sheet     string
	details   string
}

func newErrorContext(operation, workbook string) *errorContext {
	return &errorContext{operation: operation, workbook: workbook}
}

func (ec *errorContext) withSheet(sheet string) *errorContext {
	ec.sheet = sheet
	return ec
}

func (ec *errorContext) withDetails(format string, args ...any) *errorContext {
	ec.details = fmt.Sprintf(format, args...)
	return ec
}

// err formats an error of the given kind. cause, when not nil, stays
// reachable through errors.Is and errors.As.
func (ec *errorContext) err(kind, cause error) error {
	parts := []string{ec.operation + " failed"}
	if ec.workbook != "" {
		parts = append(parts, "workbook: "+ec.workbook)
	}
	if ec.sheet != "" {
		parts = append(parts, "sheet: "+ec.sheet)
	}
	if ec.details != "" {
		parts = append(parts, ec.details)
	}
	msg := strings.Join(parts, ", ")
	if cause != nil {
		return fmt.Errorf("%w: %s: %w", kind, msg, cause)
	}
	return fmt.Errorf("%w: %s", kind, msg)
}

// errorKind classifies an error returned by a handler
func errorKind(err error) model.ErrorKind {
	switch {
	case err == nil:
		return model.ErrorKindNone
	case errors.Is(err, ErrParse), errors.Is(err, parser.ErrSyntax):
		return model.ErrorKindParse
	case errors.Is(err, ErrNotFound):
		return model.ErrorKindNotFound
	case errors.Is(err, ErrUnsupportedStatement):
		return model.ErrorKindUnsupported
	case errors.Is(err, ErrExecution):
		return model.ErrorKindExecution
	case errors.Is(err, ErrValidation),
		errors.Is(err, model.ErrTypeMismatch),
		errors.Is(err, model.ErrInvalidName),
		errors.Is(err, model.ErrDuplicateColumnName),
		errors.Is(err, index.ErrUniqueViolation),
		errors.Is(err, index.ErrUnknownColumn),
		errors.Is(err, index.ErrDuplicateIndex):
		return model.ErrorKindValidation
	case errors.Is(err, index.ErrIndexNotFound),
		errors.Is(err, storage.ErrWorkbookNotFound),
		errors.Is(err, storage.ErrSheetNotFound):
		return model.ErrorKindNotFound
	default:
		return model.ErrorKindExecution
	}
}

// classify wraps errors that carry no kind of their own, such as failures of
// the storage layer or of a function, with the kind errorKind assigns them.
func classify(ec *errorContext, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, ErrValidation), errors.Is(err, ErrExecution),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrUnsupportedStatement):
		return err
	default:
		if errorKind(err) == model.ErrorKindValidation {
			return ec.err(ErrValidation, err)
		}
		return ec.err(ErrExecution, err)
	}
}

// ResultError returns the failure carried by a result, or nil. The error
// wraps the sentinel matching the result's ErrorKind.
func ResultError(r *model.QueryResult) error {
	if r == nil || r.Success {
		return nil
	}
	var kind error
	switch r.ErrorKind {
	case model.ErrorKindParse:
		kind = ErrParse
	case model.ErrorKindValidation:
		kind = ErrValidation
	case model.ErrorKindNotFound:
		kind = ErrNotFound
	case model.ErrorKindUnsupported:
		kind = ErrUnsupportedStatement
	default:
		kind = ErrExecution
	}
	if strings.HasPrefix(r.Error, kind.Error()) {
		return fmt.Errorf("%w%s", kind, strings.TrimPrefix(r.Error, kind.Error()))
	}
	return fmt.Errorf("%w: %s", kind, r.Error)
}
