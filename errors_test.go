package sheetsql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nao1215/sheetsql/domain/model"
	"github.com/nao1215/sheetsql/index"
	"github.com/nao1215/sheetsql/storage"
)

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want model.ErrorKind
	}{
		{name: "nil", err: nil, want: model.ErrorKindNone},
		{name: "parse", err: ErrParse, want: model.ErrorKindParse},
		{name: "no workbook", err: ErrNoWorkbook, want: model.ErrorKindValidation},
		{name: "timeout", err: ErrTimeout, want: model.ErrorKindExecution},
		{name: "closed", err: ErrClosed, want: model.ErrorKindExecution},
		{name: "unsupported", err: fmt.Errorf("%w: x", ErrUnsupportedStatement), want: model.ErrorKindUnsupported},
		{name: "type mismatch", err: model.ErrTypeMismatch, want: model.ErrorKindValidation},
		{name: "unique violation", err: index.ErrUniqueViolation, want: model.ErrorKindValidation},
		{name: "missing index", err: index.ErrIndexNotFound, want: model.ErrorKindNotFound},
		{name: "missing sheet file", err: storage.ErrSheetNotFound, want: model.ErrorKindNotFound},
		{name: "anything else", err: errors.New("disk on fire"), want: model.ErrorKindExecution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, errorKind(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	ec := func() *errorContext { return newErrorContext("insert", "sales").withSheet("orders") }

	assert.NoError(t, classify(ec(), nil))
	assert.ErrorIs(t, classify(ec(), context.DeadlineExceeded), ErrTimeout)
	assert.Equal(t, ErrNoWorkbook, classify(ec(), ErrNoWorkbook), "kinded errors pass through")

	err := classify(ec(), model.ErrTypeMismatch)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, model.ErrTypeMismatch)
	assert.Contains(t, err.Error(), "insert failed, workbook: sales, sheet: orders")

	cause := errors.New("disk on fire")
	err = classify(ec().withDetails("persist"), cause)
	assert.ErrorIs(t, err, ErrExecution)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "persist")
}

func TestResultError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ResultError(nil))
	assert.NoError(t, ResultError(&model.QueryResult{Success: true}))

	tests := []struct {
		kind model.ErrorKind
		want error
	}{
		{kind: model.ErrorKindParse, want: ErrParse},
		{kind: model.ErrorKindValidation, want: ErrValidation},
		{kind: model.ErrorKindNotFound, want: ErrNotFound},
		{kind: model.ErrorKindUnsupported, want: ErrUnsupportedStatement},
		{kind: model.ErrorKindExecution, want: ErrExecution},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()

			err := ResultError(&model.QueryResult{ErrorKind: tt.kind, Error: "boom"})
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "boom")
		})
	}

	// the message of an engine failure is not prefixed twice
	e := newTestEngine(t)
	res := e.Query(context.Background(), e.NewSession(), `DROP WORKBOOK nothing`, ExecOptions{})
	err := ResultError(res)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, res.Error, err.Error())
}
