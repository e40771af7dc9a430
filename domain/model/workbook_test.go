package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateName("workbook", "sales-2024.v1"))
	assert.ErrorIs(t, ValidateName("workbook", "sales:2024"), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("sheet", "a,b"), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("sheet", ""), ErrInvalidName)
}

func TestWorkbook_Sheets(t *testing.T) {
	t.Parallel()

	wb := NewWorkbook("sales", time.Now())
	orders := NewSheet("orders", []Column{{Name: "id", Type: DataTypeInteger}, {Name: "amount", Type: DataTypeDecimal}})
	wb.PutSheet(orders)
	wb.PutSheet(NewSheet("items", nil))

	got, ok := wb.Sheet("orders")
	require.True(t, ok)
	assert.Equal(t, 1, got.Columns[1].Position)
	assert.Equal(t, 1, got.ColumnIndex("amount"))
	assert.Equal(t, -1, got.ColumnIndex("missing"))

	orders.Deleted = true
	_, ok = wb.Sheet("orders")
	assert.False(t, ok)
	assert.Len(t, wb.ActiveSheets(), 1)

	wb.PutSheet(NewSheet("orders", nil))
	assert.Len(t, wb.Sheets, 2, "re-created sheet replaces the dropped one")
	assert.Len(t, wb.ActiveSheets(), 2)
}

func TestSheet_Clone(t *testing.T) {
	t.Parallel()

	sheet := NewSheet("orders", []Column{{Name: "id"}})
	sheet.Rows = [][]any{{int64(1)}, {int64(2)}}

	clone := sheet.Clone()
	clone.Rows[0][0] = int64(42)
	clone.Rows = append(clone.Rows, []any{int64(3)})

	assert.Equal(t, int64(1), sheet.Rows[0][0])
	assert.Equal(t, 2, sheet.RowCount())
	assert.Equal(t, 3, clone.RowCount())
}
