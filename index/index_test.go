package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/sheetsql/domain/model"
)

func ordersSheet(rows ...[]any) *model.Sheet {
	s := model.NewSheet("orders", []model.Column{
		{Name: "id", Type: model.DataTypeInteger},
		{Name: "region", Type: model.DataTypeText},
		{Name: "amount", Type: model.DataTypeDecimal},
	})
	s.Rows = rows
	return s
}

func sampleSheet() *model.Sheet {
	return ordersSheet(
		[]any{int64(1), "east", 10.5},
		[]any{int64(2), "west", 20.0},
		[]any{int64(3), "east", 5.0},
		[]any{int64(4), nil, 7.25},
		[]any{int64(5), "west", nil},
	)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("single column", func(t *testing.T) {
		t.Parallel()
		idx, err := Build("by_region", sampleSheet(), []string{"region"}, false)
		require.NoError(t, err)
		assert.Equal(t, TypeSingle, idx.Type())
		assert.Equal(t, 5, idx.Len())
		assert.Equal(t, []int{0, 2}, idx.Lookup([]any{"east"}))
		assert.Equal(t, []int{1, 4}, idx.Lookup([]any{"west"}))
		assert.Nil(t, idx.Lookup([]any{"north"}))
		assert.Nil(t, idx.Lookup([]any{nil}), "NULL never matches")
	})

	t.Run("unknown column", func(t *testing.T) {
		t.Parallel()
		_, err := Build("bad", sampleSheet(), []string{"missing"}, false)
		assert.ErrorIs(t, err, ErrUnknownColumn)
	})

	t.Run("unique violation", func(t *testing.T) {
		t.Parallel()
		_, err := Build("u_region", sampleSheet(), []string{"region"}, true)
		assert.ErrorIs(t, err, ErrUniqueViolation)
	})

	t.Run("unique allows several NULLs", func(t *testing.T) {
		t.Parallel()
		s := ordersSheet([]any{int64(1), nil, 1.0}, []any{int64(2), nil, 2.0})
		_, err := Build("u_region", s, []string{"region"}, true)
		assert.NoError(t, err)
	})
}

func TestIndex_LookupUsesValueEquality(t *testing.T) {
	t.Parallel()

	s := ordersSheet(
		[]any{int64(7), "a", 1.0},
		[]any{"7", "b", 2.0},
		[]any{7.0, "c", 3.0},
		[]any{"07x", "d", 4.0},
	)
	idx, err := Build("by_id", s, []string{"id"}, false)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, idx.Lookup([]any{int64(7)}))
	assert.Equal(t, []int{0, 1, 2}, idx.Lookup([]any{"7.0"}))
}

func TestIndex_CompositePrefixLookup(t *testing.T) {
	t.Parallel()

	idx, err := Build("region_id", sampleSheet(), []string{"region", "id"}, true)
	require.NoError(t, err)
	assert.Equal(t, TypeComposite, idx.Type())
	assert.Equal(t, []int{2}, idx.Lookup([]any{"east", int64(3)}))
	assert.Equal(t, []int{0, 2}, idx.Lookup([]any{"east"}))
	assert.Nil(t, idx.Lookup([]any{"east", int64(3), 1}), "too many values")
}

func TestIndex_Range(t *testing.T) {
	t.Parallel()

	idx, err := Build("by_amount", sampleSheet(), []string{"amount"}, false)
	require.NoError(t, err)

	tests := []struct {
		name   string
		lo     any
		loIncl bool
		hi     any
		hiIncl bool
		want   []int
	}{
		{"closed", 5.0, true, 10.5, true, []int{0, 2, 3}},
		{"open", 5.0, false, 10.5, false, []int{3}},
		{"lower bound only", int64(10), true, nil, false, []int{0, 1}},
		{"upper bound only", nil, false, int64(7), false, []int{2}},
		{"unbounded skips NULL", nil, false, nil, false, []int{0, 1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, idx.Range(tt.lo, tt.loIncl, tt.hi, tt.hiIncl))
		})
	}
}

func TestIndex_IncrementalMaintenance(t *testing.T) {
	t.Parallel()

	s := sampleSheet()
	idx, err := Build("by_region", s, []string{"region"}, false)
	require.NoError(t, err)

	t.Run("insert", func(t *testing.T) {
		require.NoError(t, idx.OnInsert(5, [][]any{{int64(6), "east", 1.0}, {int64(7), "north", 2.0}}))
		assert.Equal(t, []int{0, 2, 5}, idx.Lookup([]any{"east"}))
		assert.Equal(t, []int{6}, idx.Lookup([]any{"north"}))
		assert.Equal(t, 7, idx.Len())
		assert.Equal(t, 2, idx.Dirty())
	})

	t.Run("update", func(t *testing.T) {
		require.NoError(t, idx.OnUpdate(0, []any{int64(1), "east", 10.5}, []any{int64(1), "north", 10.5}))
		assert.Equal(t, []int{2, 5}, idx.Lookup([]any{"east"}))
		assert.Equal(t, []int{0, 6}, idx.Lookup([]any{"north"}))
	})

	t.Run("delete shifts positions", func(t *testing.T) {
		idx.OnDelete([]int{2, 0})
		assert.Equal(t, []int{3}, idx.Lookup([]any{"east"}))
		assert.Equal(t, []int{4}, idx.Lookup([]any{"north"}))
		assert.Equal(t, []int{0, 2}, idx.Lookup([]any{"west"}))
		assert.Equal(t, 5, idx.Len())
	})
}

func TestIndex_UniqueMaintenance(t *testing.T) {
	t.Parallel()

	idx, err := Build("u_id", sampleSheet(), []string{"id"}, true)
	require.NoError(t, err)

	err = idx.OnInsert(5, [][]any{{int64(9), "x", 1.0}, {int64(2), "y", 1.0}})
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Nil(t, idx.Lookup([]any{int64(9)}), "a rejected batch applies nothing")

	err = idx.OnUpdate(0, []any{int64(1), "east", 10.5}, []any{int64(3), "east", 10.5})
	assert.ErrorIs(t, err, ErrUniqueViolation)

	assert.ErrorIs(t, idx.CheckRows([][]any{{int64(1)}, {int64(1)}}), ErrUniqueViolation)
	assert.NoError(t, idx.CheckRows([][]any{{int64(1)}, {nil}, {nil}}))
}

func TestIndex_NeedsRebuild(t *testing.T) {
	t.Parallel()

	idx, err := Build("by_id", sampleSheet(), []string{"id"}, false)
	require.NoError(t, err)
	assert.False(t, idx.NeedsRebuild(5, 0.25))

	require.NoError(t, idx.OnInsert(5, [][]any{{int64(6)}}))
	assert.False(t, idx.NeedsRebuild(6, 0.25))
	require.NoError(t, idx.OnInsert(6, [][]any{{int64(7)}}))
	assert.True(t, idx.NeedsRebuild(7, 0.25))

	require.NoError(t, idx.Rebuild(sampleSheet().Rows))
	assert.Equal(t, 0, idx.Dirty())
}
