package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CreateAndDrop(t *testing.T) {
	t.Parallel()

	m := NewManager(0)
	s := sampleSheet()

	_, err := m.Create("sales", s, "by_region", []string{"region"}, false)
	require.NoError(t, err)
	_, err = m.Create("sales", s, "by_id", []string{"id"}, true)
	require.NoError(t, err)

	assert.True(t, s.HasIndex)
	assert.True(t, s.Columns[0].Indexed)
	assert.True(t, s.Columns[1].Indexed)
	assert.False(t, s.Columns[2].Indexed)

	names := []string{}
	for _, idx := range m.Indexes("sales", "orders") {
		names = append(names, idx.Name())
	}
	assert.Equal(t, []string{"by_region", "by_id"}, names, "declaration order")

	_, err = m.Create("sales", s, "by_id", []string{"amount"}, false)
	assert.ErrorIs(t, err, ErrDuplicateIndex)

	require.NoError(t, m.Drop("sales", s, "by_region"))
	assert.False(t, s.Columns[1].Indexed)
	assert.ErrorIs(t, m.Drop("sales", s, "by_region"), ErrIndexNotFound)

	require.NoError(t, m.Drop("sales", s, "by_id"))
	assert.False(t, s.HasIndex)
	assert.Empty(t, m.Indexes("sales", "orders"))
}

func TestManager_DropScopes(t *testing.T) {
	t.Parallel()

	m := NewManager(0.25)
	s := sampleSheet()
	_, err := m.Create("sales", s, "by_id", []string{"id"}, false)
	require.NoError(t, err)
	_, err = m.Create("hr", s, "by_id", []string{"id"}, false)
	require.NoError(t, err)

	m.DropSheet("sales", "orders")
	assert.Empty(t, m.Indexes("sales", "orders"))
	assert.Len(t, m.Indexes("hr", "orders"), 1)

	m.DropWorkbook("hr")
	assert.Empty(t, m.Indexes("hr", "orders"))
	m.DropWorkbook("hr")
}

func TestManager_Apply(t *testing.T) {
	t.Parallel()

	t.Run("patches small changes", func(t *testing.T) {
		t.Parallel()
		m := NewManager(0.5)
		s := sampleSheet()
		_, err := m.Create("sales", s, "by_region", []string{"region"}, false)
		require.NoError(t, err)

		rows := append(s.Rows, []any{int64(6), "east", 3.0})
		require.NoError(t, m.Apply("sales", "orders", rows, Change{Appended: 1}))
		idx, _ := m.Get("sales", "orders", "by_region")
		assert.Equal(t, []int{0, 2, 5}, idx.Lookup([]any{"east"}))
		assert.Equal(t, 1, idx.Dirty())
		assert.Zero(t, m.Rebuilds())
	})

	t.Run("rebuilds past the threshold", func(t *testing.T) {
		t.Parallel()
		m := NewManager(0.25)
		s := sampleSheet()
		_, err := m.Create("sales", s, "by_region", []string{"region"}, false)
		require.NoError(t, err)

		old := s.Rows
		rows := [][]any{old[1], old[3], old[4]}
		require.NoError(t, m.Apply("sales", "orders", rows, Change{Deleted: []int{0, 2}}))
		idx, _ := m.Get("sales", "orders", "by_region")
		assert.Nil(t, idx.Lookup([]any{"east"}))
		assert.Equal(t, []int{0, 2}, idx.Lookup([]any{"west"}))
		assert.Equal(t, 0, idx.Dirty())
		assert.Equal(t, int64(1), m.Rebuilds())
	})

	t.Run("update", func(t *testing.T) {
		t.Parallel()
		m := NewManager(0.9)
		s := sampleSheet()
		_, err := m.Create("sales", s, "by_region", []string{"region"}, false)
		require.NoError(t, err)

		old := s.Rows[1]
		rows := append([][]any(nil), s.Rows...)
		rows[1] = []any{int64(2), "east", 20.0}
		require.NoError(t, m.Apply("sales", "orders", rows, Change{Updated: []int{1}, OldRows: [][]any{old}}))
		idx, _ := m.Get("sales", "orders", "by_region")
		assert.Equal(t, []int{0, 1, 2}, idx.Lookup([]any{"east"}))
	})
}

func TestManager_CheckUnique(t *testing.T) {
	t.Parallel()

	m := NewManager(0)
	s := sampleSheet()
	_, err := m.Create("sales", s, "u_id", []string{"id"}, true)
	require.NoError(t, err)

	staged := append(append([][]any(nil), s.Rows...), []any{int64(1), "x", 0.0})
	assert.ErrorIs(t, m.CheckUnique("sales", "orders", staged), ErrUniqueViolation)
	assert.NoError(t, m.CheckUnique("sales", "orders", s.Rows))
}

func TestChoose(t *testing.T) {
	t.Parallel()

	s := sampleSheet()
	byRegion, err := Build("by_region", s, []string{"region"}, false)
	require.NoError(t, err)
	regionID, err := Build("region_id", s, []string{"region", "id"}, false)
	require.NoError(t, err)
	byID, err := Build("by_id", s, []string{"id"}, false)
	require.NoError(t, err)
	byAmount, err := Build("by_amount", s, []string{"amount"}, false)
	require.NoError(t, err)
	all := []*Index{byRegion, regionID, byID, byAmount}

	tests := []struct {
		name      string
		eq        []string
		ranged    []string
		wantIndex *Index
		wantPref  int
		wantOK    bool
	}{
		{"most leading columns", []string{"id", "region"}, nil, regionID, 2, true},
		{"tie goes to declaration order", []string{"region"}, nil, byRegion, 1, true},
		{"single equality", []string{"id"}, nil, byID, 1, true},
		{"range only", nil, []string{"amount"}, byAmount, 0, true},
		{"equality beats range", []string{"id"}, []string{"amount"}, byID, 1, true},
		{"nothing usable", []string{"other"}, []string{"other"}, nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			choice, ok := Choose(all, tt.eq, tt.ranged)
			assert.Equal(t, tt.wantOK, ok)
			assert.Same(t, tt.wantIndex, choice.Index)
			assert.Equal(t, tt.wantPref, choice.Prefix)
		})
	}
}
