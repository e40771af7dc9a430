package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryResult_BinaryRoundTrip(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 10, 20, 30, 123456789, time.UTC)
	original := &QueryResult{
		StatementType: "SELECT",
		Columns: []ColumnDef{
			{Name: "id", Label: "id", Type: DataTypeInteger},
			{Name: "SUM(amount)", Label: "total", Type: DataTypeDecimal, Aggregated: true},
			{Name: "name", Label: "name", Type: DataTypeText},
			{Name: "active", Label: "active", Type: DataTypeBoolean},
			{Name: "created", Label: "created", Type: DataTypeDateTime},
		},
		Rows: []map[string]any{
			{"id": int64(1), "total": 30.5, "name": "10", "active": true, "created": ts},
			{"id": nil, "total": 0.1, "name": "", "active": false, "created": nil},
		},
		Duration: 15 * time.Millisecond,
		Success:  true,
	}

	data, err := original.MarshalBinary()
	require.NoError(t, err)

	var decoded QueryResult
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, original, &decoded)
	assert.IsType(t, int64(0), decoded.Rows[0]["id"])
	assert.IsType(t, "", decoded.Rows[0]["name"], "numeric text stays text")
}

func TestQueryResult_UnmarshalBinaryRejectsGarbage(t *testing.T) {
	t.Parallel()

	var r QueryResult
	assert.ErrorIs(t, r.UnmarshalBinary([]byte("{not json")), ErrCorruptResult)
	assert.ErrorIs(t, r.UnmarshalBinary([]byte(`{"columns":[{"label":"a"}],"rows":[[{"k":"weird"}]]}`)), ErrCorruptResult)
}

func TestQueryResult_WithCacheHit(t *testing.T) {
	t.Parallel()

	r := &QueryResult{Success: true, Duration: time.Second, Rows: []map[string]any{{"a": int64(1)}}}
	hit := r.WithCacheHit(time.Millisecond)

	assert.True(t, hit.FromCache)
	assert.False(t, r.FromCache)
	assert.Equal(t, time.Millisecond, hit.Duration)
	assert.Equal(t, []any{int64(1)}, hit.Column("a"))
}
