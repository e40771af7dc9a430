package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"int pair", int64(1), int64(2), -1},
		{"int and float", int64(10), 10.0, 0},
		{"numeric text and int", "10", int64(9), 1},
		{"numeric texts compare as numbers", "10", "9", 1},
		{"large ints stay exact", int64(9007199254740993), 9007199254740992.0, 1},
		{"text", "apple", "banana", -1},
		{"text is case sensitive", "a", "A", 1},
		{"bools", false, true, -1},
		{"bool and text", true, "true", 0},
		{"times", day, day.Add(time.Hour), -1},
		{"time and date text", day, "2024-03-01", 0},
		{"number and text", int64(5), "abc", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Compare(tt.a, tt.b)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("NULL is unknown", func(t *testing.T) {
		t.Parallel()
		_, ok := Compare(nil, int64(1))
		assert.False(t, ok)
		_, ok = Compare("a", nil)
		assert.False(t, ok)
		assert.False(t, Equal(nil, nil))
	})
}

func TestKey_ConsistentWithCompare(t *testing.T) {
	t.Parallel()

	values := []any{
		int64(10), 10.0, "10", "10.0", "+10", 10.5, "10.5", "abc", "ABC", true, "true", false,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-03-01", int64(0), -0.0, "",
	}
	for _, a := range values {
		for _, b := range values {
			c, ok := Compare(a, b)
			require.True(t, ok)
			assert.Equal(t, c == 0, Key(a) == Key(b), "Compare(%#v, %#v)=%d but keys %q %q", a, b, c, Key(a), Key(b))
		}
	}
	assert.Equal(t, "null", Key(nil))
}

func TestText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "30.5", Text(30.5))
	assert.Equal(t, "20", Text(20.0))
	assert.Equal(t, "2024-03-01", Text(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-01 10:20:30.5", Text(time.Date(2024, 3, 1, 10, 20, 30, 500000000, time.UTC)))
	assert.Equal(t, "false", Text(false))
}

func TestCoerce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    any
		dataType DataType
		want     any
		wantErr  bool
	}{
		{"int to decimal", int64(20), DataTypeDecimal, 20.0, false},
		{"integral float to int", 3.0, DataTypeInteger, int64(3), false},
		{"fractional float to int", 3.5, DataTypeInteger, nil, true},
		{"text to int", " 42 ", DataTypeInteger, int64(42), false},
		{"word to int", "abc", DataTypeInteger, nil, true},
		{"text to bool", "TRUE", DataTypeBoolean, true, false},
		{"one to bool", int64(1), DataTypeBoolean, true, false},
		{"text to datetime", "2024-03-01", DataTypeDateTime, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"number to text", 10.5, DataTypeText, "10.5", false},
		{"mixed keeps value", int64(7), DataTypeMixed, int64(7), false},
		{"null stays null", nil, DataTypeInteger, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Coerce(tt.value, tt.dataType)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTypeMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruthy(t *testing.T) {
	t.Parallel()

	v, known := Truthy(nil)
	assert.False(t, known)
	assert.False(t, v)

	v, known = Truthy(int64(2))
	assert.True(t, known)
	assert.True(t, v)

	v, _ = Truthy("0")
	assert.False(t, v)

	v, _ = Truthy("TRUE")
	assert.True(t, v)
}

func TestParseCell(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ParseCell("  ", DataTypeInteger))
	assert.Equal(t, int64(5), ParseCell("5", DataTypeInteger))
	assert.Equal(t, "n/a", ParseCell("n/a", DataTypeInteger))
}
