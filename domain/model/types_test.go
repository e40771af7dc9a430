package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataType_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dataType DataType
		expected string
	}{
		{DataTypeText, "TEXT"},
		{DataTypeInteger, "INTEGER"},
		{DataTypeDecimal, "DECIMAL"},
		{DataTypeBoolean, "BOOLEAN"},
		{DataTypeDateTime, "DATETIME"},
		{DataTypeMixed, "MIXED"},
		{DataType(99), "MIXED"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.dataType.String())
		})
	}
}

func TestParseDataType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		expected DataType
	}{
		{"INT", DataTypeInteger},
		{"bigint", DataTypeInteger},
		{"DECIMAL(10,2)", DataTypeDecimal},
		{"double", DataTypeDecimal},
		{"BOOL", DataTypeBoolean},
		{"timestamp", DataTypeDateTime},
		{"VARCHAR(20)", DataTypeText},
		{"text", DataTypeText},
		{"BLOB", DataTypeMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ParseDataType(tt.name))
		})
	}
}

func TestDataType_IsNumeric(t *testing.T) {
	t.Parallel()

	assert.True(t, DataTypeInteger.IsNumeric())
	assert.True(t, DataTypeDecimal.IsNumeric())
	assert.False(t, DataTypeText.IsNumeric())
	assert.False(t, DataTypeDateTime.IsNumeric())
}
