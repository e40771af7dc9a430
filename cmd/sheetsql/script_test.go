package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "single statement without semicolon",
			script: "SELECT 1",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "several statements",
			script: "CREATE WORKBOOK w;\nUSE w;\n\nSHOW SHEETS;",
			want:   []string{"CREATE WORKBOOK w", "USE w", "SHOW SHEETS"},
		},
		{
			name:   "semicolons inside quotes",
			script: `INSERT INTO t VALUES ('a;b', "c;d"); SELECT 1`,
			want:   []string{`INSERT INTO t VALUES ('a;b', "c;d")`, "SELECT 1"},
		},
		{
			name:   "comments",
			script: "-- setup; still a comment\nSELECT 1; -- trailing\n",
			want:   []string{"-- setup; still a comment\nSELECT 1"},
		},
		{
			name:   "empty",
			script: " ; ;",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, splitStatements(tt.script))
		})
	}
}
