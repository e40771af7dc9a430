package sheetsql

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/sheetsql/domain/model"
)

func newDirectoryEngine(t *testing.T, dir, format, compression string) *Engine {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Storage.BaseDir = dir
	cfg.Storage.Format = format
	cfg.Storage.Compression = compression
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestWorkbooksSurviveRestart(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format      string
		compression string
	}{
		{format: "xlsx", compression: "none"},
		{format: "csv", compression: "none"},
		{format: "csv", compression: "gz"},
		{format: "tsv", compression: "zstd"},
	}
	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.compression, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			first := newDirectoryEngine(t, dir, tt.format, tt.compression)
			sess := first.NewSession()
			mustRun(t, first, sess, `CREATE WORKBOOK crm`)
			mustRun(t, first, sess, `CREATE SHEET people (id INT, name TEXT)`)
			mustRun(t, first, sess, `INSERT INTO people VALUES (1, 'ann'), (2, 'bob'), (3, 'cid')`)
			mustRun(t, first, sess, `UPDATE people SET name = 'BOB' WHERE id = 2`)
			mustRun(t, first, sess, `DELETE FROM people WHERE id = 3`)
			require.NoError(t, first.Close())

			second := newDirectoryEngine(t, dir, tt.format, tt.compression)
			infos, err := second.Workbooks(context.Background())
			require.NoError(t, err)
			require.Len(t, infos, 1)
			assert.Equal(t, "crm", infos[0].Name)
			assert.Equal(t, []string{"people"}, infos[0].Sheets)

			sess = second.NewSession()
			mustRun(t, second, sess, `USE crm`)
			res := mustRun(t, second, sess, `SELECT id, name FROM people ORDER BY id`)
			assert.Equal(t, []any{int64(1), int64(2)}, columnOf(res, "id"))
			assert.Equal(t, []any{"ann", "BOB"}, columnOf(res, "name"))
			assert.Equal(t, model.DataTypeInteger, res.Columns[0].Type)
		})
	}
}

func TestPreload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := newDirectoryEngine(t, dir, "csv", "none")
	sess := writer.NewSession()
	for _, wb := range []string{"east", "west"} {
		mustRun(t, writer, sess, `CREATE WORKBOOK `+wb)
		mustRun(t, writer, sess, `CREATE SHEET a (x INT)`)
		mustRun(t, writer, sess, `CREATE SHEET b (y TEXT)`)
		mustRun(t, writer, sess, `INSERT INTO a VALUES (1), (2)`)
	}
	require.NoError(t, writer.Close())

	e := newDirectoryEngine(t, dir, "csv", "none")
	ctx := context.Background()
	require.NoError(t, e.Preload(ctx, "east", "west"))
	wb, ok := e.workbooks.cached("east")
	require.True(t, ok)
	assert.Len(t, wb.ActiveSheets(), 2)

	err := e.Preload(ctx, "east", "nothing")
	assert.ErrorIs(t, err, ErrNotFound)

	res := mustRun(t, e, e.NewSession(), `SELECT SUM(x) AS s FROM a`, ExecOptions{Workbook: "west"})
	assert.Equal(t, int64(3), res.Rows[0]["s"])
}

func TestDroppedWorkbookStaysHidden(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	e := newDirectoryEngine(t, dir, "xlsx", "none")
	sess := e.NewSession()
	mustRun(t, e, sess, `CREATE WORKBOOK old`)
	mustRun(t, e, sess, `CREATE SHEET s (x INT)`)
	_, err := os.Stat(filepath.Join(dir, "old.xlsx"))
	require.NoError(t, err, "creating a sheet writes the workbook file")

	mustRun(t, e, sess, `DROP WORKBOOK old`)
	infos, err := e.Workbooks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)

	res := run(t, e, sess, `USE old`)
	assert.Equal(t, model.ErrorKindValidation, res.ErrorKind, "the file does not bring it back")

	mustRun(t, e, sess, `CREATE WORKBOOK old`)
	assert.Empty(t, mustRun(t, e, sess, `SHOW SHEETS`).Rows)
}

func TestUnsupportedStorageFormat(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Storage.BaseDir = t.TempDir()
	cfg.Storage.Format = "ods"
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrValidation)
}
