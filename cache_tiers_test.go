package sheetsql

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/sheetsql/cache"
)

func redisKeys(mr *miniredis.Miniredis) []string {
	var keys []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, cache.RedisKeyPrefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

func TestRedisAndSQLiteTiers(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Cache.RedisAddr = mr.Addr()
	cfg.Cache.DurablePath = filepath.Join(t.TempDir(), "cache.db")
	cfg.Cache.Compression = "xz"
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	stats := e.CacheStats()
	require.Len(t, stats, 3)
	assert.Equal(t, "memory", stats[0].Name)
	assert.Equal(t, "redis", stats[1].Name)
	assert.Equal(t, "durable", stats[2].Name)

	sess := setupSales(t, e)
	opts := ExecOptions{UseCache: true}

	assert.False(t, mustRun(t, e, sess, `SELECT * FROM orders`, opts).FromCache)
	assert.Len(t, redisKeys(mr), 1)
	assert.True(t, mustRun(t, e, sess, `SELECT * FROM orders`, opts).FromCache)

	mustRun(t, e, sess, `INSERT INTO orders VALUES (3, 1)`)
	assert.Empty(t, redisKeys(mr), "a write drops the sheet's entries from redis")

	res := mustRun(t, e, sess, `SELECT * FROM orders`, opts)
	assert.False(t, res.FromCache)
	assert.Len(t, res.Rows, 3)

	require.NoError(t, e.ClearAll(t.Context()))
	assert.Empty(t, redisKeys(mr))
	assert.False(t, mustRun(t, e, sess, `SELECT * FROM orders`, opts).FromCache)
}

func TestDurableTierOutlivesRestart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.BaseDir = filepath.Join(dir, "books")
	cfg.Storage.Format = "csv"
	cfg.Cache.DurablePath = filepath.Join(dir, "cache.db")

	first, err := New(cfg)
	require.NoError(t, err)
	sess := setupSales(t, first)
	opts := ExecOptions{UseCache: true}
	assert.False(t, mustRun(t, first, sess, `SELECT id FROM orders`, opts).FromCache)
	require.NoError(t, first.Close())

	second, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	res := mustRun(t, second, second.NewSession(), `SELECT id FROM orders`, ExecOptions{Workbook: "sales", UseCache: true})
	assert.True(t, res.FromCache)
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, int64(1), second.CacheStats()[2].Hits)
}
