package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the sqlite driver
)

const createEntriesTable = `CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key  TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	hit_count  INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
)`

// SQLiteStore is a DurableStore in a sqlite database file
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the store at path. ":memory:"
// gives a private in-memory database.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store %s: %w", path, err)
	}
	// one connection: sqlite serializes writers anyway, and an in-memory
	// database exists per connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, createEntriesTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get implements DurableStore
func (s *SQLiteStore) Get(ctx context.Context, key string) (Record, bool, error) {
	var (
		rec              Record
		created, expires int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, hit_count, created_at, expires_at FROM cache_entries WHERE cache_key = ?`, key).
		Scan(&rec.Payload, &rec.HitCount, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1 WHERE cache_key = ?`, key); err != nil {
		return Record{}, false, fmt.Errorf("failed to count cache hit: %w", err)
	}
	rec.HitCount++
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.ExpiresAt = time.Unix(0, expires).UTC()
	return rec, true, nil
}

// Put implements DurableStore
func (s *SQLiteStore) Put(ctx context.Context, key string, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (cache_key, payload, hit_count, created_at, expires_at)
		 VALUES (?, ?, 0, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   payload = excluded.payload,
		   hit_count = 0,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		key, rec.Payload, rec.CreatedAt.UnixNano(), rec.ExpiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Delete implements DurableStore
func (s *SQLiteStore) Delete(ctx context.Context, keys ...string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cache delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare cache delete: %w", err)
	}
	defer stmt.Close()
	for _, k := range keys {
		if _, err = stmt.ExecContext(ctx, k); err != nil {
			return fmt.Errorf("failed to delete cache entry: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache delete: %w", err)
	}
	return nil
}

// Keys implements DurableStore
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cache_key FROM cache_entries ORDER BY cache_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to list cache keys: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// PurgeExpired deletes records that expired before now and reports how many
func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired cache entries: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
