package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"leadsync-engine/internal/cache"
)

// CacheBackend keeps cache entries in the response_cache table so they
// survive restarts.
type CacheBackend struct {
	db *sql.DB
}

func (d *DB) CacheBackend() *CacheBackend {
	return &CacheBackend{db: d.Pool}
}

func (c *CacheBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var b []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM response_cache WHERE key = ?;`, key).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, wrap("cache get", err)
	}
	return b, nil
}

func (c *CacheBackend) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	expires := time.Now().Add(ttl).UTC().Format(time.RFC3339)
	_, err := c.db.ExecContext(ctx, `
INSERT INTO response_cache (key, value, expires_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  value = excluded.value,
  expires_at = excluded.expires_at;`, key, val, expires)
	return wrap("cache set", err)
}

func (c *CacheBackend) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM response_cache WHERE key = ?;`, key)
	return wrap("cache delete", err)
}

func (c *CacheBackend) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM response_cache WHERE key LIKE ?;`, cache.KeyPrefix+"%")
	return wrap("cache clear", err)
}
