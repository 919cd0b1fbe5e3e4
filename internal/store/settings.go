package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetSetting returns the stored value; ok is false when the name is unset.
func (d *DB) GetSetting(ctx context.Context, name string) (value string, ok bool, err error) {
	err = d.Pool.QueryRowContext(ctx, `SELECT value FROM settings WHERE name = ?;`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("get setting", err)
	}
	return value, true, nil
}

func (d *DB) SetSetting(ctx context.Context, name, value string) error {
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO settings (name, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  value = excluded.value,
  updated_at = excluded.updated_at;`,
		name, value, time.Now().UTC().Format(time.RFC3339),
	)
	return wrap("set setting", err)
}
