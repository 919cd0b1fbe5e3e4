// Package postgres is the pgx-backed lead store, used when storage.driver
// is "postgres". It mirrors the SQLite store's contract.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadsync-engine/internal/domain"
	"leadsync-engine/internal/store"
)

// undefined_table
const codeUndefinedTable = "42P01"

type Store struct {
	db *pgxpool.Pool
}

func Open(ctx context.Context, connStr string) (*Store, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS leads (
  seq bigserial,
  id text PRIMARY KEY,
  name text NOT NULL,
  title text NOT NULL DEFAULT '',
  company text NOT NULL,
  industry text NOT NULL DEFAULT '',
  employees int NOT NULL DEFAULT 0,
  founded_year int,
  email text NOT NULL UNIQUE,
  phone text NOT NULL DEFAULT '',
  location text NOT NULL DEFAULT '',
  description text NOT NULL DEFAULT '',
  linkedin_url text NOT NULL DEFAULT '',
  website text NOT NULL DEFAULT '',
  contacted boolean NOT NULL DEFAULT false,
  last_updated timestamptz NOT NULL,
  source text NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS leads_industry_idx ON leads (industry);

CREATE TABLE IF NOT EXISTS settings (
  name text PRIMARY KEY,
  value text NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now()
);`)
	return wrap("init", err)
}

const leadColumns = `id, name, title, company, industry, employees, founded_year, email,
phone, location, description, linkedin_url, website, contacted, last_updated, source`

// AppendLeads inserts the batch in one transaction, skipping ids or emails
// already stored.
func (s *Store) AppendLeads(ctx context.Context, leads []domain.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, wrap("append leads", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, l := range leads {
		batch.Queue(`INSERT INTO leads (`+leadColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT DO NOTHING`,
			l.ID, l.Name, l.Title, l.Company, l.Industry, l.Employees, l.FoundedYear,
			strings.ToLower(strings.TrimSpace(l.Email)),
			l.Phone, l.Location, l.Description, l.LinkedInURL, l.Website,
			l.Contacted, l.LastUpdated.UTC(), l.Source,
		)
	}

	br := tx.SendBatch(ctx, batch)
	added := 0
	for range leads {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, wrap("append leads", err)
		}
		added += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, wrap("append leads", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, wrap("append leads", err)
	}
	return added, nil
}

func (s *Store) ListLeads(ctx context.Context, o store.ListOpts) ([]domain.Lead, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if v := strings.TrimSpace(o.Title); v != "" {
		where = append(where, "lower(title) = lower("+arg(v)+")")
	}
	if v := strings.TrimSpace(o.Industry); v != "" {
		where = append(where, "lower(industry) = lower("+arg(v)+")")
	}
	if o.Contacted != nil {
		where = append(where, "contacted = "+arg(*o.Contacted))
	}
	if v := strings.TrimSpace(o.Query); v != "" {
		p := arg("%" + strings.ToLower(v) + "%")
		where = append(where, "(lower(name) LIKE "+p+" OR lower(company) LIKE "+p+" OR email LIKE "+p+")")
	}

	q := `SELECT ` + leadColumns + ` FROM leads`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq"
	if o.Limit > 0 {
		q += " LIMIT " + arg(o.Limit) + " OFFSET " + arg(max(o.Offset, 0))
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, wrap("list leads", err)
	}
	defer rows.Close()

	out := make([]domain.Lead, 0, 64)
	for rows.Next() {
		var (
			l       domain.Lead
			founded *int32
		)
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Title, &l.Company, &l.Industry, &l.Employees, &founded, &l.Email,
			&l.Phone, &l.Location, &l.Description, &l.LinkedInURL, &l.Website, &l.Contacted, &l.LastUpdated, &l.Source,
		); err != nil {
			return nil, wrap("list leads", err)
		}
		if founded != nil {
			y := int(*founded)
			l.FoundedYear = &y
		}
		l.LastUpdated = l.LastUpdated.UTC()
		out = append(out, l)
	}
	return out, wrap("list leads", rows.Err())
}

func (s *Store) UpdateStatus(ctx context.Context, email string, contacted bool) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE leads SET contacted = $1, last_updated = $2 WHERE email = $3`,
		contacted, time.Now().UTC(), strings.ToLower(strings.TrimSpace(email)),
	)
	if err != nil {
		return false, wrap("update status", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ClearLeads(ctx context.Context) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM leads`)
	if err != nil {
		return 0, wrap("clear leads", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) GetSetting(ctx context.Context, name string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(ctx, `SELECT value FROM settings WHERE name = $1`, name).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("get setting", err)
	}
	return v, true, nil
}

func (s *Store) SetSetting(ctx context.Context, name, value string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO settings (name, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		name, value)
	return wrap("set setting", err)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable {
		return fmt.Errorf("%s: %w", op, store.ErrNotInitialized)
	}
	return fmt.Errorf("%s: %w", op, err)
}
