package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"leadsync-engine/internal/domain"
)

// ListOpts narrows ListLeads. Zero values mean "no filter".
type ListOpts struct {
	Title     string
	Industry  string
	Contacted *bool
	Query     string
	Limit     int
	Offset    int
}

const leadColumns = `id, name, title, company, industry, employees, founded_year, email,
phone, location, description, linkedin_url, website, contacted, last_updated, source`

// AppendLeads inserts the batch in one transaction. Rows whose id or email is
// already stored are skipped; the count of new rows is returned.
func (d *DB) AppendLeads(ctx context.Context, leads []domain.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrap("append leads", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO leads (`+leadColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return 0, wrap("append leads", err)
	}
	defer stmt.Close()

	added := 0
	for _, l := range leads {
		var founded any
		if l.FoundedYear != nil {
			founded = *l.FoundedYear
		}
		res, err := stmt.ExecContext(ctx,
			l.ID, l.Name, l.Title, l.Company, l.Industry, l.Employees, founded,
			strings.ToLower(strings.TrimSpace(l.Email)),
			l.Phone, l.Location, l.Description, l.LinkedInURL, l.Website,
			boolToInt(l.Contacted), l.LastUpdated.UTC().Format(time.RFC3339), l.Source,
		)
		if err != nil {
			return 0, wrap("append leads", err)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, wrap("append leads", err)
	}
	return added, nil
}

// ListLeads returns stored leads in insertion order.
func (d *DB) ListLeads(ctx context.Context, o ListOpts) ([]domain.Lead, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(o.Title); s != "" {
		where = append(where, "title = ? COLLATE NOCASE")
		args = append(args, s)
	}
	if s := strings.TrimSpace(o.Industry); s != "" {
		where = append(where, "industry = ? COLLATE NOCASE")
		args = append(args, s)
	}
	if o.Contacted != nil {
		where = append(where, "contacted = ?")
		args = append(args, boolToInt(*o.Contacted))
	}
	if s := strings.TrimSpace(o.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, "(lower(name) LIKE ? OR lower(company) LIKE ? OR email LIKE ?)")
		args = append(args, like, like, like)
	}

	q := `SELECT ` + leadColumns + ` FROM leads`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY rowid"
	if o.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, o.Limit, max(o.Offset, 0))
	}

	rows, err := d.Pool.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap("list leads", err)
	}
	defer rows.Close()

	out := make([]domain.Lead, 0, 64)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, wrap("list leads", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list leads", err)
	}
	return out, nil
}

// UpdateStatus flips the contacted flag on the lead with this email.
// found is false when no lead matched.
func (d *DB) UpdateStatus(ctx context.Context, email string, contacted bool) (bool, error) {
	res, err := d.Pool.ExecContext(ctx, `
UPDATE leads
SET contacted = ?, last_updated = ?
WHERE email = ?;`,
		boolToInt(contacted),
		time.Now().UTC().Format(time.RFC3339),
		strings.ToLower(strings.TrimSpace(email)),
	)
	if err != nil {
		return false, wrap("update status", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ClearLeads removes every lead and returns how many were deleted.
func (d *DB) ClearLeads(ctx context.Context) (int, error) {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM leads;`)
	if err != nil {
		return 0, wrap("clear leads", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(s scanner) (domain.Lead, error) {
	var (
		l         domain.Lead
		founded   sql.NullInt64
		contacted int
		updated   string
	)
	if err := s.Scan(
		&l.ID, &l.Name, &l.Title, &l.Company, &l.Industry, &l.Employees, &founded, &l.Email,
		&l.Phone, &l.Location, &l.Description, &l.LinkedInURL, &l.Website, &contacted, &updated, &l.Source,
	); err != nil {
		return domain.Lead{}, err
	}
	if founded.Valid {
		y := int(founded.Int64)
		l.FoundedYear = &y
	}
	l.Contacted = contacted != 0
	if t, err := time.Parse(time.RFC3339, updated); err == nil {
		l.LastUpdated = t
	} else {
		return domain.Lead{}, fmt.Errorf("bad last_updated %q: %w", updated, err)
	}
	return l, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
