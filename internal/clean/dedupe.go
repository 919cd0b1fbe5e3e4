package clean

import (
	"strings"

	"leadsync-engine/internal/domain"
)

// Deduper remembers which leads of a batch were already kept. Email is
// always a key; in strict mode the name is a second, independent key.
type Deduper struct {
	strict bool
	emails map[string]struct{}
	names  map[string]struct{}
}

func NewDeduper(strict bool) *Deduper {
	return &Deduper{
		strict: strict,
		emails: make(map[string]struct{}),
		names:  make(map[string]struct{}),
	}
}

// Keep returns false when l collides with an earlier lead, otherwise it
// records l's keys and returns true.
func (d *Deduper) Keep(l domain.Lead) bool {
	email := strings.ToLower(strings.TrimSpace(l.Email))
	name := strings.ToLower(strings.TrimSpace(l.Name))

	if _, ok := d.emails[email]; ok {
		return false
	}
	if d.strict && name != "" {
		if _, ok := d.names[name]; ok {
			return false
		}
	}

	d.emails[email] = struct{}{}
	if d.strict && name != "" {
		d.names[name] = struct{}{}
	}
	return true
}

// Dedupe keeps the first occurrence of every key, preserving input order.
func Dedupe(leads []domain.Lead, strict bool) []domain.Lead {
	d := NewDeduper(strict)
	out := make([]domain.Lead, 0, len(leads))
	for _, l := range leads {
		if d.Keep(l) {
			out = append(out, l)
		}
	}
	return out
}
