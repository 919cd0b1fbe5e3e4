// Package cache stores cleaned search results under a digest of the search
// filters and expires them after a fixed time-to-live.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"leadsync-engine/internal/domain"
	"leadsync-engine/internal/metrics"
)

const (
	DefaultTTL = 3600 * time.Second
	KeyPrefix  = "leads:"
)

var ErrNotFound = errors.New("cache: not found")

// Backend is raw byte storage. Implementations may drop entries on their own
// after ttl, but the Cache never relies on it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error) // ErrNotFound on miss
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

type entry struct {
	CreatedAt  time.Time     `json:"created_at"`
	TTLSeconds int64         `json:"ttl_seconds"`
	Leads      []domain.Lead `json:"leads"`
}

type Cache struct {
	backend Backend
	ttl     time.Duration

	// Now is overridable for tests.
	Now func() time.Time
}

func New(b Backend, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{backend: b, ttl: ttl, Now: time.Now}
}

func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the stored batch, or ok=false when the key is missing or the
// entry is older than its TTL. Expired entries are deleted.
func (c *Cache) Get(ctx context.Context, key string) (leads []domain.Lead, ok bool, err error) {
	b, err := c.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		log.Printf("[cache] dropping unreadable entry key=%s err=%v", key, err)
		_ = c.backend.Delete(ctx, key)
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	ttl := c.ttl
	if e.TTLSeconds > 0 {
		ttl = time.Duration(e.TTLSeconds) * time.Second
	}
	if c.Now().Sub(e.CreatedAt) > ttl {
		if err := c.backend.Delete(ctx, key); err != nil {
			log.Printf("[cache] evict failed key=%s err=%v", key, err)
		}
		metrics.CacheLookups.WithLabelValues("expired").Inc()
		return nil, false, nil
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	if e.Leads == nil {
		e.Leads = []domain.Lead{}
	}
	return e.Leads, true, nil
}

// Put stores leads under key. ttl <= 0 means the cache default.
func (c *Cache) Put(ctx context.Context, key string, leads []domain.Lead, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	b, err := json.Marshal(entry{
		CreatedAt:  c.Now().UTC(),
		TTLSeconds: int64(ttl / time.Second),
		Leads:      leads,
	})
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.backend.Set(ctx, key, b, ttl); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, key)
}

func (c *Cache) Clear(ctx context.Context) error {
	return c.backend.Clear(ctx)
}

// keyShape is the fixed form filters are reduced to before hashing.
type keyShape struct {
	Titles        []string `json:"titles"`
	EmployeeRange [2]int   `json:"employee_range"`
	Industries    []string `json:"industries"`
	Locations     []string `json:"locations"`
	FoundedYear   int      `json:"founded_year"`
	RevenueRange  [2]int64 `json:"revenue_range"`
	Page          int      `json:"page"`
	PerPage       int      `json:"per_page"`
	StrictDedup   bool     `json:"strict_dedup,omitempty"`
}

// Key derives a stable cache key: list order, case and spacing do not matter.
func Key(f domain.Filters) string {
	return BatchKey(f, false)
}

// BatchKey is Key for a batch cleaned with the given dedup mode. Batches
// deduped by name as well as email never share an entry with email-only ones.
func BatchKey(f domain.Filters, strictDedup bool) string {
	f = f.Clamped()
	shape := keyShape{
		Titles:        normList(f.Titles),
		EmployeeRange: [2]int{f.EmployeeMin, f.EmployeeMax},
		Industries:    normList(f.Industries),
		Locations:     normList(f.Locations),
		FoundedYear:   f.FoundedYear,
		RevenueRange:  [2]int64{f.RevenueMin, f.RevenueMax},
		Page:          f.Page,
		PerPage:       f.PerPage,
		StrictDedup:   strictDedup,
	}
	b, _ := json.Marshal(shape)
	h := sha256.Sum256(b)
	return KeyPrefix + hex.EncodeToString(h[:])
}

func normList(xs []string) []string {
	seen := make(map[string]bool, len(xs))
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		x = strings.ToLower(strings.Join(strings.Fields(x), " "))
		if x == "" || seen[x] {
			continue
		}
		seen[x] = true
		out = append(out, x)
	}
	sort.Strings(out)
	return out
}
