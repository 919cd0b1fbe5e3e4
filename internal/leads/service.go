// Package leads runs the engine's operations: fetching from the search API
// through the cleaning pipeline into storage, plus everything the request
// API exposes on top of stored leads.
package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"leadsync-engine/internal/apollo"
	"leadsync-engine/internal/cache"
	"leadsync-engine/internal/clean"
	"leadsync-engine/internal/domain"
	"leadsync-engine/internal/events"
	"leadsync-engine/internal/metrics"
	"leadsync-engine/internal/store"
)

const (
	settingsKey    = "settings"
	refreshPageKey = "refresh_page"
)

var (
	ErrNotFound        = errors.New("lead not found")
	ErrConfirmRequired = errors.New("confirmation required")
	ErrNoSearcher      = errors.New("lead search is not configured")
	ErrInvalidInput    = errors.New("invalid input")
)

// Store is the storage contract. Both the SQLite and Postgres stores
// satisfy it.
type Store interface {
	Init(ctx context.Context) error
	AppendLeads(ctx context.Context, leads []domain.Lead) (int, error)
	ListLeads(ctx context.Context, o store.ListOpts) ([]domain.Lead, error)
	UpdateStatus(ctx context.Context, email string, contacted bool) (bool, error)
	ClearLeads(ctx context.Context) (int, error)
	GetSetting(ctx context.Context, name string) (string, bool, error)
	SetSetting(ctx context.Context, name, value string) error
}

// Searcher fetches one page of raw leads.
type Searcher interface {
	Search(ctx context.Context, f domain.Filters) (apollo.Result, error)
}

type Deps struct {
	Store    Store
	Searcher Searcher
	Cache    *cache.Cache
	Hub      *events.Hub

	// Defaults is what GetSettings returns before anything is saved.
	Defaults domain.Settings
}

// Service serializes every operation behind one mutex, so a fetch and a
// clear never interleave.
type Service struct {
	mu sync.Mutex
	d  Deps

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

func New(d Deps) *Service {
	if d.Cache == nil {
		d.Cache = cache.New(cache.NewMemory(), cache.DefaultTTL)
	}
	return &Service{d: d, Now: time.Now}
}

func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.Store.Init(ctx)
}

// FetchResult is what one fetch produced.
type FetchResult struct {
	Leads      []domain.Lead `json:"leads"`
	Report     clean.Report  `json:"report"`
	Added      int           `json:"added"`
	FromCache  bool          `json:"fromCache"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
}

// Fetch serves f from the cache when it can, otherwise calls the search API
// and cleans the page. Either way the leads are appended to storage; rows
// already stored are skipped. When the API call fails nothing is written.
func (s *Service) Fetch(ctx context.Context, f domain.Filters) (FetchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchLocked(ctx, f)
}

func (s *Service) fetchLocked(ctx context.Context, f domain.Filters) (FetchResult, error) {
	st, err := s.settingsLocked(ctx)
	if err != nil {
		return FetchResult{}, err
	}
	f = f.Clamped()
	key := cache.BatchKey(f, st.StrictDedup)

	res := FetchResult{Page: f.Page}

	cached, ok, err := s.d.Cache.Get(ctx, key)
	if err != nil {
		log.Printf("[leads] warn: cache read failed key=%s err=%v", key, err)
	}
	if ok {
		res.Leads = cached
		res.FromCache = true
		res.Report = clean.Report{Input: len(cached), Accepted: len(cached), Rejected: map[clean.Reason]int{}}
	} else {
		leads, rep, page, err := s.searchAndClean(ctx, f, st.StrictDedup)
		if err != nil {
			return FetchResult{}, err
		}
		res.Leads, res.Report, res.TotalPages = leads, rep, page.TotalPages

		if err := s.d.Cache.Put(ctx, key, leads, ttlOf(st)); err != nil {
			log.Printf("[leads] warn: cache write failed key=%s err=%v", key, err)
		}
	}

	added, err := s.d.Store.AppendLeads(ctx, res.Leads)
	if err != nil {
		return FetchResult{}, err
	}
	res.Added = added
	metrics.LeadsStored.Add(float64(added))

	log.Printf("[leads] fetch page=%d from_cache=%t accepted=%d added=%d", f.Page, res.FromCache, len(res.Leads), added)
	rejected := 0
	for _, n := range res.Report.Rejected {
		rejected += n
	}
	s.d.Hub.Emit("", events.TypeLeadsAdded, events.LeadsAdded{
		Page:       f.Page,
		TotalPages: res.TotalPages,
		FromCache:  res.FromCache,
		Input:      res.Report.Input,
		Accepted:   res.Report.Accepted,
		Rejected:   rejected,
		Duplicates: res.Report.Duplicates,
		Added:      added,
	})
	return res, nil
}

func (s *Service) searchAndClean(ctx context.Context, f domain.Filters, strict bool) ([]domain.Lead, clean.Report, apollo.Result, error) {
	if s.d.Searcher == nil {
		return nil, clean.Report{}, apollo.Result{}, ErrNoSearcher
	}
	page, err := s.d.Searcher.Search(ctx, f)
	if err != nil {
		return nil, clean.Report{}, apollo.Result{}, fmt.Errorf("fetch page %d: %w", f.Page, err)
	}

	p := clean.Pipeline{StrictDedup: strict, Source: domain.SourceApollo, Now: s.Now, NewID: s.NewID}
	leads, rep := p.CleanWithReport(page.Leads)
	recordReport(rep)
	return leads, rep, page, nil
}

func recordReport(rep clean.Report) {
	metrics.LeadsProcessed.WithLabelValues("accepted").Add(float64(rep.Accepted))
	metrics.LeadsProcessed.WithLabelValues("duplicate").Add(float64(rep.Duplicates))
	metrics.LeadsProcessed.WithLabelValues("failed").Add(float64(rep.Failed))
	for why, n := range rep.Rejected {
		metrics.LeadsProcessed.WithLabelValues(string(why)).Add(float64(n))
	}
}

func (s *Service) List(ctx context.Context, o store.ListOpts) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.Store.ListLeads(ctx, o)
}

func (s *Service) UpdateStatus(ctx context.Context, email string, contacted bool) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("update status: %w: email is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found, err := s.d.Store.UpdateStatus(ctx, email, contacted)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("update status %s: %w", email, ErrNotFound)
	}
	s.d.Hub.Emit("", events.TypeStatusUpdated, map[string]any{"email": email, "contacted": contacted})
	return nil
}

// GetSettings returns the configured defaults with any saved overrides on top.
func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settingsLocked(ctx)
}

func (s *Service) settingsLocked(ctx context.Context) (domain.Settings, error) {
	st := s.d.Defaults
	raw, ok, err := s.d.Store.GetSetting(ctx, settingsKey)
	if err != nil {
		return st, err
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			log.Printf("[leads] warn: ignoring unreadable saved settings err=%v", err)
			return s.d.Defaults, nil
		}
	}
	return st, nil
}

func (s *Service) SaveSettings(ctx context.Context, st domain.Settings) (domain.Settings, error) {
	if st.CacheTTLSeconds < 0 {
		return domain.Settings{}, fmt.Errorf("save settings: %w: cacheTtlSeconds must be >= 0", ErrInvalidInput)
	}
	st.Filters = st.Filters.Clamped()

	b, err := json.Marshal(st)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.d.Store.SetSetting(ctx, settingsKey, string(b)); err != nil {
		return domain.Settings{}, err
	}
	s.d.Hub.Emit("", events.TypeSettingsSaved, nil)
	return st, nil
}

// SetDefaults replaces the settings used where nothing was saved, e.g.
// after the config file changes.
func (s *Service) SetDefaults(st domain.Settings) {
	s.mu.Lock()
	s.d.Defaults = st
	s.mu.Unlock()
}

// ClearCache drops every cached search result.
func (s *Service) ClearCache(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.d.Cache.Clear(ctx); err != nil {
		return err
	}
	s.d.Hub.Emit("", events.TypeCacheCleared, nil)
	return nil
}

// ClearAll removes every stored lead and cached result and restarts
// auto-refresh from the first page. It refuses to run unless confirm is set.
func (s *Service) ClearAll(ctx context.Context, confirm bool) (int, error) {
	if !confirm {
		return 0, fmt.Errorf("clear all: %w", ErrConfirmRequired)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.d.Store.ClearLeads(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.d.Cache.Clear(ctx); err != nil {
		log.Printf("[leads] warn: cache clear failed err=%v", err)
	}
	if err := s.d.Store.SetSetting(ctx, refreshPageKey, "1"); err != nil {
		return n, err
	}

	log.Printf("[leads] cleared all leads=%d", n)
	s.d.Hub.Emit("", events.TypeLeadsCleared, map[string]int{"removed": n})
	return n, nil
}

func ttlOf(st domain.Settings) time.Duration {
	return time.Duration(st.CacheTTLSeconds) * time.Second
}
