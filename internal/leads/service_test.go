package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"leadsync-engine/internal/apollo"
	"leadsync-engine/internal/cache"
	"leadsync-engine/internal/clean"
	"leadsync-engine/internal/domain"
	"leadsync-engine/internal/events"
	"leadsync-engine/internal/export"
	"leadsync-engine/internal/store"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type fakeSearcher struct {
	mu    sync.Mutex
	pages []int
	err   error
	total int
	fn    func(page int) []domain.RawLead
}

func (f *fakeSearcher) Search(_ context.Context, fl domain.Filters) (apollo.Result, error) {
	f.mu.Lock()
	f.pages = append(f.pages, fl.Page)
	f.mu.Unlock()
	if f.err != nil {
		return apollo.Result{}, f.err
	}
	return apollo.Result{Leads: f.fn(fl.Page), Page: fl.Page, TotalPages: f.total}, nil
}

func (f *fakeSearcher) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]int(nil), f.pages...)
	sort.Ints(out)
	return out
}

func pageOf(page int) []domain.RawLead {
	return []domain.RawLead{
		{Name: "jane doe", Title: "ceo", Company: "Acme", Email: fmt.Sprintf("jane%d@acme.com", page)},
		{Name: "john roe", Title: "Owner", Company: "Roe LLC", Email: fmt.Sprintf("john%d@roe.com", page)},
		{Name: "Jim", Title: "intern", Company: "Acme", Email: "jim@acme.com"},
		{Name: "Jane Again", Title: "Founder", Company: "Acme", Email: fmt.Sprintf("JANE%d@acme.com", page)},
	}
}

type harness struct {
	svc    *Service
	db     *store.DB
	search *fakeSearcher
	hub    *events.Hub
	mem    *cache.Memory
}

func newHarness(t *testing.T, defaults domain.Settings) *harness {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "leads.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		db:     db,
		search: &fakeSearcher{fn: pageOf},
		hub:    events.NewHub(),
		mem:    cache.NewMemory(),
	}
	h.svc = New(Deps{
		Store:    db,
		Searcher: h.search,
		Cache:    cache.New(h.mem, time.Hour),
		Hub:      h.hub,
		Defaults: defaults,
	})
	h.svc.Now = func() time.Time { return fixedNow }

	var n atomic.Int64
	h.svc.NewID = func() string { return fmt.Sprintf("id-%d", n.Add(1)) }

	if err := h.svc.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return h
}

func TestFetchCleansStoresAndCaches(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	ctx := context.Background()

	res, err := h.svc.Fetch(ctx, domain.Filters{Page: 1})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.FromCache {
		t.Error("first fetch reported FromCache")
	}
	if len(res.Leads) != 2 || res.Added != 2 {
		t.Fatalf("leads=%d added=%d, want 2 and 2", len(res.Leads), res.Added)
	}
	if res.Report.Rejected[clean.ReasonTitleNotAllowed] != 1 || res.Report.Duplicates != 1 {
		t.Errorf("report = %+v", res.Report)
	}
	if h.mem.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", h.mem.Len())
	}

	again, err := h.svc.Fetch(ctx, domain.Filters{Page: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !again.FromCache {
		t.Error("second fetch did not hit the cache")
	}
	if again.Added != 0 {
		t.Errorf("second fetch added %d, want 0", again.Added)
	}
	if got := h.search.calls(); len(got) != 1 {
		t.Errorf("search calls = %v, want exactly one", got)
	}

	stored, err := h.svc.List(ctx, store.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 || stored[0].Name != "Jane Doe" || stored[0].Title != "CEO" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestFetchFailureWritesNothing(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	h.search.err = &apollo.StatusError{StatusCode: 401, Body: []byte("bad key")}
	ctx := context.Background()

	_, err := h.svc.Fetch(ctx, domain.Filters{})
	var se *apollo.StatusError
	if !errors.As(err, &se) || se.StatusCode != 401 {
		t.Fatalf("err = %v, want StatusError 401", err)
	}

	stored, _ := h.svc.List(ctx, store.ListOpts{})
	if len(stored) != 0 {
		t.Errorf("stored %d leads after failed fetch", len(stored))
	}
	if h.mem.Len() != 0 {
		t.Errorf("cache has %d entries after failed fetch", h.mem.Len())
	}
}

func TestFetchWithoutSearcher(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	h.svc.d.Searcher = nil
	if _, err := h.svc.Fetch(context.Background(), domain.Filters{}); !errors.Is(err, ErrNoSearcher) {
		t.Errorf("err = %v, want ErrNoSearcher", err)
	}
}

func TestFetchUsesSavedStrictDedup(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	ctx := context.Background()
	h.search.fn = func(int) []domain.RawLead {
		return []domain.RawLead{
			{Name: "Jane Doe", Title: "CEO", Company: "Acme", Email: "jane@acme.com"},
			{Name: "JANE DOE", Title: "CEO", Company: "Other", Email: "jane@other.com"},
		}
	}

	if _, err := h.svc.SaveSettings(ctx, domain.Settings{StrictDedup: true}); err != nil {
		t.Fatal(err)
	}
	res, err := h.svc.Fetch(ctx, domain.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Leads) != 1 {
		t.Errorf("leads = %d, want 1 with strict dedup", len(res.Leads))
	}
}

func TestStrictDedupChangeBypassesCachedBatch(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	ctx := context.Background()
	h.search.fn = func(int) []domain.RawLead {
		return []domain.RawLead{
			{Name: "Jane Doe", Title: "CEO", Company: "Acme", Email: "jane@acme.com"},
			{Name: "JANE DOE", Title: "CEO", Company: "Other", Email: "jane@other.com"},
		}
	}

	res, err := h.svc.Fetch(ctx, domain.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Leads) != 2 {
		t.Fatalf("leads = %d, want 2 with email-only dedup", len(res.Leads))
	}

	if _, err := h.svc.SaveSettings(ctx, domain.Settings{StrictDedup: true}); err != nil {
		t.Fatal(err)
	}
	res, err = h.svc.Fetch(ctx, domain.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if res.FromCache {
		t.Error("served the email-only batch after switching to strict dedup")
	}
	if len(res.Leads) != 1 {
		t.Errorf("leads = %d, want 1 with strict dedup", len(res.Leads))
	}
}

func TestFetchEmitsEvent(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(ch)

	if _, err := h.svc.Fetch(context.Background(), domain.Filters{}); err != nil {
		t.Fatal(err)
	}
	var msg string
	select {
	case msg = <-ch:
	default:
		t.Fatal("no event published")
	}

	var evt struct {
		Type string            `json:"type"`
		Data events.LeadsAdded `json:"data"`
	}
	if err := json.Unmarshal([]byte(msg), &evt); err != nil {
		t.Fatal(err)
	}
	if evt.Type != events.TypeLeadsAdded {
		t.Errorf("type = %s, want %s", evt.Type, events.TypeLeadsAdded)
	}
	want := events.LeadsAdded{Page: 1, Input: 4, Accepted: 2, Rejected: 1, Duplicates: 1, Added: 2}
	if evt.Data != want {
		t.Errorf("payload = %+v, want %+v", evt.Data, want)
	}
}

func TestCachedFetchEmitsEventWithNothingAdded(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	ctx := context.Background()
	if _, err := h.svc.Fetch(ctx, domain.Filters{}); err != nil {
		t.Fatal(err)
	}

	ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(ch)
	if _, err := h.svc.Fetch(ctx, domain.Filters{}); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-ch:
		if !strings.Contains(msg, `"fromCache":true`) || !strings.Contains(msg, `"added":0`) {
			t.Errorf("event = %s", msg)
		}
	default:
		t.Error("no event published")
	}
}

func TestUpdateStatus(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	ctx := context.Background()
	if _, err := h.svc.Fetch(ctx, domain.Filters{Page: 1}); err != nil {
		t.Fatal(err)
	}

	if err := h.svc.UpdateStatus(ctx, "JANE1@acme.com", true); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := h.svc.UpdateStatus(ctx, "ghost@acme.com", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := h.svc.UpdateStatus(ctx, "  ", true); err == nil {
		t.Error("expected error for empty email")
	}

	st, err := h.svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 2 || st.Contacted != 1 || st.NotContacted != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestSettingsDefaultsAndOverrides(t *testing.T) {
	defaults := domain.Settings{
		Filters:         domain.Filters{Titles: []string{"CEO"}, PerPage: 25},
		CacheTTLSeconds: 3600,
	}
	h := newHarness(t, defaults)
	ctx := context.Background()

	got, err := h.svc.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.CacheTTLSeconds != 3600 || len(got.Filters.Titles) != 1 {
		t.Errorf("defaults = %+v", got)
	}

	saved, err := h.svc.SaveSettings(ctx, domain.Settings{
		Filters:         domain.Filters{Titles: []string{"Owner"}, PerPage: 500},
		CacheTTLSeconds: 60,
		AutoRefresh:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved.Filters.PerPage != domain.MaxPerPage {
		t.Errorf("per page = %d, want clamped to %d", saved.Filters.PerPage, domain.MaxPerPage)
	}

	got, err = h.svc.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.CacheTTLSeconds != 60 || !got.AutoRefresh || got.Filters.Titles[0] != "Owner" {
		t.Errorf("saved = %+v", got)
	}

	if _, err := h.svc.SaveSettings(ctx, domain.Settings{CacheTTLSeconds: -1}); err == nil {
		t.Error("expected error for negative ttl")
	}
}

func TestClearAll(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	ctx := context.Background()
	if _, err := h.svc.Fetch(ctx, domain.Filters{}); err != nil {
		t.Fatal(err)
	}

	if _, err := h.svc.ClearAll(ctx, false); !errors.Is(err, ErrConfirmRequired) {
		t.Fatalf("err = %v, want ErrConfirmRequired", err)
	}
	n, err := h.svc.ClearAll(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("removed = %d, want 2", n)
	}
	if h.mem.Len() != 0 {
		t.Errorf("cache entries = %d after clear all", h.mem.Len())
	}
	stored, _ := h.svc.List(ctx, store.ListOpts{})
	if len(stored) != 0 {
		t.Errorf("stored = %d after clear all", len(stored))
	}
}

func TestClearCacheForcesRefetch(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	ctx := context.Background()
	if _, err := h.svc.Fetch(ctx, domain.Filters{}); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.ClearCache(ctx); err != nil {
		t.Fatal(err)
	}
	res, err := h.svc.Fetch(ctx, domain.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if res.FromCache {
		t.Error("fetch after ClearCache came from cache")
	}
	if got := h.search.calls(); len(got) != 2 {
		t.Errorf("search calls = %v, want 2", got)
	}
}

func TestWarmCache(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	ctx := context.Background()

	res, err := h.svc.WarmCache(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched != 3 || res.Skipped != 0 || res.Leads != 6 {
		t.Errorf("warm = %+v", res)
	}
	if got := h.search.calls(); fmt.Sprint(got) != "[1 2 3]" {
		t.Errorf("pages = %v, want [1 2 3]", got)
	}

	res, err = h.svc.WarmCache(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped != 3 {
		t.Errorf("second warm = %+v, want all skipped", res)
	}

	stored, _ := h.svc.List(ctx, store.ListOpts{})
	if len(stored) != 0 {
		t.Errorf("warm-up stored %d leads, want 0", len(stored))
	}
}

func TestWarmCacheError(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	h.search.err = apollo.ErrRateLimited
	if _, err := h.svc.WarmCache(context.Background(), 2); !errors.Is(err, apollo.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestRefreshNext(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	ctx := context.Background()

	if _, ran, err := h.svc.RefreshNext(ctx); err != nil || ran {
		t.Fatalf("RefreshNext with auto-refresh off ran=%v err=%v", ran, err)
	}

	if _, err := h.svc.SaveSettings(ctx, domain.Settings{AutoRefresh: true}); err != nil {
		t.Fatal(err)
	}
	h.search.total = 2

	for i := 0; i < 3; i++ {
		if _, ran, err := h.svc.RefreshNext(ctx); err != nil || !ran {
			t.Fatalf("RefreshNext #%d ran=%v err=%v", i, ran, err)
		}
	}
	h.search.mu.Lock()
	pages := fmt.Sprint(h.search.pages)
	h.search.mu.Unlock()
	if pages != "[1 2]" {
		// the third call wraps to page 1, which is cached
		t.Errorf("pages searched = %s, want [1 2]", pages)
	}
	v, _, _ := h.db.GetSetting(ctx, refreshPageKey)
	if v != "2" {
		t.Errorf("refresh_page = %q, want 2", v)
	}
}

func TestExportCSV(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	ctx := context.Background()

	empty, err := h.svc.ExportCSV(ctx, store.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if empty.Count != 0 || strings.Count(empty.Content, "\n") != 1 {
		t.Errorf("empty export = %q", empty.Content)
	}
	if empty.FileName != "SMB_Leads_2026-10-15.csv" {
		t.Errorf("file name = %q", empty.FileName)
	}

	if _, err := h.svc.Fetch(ctx, domain.Filters{}); err != nil {
		t.Fatal(err)
	}
	path, ex, err := h.svc.SaveExport(ctx, filepath.Join(t.TempDir(), "exports"), store.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if ex.Count != 2 {
		t.Errorf("count = %d, want 2", ex.Count)
	}
	if filepath.Base(path) != ex.FileName {
		t.Errorf("path = %q", path)
	}
	if !strings.HasPrefix(ex.Content, strings.Join(export.Header, ",")) {
		t.Errorf("export does not start with header: %q", ex.Content[:40])
	}
}

func TestFetchThroughApolloClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"people":[
{"id":"p1","first_name":"ada","last_name":"lovelace","title":"Founder","email":"ADA@engine.io",
 "organization":{"name":"Engine Co","industry":"software","estimated_num_employees":12}}
],"pagination":{"page":1,"total_pages":1}}`))
	}))
	defer srv.Close()

	h := newHarness(t, domain.Settings{})
	h.svc.d.Searcher = apollo.New(apollo.Config{BaseURL: srv.URL, APIKey: "k"})

	res, err := h.svc.Fetch(context.Background(), domain.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Leads) != 1 {
		t.Fatalf("leads = %d, want 1", len(res.Leads))
	}
	l := res.Leads[0]
	if l.ID != "p1" || l.Name != "Ada Lovelace" || l.Email != "ada@engine.io" || l.Company != "Engine Co" || l.Employees != 12 {
		t.Errorf("lead = %+v", l)
	}
}
