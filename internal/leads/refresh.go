package leads

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"golang.org/x/sync/errgroup"

	"leadsync-engine/internal/cache"
	"leadsync-engine/internal/events"
)

// WarmResult reports one cache warm-up.
type WarmResult struct {
	Pages   int `json:"pages"`
	Fetched int `json:"fetched"`
	Skipped int `json:"skipped"`
	Leads   int `json:"leads"`
}

const warmWorkers = 2

// WarmCache fills the cache for the first n pages of the saved search.
// Pages that are already cached are skipped. Leads are not stored.
func (s *Service) WarmCache(ctx context.Context, n int) (WarmResult, error) {
	if n <= 0 {
		return WarmResult{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.settingsLocked(ctx)
	if err != nil {
		return WarmResult{}, err
	}

	type pageOut struct {
		skipped bool
		leads   int
	}
	outs := make([]pageOut, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmWorkers)

	for i := 0; i < n; i++ {
		f := st.Filters
		f.Page = i + 1
		f = f.Clamped()

		g.Go(func() error {
			key := cache.BatchKey(f, st.StrictDedup)
			if _, ok, _ := s.d.Cache.Get(gctx, key); ok {
				outs[i].skipped = true
				return nil
			}
			leads, _, _, err := s.searchAndClean(gctx, f, st.StrictDedup)
			if err != nil {
				return err
			}
			outs[i].leads = len(leads)
			return s.d.Cache.Put(gctx, key, leads, ttlOf(st))
		})
	}

	err = g.Wait()

	res := WarmResult{Pages: n}
	for _, o := range outs {
		if o.skipped {
			res.Skipped++
			continue
		}
		res.Leads += o.leads
	}
	if err != nil {
		return res, fmt.Errorf("warm cache: %w", err)
	}
	res.Fetched = n - res.Skipped
	log.Printf("[leads] cache warmed pages=%d fetched=%d skipped=%d", res.Pages, res.Fetched, res.Skipped)
	return res, nil
}

// RefreshNext fetches the page after the last one auto-refresh pulled and
// advances the cursor, wrapping to page 1 at the end of the result set.
// It is a no-op while auto-refresh is off.
func (s *Service) RefreshNext(ctx context.Context) (FetchResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.settingsLocked(ctx)
	if err != nil {
		return FetchResult{}, false, err
	}
	if !st.AutoRefresh {
		return FetchResult{}, false, nil
	}

	page := 1
	if v, ok, err := s.d.Store.GetSetting(ctx, refreshPageKey); err != nil {
		return FetchResult{}, false, err
	} else if ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}

	f := st.Filters
	f.Page = page
	res, err := s.fetchLocked(ctx, f)
	if err != nil {
		s.d.Hub.Emit("", events.TypeRefreshFailed, events.RefreshFailed{Page: page, Error: err.Error()})
		return FetchResult{}, true, err
	}

	next := page + 1
	switch {
	case res.TotalPages > 0 && page >= res.TotalPages:
		next = 1
	case !res.FromCache && res.Report.Input == 0:
		// the API ran out of results before reporting a page count
		next = 1
	}
	if err := s.d.Store.SetSetting(ctx, refreshPageKey, strconv.Itoa(next)); err != nil {
		return res, true, err
	}
	return res, true, nil
}
