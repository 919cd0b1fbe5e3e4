package poll

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"leadsync-engine/internal/leads"
	"leadsync-engine/internal/scheduler"
)

// Status is the last auto-refresh outcome, exposed at /refresh/status.
type Status struct {
	LastRunAt string `json:"last_run_at"`
	LastOkAt  string `json:"last_ok_at"`
	LastError string `json:"last_error"`
	LastAdded int    `json:"last_added"`
	LastPage  int    `json:"last_page"`
	Running   bool   `json:"running"`
}

type Refresher interface {
	RefreshNext(ctx context.Context) (leads.FetchResult, bool, error)
}

// Start runs RunOnce every interval until ctx is done. It returns at once.
func Start(ctx context.Context, interval time.Duration, r Refresher, status *atomic.Value) {
	if interval <= 0 {
		interval = time.Hour
	}
	go scheduler.Every(ctx, interval, "refresh", func(ctx context.Context) error {
		return RunOnce(ctx, r, status)
	})
}

// RunOnce pulls the next page if auto-refresh is on and records the result.
func RunOnce(ctx context.Context, r Refresher, status *atomic.Value) error {
	st := load(status)
	if st.Running {
		return nil
	}
	st.Running = true
	st.LastRunAt = time.Now().Format(time.RFC3339)
	status.Store(st)

	fctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	res, ran, err := r.RefreshNext(fctx)

	st = load(status)
	st.Running = false
	if !ran && err == nil {
		status.Store(st)
		return nil
	}

	st.LastAdded = res.Added
	st.LastPage = res.Page
	if err != nil {
		st.LastError = err.Error()
		status.Store(st)
		return err
	}
	st.LastError = ""
	st.LastOkAt = time.Now().Format(time.RFC3339)
	status.Store(st)
	log.Printf("[refresh] ok page=%d added=%d from_cache=%t", res.Page, res.Added, res.FromCache)
	return nil
}

func load(v *atomic.Value) Status {
	if s, ok := v.Load().(Status); ok {
		return s
	}
	return Status{}
}
