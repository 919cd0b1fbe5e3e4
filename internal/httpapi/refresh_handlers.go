package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"leadsync-engine/internal/poll"
)

type RefreshHandler struct {
	Refresher poll.Refresher
	Status    *atomic.Value // poll.Status
}

func (h RefreshHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, _ := h.Status.Load().(poll.Status)
	writeJSON(w, st)
}

// Run starts one refresh in the background and returns immediately.
func (h RefreshHandler) Run(w http.ResponseWriter, r *http.Request) {
	st, _ := h.Status.Load().(poll.Status)
	if st.Running {
		writeJSON(w, map[string]any{"ok": false, "msg": "already running"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		_ = poll.RunOnce(ctx, h.Refresher, h.Status)
	}()

	writeJSON(w, map[string]any{"ok": true})
}
