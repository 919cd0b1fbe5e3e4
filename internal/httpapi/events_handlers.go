package httpapi

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"leadsync-engine/internal/events"
)

const defaultKeepAlive = 25 * time.Second

// EventsHandler streams hub events as SSE. A client may pass
// ?types=leads_added,status_updated to receive only those types.
type EventsHandler struct {
	Hub       *events.Hub
	KeepAlive time.Duration
}

func (h EventsHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "stream_unsupported", "Streaming unsupported")
		return
	}

	want := events.ParseTypes(r.URL.Query().Get("types"))
	subscribed := make([]string, 0, len(want))
	for t := range want {
		subscribed = append(subscribed, t)
	}
	sort.Strings(subscribed)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := h.Hub.Subscribe()
	defer h.Hub.Unsubscribe(ch)

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	tick := time.NewTicker(keepAlive)
	defer tick.Stop()

	var seq int
	send := func(msg string) {
		seq++
		fmt.Fprintf(w, "id: %d\nevent: message\ndata: %s\n\n", seq, msg)
		flusher.Flush()
	}

	send(events.MakeEvent(RequestIDFrom(r.Context()), events.TypePing, 1, map[string]any{
		"clients": h.Hub.Clients(),
		"types":   subscribed,
	}))

	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if want != nil && !want[events.TypeOf(msg)] {
				continue
			}
			send(msg)
		}
	}
}
