package httpapi

import (
	"net/http"
	"time"
)

type HealthHandler struct {
	Started time.Time
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"ok":         true,
		"time":       time.Now().UTC().Format(time.RFC3339),
		"uptime_sec": int(time.Since(h.Started).Seconds()),
	})
}
