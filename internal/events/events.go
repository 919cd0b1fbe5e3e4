package events

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	TypePing          = "ping"
	TypeLeadsAdded    = "leads_added"
	TypeStatusUpdated = "status_updated"
	TypeLeadsCleared  = "leads_cleared"
	TypeCacheCleared  = "cache_cleared"
	TypeSettingsSaved = "settings_saved"
	TypeRefreshFailed = "refresh_failed"
)

// Event is the envelope every SSE message carries.
type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// LeadsAdded is the payload of TypeLeadsAdded: one fetched page and what
// the cleaning pipeline did with it.
type LeadsAdded struct {
	Page       int  `json:"page"`
	TotalPages int  `json:"totalPages,omitempty"`
	FromCache  bool `json:"fromCache"`
	Input      int  `json:"input"`
	Accepted   int  `json:"accepted"`
	Rejected   int  `json:"rejected"`
	Duplicates int  `json:"duplicates"`
	Added      int  `json:"added"`
}

// RefreshFailed is the payload of TypeRefreshFailed.
type RefreshFailed struct {
	Page  int    `json:"page"`
	Error string `json:"error"`
}

// TypeOf reads the type back out of an encoded envelope. It returns "" for
// anything that is not one.
func TypeOf(msg string) string {
	var e struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(msg), &e); err != nil {
		return ""
	}
	return e.Type
}

// ParseTypes splits a comma-separated type list. An empty list means all
// types.
func ParseTypes(s string) map[string]bool {
	var out map[string]bool
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		if out == nil {
			out = make(map[string]bool)
		}
		out[t] = true
	}
	return out
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
