package events

import (
	"encoding/json"
	"testing"
)

func TestHubEmit(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	h.Emit("req-1", TypeLeadsAdded, map[string]int{"added": 3})

	msg := <-ch
	var e Event
	if err := json.Unmarshal([]byte(msg), &e); err != nil {
		t.Fatalf("bad envelope %q: %v", msg, err)
	}
	if e.Type != TypeLeadsAdded || e.Version != 1 || e.RequestID != "req-1" {
		t.Errorf("envelope = %+v", e)
	}
	if string(e.Data) != `{"added":3}` {
		t.Errorf("data = %s", e.Data)
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		h.Publish("x")
	}
	if len(ch) != cap(ch) {
		t.Errorf("buffered = %d, want %d", len(ch), cap(ch))
	}
}

func TestHubUnsubscribeTwice(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	h.Unsubscribe(ch)
	h.Unsubscribe(ch)
	if h.Clients() != 0 {
		t.Errorf("clients = %d, want 0", h.Clients())
	}
}

func TestNilHubPublish(t *testing.T) {
	var h *Hub
	h.Emit("", TypePing, nil)
}

func TestTypeOf(t *testing.T) {
	if got := TypeOf(MakeEvent("", TypeCacheCleared, 1, nil)); got != TypeCacheCleared {
		t.Errorf("TypeOf = %q, want %q", got, TypeCacheCleared)
	}
	if got := TypeOf("not json"); got != "" {
		t.Errorf("TypeOf(garbage) = %q, want empty", got)
	}
}

func TestParseTypes(t *testing.T) {
	if got := ParseTypes(" , "); got != nil {
		t.Errorf("ParseTypes(blank) = %v, want nil", got)
	}
	got := ParseTypes("leads_added, status_updated,,")
	if len(got) != 2 || !got[TypeLeadsAdded] || !got[TypeStatusUpdated] {
		t.Errorf("ParseTypes = %v", got)
	}
}
