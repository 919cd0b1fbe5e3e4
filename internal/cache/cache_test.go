package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"leadsync-engine/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache() (*Cache, *Memory, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	mem := NewMemory()
	c := New(mem, DefaultTTL)
	c.Now = clk.Now
	return c, mem, clk
}

func TestPutThenGet(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache()
	batch := []domain.Lead{{ID: "1", Email: "a@x.com"}, {ID: "2", Email: "b@x.com"}}

	if err := c.Put(ctx, "k", batch, 3600*time.Second); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].Email != "b@x.com" {
		t.Errorf("Get = %+v", got)
	}
}

func TestGetAfterTTLIsAbsentAndEvicted(t *testing.T) {
	ctx := context.Background()
	c, mem, clk := newTestCache()

	_ = c.Put(ctx, "k", []domain.Lead{{ID: "1"}}, 3600*time.Second)

	clk.Advance(3600 * time.Second)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatalf("entry should still be live at exactly the TTL")
	}

	clk.Advance(time.Second)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("entry should be absent after 3601s")
	}
	if mem.Len() != 0 {
		t.Errorf("expired entry was not evicted")
	}
}

func TestPerEntryTTL(t *testing.T) {
	ctx := context.Background()
	c, _, clk := newTestCache()

	_ = c.Put(ctx, "short", []domain.Lead{{ID: "1"}}, 10*time.Second)
	clk.Advance(11 * time.Second)
	if _, ok, _ := c.Get(ctx, "short"); ok {
		t.Fatalf("short-lived entry should have expired")
	}
}

func TestMissAndClear(t *testing.T) {
	ctx := context.Background()
	c, mem, _ := newTestCache()

	if _, ok, err := c.Get(ctx, "nope"); ok || err != nil {
		t.Fatalf("miss = ok=%v err=%v", ok, err)
	}

	_ = c.Put(ctx, Key(domain.Filters{Page: 1}), nil, 0)
	_ = c.Put(ctx, Key(domain.Filters{Page: 2}), nil, 0)
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if mem.Len() != 0 {
		t.Errorf("Clear left %d entries", mem.Len())
	}
}

func TestEmptyBatchIsAHit(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache()

	_ = c.Put(ctx, "k", nil, 0)
	got, ok, _ := c.Get(ctx, "k")
	if !ok || got == nil || len(got) != 0 {
		t.Fatalf("Get = %#v ok=%v", got, ok)
	}
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	c, mem, _ := newTestCache()

	_ = mem.Set(ctx, "bad", []byte("{not json"), 0)
	if _, ok, err := c.Get(ctx, "bad"); ok || err != nil {
		t.Fatalf("corrupt entry = ok=%v err=%v", ok, err)
	}
	if mem.Len() != 0 {
		t.Errorf("corrupt entry was not dropped")
	}
}

func TestKeyIgnoresOrderCaseAndSpacing(t *testing.T) {
	a := domain.Filters{
		Titles:     []string{"CEO", "Founder"},
		Industries: []string{"retail", "Software"},
		Locations:  []string{"Austin,  TX"},
		Page:       1,
	}
	b := domain.Filters{
		Titles:     []string{" founder", "ceo", "CEO"},
		Industries: []string{"software", "RETAIL"},
		Locations:  []string{"austin, tx"},
		Page:       0, // clamps to 1
	}

	if Key(a) != Key(b) {
		t.Errorf("equivalent filters produced different keys")
	}
	if !strings.HasPrefix(Key(a), KeyPrefix) {
		t.Errorf("key %q lacks prefix", Key(a))
	}
}

func TestKeyDistinguishesFilters(t *testing.T) {
	base := domain.Filters{Titles: []string{"ceo"}, EmployeeMin: 1, EmployeeMax: 50, Page: 1}

	variants := []domain.Filters{
		{Titles: []string{"ceo"}, EmployeeMin: 1, EmployeeMax: 50, Page: 2},
		{Titles: []string{"ceo"}, EmployeeMin: 1, EmployeeMax: 200, Page: 1},
		{Titles: []string{"owner"}, EmployeeMin: 1, EmployeeMax: 50, Page: 1},
		{Titles: []string{"ceo"}, EmployeeMin: 1, EmployeeMax: 50, Page: 1, FoundedYear: 2010},
		{Titles: []string{"ceo"}, EmployeeMin: 1, EmployeeMax: 50, Page: 1, Locations: []string{"ohio"}},
	}
	for i, v := range variants {
		if Key(v) == Key(base) {
			t.Errorf("variant %d collides with base", i)
		}
	}
	if BatchKey(base, true) == Key(base) {
		t.Errorf("strict dedup batch shares a key with the email-only batch")
	}
	if BatchKey(base, false) != Key(base) {
		t.Errorf("BatchKey(f, false) != Key(f)")
	}
}
