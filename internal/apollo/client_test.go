package apollo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"leadsync-engine/internal/domain"
)

const okBody = `{
  "people": [
    {
      "id": "p1",
      "first_name": "john",
      "last_name": "smith",
      "name": "john smith",
      "title": "ceo",
      "email": "JOHN@X.com",
      "linkedin_url": "linkedin.com/in/js",
      "city": "Austin", "state": "Texas", "country": null,
      "phone_numbers": [{"raw_number": "+1 555-000-1111", "sanitized_number": "+15550001111"}],
      "organization": {
        "name": "Acme",
        "industry": "retail",
        "estimated_num_employees": 42,
        "founded_year": 1999,
        "website_url": "acme.example",
        "short_description": "We sell things"
      }
    }
  ],
  "pagination": {"page": 1, "per_page": 25, "total_entries": 1, "total_pages": 1}
}`

func newTestClient(url string) *Client {
	return New(Config{
		BaseURL:    url,
		APIKey:     "test-key",
		RetryDelay: time.Millisecond,
	})
}

func TestSearchSuccess(t *testing.T) {
	var gotKey string
	var gotReq searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != searchPath {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("X-Api-Key")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotReq)
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Search(context.Background(), domain.Filters{
		Titles:      []string{"CEO"},
		EmployeeMin: 1,
		EmployeeMax: 50,
		Page:        2,
		PerPage:     500,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("X-Api-Key = %q", gotKey)
	}
	if gotReq.Page != 2 || gotReq.PerPage != domain.MaxPerPage {
		t.Errorf("page=%d per_page=%d", gotReq.Page, gotReq.PerPage)
	}
	if len(gotReq.EmployeeRanges) != 1 || gotReq.EmployeeRanges[0] != "1,50" {
		t.Errorf("employee ranges = %v", gotReq.EmployeeRanges)
	}

	if len(res.Leads) != 1 || res.TotalEntries != 1 {
		t.Fatalf("result = %+v", res)
	}
	l := res.Leads[0]
	if l.ID != "p1" || l.Email != "JOHN@X.com" || l.Company != "Acme" {
		t.Errorf("lead = %+v", l)
	}
	if l.Employees != "42" || l.FoundedYear != "1999" || l.Country != "" {
		t.Errorf("employees=%q founded=%q country=%q", l.Employees, l.FoundedYear, l.Country)
	}
	if l.Phone != "+15550001111" || l.Website != "acme.example" {
		t.Errorf("phone=%q website=%q", l.Phone, l.Website)
	}
}

func TestSearchRetriesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Search(context.Background(), domain.Filters{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if calls != 3 || len(res.Leads) != 1 {
		t.Errorf("calls=%d leads=%d", calls, len(res.Leads))
	}
}

func TestSearchGivesUpAfterThreeAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(context.Background(), domain.Filters{})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if calls != DefaultMaxAttempts {
		t.Errorf("calls = %d, want %d", calls, DefaultMaxAttempts)
	}
}

func TestSearchFailsFastOnOtherStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(context.Background(), domain.Filters{})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want StatusError 401", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSearchWithoutKey(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := c.Search(context.Background(), domain.Filters{}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestSearchReadsKeyPerCall(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		_, _ = w.Write([]byte(`{"people":[]}`))
	}))
	defer srv.Close()

	key := ""
	c := New(Config{BaseURL: srv.URL, KeyFunc: func() (string, error) { return key, nil }})

	if _, err := c.Search(context.Background(), domain.Filters{}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey before key is set", err)
	}

	key = "later-key"
	if _, err := c.Search(context.Background(), domain.Filters{}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotKey != "later-key" {
		t.Errorf("X-Api-Key = %q, want %q", gotKey, "later-key")
	}
}

func TestSearchHonorsContextDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", RetryDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Search(ctx, domain.Filters{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestParseToleratesDrift(t *testing.T) {
	body := []byte(`{"people":[{"id":7,"title":{"x":1},"organization":{"estimated_num_employees":"1,200","primary_phone":{"number":"555"}}}]}`)

	res, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	l := res.Leads[0]
	if l.ID != "7" || l.Title != "" || l.Employees != "1,200" || l.Phone != "555" {
		t.Errorf("lead = %+v", l)
	}
}

func TestParseMissingPeople(t *testing.T) {
	res, err := Parse([]byte(`{}`))
	if err != nil || len(res.Leads) != 0 {
		t.Fatalf("Parse({}) = %+v, %v", res, err)
	}
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Fatalf("Parse(garbage) should fail")
	}
}
