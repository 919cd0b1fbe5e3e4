// Package apollo talks to the Apollo.io people search API.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"leadsync-engine/internal/domain"
	"leadsync-engine/internal/metrics"
)

const (
	DefaultBaseURL     = "https://api.apollo.io/api"
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
	searchPath         = "/v1/mixed_people/search"
)

var (
	ErrNoAPIKey    = errors.New("apollo: api key not configured")
	ErrRateLimited = errors.New("apollo: rate limited")
)

// StatusError is a non-200, non-429 reply. It is never retried.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 300 {
		body = body[:300]
	}
	return fmt.Sprintf("apollo: status %d: %s", e.StatusCode, body)
}

type Config struct {
	BaseURL     string
	APIKey      string
	// KeyFunc, when set, is asked for the key on every search so a key saved
	// after startup takes effect. It wins over APIKey.
	KeyFunc     func() (string, error)
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration

	// RequestsPerSecond <= 0 disables pacing.
	RequestsPerSecond float64
	Burst             int
}

type Client struct {
	cfg     Config
	hc      *http.Client
	limiter *rate.Limiter
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	lim := rate.NewLimiter(rate.Inf, cfg.Burst)
	if cfg.RequestsPerSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout},
		limiter: lim,
	}
}

// Result is one page of search results.
type Result struct {
	Leads        []domain.RawLead
	Page         int
	TotalPages   int
	TotalEntries int
}

type searchRequest struct {
	PersonTitles     []string    `json:"person_titles,omitempty"`
	EmployeeRanges   []string    `json:"organization_num_employees_ranges,omitempty"`
	KeywordTags      []string    `json:"q_organization_keyword_tags,omitempty"`
	PersonLocations  []string    `json:"person_locations,omitempty"`
	FoundedYearRange *yearRange  `json:"organization_founded_year_range,omitempty"`
	RevenueRange     *moneyRange `json:"revenue_range,omitempty"`
	Page             int         `json:"page"`
	PerPage          int         `json:"per_page"`
}

type yearRange struct {
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`
}

type moneyRange struct {
	Min int64 `json:"min,omitempty"`
	Max int64 `json:"max,omitempty"`
}

func buildRequest(f domain.Filters) searchRequest {
	f = f.Clamped()
	req := searchRequest{
		PersonTitles:    f.Titles,
		KeywordTags:     f.Industries,
		PersonLocations: f.Locations,
		Page:            f.Page,
		PerPage:         f.PerPage,
	}
	if f.EmployeeMin > 0 || f.EmployeeMax > 0 {
		hi := f.EmployeeMax
		if hi <= 0 {
			hi = 1000000
		}
		req.EmployeeRanges = []string{strconv.Itoa(max(f.EmployeeMin, 1)) + "," + strconv.Itoa(hi)}
	}
	// a founded year means "founded in or after"
	if f.FoundedYear > 0 {
		req.FoundedYearRange = &yearRange{Min: f.FoundedYear}
	}
	if f.RevenueMin > 0 || f.RevenueMax > 0 {
		req.RevenueRange = &moneyRange{Min: f.RevenueMin, Max: f.RevenueMax}
	}
	return req
}

// Search fetches one page. A 429 is retried up to MaxAttempts times with a
// fixed delay; any other non-200 status fails immediately.
func (c *Client) Search(ctx context.Context, f domain.Filters) (Result, error) {
	key, err := c.apiKey()
	if err != nil {
		return Result{}, err
	}
	payload, err := json.Marshal(buildRequest(f))
	if err != nil {
		return Result{}, fmt.Errorf("apollo encode: %w", err)
	}

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{}, err
		}

		status, body, err := c.post(ctx, key, payload)
		if err != nil {
			metrics.APIRequests.WithLabelValues("error").Inc()
			return Result{}, fmt.Errorf("apollo search: %w", err)
		}
		metrics.APIRequests.WithLabelValues(strconv.Itoa(status)).Inc()

		switch status {
		case http.StatusOK:
			return Parse(body)
		case http.StatusTooManyRequests:
			log.Printf("[apollo] rate limited attempt=%d/%d page=%d", attempt, c.cfg.MaxAttempts, f.Page)
			if attempt < c.cfg.MaxAttempts {
				if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
					return Result{}, err
				}
			}
		default:
			return Result{}, &StatusError{StatusCode: status, Body: body}
		}
	}

	return Result{}, fmt.Errorf("%w after %d attempts", ErrRateLimited, c.cfg.MaxAttempts)
}

func (c *Client) post(ctx context.Context, key string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+searchPath, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Api-Key", key)

	start := time.Now()
	res, err := c.hc.Do(req)
	metrics.APIRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	// 8MB is far above a 100-person page
	body, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return 0, nil, err
	}
	return res.StatusCode, body, nil
}

func (c *Client) apiKey() (string, error) {
	key := c.cfg.APIKey
	if c.cfg.KeyFunc != nil {
		k, err := c.cfg.KeyFunc()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNoAPIKey, err)
		}
		key = k
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrNoAPIKey
	}
	return key, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
