package config

import (
	"fmt"
	"strings"

	"leadsync-engine/internal/domain"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus everything wrong with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	// Normalize common lists
	out.Search.Titles = trimList(out.Search.Titles)
	out.Search.Industries = trimList(out.Search.Industries)
	out.Search.Locations = trimList(out.Search.Locations)

	out.Storage.Driver = strings.ToLower(strings.TrimSpace(out.Storage.Driver))
	out.Cache.Backend = strings.ToLower(strings.TrimSpace(out.Cache.Backend))
	out.Apollo.BaseURL = strings.TrimRight(strings.TrimSpace(out.Apollo.BaseURL), "/")

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	// storage
	switch out.Storage.Driver {
	case DriverSQLite:
		if strings.TrimSpace(out.Storage.SQLiteFile) == "" {
			res.addErr("storage.sqlite_file is required when storage.driver=sqlite")
		}
	case DriverPostgres:
		if strings.TrimSpace(out.Storage.PostgresURL) == "" {
			res.addErr("storage.postgres_url is required when storage.driver=postgres")
		}
	default:
		res.addErr("storage.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, out.Storage.Driver)
	}

	// cache
	switch out.Cache.Backend {
	case CacheMemory, CacheSQLite:
	case CacheRedis:
		if strings.TrimSpace(out.Cache.RedisAddr) == "" {
			res.addErr("cache.redis_addr is required when cache.backend=redis")
		}
	default:
		res.addErr("cache.backend must be memory, sqlite or redis, got %q", out.Cache.Backend)
	}
	if out.Cache.Backend == CacheSQLite && out.Storage.Driver == DriverPostgres {
		res.addWarn("cache.backend=sqlite with storage.driver=postgres keeps the cache in a local file.")
	}
	if out.Cache.TTLSeconds < 0 {
		res.addErr("cache.ttl_seconds must be >= 0")
	} else if out.Cache.TTLSeconds == 0 {
		out.Cache.TTLSeconds = 3600
	}
	if out.Cache.WarmPages < 0 || out.Cache.WarmPages > 10 {
		res.addErr("cache.warm_pages must be 0..10")
	}

	// apollo sanity
	if out.Apollo.MaxAttempts <= 0 {
		res.addErr("apollo.max_attempts must be > 0")
	}
	if out.Apollo.RetryDelaySeconds < 0 {
		res.addErr("apollo.retry_delay_seconds must be >= 0")
	}
	if out.Apollo.TimeoutSeconds <= 0 {
		res.addErr("apollo.timeout_seconds must be > 0")
	}
	if strings.TrimSpace(out.Apollo.KeyringAccount) == "" {
		res.addErr("apollo.keyring_account is required")
	}

	// search sanity
	if out.Search.PerPage > domain.MaxPerPage {
		res.addWarn("search.per_page %d is above %d; it will be capped.", out.Search.PerPage, domain.MaxPerPage)
	}
	if out.Search.EmployeeMax > 0 && out.Search.EmployeeMin > out.Search.EmployeeMax {
		res.addErr("search.employee_min (%d) is greater than search.employee_max (%d)", out.Search.EmployeeMin, out.Search.EmployeeMax)
	}
	if out.Search.RevenueMax > 0 && out.Search.RevenueMin > out.Search.RevenueMax {
		res.addErr("search.revenue_min is greater than search.revenue_max")
	}
	if len(out.Search.Titles) == 0 {
		res.addWarn("search.titles is empty; Apollo will return every title and most will be rejected.")
	}
	out.Search = out.Search.Clamped()

	// polling sanity
	if out.Polling.AutoRefresh {
		if out.Polling.RefreshSeconds <= 0 {
			res.addErr("polling.refresh_seconds must be > 0 when polling.auto_refresh=true")
		} else if out.Polling.RefreshSeconds < 60 {
			res.addWarn("polling.refresh_seconds is very low (%d) and may cause rate limits.", out.Polling.RefreshSeconds)
		}
	}

	return out, res
}
