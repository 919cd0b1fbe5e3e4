// config/overlay.go
package config

import (
	"os"
	"strconv"
	"strings"
)

// OverlayEnv lets deployment-specific values come from the environment
// instead of the YAML file. Unset or unparsable variables are ignored.
func OverlayEnv(cfg *Config) {
	if v := env("LEADSYNC_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = n
		}
	}
	if v := env("LEADSYNC_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := env("LEADSYNC_POSTGRES_URL"); v != "" {
		cfg.Storage.PostgresURL = v
	}
	if v := env("LEADSYNC_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := env("LEADSYNC_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := env("APOLLO_BASE_URL"); v != "" {
		cfg.Apollo.BaseURL = v
	}
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}
