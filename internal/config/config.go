// engine/internal/config/config.go
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"leadsync-engine/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Storage struct {
		Driver      string `yaml:"driver"`
		SQLiteFile  string `yaml:"sqlite_file"`
		PostgresURL string `yaml:"postgres_url"`
	} `yaml:"storage"`

	Apollo struct {
		BaseURL           string  `yaml:"base_url"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		MaxAttempts       int     `yaml:"max_attempts"`
		RetryDelaySeconds int     `yaml:"retry_delay_seconds"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		KeyringAccount    string  `yaml:"keyring_account"`
	} `yaml:"apollo"`

	Search domain.Filters `yaml:"search"`

	Cache struct {
		Backend    string `yaml:"backend"`
		TTLSeconds int    `yaml:"ttl_seconds"`
		RedisAddr  string `yaml:"redis_addr"`
		WarmPages  int    `yaml:"warm_pages"`
	} `yaml:"cache"`

	Cleaning struct {
		StrictDedup bool `yaml:"strict_dedup"`
	} `yaml:"cleaning"`

	Polling struct {
		AutoRefresh    bool `yaml:"auto_refresh"`
		RefreshSeconds int  `yaml:"refresh_seconds"`
	} `yaml:"polling"`

	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`
}

// Default is the config used for any key the YAML file leaves out.
func Default() Config {
	var cfg Config
	cfg.App.Port = 38471
	cfg.Storage.Driver = DriverSQLite
	cfg.Storage.SQLiteFile = "leads.db"
	cfg.Apollo.TimeoutSeconds = 30
	cfg.Apollo.MaxAttempts = 3
	cfg.Apollo.RetryDelaySeconds = 2
	cfg.Apollo.RequestsPerSecond = 1
	cfg.Apollo.Burst = 1
	cfg.Apollo.KeyringAccount = "leadsync:apollo"
	cfg.Search = domain.Filters{
		Titles:      []string{"CEO", "Owner", "Founder", "President", "Co-Founder"},
		EmployeeMin: 1,
		EmployeeMax: 50,
		Page:        1,
		PerPage:     25,
	}
	cfg.Cache.Backend = CacheSQLite
	cfg.Cache.TTLSeconds = 3600
	cfg.Cache.WarmPages = 3
	cfg.Polling.RefreshSeconds = 3600
	cfg.Export.Dir = "exports"
	return cfg
}

func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// Settings are the user-adjustable defaults the engine starts from.
func (c Config) Settings() domain.Settings {
	return domain.Settings{
		Filters:         c.Search,
		CacheTTLSeconds: c.Cache.TTLSeconds,
		AutoRefresh:     c.Polling.AutoRefresh,
		StrictDedup:     c.Cleaning.StrictDedup,
	}
}
