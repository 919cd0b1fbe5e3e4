package httpapi

import (
	"database/sql"
	"sync/atomic"

	"leadsync-engine/internal/config"
	"leadsync-engine/internal/events"
	"leadsync-engine/internal/leads"
)

type Deps struct {
	Service *leads.Service

	Hub *events.Hub

	// SQLite handle for maintenance routes; nil with the Postgres store.
	DB *sql.DB

	// Atomic stores
	CfgVal        *atomic.Value // stores config.Config
	RefreshStatus *atomic.Value // stores poll.Status

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// ExportDir is where exportCSV with save=true writes files.
	ExportDir string
}
