package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leadsync-engine/internal/config"
)

var (
	routesMu sync.RWMutex
	routes   = map[string]bool{}
)

func handle(mux *http.ServeMux, path string, h http.Handler) {
	routesMu.Lock()
	routes[path] = true
	routesMu.Unlock()
	mux.Handle(path, h)
}

func routeLabel(path string) string {
	routesMu.RLock()
	defer routesMu.RUnlock()
	if routes[path] {
		return path
	}
	return "other"
}

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	handle(mux, "/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: HealthHandler{Started: time.Now()}.Health,
	}))
	handle(mux, "/metrics", promhttp.Handler())

	// Request API
	ah := ActionHandler{Svc: d.Service, CfgVal: d.CfgVal, ExportDir: d.ExportDir}
	handle(mux, "/api", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ah.Serve,
	}))

	// Leads
	lh := LeadsHandler{Svc: d.Service}
	handle(mux, "/leads", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.List,
	}))
	handle(mux, "/stats", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Stats,
	}))
	handle(mux, "/export.csv", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.ExportCSV,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
		OnSave:      func(cfg config.Config) { d.Service.SetDefaults(cfg.Settings()) },
	}
	handle(mux, "/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	handle(mux, "/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	handle(mux, "/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal}
	handle(mux, "/api/secrets/apollo", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:    sh.ApolloKeyStatus,
		http.MethodPost:   sh.SetApolloKey,
		http.MethodDelete: sh.DeleteApolloKey,
	}))

	// Auto-refresh
	rh := RefreshHandler{Refresher: d.Service, Status: d.RefreshStatus}
	handle(mux, "/refresh/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.GetStatus,
	}))
	handle(mux, "/refresh/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.Run,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	handle(mux, "/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	// SQLite maintenance
	if d.DB != nil {
		dh := DBHandler{DB: d.DB}
		handle(mux, "/db/checkpoint", methodMux(map[string]http.HandlerFunc{
			http.MethodPost: dh.Checkpoint,
		}))
	}

	return mux
}
