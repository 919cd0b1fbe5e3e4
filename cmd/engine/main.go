package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"leadsync-engine/internal/apollo"
	"leadsync-engine/internal/cache"
	"leadsync-engine/internal/config"
	"leadsync-engine/internal/events"
	"leadsync-engine/internal/httpapi"
	"leadsync-engine/internal/leads"
	"leadsync-engine/internal/poll"
	"leadsync-engine/internal/secrets"
	"leadsync-engine/internal/store"
	"leadsync-engine/internal/store/postgres"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Engine data dir: use env if provided (the desktop shell passes one), else local folder.
	dataDir := os.Getenv("LEADSYNC_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	lock, err := store.LockDataDir(dataDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		return fmt.Errorf("config bootstrap failed: %w", err)
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(userCfgPath)
		if err != nil {
			return cfg, err
		}
		config.OverlayEnv(&cfg)
		cfg, vr := config.NormalizeAndValidate(cfg)
		for _, w := range vr.Warnings {
			log.Printf("[config] warn: %s", w)
		}
		if !vr.OK() {
			return cfg, errors.New("config validation failed:\n- " + strings.Join(vr.Errors, "\n- "))
		}
		return cfg, nil
	}
	cfg, err := loadCfg()
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", userCfgPath, err)
	}
	cfgVal.Store(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		st       leads.Store
		sqliteDB *store.DB
		pool     *sql.DB
	)
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pg, err := postgres.Open(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		st = pg
		log.Printf("[store] postgres")
	default:
		dbPath := filepath.Join(dataDir, cfg.Storage.SQLiteFile)
		db, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open %s: %w", dbPath, err)
		}
		defer db.Close()
		st, sqliteDB, pool = db, db, db.Pool
		log.Printf("[store] sqlite path=%s", dbPath)
	}

	// Cache
	var backend cache.Backend
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		rc := cache.NewRedis(cfg.Cache.RedisAddr)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rc.Ping(pctx)
		cancel()
		if err != nil {
			return fmt.Errorf("redis %s: %w", cfg.Cache.RedisAddr, err)
		}
		defer rc.Close()
		backend = rc
	case config.CacheSQLite:
		if sqliteDB != nil {
			backend = sqliteDB.CacheBackend()
			break
		}
		log.Printf("[cache] warn: sqlite cache needs the sqlite store; using memory")
		backend = cache.NewMemory()
	default:
		backend = cache.NewMemory()
	}
	respCache := cache.New(backend, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	log.Printf("[cache] backend=%s ttl=%ds", cfg.Cache.Backend, cfg.Cache.TTLSeconds)

	// Search API; the key is looked up per call so saving it takes effect at once.
	client := apollo.New(apollo.Config{
		BaseURL:           cfg.Apollo.BaseURL,
		Timeout:           time.Duration(cfg.Apollo.TimeoutSeconds) * time.Second,
		MaxAttempts:       cfg.Apollo.MaxAttempts,
		RetryDelay:        time.Duration(cfg.Apollo.RetryDelaySeconds) * time.Second,
		RequestsPerSecond: cfg.Apollo.RequestsPerSecond,
		Burst:             cfg.Apollo.Burst,
		KeyFunc: func() (string, error) {
			return secrets.GetAPIKey(secrets.APIKeyAccount(cfgVal.Load().(config.Config)))
		},
	})

	hub := events.NewHub()
	svc := leads.New(leads.Deps{
		Store:    st,
		Searcher: client,
		Cache:    respCache,
		Hub:      hub,
		Defaults: cfg.Settings(),
	})
	if err := svc.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	var refreshStatus atomic.Value // stores poll.Status
	refreshStatus.Store(poll.Status{})
	poll.Start(ctx, time.Duration(cfg.Polling.RefreshSeconds)*time.Second, svc, &refreshStatus)

	exportDir := cfg.Export.Dir
	if !filepath.IsAbs(exportDir) {
		exportDir = filepath.Join(dataDir, exportDir)
	}

	mux := httpapi.NewMux(httpapi.Deps{
		Service:       svc,
		Hub:           hub,
		DB:            pool,
		CfgVal:        &cfgVal,
		RefreshStatus: &refreshStatus,
		UserCfgPath:   userCfgPath,
		LoadCfg:       loadCfg,
		ExportDir:     exportDir,
	})

	srv := &http.Server{
		Handler: httpapi.Chain(mux,
			httpapi.RequestID,
			httpapi.Recover,
			httpapi.Metrics,
			httpapi.AccessLog,
			httpapi.Cors,
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	token, err := randomToken(32)
	if err != nil {
		return err
	}
	tokenPath, err := writeToken(dataDir, token)
	if err != nil {
		return err
	}
	defer os.Remove(tokenPath)
	mux.HandleFunc("/shutdown", shutdownHandler(token, stop))

	// Bind to a predictable local port (the desktop shell knows it).
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("engine listening on http://%s (data=%s)", addr, dataDir)

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Printf("engine stopped")
	return nil
}
