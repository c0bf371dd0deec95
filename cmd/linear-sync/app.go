package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/roeyazroel/linear-sync/internal/cache"
	"github.com/roeyazroel/linear-sync/internal/config"
	"github.com/roeyazroel/linear-sync/internal/engine"
	"github.com/roeyazroel/linear-sync/internal/linearapi"
	"github.com/roeyazroel/linear-sync/internal/logger"
	"github.com/roeyazroel/linear-sync/internal/retry"
)

// app holds the services shared by every subcommand.
type app struct {
	cfg     config.Config
	engine  *engine.Engine
	closers []func() error
}

type appOptions struct {
	// envOnly skips the config file and .env.
	envOnly bool
	// notices receives user-facing warnings such as stale data.
	notices io.Writer
}

// newApp loads configuration and wires client, storage, store and engine.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	load := config.Load
	if opts.envOnly {
		load = config.LoadFromEnv
	}
	cfg, err := load()
	if err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			return nil, fmt.Errorf("%w: set the %s environment variable", err, config.LinearAPIKeyEnv)
		}
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if err := logger.Init(cfg.LogFile, logger.ParseLevel(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Info("linear-sync starting version=%s", Version)
	logger.Debug("Configuration: APIEndpoint=%s, PageSize=%d, CacheTTL=%s, CacheBackend=%s",
		cfg.APIEndpoint, cfg.PageSize, cfg.CacheTTL, cfg.CacheBackend)

	a := &app{cfg: cfg}

	storage, err := a.openStorage()
	if err != nil {
		logger.ErrorWithErr(err, "linear-sync: cache storage unavailable, continuing in memory")
		storage = cache.NewMemoryStorage()
	}

	store := cache.NewStore(cache.Options{
		Storage:         storage,
		PersistPrefixes: engine.PersistPrefixes,
	})
	if err := store.Load(ctx); err != nil {
		// The cache starts empty; the run is unaffected.
		logger.Warning("linear-sync: cache snapshot not loaded error=%v", err)
	}

	client := linearapi.NewClient(linearapi.ClientConfig{
		Token:    cfg.LinearAPIKey,
		Endpoint: cfg.APIEndpoint,
		Timeout:  cfg.Timeout,
	})

	a.engine = engine.New(client, store, engine.Config{
		CacheTTL:  cfg.CacheTTL,
		DetailTTL: cfg.DetailTTL,
		PageSize:  cfg.PageSize,
		Retry:     retry.New(cfg.RetryBaseDelay),
		OnStale: func(key string, err error) {
			staleNotice(opts.notices, key, err)
		},
		OnProgress: func(p linearapi.IssueFetchProgress) {
			if p.Page > 1 && opts.notices != nil {
				fmt.Fprintf(opts.notices, "Fetched %d issues (page %d)\n", p.Fetched, p.Page)
			}
		},
	})
	return a, nil
}

// staleNotice tells the user a result came from the cache because Linear
// could not be reached.
func staleNotice(w io.Writer, key string, err error) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "Warning: showing cached data for %s, refresh failed: %v\n", cacheFamily(key), err)
}

func (a *app) openStorage() (cache.Storage, error) {
	switch a.cfg.CacheBackend {
	case config.BackendMemory:
		return cache.NewMemoryStorage(), nil
	case config.BackendSQLite:
		s, err := cache.OpenSQLiteStorage(filepath.Join(a.cfg.CachePath, "cache.db"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return cache.NewFileStorage(a.cfg.CachePath), nil
	}
}

// Close waits for background refreshes so their results are persisted,
// then releases storage and the log file.
func (a *app) Close() {
	if a.engine != nil {
		_ = a.engine.Close()
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.ErrorWithErr(err, "linear-sync: close failed")
		}
	}
	logger.Info("linear-sync shutdown")
	logger.Close()
}
