// Package initializer builds the process-wide infrastructure from
// configuration.
package initializer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	infracache "github.com/amirasaad/storefront/infra/cache"
	infraeventbus "github.com/amirasaad/storefront/infra/eventbus"
	infrarepo "github.com/amirasaad/storefront/infra/repository"
	"github.com/amirasaad/storefront/infra/storage"
	"github.com/amirasaad/storefront/infra/surface"
	"github.com/amirasaad/storefront/pkg/cache"
	"github.com/amirasaad/storefront/pkg/config"
	"github.com/amirasaad/storefront/pkg/lock"
	"github.com/redis/go-redis/v9"
)

// InitializeDependencies opens the database and builds the cache, lock
// registry, event bus and surface. The returned close func releases them.
func InitializeDependencies(cfg *config.App) (deps *config.Deps, closeFn func() error, err error) {
	logger := setupLogger(cfg.Log)
	return initialize(context.Background(), cfg, logger)
}

func initialize(ctx context.Context, cfg *config.App, logger *slog.Logger) (*config.Deps, func() error, error) {
	gw, err := storage.Open(ctx, storage.Config{
		Path:            cfg.DB.Path,
		BusyTimeout:     cfg.DB.BusyTimeout,
		MaxAttempts:     cfg.DB.MaxRetries,
		InitialInterval: cfg.DB.InitialInterval,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	c, closeCache := initCache(ctx, cfg, logger)

	deps := &config.Deps{
		Uow:     infrarepo.NewUoW(gw.DB(), gw),
		Cache:   c,
		Locks:   lock.NewRegistry(cfg.Lock.IdleHorizon, logger),
		Surface: surface.NewMemory(),
		Bus:     infraeventbus.NewWithMemory(logger),
		Logger:  logger,
		Config:  cfg,
	}
	closeFn := func() error {
		return errors.Join(closeCache(), gw.Close())
	}
	logger.Info("Dependencies initialized", "db_path", cfg.DB.Path, "cache_backend", cfg.Cache.Backend)
	return deps, closeFn, nil
}

// initCache returns the configured backend. An unreachable Redis falls back
// to the memory cache since every cached value can be rebuilt.
func initCache(ctx context.Context, cfg *config.App, logger *slog.Logger) (cache.Cache, func() error) {
	memory := func() (cache.Cache, func() error) {
		c := infracache.NewMemoryCache(cfg.Cache.SweepInterval)
		return c, func() error { c.Close(); return nil }
	}
	if cfg.Cache.Backend != "redis" {
		return memory()
	}

	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Warn("Invalid Redis URL, using memory cache", "error", err)
		return memory()
	}
	opt.PoolSize = cfg.Redis.PoolSize
	opt.DialTimeout = cfg.Redis.DialTimeout
	opt.ReadTimeout = cfg.Redis.ReadTimeout
	opt.WriteTimeout = cfg.Redis.WriteTimeout

	rc := infracache.NewRedisCacheWithOptions(opt, cfg.Redis.KeyPrefix, logger)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.Warn("Redis unreachable, using memory cache", "error", err)
		_ = rc.Close()
		return memory()
	}
	logger.Info("Using Redis cache", "key_prefix", cfg.Redis.KeyPrefix)
	return rc, rc.Close
}
