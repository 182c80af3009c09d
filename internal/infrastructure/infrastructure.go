// Package infrastructure assembles the process-wide systems: logger,
// lifecycle coordinator, metrics, the optional database and blob storage,
// the result cache, and the acquisition pipeline over its adapters.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/gather/graph"
	"github.com/JaimeStill/gather/internal/config"
	"github.com/JaimeStill/gather/internal/metrics"
	"github.com/JaimeStill/gather/internal/pipeline"
	"github.com/JaimeStill/gather/pkg/cache"
	"github.com/JaimeStill/gather/pkg/database"
	"github.com/JaimeStill/gather/pkg/lifecycle"
	"github.com/JaimeStill/gather/pkg/storage"
)

const purgeInterval = 15 * time.Minute

// Infrastructure holds the systems shared by the server and the CLI.
// Database and Storage are nil when no configured component needs them.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Database  database.System
	Storage   storage.System
	Cache     *cache.Cache
	Pipeline  *pipeline.System

	badger   *cache.BadgerStore
	postgres *cache.PostgresStore
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	return NewWithLogger(cfg, cfg.Logger())
}

// NewWithLogger is New with an explicit logger.
func NewWithLogger(cfg *config.Config, logger *slog.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
		Metrics:   metrics.New(),
	}

	if cfg.NeedsDatabase() {
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
	}

	if cfg.NeedsStorage() {
		blobs, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		infra.Storage = blobs
	}

	store, err := infra.cacheStore(&cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("cache init failed: %w", err)
	}
	infra.Cache = cache.New(store, cache.Options{
		TTL:        cfg.Cache.TTLDuration(),
		FailureTTL: cfg.Cache.FailureTTLDuration(),
		Backend:    cfg.Cache.Backend,
		Observer:   infra.Metrics,
		Logger:     logger,
	})

	deps, err := newDeps(cfg, infra.Storage, logger)
	if err != nil {
		infra.close()
		return nil, fmt.Errorf("adapter init failed: %w", err)
	}

	infra.Pipeline, err = pipeline.New(&cfg.Pipeline, deps, infra.Cache, logger, graph.WithObserver(infra.Metrics))
	if err != nil {
		infra.close()
		return nil, fmt.Errorf("pipeline init failed: %w", err)
	}

	return infra, nil
}

func (i *Infrastructure) cacheStore(cfg *cache.Config) (cache.Store, error) {
	switch cfg.Backend {
	case cache.BackendBadger:
		b, err := cache.OpenBadger(cfg.Path, i.Logger)
		if err != nil {
			return nil, err
		}
		i.badger = b
		return b, nil
	case cache.BackendPostgres:
		if i.Database == nil {
			return nil, fmt.Errorf("%s backend requires a database", cfg.Backend)
		}
		i.postgres = cache.NewPostgresStore(i.Database.Connection())
		return i.postgres, nil
	case cache.BackendBlob:
		if i.Storage == nil {
			return nil, fmt.Errorf("%s backend requires storage", cfg.Backend)
		}
		return cache.NewBlobStore(i.Storage, cfg.Prefix), nil
	default:
		return cache.NewMemoryStore(cfg.MaxEntries), nil
	}
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}
	if i.badger != nil {
		if err := i.badger.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("cache start failed: %w", err)
		}
	}
	if i.postgres != nil {
		i.Lifecycle.OnShutdown(i.purge)
	}
	return nil
}

// purge deletes expired cache rows until shutdown.
func (i *Infrastructure) purge() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	ctx := i.Lifecycle.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, time.Minute)
			n, err := i.postgres.Purge(pctx, time.Now())
			cancel()
			if err != nil {
				i.Logger.Warn("cache purge failed", "error", err)
				continue
			}
			if n > 0 {
				i.Logger.Info("cache purged", "entries", n)
			}
		}
	}
}

func (i *Infrastructure) close() {
	if i.badger != nil {
		if err := i.badger.Close(); err != nil {
			i.Logger.Error("badger cache close failed", "error", err)
		}
	}
	if i.Database != nil {
		i.Database.Connection().Close()
	}
}
