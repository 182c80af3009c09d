package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/JaimeStill/gather/pkg/lifecycle"
)

const badgerGCInterval = 5 * time.Minute

// BadgerStore persists entries in a local BadgerDB directory. Entry expiry
// maps onto badger's native key TTL.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens or creates a BadgerDB at path. An empty path opens an
// in-memory database.
func OpenBadger(path string, logger *slog.Logger) (*BadgerStore, error) {
	logger = logger.With("system", "cache.badger")

	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}

	opts = opts.
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}

	return &BadgerStore{db: db, logger: logger}, nil
}

// Start registers value log garbage collection and closes the database on
// shutdown.
func (b *BadgerStore) Start(lc *lifecycle.Coordinator) error {
	lc.OnShutdown(func() {
		ticker := time.NewTicker(badgerGCInterval)
		defer ticker.Stop()

		for {
			select {
			case <-lc.Context().Done():
				b.logger.Info("closing badger cache")
				if err := b.db.Close(); err != nil {
					b.logger.Error("badger cache close failed", "error", err)
				}
				return
			case <-ticker.C:
				if err := b.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
					b.logger.Warn("badger value log gc failed", "error", err)
				}
			}
		}
	})
	return nil
}

// Close closes the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func (b *BadgerStore) Get(_ context.Context, key string) (*Entry, error) {
	var entry Entry

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %s: %w", key, err)
	}

	return &entry, nil
}

func (b *BadgerStore) Set(_ context.Context, entry *Entry) error {
	if entry.Key == "" {
		return ErrEmptyKey
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	e := badger.NewEntry([]byte(entry.Key), data)
	if !entry.ExpiresAt.IsZero() {
		ttl := time.Until(entry.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
		e = e.WithTTL(ttl)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(e)
	})
}

func (b *BadgerStore) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}
