package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JaimeStill/gather/pkg/repository"
)

const (
	selectEntry = `SELECT key, value, created_at, expires_at FROM cache_entries WHERE key = $1`
	upsertEntry = `INSERT INTO cache_entries (key, value, created_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at`
	deleteEntry  = `DELETE FROM cache_entries WHERE key = $1`
	purgeExpired = `DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`
)

// PostgresStore persists entries in the cache_entries table created by
// cmd/migrate.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func scanEntry(s repository.Scanner) (*Entry, error) {
	var (
		e         Entry
		value     []byte
		expiresAt sql.NullTime
	)
	if err := s.Scan(&e.Key, &value, &e.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	e.Value = value
	if expiresAt.Valid {
		e.ExpiresAt = expiresAt.Time
	}
	return &e, nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) (*Entry, error) {
	entry, err := repository.Row(ctx, p.db, selectEntry, []any{key}, scanEntry)
	if err != nil {
		return nil, repository.NotFound(err, ErrNotFound)
	}
	return entry, nil
}

func (p *PostgresStore) Set(ctx context.Context, entry *Entry) error {
	if entry.Key == "" {
		return ErrEmptyKey
	}

	var expiresAt sql.NullTime
	if !entry.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: entry.ExpiresAt, Valid: true}
	}

	_, err := repository.InTx(ctx, p.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExpectOne(ctx, tx, upsertEntry,
			entry.Key, []byte(entry.Value), entry.CreatedAt, expiresAt)
	})
	if err != nil {
		return fmt.Errorf("upsert cache entry %s: %w", entry.Key, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	err := repository.ExpectOne(ctx, p.db, deleteEntry, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	return nil
}

// Purge removes expired rows and returns how many were deleted.
func (p *PostgresStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	n, err := repository.Affected(ctx, p.db, purgeExpired, now)
	if err != nil {
		return 0, fmt.Errorf("purge cache entries: %w", err)
	}
	return n, nil
}
