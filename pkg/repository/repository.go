// Package repository holds the database/sql helpers shared by stores that
// persist rows in PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"errors"
)

// Querier is implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor is implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Scanner is a single row.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanFunc decodes one row into T.
type ScanFunc[T any] func(Scanner) (T, error)

// InTx runs fn inside a transaction, committing when fn succeeds.
func InTx[T any](ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (T, error)) (T, error) {
	var zero T

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return zero, err
	}
	defer tx.Rollback()

	out, err := fn(tx)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, err
	}
	return out, nil
}

// Row runs a query returning at most one row and decodes it with scan.
// A missing row surfaces as sql.ErrNoRows.
func Row[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) (T, error) {
	return scan(q.QueryRowContext(ctx, query, args...))
}

// Affected runs a statement and returns the number of rows it touched.
func Affected(ctx context.Context, e Executor, query string, args ...any) (int64, error) {
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExpectOne runs a statement that must touch a row. It returns
// sql.ErrNoRows when none was affected.
func ExpectOne(ctx context.Context, e Executor, query string, args ...any) error {
	n, err := Affected(ctx, e, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// NotFound replaces sql.ErrNoRows with target and leaves other errors as
// they are.
func NotFound(err, target error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return target
	}
	return err
}
