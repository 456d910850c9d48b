// Package store is the SQLite implementation of the escaperoom persistence
// interfaces.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

// timeLayout is how timestamps are stored in TEXT columns. Fixed-width
// fractional seconds keep lexical order equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	retry  retryPolicy
	now    func() time.Time
}

func New(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{
		db:     db,
		logger: logger,
		retry:  defaultRetry,
		now:    time.Now,
	}
}

// Ping is used by the health endpoint.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Atomically runs fn in a transaction, retrying the whole unit when SQLite
// reports the database busy.
func (s *SQLiteStore) Atomically(ctx context.Context, fn func(tx escaperoom.Tx) error) error {
	return s.withRetry(ctx, "atomically", func() error {
		return s.inTx(ctx, func(q querier) error {
			return fn(&sqlTx{q: q})
		})
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, escaperoom.ErrNotFound)
	}
	return err
}

func affectedOrNotFound(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, escaperoom.ErrNotFound)
	}
	return nil
}

var (
	_ escaperoom.Repository = (*SQLiteStore)(nil)
	_ escaperoom.RoomStore  = (*SQLiteStore)(nil)
	_ escaperoom.UserStore  = (*SQLiteStore)(nil)
	_ escaperoom.Tx         = (*sqlTx)(nil)
)
