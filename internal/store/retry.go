package store

import (
	"context"
	"strings"
	"time"
)

type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
}

var defaultRetry = retryPolicy{attempts: 3, baseDelay: 50 * time.Millisecond}

// isBusy matches the two forms SQLite uses to report lock contention.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withRetry retries fn with exponential backoff while it fails with a busy
// error. Any other error is returned immediately.
func (s *SQLiteStore) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < s.retry.attempts; i++ {
		err = fn()
		if !isBusy(err) || i == s.retry.attempts-1 {
			return err
		}

		delay := s.retry.baseDelay * time.Duration(1<<i)
		s.logger.Debug("database busy, retrying",
			"op", op,
			"attempt", i+1,
			"delay", delay,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
