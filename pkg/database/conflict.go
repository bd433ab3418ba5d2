package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// IsConflictError reports whether err is a transient write conflict that
// warrants retrying the whole transaction.
func IsConflictError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}

	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// IsUniqueViolation reports whether err is a unique constraint failure.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// RetryConfig bounds WithRetry.
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
}

var DefaultRetry = RetryConfig{Attempts: 5, BaseDelay: 10 * time.Millisecond}

// WithRetry runs fn until it succeeds, fails with a non-conflict error, or
// the attempts are exhausted. Delays grow exponentially.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	return WithRetryIf(ctx, cfg, IsConflictError, fn)
}

// WithRetryIf is WithRetry with a caller-chosen retryable predicate.
func WithRetryIf(ctx context.Context, cfg RetryConfig, retryable func(error) bool, fn func() error) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseDelay
	b.Multiplier = 2

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		if err != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(cfg.Attempts)))
	return err
}
