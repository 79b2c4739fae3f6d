package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"gorm.io/gorm"
)

// RetryConfig configures exponential backoff for transient connection errors.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns three attempts starting at 100ms, doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2,
	}
}

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable
// error, or attempts run out.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := config.BaseDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !retryable(err) {
			return zero, err
		}

		if attempt < config.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
			}
		}
	}

	return zero, lastErr
}

// isTransient reports whether err looks like a dropped or unusable connection.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection reset", "broken pipe", "connection refused", "server closed the connection", "database is locked"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// withConn runs fn on a dedicated pooled connection, retrying transient
// failures. A connection that failed transiently is marked bad so the pool
// discards it instead of handing it to the next attempt.
func (s *Store) withConn(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	attempt := 0
	_, err := retryWithBackoff(ctx, s.retry, isTransient, func() (struct{}, error) {
		attempt++
		err := s.db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
			err := fn(tx.Session(&gorm.Session{}))
			if isTransient(err) {
				if conn, ok := tx.Statement.ConnPool.(*sql.Conn); ok {
					conn.Raw(func(any) error { return driver.ErrBadConn })
				}
			}
			return err
		})
		if isTransient(err) {
			s.logger.Warn("transient database error", "op", op, "attempt", attempt, "error", err)
		}
		return struct{}{}, err
	})
	return err
}
