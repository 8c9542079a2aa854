package permkit

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// INTERNAL HELPERS
// ============================================================================

func nowUTC() time.Time {
	return time.Now().UTC()
}

// logAudit writes an audit record. Request metadata (IP, user agent,
// request id) is filled in from the context when the entry does not carry
// it already.
func (s *Service) logAudit(ctx context.Context, entry *AuditEntry) error {
	audit := GetAuditContext(ctx)
	if entry.IPAddress == "" {
		entry.IPAddress = audit.IPAddress
	}
	if entry.UserAgent == "" {
		entry.UserAgent = audit.UserAgent
	}
	if entry.RequestID == "" {
		entry.RequestID = audit.RequestID
	}
	_, err := s.db.NewInsert().Model(entry.ToModel()).Exec(ctx)
	return dbkit.WithErr1(err, "LogAudit").Err()
}

// ============================================================================
// RETRY SUPPORT
// ============================================================================

// WithRetry runs fn with automatic retry for transient database errors.
// Non-transient errors (domain errors, validation failures) return
// immediately. Uses exponential backoff with jitter between attempts.
//
// Example:
//
//	err := service.WithRetry(ctx, func(ctx context.Context) error {
//	    _, err := service.CreateUser(ctx, user)
//	    return err
//	})
func (s *Service) WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.withRetry(ctx, fn, 3)
}

func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context) error, maxAttempts int) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !isTransientError(err) {
			return err
		}

		if attempt == maxAttempts-1 {
			break
		}

		// Exponential backoff with jitter
		backoff := time.Duration(1<<uint(attempt)) * time.Second
		jitter := time.Duration(float64(backoff) * 0.1 * (0.5 + rand.Float64()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}

	return lastErr
}

// GetTransactionMetrics returns the current transaction performance metrics.
func (s *Service) GetTransactionMetrics() TransactionMetrics {
	return s.txMonitor.getMetrics()
}

// ResetTransactionMetrics resets all transaction metrics.
func (s *Service) ResetTransactionMetrics() {
	s.txMonitor.reset()
}

// IsTransactionHealthy checks if transaction performance is within acceptable thresholds.
func (s *Service) IsTransactionHealthy() bool {
	metrics := s.txMonitor.getMetrics()

	// If we have very few transactions, consider it healthy
	if metrics.TotalTransactions < 10 {
		return true
	}

	// Check failure rate (should be less than 5%)
	failureRate := float64(metrics.FailedTransactions) / float64(metrics.TotalTransactions)
	if failureRate > 0.05 {
		return false
	}

	// Check average duration (should be less than 1 second)
	if metrics.AverageDuration > time.Second {
		return false
	}

	return true
}

// isTransientError checks if an error is transient and can be retried.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	// PostgreSQL transient errors
	transientErrors := []string{
		"connection",
		"timeout",
		"deadlock",
		"lock wait timeout",
		"connection refused",
		"connection reset",
		"broken pipe",
		"temporary failure",
		"try again",
		"resource temporarily unavailable",
	}

	for _, transient := range transientErrors {
		if strings.Contains(errStr, transient) {
			return true
		}
	}

	return errors.Is(err, context.DeadlineExceeded)
}
