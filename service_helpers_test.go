package permkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIsTransientError tests the retry classification
func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"deadlock", errors.New("deadlock detected"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"domain error", ErrRoleInUse, false},
		{"validation error", NewError(ErrInvalidInput, "bad email"), false},
		{"constraint violation", errors.New("duplicate key value violates unique constraint"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, isTransientError(tt.err))
		})
	}
}

// TestTransactionMonitor tests the metrics accounting without a database
func TestTransactionMonitor(t *testing.T) {
	tm := newTransactionMonitor()

	tm.recordTransaction(10*time.Millisecond, true)
	tm.recordTransaction(30*time.Millisecond, true)
	tm.recordTransaction(20*time.Millisecond, false)

	metrics := tm.getMetrics()
	assert.Equal(t, int64(3), metrics.TotalTransactions)
	assert.Equal(t, int64(2), metrics.SuccessfulTransactions)
	assert.Equal(t, int64(1), metrics.FailedTransactions)
	assert.Equal(t, 20*time.Millisecond, metrics.AverageDuration)
	assert.Equal(t, 30*time.Millisecond, metrics.MaxDuration)
	assert.Equal(t, 10*time.Millisecond, metrics.MinDuration)
	assert.False(t, metrics.LastReset.IsZero())

	tm.reset()
	metrics = tm.getMetrics()
	assert.Zero(t, metrics.TotalTransactions)
	assert.Zero(t, metrics.MaxDuration)
}

// TestTransactionHealthHeuristics tests the thresholds behind
// IsTransactionHealthy
func TestTransactionHealthHeuristics(t *testing.T) {
	t.Run("Few transactions is healthy", func(t *testing.T) {
		service := NewService(nil)
		service.txMonitor.recordTransaction(5*time.Second, false)
		assert.True(t, service.IsTransactionHealthy())
	})

	t.Run("High failure rate is unhealthy", func(t *testing.T) {
		service := NewService(nil)
		for i := 0; i < 9; i++ {
			service.txMonitor.recordTransaction(time.Millisecond, true)
		}
		service.txMonitor.recordTransaction(time.Millisecond, false)
		assert.False(t, service.IsTransactionHealthy(), "10% failures exceeds the 5% threshold")
	})

	t.Run("Slow average is unhealthy", func(t *testing.T) {
		service := NewService(nil)
		for i := 0; i < 10; i++ {
			service.txMonitor.recordTransaction(2*time.Second, true)
		}
		assert.False(t, service.IsTransactionHealthy())
	})

	t.Run("Fast and reliable is healthy", func(t *testing.T) {
		service := NewService(nil)
		for i := 0; i < 20; i++ {
			service.txMonitor.recordTransaction(time.Millisecond, true)
		}
		assert.True(t, service.IsTransactionHealthy())
	})
}

// TestWithRetryBackoffRespectsContext tests that cancellation cuts retries
// short
func TestWithRetryBackoffRespectsContext(t *testing.T) {
	service := NewService(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	err := service.WithRetry(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls, "backoff aborted before the second attempt")
}
