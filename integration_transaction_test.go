package permkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fernandezvara/dbkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTransactionRollback tests that a failing callback undoes every write
func TestTransactionRollback(t *testing.T) {
	helper := NewTestDataHelper(t)
	if helper == nil {
		return
	}
	service, ctx := helper.GetService(), helper.GetContext()

	name := helper.UniqueID("Rollback")
	boom := errors.New("boom")

	err := service.Transaction(ctx, func(ctx context.Context) error {
		if _, err := service.CreateRole(ctx, NewRole(name).GrantAll(ReadOnly()).Build()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	roles, err := service.ListRoles(ctx)
	require.NoError(t, err)
	for _, role := range roles {
		assert.NotEqual(t, name, role.Name, "rolled-back role must not persist")
	}
}

// TestTransactionCommit tests that a successful callback persists its writes
func TestTransactionCommit(t *testing.T) {
	helper := NewTestDataHelper(t)
	if helper == nil {
		return
	}
	service, ctx := helper.GetService(), helper.GetContext()

	var roleID string
	err := service.Transaction(ctx, func(ctx context.Context) error {
		role, err := service.CreateRole(ctx, NewRole(helper.UniqueID("Committed")).Build())
		if err != nil {
			return err
		}
		roleID = role.ID
		return nil
	})
	require.NoError(t, err)
	defer func() { _ = service.DeleteRole(ctx, roleID, "") }()

	_, err = service.GetRole(ctx, roleID)
	assert.NoError(t, err)
}

// TestNestedTransactions tests savepoint behavior: an inner failure can be
// absorbed without losing the outer transaction's writes
func TestNestedTransactions(t *testing.T) {
	helper := NewTestDataHelper(t)
	if helper == nil {
		return
	}
	service, ctx := helper.GetService(), helper.GetContext()

	outerName := helper.UniqueID("Outer")
	innerName := helper.UniqueID("Inner")
	boom := errors.New("inner boom")

	var outerID string
	err := service.Transaction(ctx, func(ctx context.Context) error {
		role, err := service.CreateRole(ctx, NewRole(outerName).Build())
		if err != nil {
			return err
		}
		outerID = role.ID

		innerErr := service.Transaction(ctx, func(ctx context.Context) error {
			if _, err := service.CreateRole(ctx, NewRole(innerName).Build()); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, innerErr, boom)

		// Absorb the inner failure; the savepoint rollback must not take
		// the outer work with it.
		return nil
	})
	require.NoError(t, err)
	defer func() { _ = service.DeleteRole(ctx, outerID, "") }()

	_, err = service.GetRole(ctx, outerID)
	assert.NoError(t, err, "outer write survives")

	roles, err := service.ListRoles(ctx)
	require.NoError(t, err)
	for _, role := range roles {
		assert.NotEqual(t, innerName, role.Name, "inner write rolled back to the savepoint")
	}
}

// TestReadOnlyTransaction tests consistent multi-query reads
func TestReadOnlyTransaction(t *testing.T) {
	helper := NewTestDataHelper(t)
	if helper == nil {
		return
	}
	service, ctx := helper.GetService(), helper.GetContext()

	var roles []Role
	var users []User
	err := service.ReadOnlyTransaction(ctx, func(ctx context.Context) error {
		var err error
		if roles, err = service.ListRoles(ctx); err != nil {
			return err
		}
		users, err = service.ListUsers(ctx)
		return err
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(roles), 3)
	assert.NotNil(t, users)
}

// TestTransactionWithOptions tests custom transaction options
func TestTransactionWithOptions(t *testing.T) {
	helper := NewTestDataHelper(t)
	if helper == nil {
		return
	}
	service, ctx := helper.GetService(), helper.GetContext()

	err := service.TransactionWithOptions(ctx, dbkit.ReadOnlyTxOptions(), func(ctx context.Context) error {
		_, err := service.CountUsers(ctx)
		return err
	})
	assert.NoError(t, err)
}

// TestTransactionMetrics tests the monitor wired into every transaction
func TestTransactionMetrics(t *testing.T) {
	helper := NewTestDataHelper(t)
	if helper == nil {
		return
	}
	service, ctx := helper.GetService(), helper.GetContext()

	service.ResetTransactionMetrics()

	require.NoError(t, service.Transaction(ctx, func(ctx context.Context) error {
		return nil
	}))
	boom := errors.New("boom")
	_ = service.Transaction(ctx, func(ctx context.Context) error {
		return boom
	})

	metrics := service.GetTransactionMetrics()
	assert.Equal(t, int64(2), metrics.TotalTransactions)
	assert.Equal(t, int64(1), metrics.SuccessfulTransactions)
	assert.Equal(t, int64(1), metrics.FailedTransactions)
	assert.Greater(t, metrics.AverageDuration, time.Duration(0))

	t.Run("Reset clears counters", func(t *testing.T) {
		service.ResetTransactionMetrics()
		metrics := service.GetTransactionMetrics()
		assert.Zero(t, metrics.TotalTransactions)
	})
}

// TestWithRetry tests the transient-failure wrapper
func TestWithRetry(t *testing.T) {
	helper := NewTestDataHelper(t)
	if helper == nil {
		return
	}
	service, ctx := helper.GetService(), helper.GetContext()

	t.Run("Succeeds first try", func(t *testing.T) {
		calls := 0
		err := service.WithRetry(ctx, func(ctx context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("Non-transient errors are not retried", func(t *testing.T) {
		calls := 0
		boom := errors.New("constraint violation")
		err := service.WithRetry(ctx, func(ctx context.Context) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("Transient errors are retried", func(t *testing.T) {
		calls := 0
		err := service.WithRetry(ctx, func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})
}
