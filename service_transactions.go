package permkit

import (
	"context"
	"fmt"
	"time"

	"github.com/fernandezvara/dbkit"
)

// Transaction executes a function within a database transaction with automatic commit/rollback.
// If the function returns an error, the transaction is rolled back. Otherwise, it's committed.
// Nested calls reuse the outer transaction through savepoints, so cascade
// operations (role deletion with reassignment, group deletion with override
// cleanup) stay atomic even when composed.
//
// Example:
//
//	err := service.Transaction(ctx, func(ctx context.Context) error {
//	    if _, err := service.CreateGroup(ctx, designers); err != nil {
//	        return err // This will cause a rollback
//	    }
//	    if _, err := service.CreateOverride(ctx, override); err != nil {
//	        return err // This will cause a rollback
//	    }
//	    return nil // This will cause a commit
//	})
func (s *Service) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	start := time.Now()
	var err error

	// Check if we're already in a transaction by casting to dbkit.Tx
	if tx, ok := s.db.(*dbkit.Tx); ok {
		// We're already in a transaction, use savepoint
		err = tx.Transaction(ctx, func(tx *dbkit.Tx) error {
			return s.runInTx(ctx, tx, fn)
		})
	} else if db, ok := s.db.(*dbkit.DBKit); ok {
		// We're not in a transaction, start a new one
		err = db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return s.runInTx(ctx, tx, fn)
		})
	} else {
		err = fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
	}

	// Record transaction metrics
	duration := time.Since(start)
	s.txMonitor.recordTransaction(duration, err == nil)

	return err
}

// TransactionWithOptions executes a function within a database transaction with custom options.
// Supports read-only transactions, isolation levels, and other transaction parameters.
//
// Example:
//
//	err := service.TransactionWithOptions(ctx, dbkit.SerializableTxOptions(), func(ctx context.Context) error {
//	    _, err := service.CreateRole(ctx, role)
//	    return err
//	})
func (s *Service) TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context) error) error {
	start := time.Now()
	var err error

	if tx, ok := s.db.(*dbkit.Tx); ok {
		// Already in a transaction, use savepoint (no options support in nested transactions)
		err = tx.Transaction(ctx, func(tx *dbkit.Tx) error {
			return s.runInTx(ctx, tx, fn)
		})
	} else if db, ok := s.db.(*dbkit.DBKit); ok {
		err = db.TransactionWithOptions(ctx, opts, func(tx *dbkit.Tx) error {
			return s.runInTx(ctx, tx, fn)
		})
	} else {
		err = fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
	}

	duration := time.Since(start)
	s.txMonitor.recordTransaction(duration, err == nil)

	return err
}

// ReadOnlyTransaction executes a function within a read-only database transaction.
// Useful for multi-query reads that need a consistent view, such as
// LoadSnapshot.
func (s *Service) ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.TransactionWithOptions(ctx, dbkit.ReadOnlyTxOptions(), fn)
}

// runInTx points the service at the transaction for the duration of fn so
// every operation inside the callback executes on the same connection.
func (s *Service) runInTx(ctx context.Context, tx *dbkit.Tx, fn func(ctx context.Context) error) error {
	prev := s.db
	s.db = tx
	defer func() { s.db = prev }()
	return fn(ctx)
}
