package permkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// Database defines the database operations interface for dependency injection
type Database interface {
	dbkit.IDB
}

// TransactionManager defines the transaction management interface
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context) error) error
	ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// MigrationManager defines the migration management interface
type MigrationManager interface {
	Migrations() []dbkit.Migration
	Migrate(ctx context.Context) error
}

// HealthMonitor defines the health monitoring interface
type HealthMonitor interface {
	Health(ctx context.Context) dbkit.HealthStatus
	IsHealthy(ctx context.Context) bool
	Ping(ctx context.Context) error
	GetPoolStats() dbkit.PoolStats
}

// PoolManager defines the connection pool management interface
type PoolManager interface {
	ConfigureConnectionPool(config PoolConfig) error
	GetConnectionPoolConfig() (*PoolConfig, error)
	OptimizeConnectionPool() error
	ResetConnectionPool() error
}

// Resolver resolves effective permissions from loaded state
type Resolver interface {
	ResolveUser(ctx context.Context, userID string, entityType EntityType, entityID string) (PermissionSet, error)
	GetChecker(ctx context.Context, userID string) (*Checker, error)
}

// SnapshotLoader loads the full administration state
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// AuditReader defines the audit log query interface
type AuditReader interface {
	GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]PermissionAuditLog, error)
}

// TransactionMonitor defines the transaction monitoring interface
type TransactionMonitor interface {
	GetTransactionMetrics() TransactionMetrics
	ResetTransactionMetrics()
	IsTransactionHealthy() bool
}
