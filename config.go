package permkit

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds service configuration, loadable from the environment with
// the PERMKIT_ prefix (PERMKIT_DATABASE_URL and so on).
type Config struct {
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// SeedDemoData loads the demo users/groups/entity tree on Seed in
	// addition to the system roles.
	SeedDemoData bool `envconfig:"SEED_DEMO_DATA" default:"false"`

	// AuditRetention bounds how far back PruneAuditLog keeps entries.
	// Zero disables pruning.
	AuditRetention time.Duration `envconfig:"AUDIT_RETENTION" default:"0"`

	// Connection pool sizing, applied through ConfigureConnectionPool.
	MaxOpenConnections    int           `envconfig:"MAX_OPEN_CONNS" default:"10"`
	MaxIdleConnections    int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnectionMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"30m"`
	ConnectionMaxIdleTime time.Duration `envconfig:"CONN_MAX_IDLE_TIME" default:"5m"`
}

// ConfigFromEnv loads configuration from PERMKIT_-prefixed environment
// variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("permkit", &cfg); err != nil {
		return Config{}, NewError(ErrInvalidInput, err.Error())
	}
	return cfg, nil
}

// PoolConfig returns the pool sizing portion of the configuration.
func (c Config) PoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConnections:    c.MaxOpenConnections,
		MaxIdleConnections:    c.MaxIdleConnections,
		ConnectionMaxLifetime: c.ConnectionMaxLifetime,
		ConnectionMaxIdleTime: c.ConnectionMaxIdleTime,
	}
}
