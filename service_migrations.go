package permkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// Migrations returns all database migrations required for PermKit.
// Use service.Migrate(ctx) to run them, or feed them into an existing
// dbkit migration pipeline.
func (s *Service) Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "permkit-001",
			Description: "Create roles table",
			SQL: `
                CREATE TABLE IF NOT EXISTS roles (
                    id TEXT PRIMARY KEY,
                    name TEXT NOT NULL,
                    description TEXT,
                    is_system BOOLEAN NOT NULL DEFAULT false,
                    permissions JSONB NOT NULL DEFAULT '{}'::jsonb,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "permkit-002",
			Description: "Create users table",
			SQL: `
                CREATE TABLE IF NOT EXISTS users (
                    id TEXT PRIMARY KEY,
                    first_name TEXT NOT NULL,
                    last_name TEXT NOT NULL,
                    email TEXT NOT NULL,
                    function TEXT,
                    role_id TEXT NOT NULL,
                    group_ids TEXT[] NOT NULL DEFAULT '{}',
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "permkit-003",
			Description: "Create user_groups table",
			SQL: `
                CREATE TABLE IF NOT EXISTS user_groups (
                    id TEXT PRIMARY KEY,
                    name TEXT NOT NULL,
                    description TEXT,
                    member_ids TEXT[] NOT NULL DEFAULT '{}',
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "permkit-004",
			Description: "Create permission_overrides table",
			SQL: `
                CREATE TABLE IF NOT EXISTS permission_overrides (
                    id TEXT PRIMARY KEY,
                    group_id TEXT NOT NULL,
                    entity_type TEXT NOT NULL,
                    scope TEXT NOT NULL,
                    specific_entity_ids TEXT[] NOT NULL DEFAULT '{}',
                    permissions JSONB NOT NULL DEFAULT '{}'::jsonb,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "permkit-005",
			Description: "Create entities table",
			SQL: `
                CREATE TABLE IF NOT EXISTS entities (
                    id TEXT PRIMARY KEY,
                    type TEXT NOT NULL,
                    name TEXT NOT NULL,
                    parent_id TEXT,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "permkit-006",
			Description: "Create permission_audit_log table",
			SQL: `
                CREATE TABLE IF NOT EXISTS permission_audit_log (
                    id TEXT PRIMARY KEY,
                    timestamp TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    actor_id TEXT NOT NULL,
                    action TEXT NOT NULL,
                    target_kind TEXT NOT NULL,
                    target_id TEXT NOT NULL,
                    detail JSONB,
                    ip_address TEXT,
                    user_agent TEXT,
                    request_id TEXT
                )`,
		},
		{
			ID:          "permkit-007",
			Description: "Index overrides by group and entity type",
			SQL: `
                CREATE INDEX IF NOT EXISTS idx_permission_overrides_group_type
                    ON permission_overrides (group_id, entity_type)`,
		},
	}
}

// Migrate runs all pending migrations.
func (s *Service) Migrate(ctx context.Context) error {
	db, ok := s.db.(*dbkit.DBKit)
	if !ok {
		return NewError(ErrDatabaseError, "migrations require a dbkit.DBKit instance")
	}
	_, err := db.Migrate(ctx, s.Migrations())
	if err != nil {
		return dbkit.WithErr1(err, "Migrate").Err()
	}
	return nil
}
