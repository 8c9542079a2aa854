package permkit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// ROLE OPERATIONS
// ============================================================================

// GetRole retrieves a role by id.
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	var role Role
	err := dbkit.WithErr1(s.db.NewSelect().Model(&role).Where("id = ?", roleID).Scan(ctx), "GetRole").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrUnknownRole, "role not found").WithRole(roleID)
		}
		return nil, err
	}
	return &role, nil
}

// ListRoles retrieves every role, system roles first, then by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	err := dbkit.WithErr1(s.db.NewSelect().Model(&roles).Order("is_system DESC", "name ASC").Scan(ctx), "ListRoles").Err()
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// CreateRole stores a new custom role. The name must be unique
// case-insensitively; missing grid entries are filled with all-false
// sets so the role always covers the closed entity type enumeration.
func (s *Service) CreateRole(ctx context.Context, role Role) (*Role, error) {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return nil, NewError(ErrNoActorID, "actor ID required for role creation")
	}

	role.Name = strings.TrimSpace(role.Name)
	if role.ID == "" {
		role.ID = NewID()
	}
	role.IsSystem = false // only Seed creates system roles
	NormalizeRoleGrid(&role)
	touchRole(&role)

	if err := s.validateStruct(&role); err != nil {
		return nil, err
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.checkRoleNameFree(ctx, role.Name, ""); err != nil {
			return err
		}

		result, err := s.db.NewInsert().Model(&role).Exec(ctx)
		if err := dbkit.WithErr(result, err, "CreateRole").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to create role").WithRole(role.ID)
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionCreated,
			TargetKind: AuditTargetRole,
			TargetID:   role.ID,
			Detail:     map[string]any{"name": role.Name},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logMutation(ctx, "role created", slog.String("role_id", role.ID), slog.String("name", role.Name))
	return &role, nil
}

// UpdateRole replaces a role record (full-record replace keyed by id).
// System roles keep their name and system flag; their permission grids
// remain editable.
func (s *Service) UpdateRole(ctx context.Context, role Role) (*Role, error) {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return nil, NewError(ErrNoActorID, "actor ID required for role update")
	}

	role.Name = strings.TrimSpace(role.Name)
	NormalizeRoleGrid(&role)

	if err := s.validateStruct(&role); err != nil {
		return nil, err
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		existing, err := s.GetRole(ctx, role.ID)
		if err != nil {
			return err
		}
		if existing.IsSystem && role.Name != existing.Name {
			return NewError(ErrSystemRole, "system role names are fixed").WithRole(role.ID)
		}
		if err := s.checkRoleNameFree(ctx, role.Name, role.ID); err != nil {
			return err
		}

		role.IsSystem = existing.IsSystem
		role.CreatedAt = existing.CreatedAt
		role.UpdatedAt = nowUTC()

		result, err := s.db.NewUpdate().Model(&role).WherePK().Exec(ctx)
		if err := dbkit.WithErr(result, err, "UpdateRole").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to update role").WithRole(role.ID)
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionUpdated,
			TargetKind: AuditTargetRole,
			TargetID:   role.ID,
			Detail:     map[string]any{"name": role.Name},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logMutation(ctx, "role updated", slog.String("role_id", role.ID))
	return &role, nil
}

// DeleteRole removes a role. System roles are never deletable. When users
// still reference the role, reassignToID must name a different existing
// role; affected users are moved inside the same transaction so no user
// is ever left with a dangling role reference.
func (s *Service) DeleteRole(ctx context.Context, roleID, reassignToID string) error {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return NewError(ErrNoActorID, "actor ID required for role deletion")
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		role, err := s.GetRole(ctx, roleID)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return NewError(ErrSystemRole, "system roles cannot be deleted").WithRole(roleID)
		}

		affected, err := s.CountUsersWithRole(ctx, roleID)
		if err != nil {
			return err
		}
		if affected > 0 {
			if reassignToID == "" {
				return NewError(ErrRoleInUse, fmt.Sprintf("%d users must be reassigned first", affected)).
					WithRole(roleID)
			}
			if reassignToID == roleID {
				return NewError(ErrInvalidInput, "cannot reassign users to the role being deleted").
					WithRole(roleID)
			}
			if _, err := s.GetRole(ctx, reassignToID); err != nil {
				return err
			}

			result, err := s.db.NewUpdate().Table("users").
				Set("role_id = ?", reassignToID).
				Set("updated_at = current_timestamp").
				Where("role_id = ?", roleID).
				Exec(ctx)
			if err := dbkit.WithErr(result, err, "ReassignUsers").Err(); err != nil {
				return NewError(ErrDatabaseError, "failed to reassign users").WithRole(roleID)
			}

			if err := s.logAudit(ctx, &AuditEntry{
				ActorID:    actorID,
				Action:     AuditActionReassigned,
				TargetKind: AuditTargetRole,
				TargetID:   roleID,
				Detail:     map[string]any{"reassigned_to": reassignToID, "users": affected},
			}); err != nil {
				return err
			}
		}

		result, err := s.db.NewDelete().Table("roles").Where("id = ?", roleID).Exec(ctx)
		if err := dbkit.WithErr(result, err, "DeleteRole").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to delete role").WithRole(roleID)
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionDeleted,
			TargetKind: AuditTargetRole,
			TargetID:   roleID,
			Detail:     map[string]any{"name": role.Name},
		})
	})
	if err != nil {
		return err
	}

	s.logMutation(ctx, "role deleted", slog.String("role_id", roleID), slog.String("reassigned_to", reassignToID))
	return nil
}

// CountUsersWithRole returns how many users currently reference a role.
// Role deletion is only valid once this reaches zero (or a reassignment
// role is supplied).
func (s *Service) CountUsersWithRole(ctx context.Context, roleID string) (int, error) {
	return dbkit.Count[User](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("role_id = ?", roleID)
	})
}

// checkRoleNameFree enforces case-insensitive role name uniqueness.
func (s *Service) checkRoleNameFree(ctx context.Context, name, excludeID string) error {
	exists, err := dbkit.Exists[Role](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("lower(name) = ?", strings.ToLower(name))
		if excludeID != "" {
			q = q.Where("id != ?", excludeID)
		}
		return q
	})
	if err != nil {
		return err
	}
	if exists {
		return NewError(ErrDuplicateRoleName, "a role with this name already exists")
	}
	return nil
}
