package permkit

import (
	"context"
	"log/slog"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// OVERRIDE OPERATIONS
// ============================================================================

// GetOverride retrieves a permission override by id.
func (s *Service) GetOverride(ctx context.Context, overrideID string) (*GroupPermissionOverride, error) {
	var override GroupPermissionOverride
	err := dbkit.WithErr1(s.db.NewSelect().Model(&override).Where("id = ?", overrideID).Scan(ctx), "GetOverride").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrUnknownOverride, "override not found")
		}
		return nil, err
	}
	return &override, nil
}

// ListOverrides retrieves every permission override, oldest first. The
// order matters: it is the order the resolver applies specific-scope
// overrides in, so later entries win conflicts.
func (s *Service) ListOverrides(ctx context.Context) ([]GroupPermissionOverride, error) {
	var overrides []GroupPermissionOverride
	err := dbkit.WithErr1(s.db.NewSelect().Model(&overrides).Order("created_at ASC", "id ASC").Scan(ctx), "ListOverrides").Err()
	if err != nil {
		return nil, err
	}
	return overrides, nil
}

// ListOverridesForGroup retrieves the overrides attached to one group.
func (s *Service) ListOverridesForGroup(ctx context.Context, groupID string) ([]GroupPermissionOverride, error) {
	var overrides []GroupPermissionOverride
	err := dbkit.WithErr1(s.db.NewSelect().Model(&overrides).
		Where("group_id = ?", groupID).
		Order("created_at ASC", "id ASC").
		Scan(ctx), "ListOverridesForGroup").Err()
	if err != nil {
		return nil, err
	}
	return overrides, nil
}

// CreateOverride stores a new group permission override. The referenced
// group must exist and the scope invariants must hold: a specific-scope
// override names at least one entity, an all-scope override names none.
func (s *Service) CreateOverride(ctx context.Context, override GroupPermissionOverride) (*GroupPermissionOverride, error) {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return nil, NewError(ErrNoActorID, "actor ID required for override creation")
	}

	if override.ID == "" {
		override.ID = NewID()
	}
	touchOverride(&override)

	if err := checkOverride(&override); err != nil {
		return nil, err
	}
	if err := s.validateStruct(&override); err != nil {
		return nil, err
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.GetGroup(ctx, override.GroupID); err != nil {
			return err
		}

		result, err := s.db.NewInsert().Model(&override).Exec(ctx)
		if err := dbkit.WithErr(result, err, "CreateOverride").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to create override").WithGroup(override.GroupID)
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionCreated,
			TargetKind: AuditTargetOverride,
			TargetID:   override.ID,
			Detail: map[string]any{
				"group_id":    override.GroupID,
				"entity_type": string(override.EntityType),
				"scope":       string(override.Scope),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logMutation(ctx, "override created",
		slog.String("override_id", override.ID),
		slog.String("group_id", override.GroupID),
		slog.String("entity_type", string(override.EntityType)))
	return &override, nil
}

// UpdateOverride replaces an override record (full-record replace keyed by
// id). The creation timestamp is preserved so the override keeps its
// position in the resolver's conflict ordering.
func (s *Service) UpdateOverride(ctx context.Context, override GroupPermissionOverride) (*GroupPermissionOverride, error) {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return nil, NewError(ErrNoActorID, "actor ID required for override update")
	}

	if err := checkOverride(&override); err != nil {
		return nil, err
	}
	if err := s.validateStruct(&override); err != nil {
		return nil, err
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		existing, err := s.GetOverride(ctx, override.ID)
		if err != nil {
			return err
		}
		if _, err := s.GetGroup(ctx, override.GroupID); err != nil {
			return err
		}

		override.CreatedAt = existing.CreatedAt
		override.UpdatedAt = nowUTC()

		result, err := s.db.NewUpdate().Model(&override).WherePK().Exec(ctx)
		if err := dbkit.WithErr(result, err, "UpdateOverride").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to update override").WithGroup(override.GroupID)
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionUpdated,
			TargetKind: AuditTargetOverride,
			TargetID:   override.ID,
			Detail: map[string]any{
				"group_id":    override.GroupID,
				"entity_type": string(override.EntityType),
				"scope":       string(override.Scope),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logMutation(ctx, "override updated", slog.String("override_id", override.ID))
	return &override, nil
}

// DeleteOverride removes a permission override.
func (s *Service) DeleteOverride(ctx context.Context, overrideID string) error {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return NewError(ErrNoActorID, "actor ID required for override deletion")
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		override, err := s.GetOverride(ctx, overrideID)
		if err != nil {
			return err
		}

		result, err := s.db.NewDelete().Table("permission_overrides").Where("id = ?", overrideID).Exec(ctx)
		if err := dbkit.WithErr(result, err, "DeleteOverride").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to delete override")
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionDeleted,
			TargetKind: AuditTargetOverride,
			TargetID:   overrideID,
			Detail: map[string]any{
				"group_id":    override.GroupID,
				"entity_type": string(override.EntityType),
			},
		})
	})
	if err != nil {
		return err
	}

	s.logMutation(ctx, "override deleted", slog.String("override_id", overrideID))
	return nil
}

// checkOverride enforces the override scope invariants independent of any
// snapshot state.
func checkOverride(override *GroupPermissionOverride) error {
	if !ValidEntityType(override.EntityType) {
		return NewError(ErrInvalidEntityType, "unknown entity type").WithEntityType(override.EntityType)
	}
	switch override.Scope {
	case ScopeAll:
		override.SpecificEntityIDs = []string{}
	case ScopeSpecific:
		if len(override.SpecificEntityIDs) == 0 {
			return NewError(ErrInvalidOverride, "specific-scope override must name at least one entity")
		}
	default:
		return NewError(ErrInvalidOverride, "scope must be all or specific")
	}
	if override.Permissions.IsEmpty() {
		return NewError(ErrInvalidOverride, "override must set at least one action")
	}
	return nil
}
