package permkit

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// GROUP OPERATIONS
// ============================================================================

// GetGroup retrieves a group by id.
func (s *Service) GetGroup(ctx context.Context, groupID string) (*UserGroup, error) {
	var group UserGroup
	err := dbkit.WithErr1(s.db.NewSelect().Model(&group).Where("id = ?", groupID).Scan(ctx), "GetGroup").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrUnknownGroup, "group not found").WithGroup(groupID)
		}
		return nil, err
	}
	return &group, nil
}

// ListGroups retrieves every group ordered by name.
func (s *Service) ListGroups(ctx context.Context) ([]UserGroup, error) {
	var groups []UserGroup
	err := dbkit.WithErr1(s.db.NewSelect().Model(&groups).Order("name ASC").Scan(ctx), "ListGroups").Err()
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateGroup stores a new group. Every member must exist; members'
// group lists are updated in the same transaction.
func (s *Service) CreateGroup(ctx context.Context, group UserGroup) (*UserGroup, error) {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return nil, NewError(ErrNoActorID, "actor ID required for group creation")
	}

	if group.ID == "" {
		group.ID = NewID()
	}
	if group.MemberIDs == nil {
		group.MemberIDs = []string{}
	}
	touchGroup(&group)

	if err := s.validateStruct(&group); err != nil {
		return nil, err
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		for _, uid := range group.MemberIDs {
			if _, err := s.GetUser(ctx, uid); err != nil {
				return err
			}
		}

		result, err := s.db.NewInsert().Model(&group).Exec(ctx)
		if err := dbkit.WithErr(result, err, "CreateGroup").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to create group").WithGroup(group.ID)
		}

		if err := s.addGroupToUsers(ctx, group.ID, group.MemberIDs); err != nil {
			return err
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionCreated,
			TargetKind: AuditTargetGroup,
			TargetID:   group.ID,
			Detail:     map[string]any{"name": group.Name, "members": len(group.MemberIDs)},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logMutation(ctx, "group created", slog.String("group_id", group.ID), slog.String("name", group.Name))
	return &group, nil
}

// UpdateGroup replaces a group record (full-record replace keyed by id)
// and resynchronizes membership on both sides.
func (s *Service) UpdateGroup(ctx context.Context, group UserGroup) (*UserGroup, error) {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return nil, NewError(ErrNoActorID, "actor ID required for group update")
	}

	if group.MemberIDs == nil {
		group.MemberIDs = []string{}
	}

	if err := s.validateStruct(&group); err != nil {
		return nil, err
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		existing, err := s.GetGroup(ctx, group.ID)
		if err != nil {
			return err
		}
		for _, uid := range group.MemberIDs {
			if _, err := s.GetUser(ctx, uid); err != nil {
				return err
			}
		}

		group.CreatedAt = existing.CreatedAt
		group.UpdatedAt = nowUTC()

		result, err := s.db.NewUpdate().Model(&group).WherePK().Exec(ctx)
		if err := dbkit.WithErr(result, err, "UpdateGroup").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to update group").WithGroup(group.ID)
		}

		if err := s.removeGroupFromUsers(ctx, group.ID, diffStrings(existing.MemberIDs, group.MemberIDs)); err != nil {
			return err
		}
		if err := s.addGroupToUsers(ctx, group.ID, diffStrings(group.MemberIDs, existing.MemberIDs)); err != nil {
			return err
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionUpdated,
			TargetKind: AuditTargetGroup,
			TargetID:   group.ID,
			Detail:     map[string]any{"members": len(group.MemberIDs)},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logMutation(ctx, "group updated", slog.String("group_id", group.ID))
	return &group, nil
}

// SetGroupMembers replaces a group's membership. Both sides of the
// relationship are updated in one transaction.
func (s *Service) SetGroupMembers(ctx context.Context, groupID string, memberIDs []string) error {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	group.MemberIDs = memberIDs
	_, err = s.UpdateGroup(ctx, *group)
	return err
}

// DeleteGroup removes a group, cascades to every override referencing it
// and strips the group from every user's group list — all in one
// transaction, so an orphaned override can never reach the resolver.
func (s *Service) DeleteGroup(ctx context.Context, groupID string) error {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return NewError(ErrNoActorID, "actor ID required for group deletion")
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		group, err := s.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}

		overrides, err := s.db.NewDelete().Table("permission_overrides").Where("group_id = ?", groupID).Exec(ctx)
		if err := dbkit.WithErr(overrides, err, "DeleteGroupOverrides").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to cascade overrides").WithGroup(groupID)
		}
		cascaded, _ := overrides.RowsAffected()

		if err := s.removeGroupFromUsers(ctx, groupID, group.MemberIDs); err != nil {
			return err
		}

		result, err := s.db.NewDelete().Table("user_groups").Where("id = ?", groupID).Exec(ctx)
		if err := dbkit.WithErr(result, err, "DeleteGroup").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to delete group").WithGroup(groupID)
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionDeleted,
			TargetKind: AuditTargetGroup,
			TargetID:   groupID,
			Detail:     map[string]any{"name": group.Name, "cascaded_overrides": cascaded},
		})
	})
	if err != nil {
		return err
	}

	s.logMutation(ctx, "group deleted", slog.String("group_id", groupID))
	return nil
}

// CountGroups returns the total number of groups.
func (s *Service) CountGroups(ctx context.Context) (int, error) {
	return dbkit.Count[UserGroup](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q
	})
}

// ============================================================================
// INTERNAL MEMBERSHIP HELPERS
// ============================================================================

func (s *Service) addGroupToUsers(ctx context.Context, groupID string, userIDs []string) error {
	for _, uid := range userIDs {
		result, err := s.db.NewUpdate().Table("users").
			Set("group_ids = array_append(group_ids, ?)", groupID).
			Set("updated_at = current_timestamp").
			Where("id = ? AND NOT (? = ANY(group_ids))", uid, groupID).
			Exec(ctx)
		if err := dbkit.WithErr(result, err, "AddGroupToUser").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to add group to user").
				WithUser(uid).WithGroup(groupID)
		}
	}
	return nil
}

func (s *Service) removeGroupFromUsers(ctx context.Context, groupID string, userIDs []string) error {
	for _, uid := range userIDs {
		result, err := s.db.NewUpdate().Table("users").
			Set("group_ids = array_remove(group_ids, ?)", groupID).
			Set("updated_at = current_timestamp").
			Where("id = ?", uid).
			Exec(ctx)
		if err := dbkit.WithErr(result, err, "RemoveGroupFromUser").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to remove group from user").
				WithUser(uid).WithGroup(groupID)
		}
	}
	return nil
}
