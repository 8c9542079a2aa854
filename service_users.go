package permkit

import (
	"context"
	"log/slog"
	"strings"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// USER OPERATIONS
// ============================================================================

// GetUser retrieves a user by id.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	err := dbkit.WithErr1(s.db.NewSelect().Model(&user).Where("id = ?", userID).Scan(ctx), "GetUser").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrUnknownUser, "user not found").WithUser(userID)
		}
		return nil, err
	}
	return &user, nil
}

// ListUsers retrieves every user ordered by last then first name.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := dbkit.WithErr1(s.db.NewSelect().Model(&users).Order("last_name ASC", "first_name ASC").Scan(ctx), "ListUsers").Err()
	if err != nil {
		return nil, err
	}
	return users, nil
}

// ListGroupMembers retrieves the users belonging to a group.
func (s *Service) ListGroupMembers(ctx context.Context, groupID string) ([]User, error) {
	var users []User
	err := dbkit.WithErr1(s.db.NewSelect().Model(&users).Where("? = ANY(group_ids)", groupID).Order("last_name ASC").Scan(ctx), "ListGroupMembers").Err()
	if err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser stores a new user. The role reference and every group
// reference must exist; group member lists are updated in the same
// transaction so both sides of the relationship stay in sync.
func (s *Service) CreateUser(ctx context.Context, user User) (*User, error) {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return nil, NewError(ErrNoActorID, "actor ID required for user creation")
	}

	user.Email = strings.TrimSpace(strings.ToLower(user.Email))
	if user.ID == "" {
		user.ID = NewID()
	}
	if user.GroupIDs == nil {
		user.GroupIDs = []string{}
	}
	touchUser(&user)

	if err := s.validateStruct(&user); err != nil {
		return nil, err
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.GetRole(ctx, user.RoleID); err != nil {
			return err
		}
		for _, gid := range user.GroupIDs {
			if _, err := s.GetGroup(ctx, gid); err != nil {
				return err
			}
		}

		result, err := s.db.NewInsert().Model(&user).Exec(ctx)
		if err := dbkit.WithErr(result, err, "CreateUser").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to create user").WithUser(user.ID)
		}

		if err := s.addUserToGroups(ctx, user.ID, user.GroupIDs); err != nil {
			return err
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionCreated,
			TargetKind: AuditTargetUser,
			TargetID:   user.ID,
			Detail:     map[string]any{"email": user.Email, "role_id": user.RoleID},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logMutation(ctx, "user created", slog.String("user_id", user.ID), slog.String("role_id", user.RoleID))
	return &user, nil
}

// UpdateUser replaces a user record (full-record replace keyed by id) and
// resynchronizes group membership on both sides.
func (s *Service) UpdateUser(ctx context.Context, user User) (*User, error) {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return nil, NewError(ErrNoActorID, "actor ID required for user update")
	}

	user.Email = strings.TrimSpace(strings.ToLower(user.Email))
	if user.GroupIDs == nil {
		user.GroupIDs = []string{}
	}

	if err := s.validateStruct(&user); err != nil {
		return nil, err
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		existing, err := s.GetUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if _, err := s.GetRole(ctx, user.RoleID); err != nil {
			return err
		}
		for _, gid := range user.GroupIDs {
			if _, err := s.GetGroup(ctx, gid); err != nil {
				return err
			}
		}

		user.CreatedAt = existing.CreatedAt
		user.UpdatedAt = nowUTC()

		result, err := s.db.NewUpdate().Model(&user).WherePK().Exec(ctx)
		if err := dbkit.WithErr(result, err, "UpdateUser").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to update user").WithUser(user.ID)
		}

		// Membership is denormalized on both sides; drop the user from
		// groups no longer referenced and add to the new ones.
		if err := s.removeUserFromGroups(ctx, user.ID, diffStrings(existing.GroupIDs, user.GroupIDs)); err != nil {
			return err
		}
		if err := s.addUserToGroups(ctx, user.ID, diffStrings(user.GroupIDs, existing.GroupIDs)); err != nil {
			return err
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionUpdated,
			TargetKind: AuditTargetUser,
			TargetID:   user.ID,
			Detail:     map[string]any{"role_id": user.RoleID, "groups": len(user.GroupIDs)},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logMutation(ctx, "user updated", slog.String("user_id", user.ID))
	return &user, nil
}

// SetUserGroups replaces a user's group membership. The mirror of
// SetGroupMembers: both sides of the relationship are updated in one
// transaction.
func (s *Service) SetUserGroups(ctx context.Context, userID string, groupIDs []string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	user.GroupIDs = groupIDs
	_, err = s.UpdateUser(ctx, *user)
	return err
}

// DeleteUser removes a user and strips it from every group's member
// list in the same transaction.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return NewError(ErrNoActorID, "actor ID required for user deletion")
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		user, err := s.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		result, err := s.db.NewDelete().Table("users").Where("id = ?", userID).Exec(ctx)
		if err := dbkit.WithErr(result, err, "DeleteUser").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to delete user").WithUser(userID)
		}

		if err := s.removeUserFromGroups(ctx, userID, user.GroupIDs); err != nil {
			return err
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionDeleted,
			TargetKind: AuditTargetUser,
			TargetID:   userID,
			Detail:     map[string]any{"email": user.Email},
		})
	})
	if err != nil {
		return err
	}

	s.logMutation(ctx, "user deleted", slog.String("user_id", userID))
	return nil
}

// CountUsers returns the total number of users.
func (s *Service) CountUsers(ctx context.Context) (int, error) {
	return dbkit.Count[User](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q
	})
}

// ============================================================================
// INTERNAL MEMBERSHIP HELPERS
// ============================================================================

func (s *Service) addUserToGroups(ctx context.Context, userID string, groupIDs []string) error {
	for _, gid := range groupIDs {
		result, err := s.db.NewUpdate().Table("user_groups").
			Set("member_ids = array_append(member_ids, ?)", userID).
			Set("updated_at = current_timestamp").
			Where("id = ? AND NOT (? = ANY(member_ids))", gid, userID).
			Exec(ctx)
		if err := dbkit.WithErr(result, err, "AddUserToGroup").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to add user to group").
				WithUser(userID).WithGroup(gid)
		}
	}
	return nil
}

func (s *Service) removeUserFromGroups(ctx context.Context, userID string, groupIDs []string) error {
	for _, gid := range groupIDs {
		result, err := s.db.NewUpdate().Table("user_groups").
			Set("member_ids = array_remove(member_ids, ?)", userID).
			Set("updated_at = current_timestamp").
			Where("id = ?", gid).
			Exec(ctx)
		if err := dbkit.WithErr(result, err, "RemoveUserFromGroup").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to remove user from group").
				WithUser(userID).WithGroup(gid)
		}
	}
	return nil
}

// diffStrings returns the elements of a that are not in b.
func diffStrings(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, v := range b {
		in[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := in[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
