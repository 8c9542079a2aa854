package permkit

import (
	"context"
)

// ============================================================================
// SNAPSHOT LOADING
// ============================================================================

// LoadSnapshot reads the complete administration state inside a read-only
// transaction so the resulting snapshot is internally consistent. The
// snapshot is what browser-side callers hand to the resolver and the
// checker.
func (s *Service) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	err := s.ReadOnlyTransaction(ctx, func(ctx context.Context) error {
		var err error
		if snap.Roles, err = s.ListRoles(ctx); err != nil {
			return err
		}
		if snap.Users, err = s.ListUsers(ctx); err != nil {
			return err
		}
		if snap.Groups, err = s.ListGroups(ctx); err != nil {
			return err
		}
		if snap.Entities, err = s.ListEntities(ctx); err != nil {
			return err
		}
		snap.Overrides, err = s.ListOverrides(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// GetChecker loads the current state and returns a checker bound to one
// user. Convenience for callers that only need a single user's view.
func (s *Service) GetChecker(ctx context.Context, userID string) (*Checker, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Checker(userID)
}

// ResolveUser loads the current state and resolves one user's effective
// permissions on a single target. For repeated checks prefer LoadSnapshot
// plus Snapshot.Resolve so the state is read once.
func (s *Service) ResolveUser(ctx context.Context, userID string, entityType EntityType, entityID string) (PermissionSet, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return PermissionSet{}, err
	}
	return snap.Resolve(userID, entityType, entityID), nil
}
