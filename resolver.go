package permkit

import "sort"

// RoleDefaults returns the complete permission set a role grants for an
// entity type: the resolution floor before any override is applied.
// An unknown role id or a role with no grid entry for the type yields the
// all-false set; absence is a zero-permission result, not an error.
func RoleDefaults(roleID string, entityType EntityType, roles []Role) PermissionSet {
	for i := range roles {
		if roles[i].ID == roleID {
			return roles[i].PermissionsFor(entityType)
		}
	}
	return NoAccess()
}

// Resolve computes the effective CRUD permission set for a user on an
// entity type, optionally narrowed to a specific entity instance.
//
// The algorithm layers overrides atop the user's role defaults in a fixed
// two-phase pass:
//
//   - "all"-scoped overrides merge with OR-union per present action, so
//     any one matching group grant is enough; they can only add.
//   - "specific"-scoped overrides (only considered when entityID is
//     non-empty and listed in the override) merge by direct overwrite per
//     present action, so they can also revoke. They are applied after the
//     union phase and therefore always have final say.
//
// When several specific overrides target the same instance with
// conflicting values for the same action, the most recently created one
// wins: the candidates are applied in (CreatedAt, ID) ascending order.
//
// Resolve never fails. Unknown role references, missing grid entries and
// overrides pointing at groups the user is not in all degrade to the
// least-privilege outcome. Identical inputs always produce identical
// output; there is no caching and no hidden state.
func Resolve(user User, entityType EntityType, entityID string, overrides []GroupPermissionOverride, roles []Role) PermissionSet {
	base := RoleDefaults(user.RoleID, entityType, roles)

	// No groups means no override can apply.
	if len(user.GroupIDs) == 0 {
		return base
	}

	groups := make(map[string]struct{}, len(user.GroupIDs))
	for _, id := range user.GroupIDs {
		groups[id] = struct{}{}
	}

	// Overrides for other entity types are irrelevant; matching on both
	// group and type keeps grants from leaking across types.
	var allScoped, specificScoped []GroupPermissionOverride
	for _, o := range overrides {
		if _, member := groups[o.GroupID]; !member {
			continue
		}
		if o.EntityType != entityType {
			continue
		}
		switch o.Scope {
		case ScopeAll:
			allScoped = append(allScoped, o)
		case ScopeSpecific:
			if o.AppliesTo(entityID) {
				specificScoped = append(specificScoped, o)
			}
		}
	}

	if len(allScoped) == 0 && len(specificScoped) == 0 {
		return base
	}

	effective := base

	for _, o := range allScoped {
		o.Permissions.UnionInto(&effective)
	}

	sortOverridesByCreation(specificScoped)
	for _, o := range specificScoped {
		o.Permissions.OverwriteInto(&effective)
	}

	return effective
}

// ResolveAll computes the effective permission set for every entity type
// in the closed enumeration, with no instance named. Since no entity id
// is supplied, only role defaults and "all"-scoped overrides influence
// the result; specific-entity overrides never appear here. The returned
// map always has an entry for every entity type.
func ResolveAll(user User, overrides []GroupPermissionOverride, roles []Role) map[EntityType]PermissionSet {
	grid := make(map[EntityType]PermissionSet, len(AllEntityTypes()))
	for _, t := range AllEntityTypes() {
		grid[t] = Resolve(user, t, "", overrides, roles)
	}
	return grid
}

// sortOverridesByCreation orders overrides by (CreatedAt, ID) ascending.
// Applying overwrites in this order makes the most recently created
// override win per action, independent of storage round-trip order.
func sortOverridesByCreation(overrides []GroupPermissionOverride) {
	sort.SliceStable(overrides, func(i, j int) bool {
		if !overrides[i].CreatedAt.Equal(overrides[j].CreatedAt) {
			return overrides[i].CreatedAt.Before(overrides[j].CreatedAt)
		}
		return overrides[i].ID < overrides[j].ID
	})
}
