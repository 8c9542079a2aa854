package permkit

// Checker provides permission checking for a specific user against one
// snapshot. It is a convenience façade over Resolve; each call
// re-evaluates from the snapshot, so a checker stays correct as long as
// the snapshot it was built from is the current one.
type Checker struct {
	user User
	snap *Snapshot
}

// NewChecker creates a Checker for a user against a snapshot.
func NewChecker(user User, snap *Snapshot) *Checker {
	return &Checker{user: user, snap: snap}
}

// UserID returns the user id this checker is for.
func (c *Checker) UserID() string {
	return c.user.ID
}

// Effective returns the effective permission set for an entity type, with
// no instance named.
func (c *Checker) Effective(entityType EntityType) PermissionSet {
	return Resolve(c.user, entityType, "", c.snap.Overrides, c.snap.Roles)
}

// EffectiveOn returns the effective permission set for a specific entity
// instance.
func (c *Checker) EffectiveOn(entityType EntityType, entityID string) PermissionSet {
	return Resolve(c.user, entityType, entityID, c.snap.Overrides, c.snap.Roles)
}

// EffectiveAll returns the whole permission grid, one entry per entity
// type.
func (c *Checker) EffectiveAll() map[EntityType]PermissionSet {
	return ResolveAll(c.user, c.snap.Overrides, c.snap.Roles)
}

// Allows reports whether the user may perform an action on an entity
// type, optionally narrowed to an instance (pass "" for none).
//
// Example:
//
//	if checker.Allows(permkit.ActionDelete, permkit.EntityTypeDesigns, "design-7") {
//	    // user may delete this design
//	}
func (c *Checker) Allows(action PermissionAction, entityType EntityType, entityID string) bool {
	return c.EffectiveOn(entityType, entityID).Allows(action)
}

// CanCreate reports whether the user may create entities of a type.
func (c *Checker) CanCreate(entityType EntityType) bool {
	return c.Effective(entityType).Create
}

// CanRead reports whether the user may read entities of a type.
func (c *Checker) CanRead(entityType EntityType) bool {
	return c.Effective(entityType).Read
}

// CanUpdate reports whether the user may update entities of a type.
func (c *Checker) CanUpdate(entityType EntityType) bool {
	return c.Effective(entityType).Update
}

// CanDelete reports whether the user may delete entities of a type.
func (c *Checker) CanDelete(entityType EntityType) bool {
	return c.Effective(entityType).Delete
}

// IsAdmin reports whether the user's role grants full access to user
// management, the conventional admin marker in the seeded grids.
func (c *Checker) IsAdmin() bool {
	return c.Effective(EntityTypeUserManagement) == FullAccess()
}
