// Package permkit provides user, group and role administration with an
// access-control resolution engine that computes effective CRUD permissions
// per entity type.
//
// PermKit combines role-based defaults with group-scoped permission
// overrides. Every role carries a complete CRUD grid (one permission set
// per entity type); groups can layer overrides on top of those defaults,
// either for all instances of an entity type or for specific entity
// instances.
//
// # Core Concepts
//
// PermissionSet: four independent booleans {create, read, update, delete}.
// Role defaults are complete sets; overrides are partial sets where an
// unset action means "does not speak to this action", not "deny".
//
// EntityType: a closed enumeration of resource kinds (workspaces,
// projects, project files, financial models, designs, design files,
// design comments, user management).
//
// Role: a named, complete permission grid. System roles (Admin, User,
// Viewer) carry fixed identity and cannot be deleted.
//
// GroupPermissionOverride: a group-scoped adjustment for one entity type.
// Scope "all" overrides accumulate permissively (OR per action); scope
// "specific" overrides overwrite per action and can therefore also revoke.
//
// # Resolution
//
// Resolution is a pure function over caller-supplied state and is
// re-evaluated fresh on every call:
//
//  1. Start from the role defaults for the user's role (all-false when the
//     role reference is unknown).
//  2. Filter overrides to the user's groups and the queried entity type.
//  3. Apply "all"-scoped overrides with OR-union per present action.
//  4. Apply "specific"-scoped overrides (only when an entity id was
//     supplied and listed) with direct overwrite per present action,
//     oldest first, so the most recently created override wins.
//
// The resolver never returns an error: unknown roles, missing grid
// entries and dangling overrides all degrade to least privilege.
//
// # Basic Usage
//
//	// 1. Build roles (or load them from the service)
//	admin := permkit.NewRole("Admin").
//	    Describe("Full system access").
//	    GrantAll(permkit.FullAccess()).
//	    Build()
//
//	// 2. Resolve a single entity type
//	perms := permkit.Resolve(user, permkit.EntityTypeDesigns, "", overrides, roles)
//	if perms.Create {
//	    // user may create designs
//	}
//
//	// 3. Resolve a specific entity instance
//	perms = permkit.Resolve(user, permkit.EntityTypeDesigns, "design-7", overrides, roles)
//
//	// 4. Or resolve the whole grid for summary views
//	grid := permkit.ResolveAll(user, overrides, roles)
//
// # Snapshots and Checkers
//
// A Snapshot holds the full administration state (users, groups, roles,
// entities, overrides). Snapshot mutators enforce referential integrity:
// deleting a group cascades to its overrides and strips membership,
// deleting a user strips it from groups, and role deletion requires
// reassignment of affected users.
//
//	snap := permkit.NewSnapshot()
//	checker, _ := snap.Checker(userID)
//	if checker.CanUpdate(permkit.EntityTypeProjects) {
//	    // ...
//	}
//
// # Persistence
//
// The Service persists the administration state in PostgreSQL through
// dbkit, enforcing the same cascade rules inside transactions and
// recording every mutation in an audit log:
//
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := permkit.NewService(db)
//	service.Migrate(ctx)
//	service.Seed(ctx) // system roles + demo data
//
//	snap, _ := service.LoadSnapshot(ctx)
//	perms := snap.Resolve(userID, permkit.EntityTypeProjects, "")
package permkit
