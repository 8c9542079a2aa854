package permkit

import (
	"strings"
	"time"
)

// Well-known ids for the seeded system roles.
const (
	RoleIDAdmin  = "role-admin"
	RoleIDUser   = "role-user"
	RoleIDViewer = "role-viewer"
)

// RoleBuilder constructs a Role with a complete permission grid using a
// fluent API.
//
// Example:
//
//	role := permkit.NewRole("Project Manager").
//	    Describe("Full project access, read-only user management").
//	    Grant(permkit.EntityTypeProjects, permkit.FullAccess()).
//	    Grant(permkit.EntityTypeUserManagement, permkit.ReadOnly()).
//	    Build()
type RoleBuilder struct {
	role Role
}

// NewRole starts building a custom role. The grid starts all-false for
// every entity type, so anything not granted stays denied.
func NewRole(name string) *RoleBuilder {
	now := time.Now().UTC()
	b := &RoleBuilder{
		role: Role{
			ID:          NewID(),
			Name:        name,
			Permissions: make(map[EntityType]PermissionSet, len(AllEntityTypes())),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	for _, t := range AllEntityTypes() {
		b.role.Permissions[t] = NoAccess()
	}
	return b
}

// WithID overrides the generated role id. Used for seeding fixed
// identities like the system roles.
func (b *RoleBuilder) WithID(id string) *RoleBuilder {
	b.role.ID = id
	return b
}

// Describe sets the role description.
func (b *RoleBuilder) Describe(description string) *RoleBuilder {
	b.role.Description = description
	return b
}

// System marks the role as a system role (non-deletable, fixed name).
func (b *RoleBuilder) System() *RoleBuilder {
	b.role.IsSystem = true
	return b
}

// Grant sets the complete permission set for one entity type.
func (b *RoleBuilder) Grant(t EntityType, set PermissionSet) *RoleBuilder {
	b.role.Permissions[t] = set
	return b
}

// GrantAll sets the same permission set for every entity type.
func (b *RoleBuilder) GrantAll(set PermissionSet) *RoleBuilder {
	for _, t := range AllEntityTypes() {
		b.role.Permissions[t] = set
	}
	return b
}

// Build returns the constructed role.
func (b *RoleBuilder) Build() Role {
	return b.role.Clone()
}

// SystemRoles returns the three seeded system roles: Admin (full access),
// User (full access, read-only user management) and Viewer (read-only,
// no user management).
func SystemRoles() []Role {
	return []Role{
		NewRole("Admin").
			WithID(RoleIDAdmin).
			Describe("Full system access including user management").
			System().
			GrantAll(FullAccess()).
			Build(),
		NewRole("User").
			WithID(RoleIDUser).
			Describe("Standard user access with full project permissions").
			System().
			GrantAll(FullAccess()).
			Grant(EntityTypeUserManagement, ReadOnly()).
			Build(),
		NewRole("Viewer").
			WithID(RoleIDViewer).
			Describe("Read-only access to projects and files").
			System().
			GrantAll(ReadOnly()).
			Grant(EntityTypeUserManagement, NoAccess()).
			Build(),
	}
}

// ValidateRoleName checks that a role name is non-empty and unique
// case-insensitively across the registry. excludeID skips the role being
// edited so a role can keep its own name.
func ValidateRoleName(name string, roles []Role, excludeID string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return NewError(ErrInvalidInput, "role name cannot be empty")
	}
	lower := strings.ToLower(trimmed)
	for i := range roles {
		if roles[i].ID == excludeID {
			continue
		}
		if strings.ToLower(roles[i].Name) == lower {
			return NewError(ErrDuplicateRoleName, "a role with this name already exists").
				WithRole(roles[i].ID)
		}
	}
	return nil
}

// NormalizeRoleGrid fills missing grid entries with all-false sets so a
// role always carries an entry for every known entity type, and drops
// entries for types outside the closed enumeration.
func NormalizeRoleGrid(role *Role) {
	grid := make(map[EntityType]PermissionSet, len(AllEntityTypes()))
	for _, t := range AllEntityTypes() {
		if role.Permissions != nil {
			grid[t] = role.Permissions[t]
		} else {
			grid[t] = NoAccess()
		}
	}
	role.Permissions = grid
}
