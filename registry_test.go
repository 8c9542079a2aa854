package permkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoleBuilder tests the fluent role construction API
func TestRoleBuilder(t *testing.T) {
	role := NewRole("Project Manager").
		Describe("Full project access, read-only user management").
		Grant(EntityTypeProjects, FullAccess()).
		Grant(EntityTypeUserManagement, ReadOnly()).
		Build()

	assert.NotEmpty(t, role.ID)
	assert.Equal(t, "Project Manager", role.Name)
	assert.False(t, role.IsSystem)
	assert.False(t, role.CreatedAt.IsZero())

	// The grid always covers every entity type
	require.Len(t, role.Permissions, len(AllEntityTypes()))
	assert.Equal(t, FullAccess(), role.Permissions[EntityTypeProjects])
	assert.Equal(t, ReadOnly(), role.Permissions[EntityTypeUserManagement])
	assert.Equal(t, NoAccess(), role.Permissions[EntityTypeDesigns], "ungranted types stay denied")
}

// TestRoleBuilderGrantAll tests the blanket grant
func TestRoleBuilderGrantAll(t *testing.T) {
	role := NewRole("Auditor").GrantAll(ReadOnly()).Build()

	for _, entityType := range AllEntityTypes() {
		assert.Equal(t, ReadOnly(), role.Permissions[entityType])
	}
}

// TestRoleBuilderBuildReturnsClone tests builder isolation
func TestRoleBuilderBuildReturnsClone(t *testing.T) {
	builder := NewRole("Shared")
	first := builder.Build()
	second := builder.Grant(EntityTypeProjects, FullAccess()).Build()

	assert.Equal(t, NoAccess(), first.Permissions[EntityTypeProjects])
	assert.Equal(t, FullAccess(), second.Permissions[EntityTypeProjects])
}

// TestSystemRoles tests the three seeded defaults
func TestSystemRoles(t *testing.T) {
	roles := SystemRoles()
	require.Len(t, roles, 3)

	byID := make(map[string]Role, 3)
	for _, role := range roles {
		assert.True(t, role.IsSystem)
		require.Len(t, role.Permissions, len(AllEntityTypes()))
		byID[role.ID] = role
	}

	admin := byID[RoleIDAdmin]
	for _, entityType := range AllEntityTypes() {
		assert.Equal(t, FullAccess(), admin.Permissions[entityType])
	}

	user := byID[RoleIDUser]
	assert.Equal(t, FullAccess(), user.Permissions[EntityTypeProjects])
	assert.Equal(t, ReadOnly(), user.Permissions[EntityTypeUserManagement])

	viewer := byID[RoleIDViewer]
	assert.Equal(t, ReadOnly(), viewer.Permissions[EntityTypeDesigns])
	assert.Equal(t, NoAccess(), viewer.Permissions[EntityTypeUserManagement])
}

// TestValidateRoleName tests case-insensitive name uniqueness
func TestValidateRoleName(t *testing.T) {
	roles := SystemRoles()

	tests := []struct {
		name      string
		roleName  string
		excludeID string
		wantErr   error
	}{
		{name: "Fresh name passes", roleName: "Contractor", wantErr: nil},
		{name: "Exact duplicate rejected", roleName: "Admin", wantErr: ErrDuplicateRoleName},
		{name: "Case-insensitive duplicate rejected", roleName: "  viewer ", wantErr: ErrDuplicateRoleName},
		{name: "Empty name rejected", roleName: "   ", wantErr: ErrInvalidInput},
		{name: "Own name allowed when editing", roleName: "Admin", excludeID: RoleIDAdmin, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoleName(tt.roleName, roles, tt.excludeID)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

// TestNormalizeRoleGrid tests grid completion and pruning
func TestNormalizeRoleGrid(t *testing.T) {
	role := Role{
		ID:   "role-x",
		Name: "Partial",
		Permissions: map[EntityType]PermissionSet{
			EntityTypeProjects:   FullAccess(),
			EntityType("legacy"): FullAccess(),
		},
	}

	NormalizeRoleGrid(&role)

	require.Len(t, role.Permissions, len(AllEntityTypes()))
	assert.Equal(t, FullAccess(), role.Permissions[EntityTypeProjects])
	assert.Equal(t, NoAccess(), role.Permissions[EntityTypeDesigns])
	_, hasLegacy := role.Permissions[EntityType("legacy")]
	assert.False(t, hasLegacy, "types outside the enumeration are dropped")

	t.Run("Nil grid becomes all-false", func(t *testing.T) {
		bare := Role{ID: "role-y", Name: "Bare"}
		NormalizeRoleGrid(&bare)
		require.Len(t, bare.Permissions, len(AllEntityTypes()))
		for _, entityType := range AllEntityTypes() {
			assert.Equal(t, NoAccess(), bare.Permissions[entityType])
		}
	})
}
