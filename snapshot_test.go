package permkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	snap := NewSnapshot()

	require.NoError(t, snap.AddUser(User{
		ID: "user-1", FirstName: "Ana", LastName: "Ferreira",
		Email: "ana.ferreira@example.com", RoleID: RoleIDAdmin,
	}))
	require.NoError(t, snap.AddUser(User{
		ID: "user-2", FirstName: "Miguel", LastName: "Santos",
		Email: "miguel.santos@example.com", RoleID: RoleIDViewer,
	}))
	require.NoError(t, snap.AddGroup(UserGroup{
		ID: "group-1", Name: "Project Alpha Team", MemberIDs: []string{"user-2"},
	}))
	return snap
}

// TestNewSnapshot tests that a fresh snapshot carries the system roles
func TestNewSnapshot(t *testing.T) {
	snap := NewSnapshot()
	require.Len(t, snap.Roles, 3)
	assert.NotNil(t, snap.RoleByID(RoleIDAdmin))
	assert.NotNil(t, snap.RoleByID(RoleIDUser))
	assert.NotNil(t, snap.RoleByID(RoleIDViewer))
	assert.Empty(t, snap.Validate())
}

// TestSnapshotClone tests deep-copy isolation
func TestSnapshotClone(t *testing.T) {
	snap := seededSnapshot(t)
	clone := snap.Clone()

	clone.UserByID("user-2").RoleID = RoleIDAdmin
	clone.GroupByID("group-1").MemberIDs[0] = "someone-else"

	assert.Equal(t, RoleIDViewer, snap.UserByID("user-2").RoleID)
	assert.Equal(t, []string{"user-2"}, snap.GroupByID("group-1").MemberIDs)
}

// TestSnapshotRoleMutations tests role add/update/delete rules
func TestSnapshotRoleMutations(t *testing.T) {
	snap := seededSnapshot(t)

	t.Run("AddRole fills the grid and rejects duplicates", func(t *testing.T) {
		err := snap.AddRole(Role{Name: "Contractor"})
		require.NoError(t, err)

		added := snap.Roles[len(snap.Roles)-1]
		assert.NotEmpty(t, added.ID)
		assert.Len(t, added.Permissions, len(AllEntityTypes()))

		assert.ErrorIs(t, snap.AddRole(Role{Name: "contractor"}), ErrDuplicateRoleName)
	})

	t.Run("System role grid stays editable, name does not", func(t *testing.T) {
		admin := snap.RoleByID(RoleIDAdmin).Clone()
		admin.Permissions[EntityTypeDesigns] = ReadOnly()
		require.NoError(t, snap.UpdateRole(admin))
		assert.Equal(t, ReadOnly(), snap.RoleByID(RoleIDAdmin).Permissions[EntityTypeDesigns])

		renamed := snap.RoleByID(RoleIDAdmin).Clone()
		renamed.Name = "Root"
		assert.ErrorIs(t, snap.UpdateRole(renamed), ErrSystemRole)
	})

	t.Run("System roles cannot be deleted", func(t *testing.T) {
		assert.ErrorIs(t, snap.DeleteRole(RoleIDAdmin, ""), ErrSystemRole)
	})

	t.Run("Delete in-use role requires reassignment", func(t *testing.T) {
		require.NoError(t, snap.AddRole(Role{ID: "role-temp", Name: "Temp"}))
		require.NoError(t, snap.UpdateUser(User{
			ID: "user-2", FirstName: "Miguel", LastName: "Santos",
			Email: "miguel.santos@example.com", RoleID: "role-temp",
		}))

		assert.ErrorIs(t, snap.DeleteRole("role-temp", ""), ErrRoleInUse)
		assert.ErrorIs(t, snap.DeleteRole("role-temp", "role-temp"), ErrInvalidInput)
		assert.ErrorIs(t, snap.DeleteRole("role-temp", "role-ghost"), ErrUnknownRole)

		require.NoError(t, snap.DeleteRole("role-temp", RoleIDViewer))
		assert.Nil(t, snap.RoleByID("role-temp"))
		assert.Equal(t, RoleIDViewer, snap.UserByID("user-2").RoleID)
		assert.Empty(t, snap.Validate())
	})
}

// TestSnapshotUserMutations tests user referential integrity and mirroring
func TestSnapshotUserMutations(t *testing.T) {
	snap := seededSnapshot(t)

	t.Run("AddUser rejects dangling references", func(t *testing.T) {
		assert.ErrorIs(t, snap.AddUser(User{ID: "u-x", RoleID: "role-ghost"}), ErrUnknownRole)
		assert.ErrorIs(t, snap.AddUser(User{ID: "u-x", RoleID: RoleIDUser, GroupIDs: []string{"group-ghost"}}), ErrUnknownGroup)
	})

	t.Run("AddUser mirrors membership into the group", func(t *testing.T) {
		require.NoError(t, snap.AddUser(User{
			ID: "user-3", FirstName: "Sofia", LastName: "Almeida",
			Email: "sofia.almeida@example.com", RoleID: RoleIDUser,
			GroupIDs: []string{"group-1"},
		}))
		assert.True(t, snap.GroupByID("group-1").HasMember("user-3"))
		assert.Empty(t, snap.Validate())
	})

	t.Run("UpdateUser resynchronizes both sides", func(t *testing.T) {
		require.NoError(t, snap.UpdateUser(User{
			ID: "user-3", FirstName: "Sofia", LastName: "Almeida",
			Email: "sofia.almeida@example.com", RoleID: RoleIDUser,
		}))
		assert.False(t, snap.GroupByID("group-1").HasMember("user-3"))
		assert.Empty(t, snap.Validate())
	})

	t.Run("SetUserGroups replaces membership on both sides", func(t *testing.T) {
		require.NoError(t, snap.SetUserGroups("user-3", []string{"group-1"}))
		assert.True(t, snap.GroupByID("group-1").HasMember("user-3"))
		assert.Empty(t, snap.Validate())

		require.NoError(t, snap.SetUserGroups("user-3", nil))
		assert.False(t, snap.GroupByID("group-1").HasMember("user-3"))
		assert.Empty(t, snap.Validate())

		assert.ErrorIs(t, snap.SetUserGroups("user-3", []string{"group-ghost"}), ErrUnknownGroup)
		assert.ErrorIs(t, snap.SetUserGroups("user-ghost", nil), ErrUnknownUser)
	})

	t.Run("DeleteUser strips group membership", func(t *testing.T) {
		require.NoError(t, snap.DeleteUser("user-2"))
		assert.Nil(t, snap.UserByID("user-2"))
		assert.False(t, snap.GroupByID("group-1").HasMember("user-2"))
		assert.Empty(t, snap.Validate())
	})
}

// TestSnapshotGroupMutations tests group cascades
func TestSnapshotGroupMutations(t *testing.T) {
	snap := seededSnapshot(t)

	require.NoError(t, snap.AddOverride(GroupPermissionOverride{
		ID: "override-1", GroupID: "group-1", EntityType: EntityTypeDesigns,
		Scope: ScopeAll, Permissions: Grant(ActionUpdate),
	}))

	t.Run("SetGroupMembers replaces membership on both sides", func(t *testing.T) {
		require.NoError(t, snap.SetGroupMembers("group-1", []string{"user-1"}))
		assert.True(t, snap.UserByID("user-1").InGroup("group-1"))
		assert.False(t, snap.UserByID("user-2").InGroup("group-1"))
		assert.Empty(t, snap.Validate())

		assert.ErrorIs(t, snap.SetGroupMembers("group-1", []string{"user-ghost"}), ErrUnknownUser)
	})

	t.Run("DeleteGroup cascades to overrides and users", func(t *testing.T) {
		require.NoError(t, snap.DeleteGroup("group-1"))
		assert.Nil(t, snap.GroupByID("group-1"))
		assert.Nil(t, snap.OverrideByID("override-1"), "orphaned overrides must not survive")
		assert.False(t, snap.UserByID("user-1").InGroup("group-1"))
		assert.Empty(t, snap.Validate())
	})
}

// TestSnapshotOverrideMutations tests override validation rules
func TestSnapshotOverrideMutations(t *testing.T) {
	snap := seededSnapshot(t)

	tests := []struct {
		name     string
		override GroupPermissionOverride
		wantErr  error
	}{
		{
			name: "Valid all-scope override",
			override: GroupPermissionOverride{
				GroupID: "group-1", EntityType: EntityTypeDesigns,
				Scope: ScopeAll, Permissions: Grant(ActionUpdate),
			},
		},
		{
			name: "Valid specific-scope override",
			override: GroupPermissionOverride{
				GroupID: "group-1", EntityType: EntityTypeDesigns,
				Scope: ScopeSpecific, SpecificEntityIDs: []string{"design-7"},
				Permissions: Revoke(ActionDelete),
			},
		},
		{
			name: "Missing group rejected",
			override: GroupPermissionOverride{
				GroupID: "group-ghost", EntityType: EntityTypeDesigns,
				Scope: ScopeAll, Permissions: Grant(ActionUpdate),
			},
			wantErr: ErrUnknownGroup,
		},
		{
			name: "Unknown entity type rejected",
			override: GroupPermissionOverride{
				GroupID: "group-1", EntityType: "documents",
				Scope: ScopeAll, Permissions: Grant(ActionUpdate),
			},
			wantErr: ErrInvalidEntityType,
		},
		{
			name: "Specific scope without targets rejected",
			override: GroupPermissionOverride{
				GroupID: "group-1", EntityType: EntityTypeDesigns,
				Scope: ScopeSpecific, Permissions: Grant(ActionUpdate),
			},
			wantErr: ErrInvalidOverride,
		},
		{
			name: "Unknown scope rejected",
			override: GroupPermissionOverride{
				GroupID: "group-1", EntityType: EntityTypeDesigns,
				Scope: "partial", Permissions: Grant(ActionUpdate),
			},
			wantErr: ErrInvalidOverride,
		},
		{
			name: "Silent override rejected",
			override: GroupPermissionOverride{
				GroupID: "group-1", EntityType: EntityTypeDesigns,
				Scope: ScopeAll,
			},
			wantErr: ErrInvalidOverride,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := snap.AddOverride(tt.override)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	t.Run("All scope drops stale targets", func(t *testing.T) {
		require.NoError(t, snap.AddOverride(GroupPermissionOverride{
			ID: "override-blanket", GroupID: "group-1", EntityType: EntityTypeProjects,
			Scope: ScopeAll, SpecificEntityIDs: []string{"project-1"},
			Permissions: Grant(ActionRead),
		}))
		assert.Empty(t, snap.OverrideByID("override-blanket").SpecificEntityIDs)
	})
}

// TestSnapshotResolveUnknownUser tests the degrade-dont-fail contract
func TestSnapshotResolveUnknownUser(t *testing.T) {
	snap := seededSnapshot(t)

	assert.Equal(t, NoAccess(), snap.Resolve("user-ghost", EntityTypeProjects, ""))

	grid := snap.ResolveAll("user-ghost")
	require.Len(t, grid, len(AllEntityTypes()))
	for entityType, set := range grid {
		assert.Equal(t, NoAccess(), set, "entity type %s", entityType)
	}

	_, err := snap.Checker("user-ghost")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

// TestSnapshotValidateDetectsDrift tests the consistency report
func TestSnapshotValidateDetectsDrift(t *testing.T) {
	snap := seededSnapshot(t)

	// Corrupt the snapshot directly, bypassing the mutators
	snap.Users[0].RoleID = "role-ghost"
	snap.Users[1].GroupIDs = []string{"group-ghost"}
	snap.Overrides = append(snap.Overrides, GroupPermissionOverride{
		ID: "o-bad", GroupID: "group-deleted", EntityType: EntityTypeDesigns,
		Scope: ScopeAll, Permissions: Grant(ActionRead),
	})

	// Four findings: the dangling role, the dangling group reference, the
	// now one-sided group-1 membership mirror, and the orphaned override.
	problems := snap.Validate()
	assert.Len(t, problems, 4)
}
