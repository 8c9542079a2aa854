package permkit

import (
	"fmt"
	"time"
)

// Snapshot is the full administration state the resolver consumes: users,
// groups, roles, the entity hierarchy and all group overrides. A caller
// holds one snapshot, passes it (or slices of it) into the resolver on
// every query, and produces the next version through the mutators below.
// The resolver itself never mutates a snapshot.
//
// Mutators enforce referential integrity at the boundary: dangling role
// references are rejected, group deletion cascades to overrides and
// membership, and both sides of the user/group relationship are kept in
// sync within a single call.
type Snapshot struct {
	Users     []User
	Groups    []UserGroup
	Roles     []Role
	Entities  []Entity
	Overrides []GroupPermissionOverride
}

// NewSnapshot returns an empty snapshot seeded with the system roles.
func NewSnapshot() *Snapshot {
	return &Snapshot{Roles: SystemRoles()}
}

// Clone returns a deep copy, so callers can keep an immutable version per
// action.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Users:     make([]User, len(s.Users)),
		Groups:    make([]UserGroup, len(s.Groups)),
		Roles:     make([]Role, len(s.Roles)),
		Entities:  append([]Entity(nil), s.Entities...),
		Overrides: make([]GroupPermissionOverride, len(s.Overrides)),
	}
	for i := range s.Users {
		out.Users[i] = s.Users[i].Clone()
	}
	for i := range s.Groups {
		out.Groups[i] = s.Groups[i].Clone()
	}
	for i := range s.Roles {
		out.Roles[i] = s.Roles[i].Clone()
	}
	for i := range s.Overrides {
		out.Overrides[i] = s.Overrides[i].Clone()
	}
	return out
}

// ============================================================================
// LOOKUPS
// ============================================================================

// UserByID returns the user with the given id, or nil.
func (s *Snapshot) UserByID(id string) *User {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return &s.Users[i]
		}
	}
	return nil
}

// GroupByID returns the group with the given id, or nil.
func (s *Snapshot) GroupByID(id string) *UserGroup {
	for i := range s.Groups {
		if s.Groups[i].ID == id {
			return &s.Groups[i]
		}
	}
	return nil
}

// RoleByID returns the role with the given id, or nil.
func (s *Snapshot) RoleByID(id string) *Role {
	for i := range s.Roles {
		if s.Roles[i].ID == id {
			return &s.Roles[i]
		}
	}
	return nil
}

// OverrideByID returns the override with the given id, or nil.
func (s *Snapshot) OverrideByID(id string) *GroupPermissionOverride {
	for i := range s.Overrides {
		if s.Overrides[i].ID == id {
			return &s.Overrides[i]
		}
	}
	return nil
}

// OverridesForGroup returns every override belonging to a group.
func (s *Snapshot) OverridesForGroup(groupID string) []GroupPermissionOverride {
	var out []GroupPermissionOverride
	for _, o := range s.Overrides {
		if o.GroupID == groupID {
			out = append(out, o)
		}
	}
	return out
}

// UsersWithRole returns the users currently referencing a role.
func (s *Snapshot) UsersWithRole(roleID string) []User {
	var out []User
	for _, u := range s.Users {
		if u.RoleID == roleID {
			out = append(out, u)
		}
	}
	return out
}

// EntityTree assembles the stored entity rows into their hierarchy.
func (s *Snapshot) EntityTree() []*Entity {
	return BuildEntityTree(s.Entities)
}

// ============================================================================
// RESOLUTION
// ============================================================================

// Resolve computes the effective permission set for a user id. An unknown
// user resolves to all-false, matching the resolver's degrade-dont-fail
// contract.
func (s *Snapshot) Resolve(userID string, entityType EntityType, entityID string) PermissionSet {
	user := s.UserByID(userID)
	if user == nil {
		return NoAccess()
	}
	return Resolve(*user, entityType, entityID, s.Overrides, s.Roles)
}

// ResolveAll computes the whole permission grid for a user id.
func (s *Snapshot) ResolveAll(userID string) map[EntityType]PermissionSet {
	user := s.UserByID(userID)
	if user == nil {
		grid := make(map[EntityType]PermissionSet, len(AllEntityTypes()))
		for _, t := range AllEntityTypes() {
			grid[t] = NoAccess()
		}
		return grid
	}
	return ResolveAll(*user, s.Overrides, s.Roles)
}

// Checker returns a per-user permission façade bound to this snapshot.
func (s *Snapshot) Checker(userID string) (*Checker, error) {
	user := s.UserByID(userID)
	if user == nil {
		return nil, NewError(ErrUnknownUser, "cannot build checker").WithUser(userID)
	}
	return NewChecker(*user, s), nil
}

// ============================================================================
// ROLE MUTATIONS
// ============================================================================

// AddRole adds a role after checking name uniqueness. Missing grid
// entries are filled with all-false sets.
func (s *Snapshot) AddRole(role Role) error {
	if err := ValidateRoleName(role.Name, s.Roles, ""); err != nil {
		return err
	}
	if role.ID == "" {
		role.ID = NewID()
	}
	NormalizeRoleGrid(&role)
	touchRole(&role)
	s.Roles = append(s.Roles, role)
	return nil
}

// UpdateRole replaces a role record. System roles keep their name and
// system flag; their grids stay editable.
func (s *Snapshot) UpdateRole(role Role) error {
	existing := s.RoleByID(role.ID)
	if existing == nil {
		return NewError(ErrUnknownRole, "cannot update role").WithRole(role.ID)
	}
	if existing.IsSystem && role.Name != existing.Name {
		return NewError(ErrSystemRole, "system role names are fixed").WithRole(role.ID)
	}
	if err := ValidateRoleName(role.Name, s.Roles, role.ID); err != nil {
		return err
	}
	role.IsSystem = existing.IsSystem
	role.CreatedAt = existing.CreatedAt
	NormalizeRoleGrid(&role)
	role.UpdatedAt = time.Now().UTC()
	*existing = role
	return nil
}

// DeleteRole removes a role. System roles are never deletable. When users
// still reference the role, reassignToID must name a different existing
// role; those users are moved first so resolution never silently degrades
// to all-false for them.
func (s *Snapshot) DeleteRole(roleID, reassignToID string) error {
	role := s.RoleByID(roleID)
	if role == nil {
		return NewError(ErrUnknownRole, "cannot delete role").WithRole(roleID)
	}
	if role.IsSystem {
		return NewError(ErrSystemRole, "system roles cannot be deleted").WithRole(roleID)
	}

	affected := s.UsersWithRole(roleID)
	if len(affected) > 0 {
		if reassignToID == "" {
			return NewError(ErrRoleInUse, fmt.Sprintf("%d users must be reassigned first", len(affected))).
				WithRole(roleID)
		}
		if reassignToID == roleID {
			return NewError(ErrInvalidInput, "cannot reassign users to the role being deleted").
				WithRole(roleID)
		}
		if s.RoleByID(reassignToID) == nil {
			return NewError(ErrUnknownRole, "reassignment role does not exist").WithRole(reassignToID)
		}
		for i := range s.Users {
			if s.Users[i].RoleID == roleID {
				s.Users[i].RoleID = reassignToID
				s.Users[i].UpdatedAt = time.Now().UTC()
			}
		}
	}

	s.Roles = deleteRole(s.Roles, roleID)
	return nil
}

// ============================================================================
// USER MUTATIONS
// ============================================================================

// AddUser adds a user. The role reference must exist and every referenced
// group must exist; group membership is mirrored into the groups.
func (s *Snapshot) AddUser(user User) error {
	if s.RoleByID(user.RoleID) == nil {
		return NewError(ErrUnknownRole, "user references a missing role").
			WithUser(user.ID).WithRole(user.RoleID)
	}
	for _, gid := range user.GroupIDs {
		if s.GroupByID(gid) == nil {
			return NewError(ErrUnknownGroup, "user references a missing group").
				WithUser(user.ID).WithGroup(gid)
		}
	}
	if user.ID == "" {
		user.ID = NewID()
	}
	touchUser(&user)
	s.Users = append(s.Users, user)
	s.syncUserMembership(user.ID, user.GroupIDs)
	return nil
}

// UpdateUser replaces a user record and resynchronizes membership on both
// sides of the relationship.
func (s *Snapshot) UpdateUser(user User) error {
	existing := s.UserByID(user.ID)
	if existing == nil {
		return NewError(ErrUnknownUser, "cannot update user").WithUser(user.ID)
	}
	if s.RoleByID(user.RoleID) == nil {
		return NewError(ErrUnknownRole, "user references a missing role").
			WithUser(user.ID).WithRole(user.RoleID)
	}
	for _, gid := range user.GroupIDs {
		if s.GroupByID(gid) == nil {
			return NewError(ErrUnknownGroup, "user references a missing group").
				WithUser(user.ID).WithGroup(gid)
		}
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	*existing = user
	s.syncUserMembership(user.ID, user.GroupIDs)
	return nil
}

// SetUserGroups replaces a user's group membership. The mirror of
// SetGroupMembers: both the user's group list and every affected group's
// member list are updated in this call.
func (s *Snapshot) SetUserGroups(userID string, groupIDs []string) error {
	user := s.UserByID(userID)
	if user == nil {
		return NewError(ErrUnknownUser, "cannot set groups").WithUser(userID)
	}
	for _, gid := range groupIDs {
		if s.GroupByID(gid) == nil {
			return NewError(ErrUnknownGroup, "membership references a missing group").
				WithUser(userID).WithGroup(gid)
		}
	}
	user.GroupIDs = append([]string(nil), groupIDs...)
	user.UpdatedAt = time.Now().UTC()
	s.syncUserMembership(userID, groupIDs)
	return nil
}

// DeleteUser removes a user and strips it from every group's member list.
func (s *Snapshot) DeleteUser(userID string) error {
	if s.UserByID(userID) == nil {
		return NewError(ErrUnknownUser, "cannot delete user").WithUser(userID)
	}
	s.Users = deleteUser(s.Users, userID)
	for i := range s.Groups {
		s.Groups[i].MemberIDs = removeString(s.Groups[i].MemberIDs, userID)
	}
	return nil
}

// ============================================================================
// GROUP MUTATIONS
// ============================================================================

// AddGroup adds a group. Every member must exist; membership is mirrored
// into the users' group lists.
func (s *Snapshot) AddGroup(group UserGroup) error {
	for _, uid := range group.MemberIDs {
		if s.UserByID(uid) == nil {
			return NewError(ErrUnknownUser, "group references a missing user").
				WithGroup(group.ID).WithUser(uid)
		}
	}
	if group.ID == "" {
		group.ID = NewID()
	}
	touchGroup(&group)
	s.Groups = append(s.Groups, group)
	s.syncGroupMembership(group.ID, group.MemberIDs)
	return nil
}

// UpdateGroup replaces a group record and resynchronizes membership.
func (s *Snapshot) UpdateGroup(group UserGroup) error {
	existing := s.GroupByID(group.ID)
	if existing == nil {
		return NewError(ErrUnknownGroup, "cannot update group").WithGroup(group.ID)
	}
	for _, uid := range group.MemberIDs {
		if s.UserByID(uid) == nil {
			return NewError(ErrUnknownUser, "group references a missing user").
				WithGroup(group.ID).WithUser(uid)
		}
	}
	group.CreatedAt = existing.CreatedAt
	group.UpdatedAt = time.Now().UTC()
	*existing = group
	s.syncGroupMembership(group.ID, group.MemberIDs)
	return nil
}

// SetGroupMembers replaces a group's membership. Both the group's member
// list and every affected user's group list are updated in this call.
func (s *Snapshot) SetGroupMembers(groupID string, memberIDs []string) error {
	group := s.GroupByID(groupID)
	if group == nil {
		return NewError(ErrUnknownGroup, "cannot set members").WithGroup(groupID)
	}
	for _, uid := range memberIDs {
		if s.UserByID(uid) == nil {
			return NewError(ErrUnknownUser, "membership references a missing user").
				WithGroup(groupID).WithUser(uid)
		}
	}
	group.MemberIDs = append([]string(nil), memberIDs...)
	group.UpdatedAt = time.Now().UTC()
	s.syncGroupMembership(groupID, memberIDs)
	return nil
}

// DeleteGroup removes a group, cascades to every override referencing it
// and strips the group from every user's group list. Orphaned overrides
// must never reach the resolver.
func (s *Snapshot) DeleteGroup(groupID string) error {
	if s.GroupByID(groupID) == nil {
		return NewError(ErrUnknownGroup, "cannot delete group").WithGroup(groupID)
	}
	s.Groups = deleteGroup(s.Groups, groupID)
	s.Overrides = deleteOverridesForGroup(s.Overrides, groupID)
	for i := range s.Users {
		s.Users[i].GroupIDs = removeString(s.Users[i].GroupIDs, groupID)
	}
	return nil
}

// ============================================================================
// OVERRIDE MUTATIONS
// ============================================================================

// AddOverride adds a group permission override after validating it.
func (s *Snapshot) AddOverride(o GroupPermissionOverride) error {
	if err := s.validateOverride(&o); err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = NewID()
	}
	touchOverride(&o)
	s.Overrides = append(s.Overrides, o)
	return nil
}

// UpdateOverride replaces an override record after validating it.
func (s *Snapshot) UpdateOverride(o GroupPermissionOverride) error {
	existing := s.OverrideByID(o.ID)
	if existing == nil {
		return NewError(ErrUnknownOverride, "cannot update override")
	}
	if err := s.validateOverride(&o); err != nil {
		return err
	}
	o.CreatedAt = existing.CreatedAt
	o.UpdatedAt = time.Now().UTC()
	*existing = o
	return nil
}

// DeleteOverride removes an override.
func (s *Snapshot) DeleteOverride(id string) error {
	if s.OverrideByID(id) == nil {
		return NewError(ErrUnknownOverride, "cannot delete override")
	}
	s.Overrides = deleteOverride(s.Overrides, id)
	return nil
}

// validateOverride enforces the override invariants: the group must
// exist, the entity type must be known, specific scope requires targets
// and all scope ignores them, and the partial set must speak to at least
// one action.
func (s *Snapshot) validateOverride(o *GroupPermissionOverride) error {
	if s.GroupByID(o.GroupID) == nil {
		return NewError(ErrUnknownGroup, "override references a missing group").WithGroup(o.GroupID)
	}
	if !ValidEntityType(o.EntityType) {
		return NewError(ErrInvalidEntityType, string(o.EntityType)).WithGroup(o.GroupID)
	}
	switch o.Scope {
	case ScopeAll:
		// Targets are unused for blanket overrides; drop them so stale
		// ids cannot resurface if the scope flips later.
		o.SpecificEntityIDs = nil
	case ScopeSpecific:
		if len(o.SpecificEntityIDs) == 0 {
			return NewError(ErrInvalidOverride, "specific scope requires at least one entity id").
				WithGroup(o.GroupID).WithEntityType(o.EntityType)
		}
	default:
		return NewError(ErrInvalidOverride, fmt.Sprintf("unknown scope %q", o.Scope)).
			WithGroup(o.GroupID)
	}
	if o.Permissions.IsEmpty() {
		return NewError(ErrInvalidOverride, "override does not speak to any action").
			WithGroup(o.GroupID).WithEntityType(o.EntityType)
	}
	return nil
}

// ============================================================================
// CONSISTENCY
// ============================================================================

// Validate reports every referential inconsistency in the snapshot:
// dangling role/group references, overrides for missing groups, and
// mirror mismatches between User.GroupIDs and UserGroup.MemberIDs. A nil
// result means the snapshot is internally consistent.
func (s *Snapshot) Validate() []error {
	var problems []error
	for _, u := range s.Users {
		if s.RoleByID(u.RoleID) == nil {
			problems = append(problems, NewError(ErrUnknownRole, "user has dangling role reference").
				WithUser(u.ID).WithRole(u.RoleID))
		}
		for _, gid := range u.GroupIDs {
			g := s.GroupByID(gid)
			if g == nil {
				problems = append(problems, NewError(ErrUnknownGroup, "user has dangling group reference").
					WithUser(u.ID).WithGroup(gid))
			} else if !g.HasMember(u.ID) {
				problems = append(problems, NewError(ErrUnknownUser, "membership mirror out of sync").
					WithUser(u.ID).WithGroup(gid))
			}
		}
	}
	for _, g := range s.Groups {
		for _, uid := range g.MemberIDs {
			u := s.UserByID(uid)
			if u == nil {
				problems = append(problems, NewError(ErrUnknownUser, "group has dangling member reference").
					WithGroup(g.ID).WithUser(uid))
			} else if !u.InGroup(g.ID) {
				problems = append(problems, NewError(ErrUnknownGroup, "membership mirror out of sync").
					WithGroup(g.ID).WithUser(uid))
			}
		}
	}
	for _, o := range s.Overrides {
		if s.GroupByID(o.GroupID) == nil {
			problems = append(problems, NewError(ErrUnknownGroup, "override references a deleted group").
				WithGroup(o.GroupID))
		}
	}
	return problems
}

// ============================================================================
// INTERNAL HELPERS
// ============================================================================

// syncUserMembership makes every group's member list agree with one
// user's group list.
func (s *Snapshot) syncUserMembership(userID string, groupIDs []string) {
	want := make(map[string]struct{}, len(groupIDs))
	for _, gid := range groupIDs {
		want[gid] = struct{}{}
	}
	for i := range s.Groups {
		g := &s.Groups[i]
		_, shouldHave := want[g.ID]
		has := g.HasMember(userID)
		switch {
		case shouldHave && !has:
			g.MemberIDs = append(g.MemberIDs, userID)
		case !shouldHave && has:
			g.MemberIDs = removeString(g.MemberIDs, userID)
		}
	}
}

// syncGroupMembership makes every user's group list agree with one
// group's member list.
func (s *Snapshot) syncGroupMembership(groupID string, memberIDs []string) {
	want := make(map[string]struct{}, len(memberIDs))
	for _, uid := range memberIDs {
		want[uid] = struct{}{}
	}
	for i := range s.Users {
		u := &s.Users[i]
		_, shouldHave := want[u.ID]
		has := u.InGroup(groupID)
		switch {
		case shouldHave && !has:
			u.GroupIDs = append(u.GroupIDs, groupID)
		case !shouldHave && has:
			u.GroupIDs = removeString(u.GroupIDs, groupID)
		}
	}
}

func removeString(list []string, value string) []string {
	out := list[:0]
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}

func deleteRole(roles []Role, id string) []Role {
	out := roles[:0]
	for _, r := range roles {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func deleteUser(users []User, id string) []User {
	out := users[:0]
	for _, u := range users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}

func deleteGroup(groups []UserGroup, id string) []UserGroup {
	out := groups[:0]
	for _, g := range groups {
		if g.ID != id {
			out = append(out, g)
		}
	}
	return out
}

func deleteOverride(overrides []GroupPermissionOverride, id string) []GroupPermissionOverride {
	out := overrides[:0]
	for _, o := range overrides {
		if o.ID != id {
			out = append(out, o)
		}
	}
	return out
}

func deleteOverridesForGroup(overrides []GroupPermissionOverride, groupID string) []GroupPermissionOverride {
	out := overrides[:0]
	for _, o := range overrides {
		if o.GroupID != groupID {
			out = append(out, o)
		}
	}
	return out
}

func touchRole(r *Role) {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}

func touchUser(u *User) {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}

func touchGroup(g *UserGroup) {
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
}

func touchOverride(o *GroupPermissionOverride) {
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
}
