package permkit

import (
	"time"

	"github.com/uptrace/bun"
)

// Role is a named, complete permission grid: one PermissionSet per entity
// type. System roles (Admin, User, Viewer) are seeded, cannot be deleted
// and keep their names; their grids remain editable.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID          string                       `bun:"id,pk" json:"id"`
	Name        string                       `bun:"name,notnull" json:"name" validate:"required,max=80"`
	Description string                       `bun:"description" json:"description"`
	IsSystem    bool                         `bun:"is_system,notnull,default:false" json:"isSystem"`
	Permissions map[EntityType]PermissionSet `bun:"permissions,type:jsonb" json:"permissions" validate:"required"`
	CreatedAt   time.Time                    `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time                    `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// PermissionsFor returns the role's complete set for an entity type.
// A missing grid entry is an all-false set, never an error.
func (r *Role) PermissionsFor(t EntityType) PermissionSet {
	if r == nil || r.Permissions == nil {
		return NoAccess()
	}
	return r.Permissions[t]
}

// Clone returns a deep copy of the role.
func (r Role) Clone() Role {
	if r.Permissions != nil {
		perms := make(map[EntityType]PermissionSet, len(r.Permissions))
		for t, p := range r.Permissions {
			perms[t] = p
		}
		r.Permissions = perms
	}
	return r
}

// User is a managed account. Every user references exactly one role and
// any number of groups. GroupIDs mirrors UserGroup.MemberIDs; mutators
// keep both sides of the relationship in sync.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk" json:"id"`
	FirstName string    `bun:"first_name,notnull" json:"firstName" validate:"required,max=80"`
	LastName  string    `bun:"last_name,notnull" json:"lastName" validate:"required,max=80"`
	Email     string    `bun:"email,notnull" json:"email" validate:"required,email"`
	Function  string    `bun:"function" json:"function" validate:"max=120"`
	RoleID    string    `bun:"role_id,notnull" json:"roleId" validate:"required"`
	GroupIDs  []string  `bun:"group_ids,array" json:"groupIds"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// FullName returns "First Last" for display.
func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// InGroup reports whether the user is a member of the given group.
func (u User) InGroup(groupID string) bool {
	for _, id := range u.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the user.
func (u User) Clone() User {
	u.GroupIDs = append([]string(nil), u.GroupIDs...)
	return u
}

// UserGroup is a named collection of users. Membership is many-to-many;
// MemberIDs is the authoritative side mirrored into User.GroupIDs.
type UserGroup struct {
	bun.BaseModel `bun:"table:user_groups,alias:g"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name" validate:"required,max=80"`
	Description string    `bun:"description" json:"description"`
	MemberIDs   []string  `bun:"member_ids,array" json:"memberIds"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// HasMember reports whether the group contains the given user.
func (g UserGroup) HasMember(userID string) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the group.
func (g UserGroup) Clone() UserGroup {
	g.MemberIDs = append([]string(nil), g.MemberIDs...)
	return g
}

// OverrideScope selects how a GroupPermissionOverride applies: to every
// instance of its entity type, or to an enumerated set of instances.
type OverrideScope string

const (
	// ScopeAll applies the override to every instance of the entity type.
	// All-scoped overrides merge with OR-union: they only ever add.
	ScopeAll OverrideScope = "all"

	// ScopeSpecific applies the override only to the instances listed in
	// SpecificEntityIDs. Specific overrides merge by overwrite and can
	// therefore also revoke what the role or an all-override grants.
	ScopeSpecific OverrideScope = "specific"
)

// GroupPermissionOverride adjusts CRUD permissions for one entity type on
// behalf of one group. Permissions is partial: absent actions are left
// untouched by the merge.
type GroupPermissionOverride struct {
	bun.BaseModel `bun:"table:permission_overrides,alias:po"`

	ID                string               `bun:"id,pk" json:"id"`
	GroupID           string               `bun:"group_id,notnull" json:"groupId" validate:"required"`
	EntityType        EntityType           `bun:"entity_type,notnull" json:"entityType" validate:"required"`
	Scope             OverrideScope        `bun:"scope,notnull" json:"scope" validate:"required,oneof=all specific"`
	SpecificEntityIDs []string             `bun:"specific_entity_ids,array" json:"specificEntityIds"`
	Permissions       PartialPermissionSet `bun:"permissions,type:jsonb" json:"permissions"`
	CreatedAt         time.Time            `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt         time.Time            `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// AppliesTo reports whether the override covers the given entity
// instance. All-scoped overrides cover every instance; specific-scoped
// overrides cover only the listed ones, and never cover an unspecified
// instance (empty entityID).
func (o GroupPermissionOverride) AppliesTo(entityID string) bool {
	if o.Scope == ScopeAll {
		return true
	}
	if entityID == "" {
		return false
	}
	for _, id := range o.SpecificEntityIDs {
		if id == entityID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the override.
func (o GroupPermissionOverride) Clone() GroupPermissionOverride {
	o.SpecificEntityIDs = append([]string(nil), o.SpecificEntityIDs...)
	o.Permissions = o.Permissions.Clone()
	return o
}

// AuditAction identifies the kind of mutation an audit entry records.
type AuditAction string

const (
	AuditActionCreated    AuditAction = "created"
	AuditActionUpdated    AuditAction = "updated"
	AuditActionDeleted    AuditAction = "deleted"
	AuditActionReassigned AuditAction = "reassigned"
)

// AuditTargetKind names the record kind an audit entry refers to.
type AuditTargetKind string

const (
	AuditTargetUser     AuditTargetKind = "user"
	AuditTargetGroup    AuditTargetKind = "group"
	AuditTargetRole     AuditTargetKind = "role"
	AuditTargetOverride AuditTargetKind = "override"
	AuditTargetEntity   AuditTargetKind = "entity"
)

// PermissionAuditLog records every administration mutation for compliance
// and debugging. It is append-only; PermKit never reads it back except
// through GetAuditLog.
type PermissionAuditLog struct {
	bun.BaseModel `bun:"table:permission_audit_log,alias:pal"`

	ID        string    `bun:"id,pk" json:"id"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp" json:"timestamp"`

	// Who performed the mutation
	ActorID string `bun:"actor_id,notnull" json:"actorId"`

	// What happened, to which record
	Action     string `bun:"action,notnull" json:"action"`
	TargetKind string `bun:"target_kind,notnull" json:"targetKind"`
	TargetID   string `bun:"target_id,notnull" json:"targetId"`

	// Additional context (cascaded ids, reassignment targets, ...)
	Detail map[string]any `bun:"detail,type:jsonb" json:"detail,omitempty"`

	// Request metadata for forensics
	IPAddress string `bun:"ip_address" json:"ipAddress,omitempty"`
	UserAgent string `bun:"user_agent" json:"userAgent,omitempty"`
	RequestID string `bun:"request_id" json:"requestId,omitempty"`
}

// AuditEntry is used to create new audit log entries.
type AuditEntry struct {
	ActorID    string
	Action     AuditAction
	TargetKind AuditTargetKind
	TargetID   string
	Detail     map[string]any
	IPAddress  string
	UserAgent  string
	RequestID  string
}

// ToModel converts an AuditEntry to a PermissionAuditLog model.
func (e *AuditEntry) ToModel() *PermissionAuditLog {
	return &PermissionAuditLog{
		ID:         NewID(),
		Timestamp:  time.Now().UTC(),
		ActorID:    e.ActorID,
		Action:     string(e.Action),
		TargetKind: string(e.TargetKind),
		TargetID:   e.TargetID,
		Detail:     e.Detail,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		RequestID:  e.RequestID,
	}
}
