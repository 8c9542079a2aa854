package permkit

// PermissionAction identifies one of the four CRUD actions.
type PermissionAction string

const (
	ActionCreate PermissionAction = "create"
	ActionRead   PermissionAction = "read"
	ActionUpdate PermissionAction = "update"
	ActionDelete PermissionAction = "delete"
)

// Actions returns the four CRUD actions in canonical order.
func Actions() []PermissionAction {
	return []PermissionAction{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
}

// ValidAction reports whether s names a known CRUD action.
func ValidAction(s PermissionAction) bool {
	switch s {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// PermissionSet is a complete CRUD grant: all four actions are always
// present. The four booleans are independent; there is no ordering or
// implication among them.
type PermissionSet struct {
	Create bool `json:"create"`
	Read   bool `json:"read"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

// FullAccess returns a PermissionSet with every action granted.
func FullAccess() PermissionSet {
	return PermissionSet{Create: true, Read: true, Update: true, Delete: true}
}

// ReadOnly returns a PermissionSet granting only read.
func ReadOnly() PermissionSet {
	return PermissionSet{Read: true}
}

// NoAccess returns the all-false PermissionSet. It is the resolution
// floor: unknown roles and missing grid entries resolve to it.
func NoAccess() PermissionSet {
	return PermissionSet{}
}

// Allows reports whether the set grants the given action.
// Unknown actions are never allowed.
func (p PermissionSet) Allows(action PermissionAction) bool {
	switch action {
	case ActionCreate:
		return p.Create
	case ActionRead:
		return p.Read
	case ActionUpdate:
		return p.Update
	case ActionDelete:
		return p.Delete
	}
	return false
}

// IsZero reports whether no action is granted.
func (p PermissionSet) IsZero() bool {
	return !p.Create && !p.Read && !p.Update && !p.Delete
}

// Contains reports whether p grants at least everything other grants.
func (p PermissionSet) Contains(other PermissionSet) bool {
	return (p.Create || !other.Create) &&
		(p.Read || !other.Read) &&
		(p.Update || !other.Update) &&
		(p.Delete || !other.Delete)
}

// PartialPermissionSet carries only the actions an override speaks to.
// A nil field means the override leaves that action untouched, which is
// different from an explicit false (a revocation under overwrite merging).
type PartialPermissionSet struct {
	Create *bool `json:"create,omitempty"`
	Read   *bool `json:"read,omitempty"`
	Update *bool `json:"update,omitempty"`
	Delete *bool `json:"delete,omitempty"`
}

// Grant returns a partial set that explicitly allows the given actions.
func Grant(actions ...PermissionAction) PartialPermissionSet {
	return partial(true, actions)
}

// Revoke returns a partial set that explicitly denies the given actions.
// Revocations only take effect under overwrite merging (specific scope);
// union merging ignores explicit false values by construction.
func Revoke(actions ...PermissionAction) PartialPermissionSet {
	return partial(false, actions)
}

func partial(value bool, actions []PermissionAction) PartialPermissionSet {
	var p PartialPermissionSet
	for _, a := range actions {
		v := value
		switch a {
		case ActionCreate:
			p.Create = &v
		case ActionRead:
			p.Read = &v
		case ActionUpdate:
			p.Update = &v
		case ActionDelete:
			p.Delete = &v
		}
	}
	return p
}

// With returns a copy of the partial set with one more action pinned to
// the given value.
func (p PartialPermissionSet) With(action PermissionAction, value bool) PartialPermissionSet {
	v := value
	switch action {
	case ActionCreate:
		p.Create = &v
	case ActionRead:
		p.Read = &v
	case ActionUpdate:
		p.Update = &v
	case ActionDelete:
		p.Delete = &v
	}
	return p
}

// IsEmpty reports whether the partial set speaks to no action at all.
func (p PartialPermissionSet) IsEmpty() bool {
	return p.Create == nil && p.Read == nil && p.Update == nil && p.Delete == nil
}

// UnionInto merges the partial set into effective using OR per present
// action. This is the merge strategy for "all"-scoped overrides: they can
// only add permissions, never remove them.
func (p PartialPermissionSet) UnionInto(effective *PermissionSet) {
	if p.Create != nil {
		effective.Create = effective.Create || *p.Create
	}
	if p.Read != nil {
		effective.Read = effective.Read || *p.Read
	}
	if p.Update != nil {
		effective.Update = effective.Update || *p.Update
	}
	if p.Delete != nil {
		effective.Delete = effective.Delete || *p.Delete
	}
}

// OverwriteInto merges the partial set into effective by direct
// assignment per present action. This is the merge strategy for
// "specific"-scoped overrides: they can both grant and revoke.
func (p PartialPermissionSet) OverwriteInto(effective *PermissionSet) {
	if p.Create != nil {
		effective.Create = *p.Create
	}
	if p.Read != nil {
		effective.Read = *p.Read
	}
	if p.Update != nil {
		effective.Update = *p.Update
	}
	if p.Delete != nil {
		effective.Delete = *p.Delete
	}
}

// Clone returns a deep copy of the partial set.
func (p PartialPermissionSet) Clone() PartialPermissionSet {
	var out PartialPermissionSet
	if p.Create != nil {
		v := *p.Create
		out.Create = &v
	}
	if p.Read != nil {
		v := *p.Read
		out.Read = &v
	}
	if p.Update != nil {
		v := *p.Update
		out.Update = &v
	}
	if p.Delete != nil {
		v := *p.Delete
		out.Delete = &v
	}
	return out
}
