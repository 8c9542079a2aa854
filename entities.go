package permkit

import (
	"time"

	"github.com/uptrace/bun"
)

// EntityType is a closed enumeration of the resource kinds the permission
// grid covers. It is a flat tag; hierarchy among entity instances is a
// property of Entity records, not of their types.
type EntityType string

const (
	EntityTypeWorkspaces      EntityType = "workspaces"
	EntityTypeProjects        EntityType = "projects"
	EntityTypeProjectFiles    EntityType = "project_files"
	EntityTypeFinancialModels EntityType = "financial_models"
	EntityTypeDesigns         EntityType = "designs"
	EntityTypeDesignFiles     EntityType = "design_files"
	EntityTypeDesignComments  EntityType = "design_comments"
	EntityTypeUserManagement  EntityType = "user_management"
)

// AllEntityTypes returns every entity type in canonical display order.
// ResolveAll produces one entry per element of this slice.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityTypeWorkspaces,
		EntityTypeProjects,
		EntityTypeProjectFiles,
		EntityTypeFinancialModels,
		EntityTypeDesigns,
		EntityTypeDesignFiles,
		EntityTypeDesignComments,
		EntityTypeUserManagement,
	}
}

// ValidEntityType reports whether t is part of the closed enumeration.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityTypeWorkspaces, EntityTypeProjects, EntityTypeProjectFiles,
		EntityTypeFinancialModels, EntityTypeDesigns, EntityTypeDesignFiles,
		EntityTypeDesignComments, EntityTypeUserManagement:
		return true
	}
	return false
}

// Label returns a human-readable name for the entity type.
func (t EntityType) Label() string {
	switch t {
	case EntityTypeWorkspaces:
		return "Workspaces"
	case EntityTypeProjects:
		return "Projects"
	case EntityTypeProjectFiles:
		return "Project Files"
	case EntityTypeFinancialModels:
		return "Financial Models"
	case EntityTypeDesigns:
		return "Designs"
	case EntityTypeDesignFiles:
		return "Design Files"
	case EntityTypeDesignComments:
		return "Design Comments"
	case EntityTypeUserManagement:
		return "User Management"
	}
	return string(t)
}

// Entity is a node in the entity instance hierarchy
// (projects → files/models/designs → design files/comments).
// The resolver never traverses this tree; it exists as the universe of
// valid targets for "specific" overrides and for display.
type Entity struct {
	bun.BaseModel `bun:"table:entities,alias:e"`

	ID        string     `bun:"id,pk" json:"id"`
	Type      EntityType `bun:"type,notnull" json:"type"`
	Name      string     `bun:"name,notnull" json:"name"`
	ParentID  string     `bun:"parent_id" json:"parentId,omitempty"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`

	// Children is populated by BuildEntityTree; it is not a stored column.
	Children []*Entity `bun:"-" json:"children,omitempty"`
}

// BuildEntityTree assembles flat entity rows into their parent/child
// hierarchy and returns the roots. Rows whose ParentID does not match any
// entity in the input are treated as roots. The input slice is not
// modified; children order follows input order.
func BuildEntityTree(entities []Entity) []*Entity {
	nodes := make(map[string]*Entity, len(entities))
	order := make([]*Entity, 0, len(entities))
	for i := range entities {
		e := entities[i]
		e.Children = nil
		node := &e
		nodes[node.ID] = node
		order = append(order, node)
	}

	var roots []*Entity
	for _, node := range order {
		if node.ParentID != "" {
			if parent, ok := nodes[node.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// FindEntity walks a tree built by BuildEntityTree and returns the node
// with the given id, or nil.
func FindEntity(roots []*Entity, id string) *Entity {
	for _, root := range roots {
		if root.ID == id {
			return root
		}
		if found := FindEntity(root.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// EntityIDsOfType returns the ids of every entity of the given type, in
// input order. Callers use this to offer valid targets for "specific"
// overrides.
func EntityIDsOfType(entities []Entity, t EntityType) []string {
	var ids []string
	for _, e := range entities {
		if e.Type == t {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
