package permkit

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// ENTITY OPERATIONS
// ============================================================================

// GetEntity retrieves an entity by id.
func (s *Service) GetEntity(ctx context.Context, entityID string) (*Entity, error) {
	var entity Entity
	err := dbkit.WithErr1(s.db.NewSelect().Model(&entity).Where("id = ?", entityID).Scan(ctx), "GetEntity").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrUnknownEntity, "entity not found")
		}
		return nil, err
	}
	return &entity, nil
}

// ListEntities retrieves every entity ordered by type and name. Entities
// are the addressable targets for specific-scope overrides.
func (s *Service) ListEntities(ctx context.Context) ([]Entity, error) {
	var entities []Entity
	err := dbkit.WithErr1(s.db.NewSelect().Model(&entities).Order("type ASC", "name ASC").Scan(ctx), "ListEntities").Err()
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// ListEntitiesOfType retrieves the entities of one type.
func (s *Service) ListEntitiesOfType(ctx context.Context, entityType EntityType) ([]Entity, error) {
	if !ValidEntityType(entityType) {
		return nil, NewError(ErrInvalidEntityType, "unknown entity type").WithEntityType(entityType)
	}
	var entities []Entity
	err := dbkit.WithErr1(s.db.NewSelect().Model(&entities).
		Where("type = ?", string(entityType)).
		Order("name ASC").
		Scan(ctx), "ListEntitiesOfType").Err()
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// LoadEntityTree retrieves all entities and assembles the parent/child
// hierarchy in memory.
func (s *Service) LoadEntityTree(ctx context.Context) ([]*Entity, error) {
	entities, err := s.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	return BuildEntityTree(entities), nil
}

// CreateEntity registers a new entity. A non-empty parent must exist.
func (s *Service) CreateEntity(ctx context.Context, entity Entity) (*Entity, error) {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return nil, NewError(ErrNoActorID, "actor ID required for entity creation")
	}

	if !ValidEntityType(entity.Type) {
		return nil, NewError(ErrInvalidEntityType, "unknown entity type").WithEntityType(entity.Type)
	}
	if entity.ID == "" {
		entity.ID = NewID()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = nowUTC()
	}

	if err := s.validateStruct(&entity); err != nil {
		return nil, err
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		if entity.ParentID != "" {
			if _, err := s.GetEntity(ctx, entity.ParentID); err != nil {
				return err
			}
		}

		result, err := s.db.NewInsert().Model(&entity).Exec(ctx)
		if err := dbkit.WithErr(result, err, "CreateEntity").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to create entity")
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionCreated,
			TargetKind: AuditTargetEntity,
			TargetID:   entity.ID,
			Detail:     map[string]any{"type": string(entity.Type), "name": entity.Name},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logMutation(ctx, "entity created",
		slog.String("entity_id", entity.ID), slog.String("type", string(entity.Type)))
	return &entity, nil
}

// DeleteEntity removes an entity, its descendants, and every reference to
// the removed ids from specific-scope overrides. Overrides whose target
// list becomes empty are deleted rather than left unsatisfiable.
func (s *Service) DeleteEntity(ctx context.Context, entityID string) error {
	actorID := GetActorID(ctx)
	if actorID == "" {
		return NewError(ErrNoActorID, "actor ID required for entity deletion")
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		entity, err := s.GetEntity(ctx, entityID)
		if err != nil {
			return err
		}

		entities, err := s.ListEntities(ctx)
		if err != nil {
			return err
		}
		doomed := collectSubtreeIDs(entities, entityID)

		for _, id := range doomed {
			result, err := s.db.NewUpdate().Table("permission_overrides").
				Set("specific_entity_ids = array_remove(specific_entity_ids, ?)", id).
				Set("updated_at = current_timestamp").
				Where("? = ANY(specific_entity_ids)", id).
				Exec(ctx)
			if err := dbkit.WithErr(result, err, "ScrubOverrideTargets").Err(); err != nil {
				return NewError(ErrDatabaseError, "failed to scrub override targets")
			}
		}

		emptied, err := s.db.NewDelete().Table("permission_overrides").
			Where("scope = ? AND specific_entity_ids = '{}'", string(ScopeSpecific)).
			Exec(ctx)
		if err := dbkit.WithErr(emptied, err, "DropEmptyOverrides").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to drop emptied overrides")
		}

		result, err := s.db.NewDelete().Table("entities").Where("id IN (?)", bun.In(doomed)).Exec(ctx)
		if err := dbkit.WithErr(result, err, "DeleteEntity").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to delete entity")
		}

		return s.logAudit(ctx, &AuditEntry{
			ActorID:    actorID,
			Action:     AuditActionDeleted,
			TargetKind: AuditTargetEntity,
			TargetID:   entityID,
			Detail:     map[string]any{"name": entity.Name, "subtree": len(doomed)},
		})
	})
	if err != nil {
		return err
	}

	s.logMutation(ctx, "entity deleted", slog.String("entity_id", entityID))
	return nil
}

// collectSubtreeIDs returns entityID plus every transitive descendant.
func collectSubtreeIDs(entities []Entity, entityID string) []string {
	children := make(map[string][]string, len(entities))
	for _, e := range entities {
		if e.ParentID != "" {
			children[e.ParentID] = append(children[e.ParentID], e.ID)
		}
	}

	ids := []string{entityID}
	for i := 0; i < len(ids); i++ {
		ids = append(ids, children[ids[i]]...)
	}
	return ids
}
