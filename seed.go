package permkit

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// Seed inserts the three system roles if they are missing. With
// cfg.SeedDemoData it also loads a small demo data set (users, groups, an
// entity tree and a couple of overrides) for evaluation environments.
// Seed is idempotent: existing rows are left untouched.
func (s *Service) Seed(ctx context.Context, cfg Config) error {
	err := s.Transaction(ctx, func(ctx context.Context) error {
		for _, role := range SystemRoles() {
			touchRole(&role)
			result, err := s.db.NewInsert().Model(&role).
				On("CONFLICT (id) DO NOTHING").
				Exec(ctx)
			if err := dbkit.WithErr(result, err, "SeedSystemRole").Err(); err != nil {
				return NewError(ErrDatabaseError, "failed to seed system role").WithRole(role.ID)
			}
		}

		if !cfg.SeedDemoData {
			return nil
		}
		return s.seedDemoData(ctx)
	})
	if err != nil {
		return err
	}

	s.logMutation(ctx, "seed completed", slog.Bool("demo_data", cfg.SeedDemoData))
	return nil
}

func (s *Service) seedDemoData(ctx context.Context) error {
	users := []User{
		{ID: "user-1", FirstName: "Ana", LastName: "Ferreira", Email: "ana.ferreira@example.com", Function: "Head of Engineering", RoleID: RoleIDAdmin, GroupIDs: []string{"group-3"}},
		{ID: "user-2", FirstName: "Miguel", LastName: "Santos", Email: "miguel.santos@example.com", Function: "Project Manager", RoleID: RoleIDUser, GroupIDs: []string{"group-1", "group-3"}},
		{ID: "user-3", FirstName: "Sofia", LastName: "Almeida", Email: "sofia.almeida@example.com", Function: "Design Engineer", RoleID: RoleIDUser, GroupIDs: []string{"group-1"}},
		{ID: "user-4", FirstName: "Pedro", LastName: "Costa", Email: "pedro.costa@example.com", Function: "External Auditor", RoleID: RoleIDViewer, GroupIDs: []string{"group-2"}},
		{ID: "user-5", FirstName: "Ines", LastName: "Rodrigues", Email: "ines.rodrigues@example.com", Function: "Investment Analyst", RoleID: RoleIDViewer, GroupIDs: []string{"group-2"}},
	}

	groups := []UserGroup{
		{ID: "group-1", Name: "Project Alpha Team", Description: "Core team working on Project Alpha development and implementation", MemberIDs: []string{"user-2", "user-3"}},
		{ID: "group-2", Name: "External Reviewers", Description: "External stakeholders with review and audit access", MemberIDs: []string{"user-4", "user-5"}},
		{ID: "group-3", Name: "Design Leads", Description: "Senior design and engineering leadership team", MemberIDs: []string{"user-1", "user-2"}},
	}

	overrides := []GroupPermissionOverride{
		{
			ID:          "override-1",
			GroupID:     "group-1",
			EntityType:  EntityTypeDesigns,
			Scope:       ScopeAll,
			Permissions: Grant(ActionCreate, ActionUpdate),
		},
		{
			ID:                "override-2",
			GroupID:           "group-2",
			EntityType:        EntityTypeFinancialModels,
			Scope:             ScopeSpecific,
			SpecificEntityIDs: []string{"project-3-model-1"},
			Permissions:       Grant(ActionRead).With(ActionUpdate, false).With(ActionDelete, false),
		},
	}

	for _, g := range groups {
		touchGroup(&g)
		result, err := s.db.NewInsert().Model(&g).On("CONFLICT (id) DO NOTHING").Exec(ctx)
		if err := dbkit.WithErr(result, err, "SeedGroup").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to seed group").WithGroup(g.ID)
		}
	}

	for _, u := range users {
		touchUser(&u)
		result, err := s.db.NewInsert().Model(&u).On("CONFLICT (id) DO NOTHING").Exec(ctx)
		if err := dbkit.WithErr(result, err, "SeedUser").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to seed user").WithUser(u.ID)
		}
	}

	for _, o := range overrides {
		touchOverride(&o)
		result, err := s.db.NewInsert().Model(&o).On("CONFLICT (id) DO NOTHING").Exec(ctx)
		if err := dbkit.WithErr(result, err, "SeedOverride").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to seed override").WithGroup(o.GroupID)
		}
	}

	entities := flattenEntities(DemoEntityTree(), "")
	fresh := make([]*Entity, 0, len(entities))
	for i := range entities {
		exists, err := dbkit.Exists[Entity](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("id = ?", entities[i].ID)
		})
		if err != nil {
			return err
		}
		if !exists {
			fresh = append(fresh, &entities[i])
		}
	}
	if len(fresh) > 0 {
		if _, err := dbkit.BatchInsert(ctx, s.db, fresh, dbkit.BatchSize); err != nil {
			return NewError(ErrDatabaseError, "failed to seed entities")
		}
	}

	return nil
}

// DemoEntityTree returns the demo project hierarchy: three solar projects
// with files, financial models, designs and design annotations.
func DemoEntityTree() []*Entity {
	return []*Entity{
		{
			ID: "project-1", Type: EntityTypeProjects, Name: "Solar Farm Alentejo",
			Children: []*Entity{
				{ID: "project-1-file-1", Type: EntityTypeProjectFiles, Name: "Site Analysis Report.pdf"},
				{ID: "project-1-file-2", Type: EntityTypeProjectFiles, Name: "Environmental Impact Study.pdf"},
				{ID: "project-1-model-1", Type: EntityTypeFinancialModels, Name: "ROI Projection Q1-Q4 2025"},
				{
					ID: "project-1-design-1", Type: EntityTypeDesigns, Name: "Array Layout Design v3",
					Children: []*Entity{
						{ID: "project-1-design-1-file-1", Type: EntityTypeDesignFiles, Name: "array-layout-v3.dwg"},
						{ID: "project-1-design-1-file-2", Type: EntityTypeDesignFiles, Name: "electrical-schematic.pdf"},
						{ID: "project-1-design-1-comment-1", Type: EntityTypeDesignComments, Name: "Review: Optimize spacing for maintenance access"},
					},
				},
			},
		},
		{
			ID: "project-2", Type: EntityTypeProjects, Name: "Rooftop Porto Industrial",
			Children: []*Entity{
				{ID: "project-2-file-1", Type: EntityTypeProjectFiles, Name: "Structural Assessment.pdf"},
				{ID: "project-2-model-1", Type: EntityTypeFinancialModels, Name: "Cost-Benefit Analysis 2025"},
				{
					ID: "project-2-design-1", Type: EntityTypeDesigns, Name: "Rooftop Integration Design v2",
					Children: []*Entity{
						{ID: "project-2-design-1-file-1", Type: EntityTypeDesignFiles, Name: "rooftop-layout.pdf"},
						{ID: "project-2-design-1-comment-1", Type: EntityTypeDesignComments, Name: "Approved with minor adjustments"},
					},
				},
			},
		},
		{
			ID: "project-3", Type: EntityTypeProjects, Name: "Floating PV Alqueva",
			Children: []*Entity{
				{ID: "project-3-file-1", Type: EntityTypeProjectFiles, Name: "Hydrology Study.pdf"},
				{ID: "project-3-file-2", Type: EntityTypeProjectFiles, Name: "Anchoring System Specs.pdf"},
				{ID: "project-3-model-1", Type: EntityTypeFinancialModels, Name: "Investment Model 10-Year"},
				{
					ID: "project-3-design-1", Type: EntityTypeDesigns, Name: "Floating Platform Design v1",
					Children: []*Entity{
						{ID: "project-3-design-1-file-1", Type: EntityTypeDesignFiles, Name: "floating-platform-cad.dwg"},
						{ID: "project-3-design-1-file-2", Type: EntityTypeDesignFiles, Name: "mooring-details.pdf"},
						{ID: "project-3-design-1-comment-1", Type: EntityTypeDesignComments, Name: "Pending: Wave load calculations"},
						{ID: "project-3-design-1-comment-2", Type: EntityTypeDesignComments, Name: "Consider alternative anchoring method"},
					},
				},
			},
		},
	}
}

// flattenEntities walks a tree depth-first and returns flat rows with
// parent ids filled in.
func flattenEntities(tree []*Entity, parentID string) []Entity {
	var out []Entity
	for _, node := range tree {
		row := *node
		row.ParentID = parentID
		row.Children = nil
		if row.CreatedAt.IsZero() {
			row.CreatedAt = nowUTC()
		}
		out = append(out, row)
		out = append(out, flattenEntities(node.Children, node.ID)...)
	}
	return out
}
