package permkit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// skipBenchmarkIfNoDatabase skips the benchmark if database is not available
func skipBenchmarkIfNoDatabase(b *testing.B) (*Service, context.Context) {
	if !isDatabaseAvailable() {
		b.Skip("Database not available, skipping benchmark")
		return nil, nil
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		b.Fatalf("Failed to setup test database: %v", err)
	}

	return service, WithActorID(ctx, "bench-actor")
}

// benchSnapshot builds an in-memory state sized for resolution benchmarks:
// 50 users across 10 groups, 5 roles, 40 overrides (half all-scope, half
// targeting specific entities).
func benchSnapshot(b *testing.B) *Snapshot {
	b.Helper()
	snap := NewSnapshot()

	if err := snap.AddRole(
		NewRole("Editor").
			Grant(EntityTypeProjects, FullAccess()).
			Grant(EntityTypeDesigns, ReadOnly()).
			Build()); err != nil {
		b.Fatalf("Failed to add role: %v", err)
	}
	if err := snap.AddRole(NewRole("Annotator").GrantAll(ReadOnly()).Build()); err != nil {
		b.Fatalf("Failed to add role: %v", err)
	}

	for g := 0; g < 10; g++ {
		group := UserGroup{ID: fmt.Sprintf("group-%d", g), Name: fmt.Sprintf("Team %d", g)}
		if err := snap.AddGroup(group); err != nil {
			b.Fatalf("Failed to add group: %v", err)
		}
	}

	roleIDs := []string{RoleIDAdmin, RoleIDUser, RoleIDViewer}
	for u := 0; u < 50; u++ {
		user := User{
			ID:        fmt.Sprintf("user-%d", u),
			FirstName: "Bench",
			LastName:  fmt.Sprintf("User%d", u),
			Email:     fmt.Sprintf("bench-%d@example.com", u),
			RoleID:    roleIDs[u%len(roleIDs)],
			GroupIDs:  []string{fmt.Sprintf("group-%d", u%10), fmt.Sprintf("group-%d", (u+3)%10)},
		}
		if err := snap.AddUser(user); err != nil {
			b.Fatalf("Failed to add user: %v", err)
		}
	}

	types := AllEntityTypes()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		o := GroupPermissionOverride{
			ID:          fmt.Sprintf("override-%d", i),
			GroupID:     fmt.Sprintf("group-%d", i%10),
			EntityType:  types[i%len(types)],
			Scope:       ScopeAll,
			Permissions: Grant(ActionCreate, ActionUpdate),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if i%2 == 1 {
			o.Scope = ScopeSpecific
			o.SpecificEntityIDs = []string{fmt.Sprintf("entity-%d", i), fmt.Sprintf("entity-%d", i+100)}
			o.Permissions = Grant(ActionRead).With(ActionDelete, false)
		}
		if err := snap.AddOverride(o); err != nil {
			b.Fatalf("Failed to add override: %v", err)
		}
	}

	return snap
}

// ============================================================================
// Resolution Benchmarks (in-memory, no database required)
// ============================================================================

// BenchmarkResolve benchmarks a single type-level resolution
func BenchmarkResolve(b *testing.B) {
	snap := benchSnapshot(b)
	user := *snap.UserByID("user-7")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Resolve(user, EntityTypeDesigns, "", snap.Overrides, snap.Roles)
	}
}

// BenchmarkResolveWithEntityID benchmarks instance-level resolution
func BenchmarkResolveWithEntityID(b *testing.B) {
	snap := benchSnapshot(b)
	user := *snap.UserByID("user-7")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Resolve(user, EntityTypeDesigns, "entity-17", snap.Overrides, snap.Roles)
	}
}

// BenchmarkResolveAll benchmarks the full per-type grid for one user
func BenchmarkResolveAll(b *testing.B) {
	snap := benchSnapshot(b)
	user := *snap.UserByID("user-7")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ResolveAll(user, snap.Overrides, snap.Roles)
	}
}

// BenchmarkCheckerAllows benchmarks the checker fast path
func BenchmarkCheckerAllows(b *testing.B) {
	snap := benchSnapshot(b)
	checker, err := snap.Checker("user-7")
	if err != nil {
		b.Fatalf("Failed to build checker: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = checker.Allows(ActionUpdate, EntityTypeDesigns, "entity-17")
	}
}

// BenchmarkSnapshotClone benchmarks deep-copying the in-memory state
func BenchmarkSnapshotClone(b *testing.B) {
	snap := benchSnapshot(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = snap.Clone()
	}
}

// BenchmarkSnapshotValidate benchmarks the consistency sweep
func BenchmarkSnapshotValidate(b *testing.B) {
	snap := benchSnapshot(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = snap.Validate()
	}
}

// ============================================================================
// Memory Allocation Benchmarks
// ============================================================================

// BenchmarkResolveAllocs measures memory allocations for Resolve
func BenchmarkResolveAllocs(b *testing.B) {
	snap := benchSnapshot(b)
	user := *snap.UserByID("user-7")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Resolve(user, EntityTypeDesigns, "entity-17", snap.Overrides, snap.Roles)
	}
}

// BenchmarkResolveAllAllocs measures memory allocations for ResolveAll
func BenchmarkResolveAllAllocs(b *testing.B) {
	snap := benchSnapshot(b)
	user := *snap.UserByID("user-7")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ResolveAll(user, snap.Overrides, snap.Roles)
	}
}

// ============================================================================
// Service Benchmarks (database required)
// ============================================================================

// BenchmarkCreateRole benchmarks the CreateRole method
func BenchmarkCreateRole(b *testing.B) {
	service, ctx := skipBenchmarkIfNoDatabase(b)
	if service == nil {
		return
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		name := fmt.Sprintf("bench-role-%d-%d", time.Now().UnixNano(), i)
		_, err := service.CreateRole(ctx, NewRole(name).GrantAll(ReadOnly()).Build())
		if err != nil {
			b.Errorf("CreateRole failed: %v", err)
		}
	}
}

// BenchmarkCreateUser benchmarks the CreateUser method
func BenchmarkCreateUser(b *testing.B) {
	service, ctx := skipBenchmarkIfNoDatabase(b)
	if service == nil {
		return
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		suffix := fmt.Sprintf("%d-%d", time.Now().UnixNano(), i)
		_, err := service.CreateUser(ctx, User{
			FirstName: "Bench",
			LastName:  suffix,
			Email:     fmt.Sprintf("bench-%s@example.com", suffix),
			RoleID:    RoleIDViewer,
		})
		if err != nil {
			b.Errorf("CreateUser failed: %v", err)
		}
	}
}

// BenchmarkLoadSnapshot benchmarks reading the full state in one transaction
func BenchmarkLoadSnapshot(b *testing.B) {
	service, ctx := skipBenchmarkIfNoDatabase(b)
	if service == nil {
		return
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := service.LoadSnapshot(ctx)
		if err != nil {
			b.Errorf("LoadSnapshot failed: %v", err)
		}
	}
}

// BenchmarkResolveUser benchmarks a round-trip resolution through the service
func BenchmarkResolveUser(b *testing.B) {
	service, ctx := skipBenchmarkIfNoDatabase(b)
	if service == nil {
		return
	}

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	user, err := service.CreateUser(ctx, User{
		FirstName: "Bench",
		LastName:  suffix,
		Email:     fmt.Sprintf("bench-%s@example.com", suffix),
		RoleID:    RoleIDUser,
	})
	if err != nil {
		b.Fatalf("Failed to create user: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := service.ResolveUser(ctx, user.ID, EntityTypeProjects, "")
		if err != nil {
			b.Errorf("ResolveUser failed: %v", err)
		}
	}
}

// BenchmarkTransaction benchmarks transaction overhead
func BenchmarkTransaction(b *testing.B) {
	service, ctx := skipBenchmarkIfNoDatabase(b)
	if service == nil {
		return
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		name := fmt.Sprintf("bench-tx-role-%d-%d", time.Now().UnixNano(), i)
		err := service.Transaction(ctx, func(ctx context.Context) error {
			_, err := service.CreateRole(ctx, NewRole(name).GrantAll(NoAccess()).Build())
			return err
		})
		if err != nil {
			b.Errorf("Transaction failed: %v", err)
		}
	}
}

// BenchmarkConcurrentResolveUser benchmarks concurrent permission reads
func BenchmarkConcurrentResolveUser(b *testing.B) {
	service, ctx := skipBenchmarkIfNoDatabase(b)
	if service == nil {
		return
	}

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	user, err := service.CreateUser(ctx, User{
		FirstName: "Bench",
		LastName:  suffix,
		Email:     fmt.Sprintf("bench-%s@example.com", suffix),
		RoleID:    RoleIDViewer,
	})
	if err != nil {
		b.Fatalf("Failed to create user: %v", err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = service.ResolveUser(ctx, user.ID, EntityTypeDesigns, "")
		}
	})
}

// ============================================================================
// Health and Pool Benchmarks
// ============================================================================

// BenchmarkPing benchmarks the Ping method
func BenchmarkPing(b *testing.B) {
	service, ctx := skipBenchmarkIfNoDatabase(b)
	if service == nil {
		return
	}

	hs := NewHealthService(service)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := hs.Ping(ctx); err != nil {
			b.Errorf("Ping failed: %v", err)
		}
	}
}

// BenchmarkGetPoolStats benchmarks the GetPoolStats method
func BenchmarkGetPoolStats(b *testing.B) {
	service, _ := skipBenchmarkIfNoDatabase(b)
	if service == nil {
		return
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = service.GetPoolStats()
	}
}
