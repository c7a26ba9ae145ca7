package identity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/store"
	"github.com/stocktide/stocktide/internal/tenantid"
)

type migratorFixture struct {
	migrator   *Migrator
	profiles   *store.MemoryProfileStore
	tenants    *store.MemoryTenantStore
	dependents store.DependentStore
	progress   *store.MemoryMigrationStore
}

func newMigratorFixture(dependents store.DependentStore) *migratorFixture {
	profiles := store.NewMemoryProfileStore()
	tenants := store.NewMemoryTenantStore()
	progress := store.NewMemoryMigrationStore()

	return &migratorFixture{
		migrator:   NewMigrator(profiles, tenants, dependents, progress, 0),
		profiles:   profiles,
		tenants:    tenants,
		dependents: dependents,
		progress:   progress,
	}
}

func TestMigrator_LegacyTenantFullyRekeyed(t *testing.T) {
	// Legacy tenant "BIZ-1700000000000" owned by P2 with 3 product
	// records. After migration every product references the new canonical
	// id and the old tenant record still exists until reconciliation.
	dependents := store.NewMemoryDependentStore()
	f := newMigratorFixture(dependents)
	ctx := context.Background()

	const legacyID = "BIZ-1700000000000"
	require.NoError(t, f.tenants.Create(ctx, &models.Tenant{
		ID:               legacyID,
		OwnerPrincipalID: "p2",
		Name:             "Legacy Mart",
		Plan:             models.PlanPro,
		Status:           models.TenantStatusActive,
		Settings:         map[string]string{"currency": "KES"},
		CreatedAt:        time.Now(),
	}))
	require.NoError(t, f.profiles.Create(ctx, &models.Profile{ID: "p2", TenantID: legacyID, Role: models.RoleOwner}))
	for i := 1; i <= 3; i++ {
		require.NoError(t, dependents.Add(store.CollectionProduct, fmt.Sprintf("prod-%d", i), legacyID))
	}

	profile, err := f.profiles.Get(ctx, "p2")
	require.NoError(t, err)

	migrated, err := f.migrator.Migrate(ctx, profile)
	require.NoError(t, err)
	require.True(t, tenantid.IsCanonical(migrated.TenantID))
	require.NotEqual(t, legacyID, migrated.TenantID)

	// All 3 products moved to the new id
	count, err := dependents.Count(ctx, store.CollectionProduct, migrated.TenantID)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	count, err = dependents.Count(ctx, store.CollectionProduct, legacyID)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	// Profile record was re-keyed too
	persisted, err := f.profiles.Get(ctx, "p2")
	require.NoError(t, err)
	require.Equal(t, migrated.TenantID, persisted.TenantID)

	// Replacement tenant copied plan and settings from the legacy record
	replacement, err := f.tenants.Get(ctx, migrated.TenantID)
	require.NoError(t, err)
	require.Equal(t, "Legacy Mart", replacement.Name)
	require.Equal(t, models.PlanPro, replacement.Plan)
	require.Equal(t, "KES", replacement.Settings["currency"])

	// The legacy tenant record remains until the reconciler removes it
	_, err = f.tenants.Get(ctx, legacyID)
	require.NoError(t, err)

	// Progress marker is complete
	marker, err := f.progress.Get(ctx, legacyID)
	require.NoError(t, err)
	require.True(t, marker.Completed())
}

func TestMigrator_IdempotentOnCanonicalID(t *testing.T) {
	f := newMigratorFixture(store.NewMemoryDependentStore())
	ctx := context.Background()

	profile := &models.Profile{ID: "p1", TenantID: tenantid.New(), Role: models.RoleOwner}

	migrated, err := f.migrator.Migrate(ctx, profile)
	require.NoError(t, err)
	require.Equal(t, profile.TenantID, migrated.TenantID)

	// No marker, no tenant writes
	_, err = f.progress.Get(ctx, profile.TenantID)
	require.ErrorIs(t, err, store.ErrProgressNotFound)
}

func TestMigrator_NonOwnerCannotMigrate(t *testing.T) {
	f := newMigratorFixture(store.NewMemoryDependentStore())
	ctx := context.Background()

	profile := &models.Profile{ID: "p1", TenantID: "BIZ-1700000000000", Role: models.RoleStaff}

	_, err := f.migrator.Migrate(ctx, profile)

	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	require.Equal(t, models.RoleStaff, perm.Role)
}

func TestMigrator_PartialFailureLeavesResumableMarker(t *testing.T) {
	dependents := &flakyDependentStore{
		MemoryDependentStore: store.NewMemoryDependentStore(),
		failingColl:          store.CollectionSaleRecord,
		failErr:              fmt.Errorf("write: %w", store.ErrUnavailable),
		failures:             10, // outlasts the per-step retry budget
	}
	f := newMigratorFixture(dependents)
	ctx := context.Background()

	const legacyID = "BIZ-1700000000000"
	require.NoError(t, f.tenants.Create(ctx, &models.Tenant{ID: legacyID, OwnerPrincipalID: "p2"}))
	require.NoError(t, f.profiles.Create(ctx, &models.Profile{ID: "p2", TenantID: legacyID, Role: models.RoleOwner}))
	require.NoError(t, dependents.Add(store.CollectionProduct, "prod-1", legacyID))
	require.NoError(t, dependents.Add(store.CollectionSaleRecord, "sale-1", legacyID))

	profile, err := f.profiles.Get(ctx, "p2")
	require.NoError(t, err)

	migrated, err := f.migrator.Migrate(ctx, profile)
	require.Error(t, err)

	// The in-memory profile already references the new id so the caller's
	// resolution is not blocked.
	require.True(t, tenantid.IsCanonical(migrated.TenantID))

	// The marker records the split state: products done, sales not.
	marker, markerErr := f.progress.Get(ctx, legacyID)
	require.NoError(t, markerErr)
	require.False(t, marker.Completed())
	require.True(t, marker.IsDone(store.CollectionProduct))
	require.False(t, marker.IsDone(store.CollectionSaleRecord))
	require.Equal(t, migrated.TenantID, marker.NewTenantID)
}

func TestMigrator_ResumeDoesNotMintSecondID(t *testing.T) {
	dependents := &flakyDependentStore{
		MemoryDependentStore: store.NewMemoryDependentStore(),
		failingColl:          store.CollectionSaleRecord,
		failErr:              fmt.Errorf("write: %w", store.ErrUnavailable),
		failures:             10,
	}
	f := newMigratorFixture(dependents)
	ctx := context.Background()

	const legacyID = "BIZ-1700000000000"
	require.NoError(t, f.tenants.Create(ctx, &models.Tenant{ID: legacyID, OwnerPrincipalID: "p2"}))
	require.NoError(t, f.profiles.Create(ctx, &models.Profile{ID: "p2", TenantID: legacyID, Role: models.RoleOwner}))
	require.NoError(t, dependents.Add(store.CollectionSaleRecord, "sale-1", legacyID))

	profile, err := f.profiles.Get(ctx, "p2")
	require.NoError(t, err)

	first, err := f.migrator.Migrate(ctx, profile)
	require.Error(t, err)

	// Let the flaky collection recover, then run again with the original
	// legacy profile.
	dependents.mu.Lock()
	dependents.failures = 0
	dependents.mu.Unlock()

	second, err := f.migrator.Migrate(ctx, &models.Profile{ID: "p2", TenantID: legacyID, Role: models.RoleOwner})
	require.NoError(t, err)
	require.Equal(t, first.TenantID, second.TenantID, "resumed migration must reuse the minted id")

	count, err := dependents.Count(ctx, store.CollectionSaleRecord, second.TenantID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	owned, err := f.tenants.ListByOwner(ctx, "p2")
	require.NoError(t, err)
	require.Len(t, owned, 2, "legacy record stays until reconciliation")
}
