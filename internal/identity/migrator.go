package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/store"
	"github.com/stocktide/stocktide/internal/tenantid"
)

// Migrator replaces legacy tenant identifiers with canonical ones.
// Identifiers are immutable once created in the backing store, so migration
// creates a fresh tenant record under the new id and re-keys every
// dependent collection; the legacy record stays behind until the
// reconciler removes it.
type Migrator struct {
	tenants  store.TenantStore
	progress store.MigrationStore
	rekey    *rekeyer
	now      func() time.Time
}

// NewMigrator creates a migrator over the given stores.
func NewMigrator(profiles store.ProfileStore, tenants store.TenantStore, dependents store.DependentStore, progress store.MigrationStore, retryDelay time.Duration) *Migrator {
	return &Migrator{
		tenants:  tenants,
		progress: progress,
		rekey: &rekeyer{
			profiles:   profiles,
			dependents: dependents,
			progress:   progress,
			retryDelay: retryDelay,
		},
		now: time.Now,
	}
}

// Migrate moves the profile's tenant to a canonical identifier. It is a
// no-op for an already-canonical id and returns a *PermissionError for
// non-owners, who cannot self-migrate. The returned profile references the
// new tenant id even when some re-key steps failed: the persisted progress
// marker makes the split state detectable, and the next reconciliation
// pass finishes the job.
func (m *Migrator) Migrate(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	if tenantid.IsCanonical(profile.TenantID) {
		return profile, nil
	}

	if !profile.IsOwner() {
		return profile, &PermissionError{Op: "migrate tenant identifiers", Role: profile.Role}
	}

	oldID := profile.TenantID

	// Resume a prior marker when present so a replacement id is only ever
	// minted once per legacy tenant.
	marker, err := m.progress.Get(ctx, oldID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrProgressNotFound):
		marker = &store.MigrationProgress{
			OldTenantID:      oldID,
			NewTenantID:      tenantid.New(),
			OwnerPrincipalID: profile.ID,
			Done:             make(map[string]bool),
			StartedAt:        m.now(),
		}
	default:
		return profile, Classify(err)
	}

	if err := m.ensureReplacementTenant(ctx, marker); err != nil {
		return profile, err
	}

	// Persist the marker before the first re-key so a crash mid-migration
	// leaves a detectable, resumable trail instead of a silent split.
	if err := m.progress.Put(ctx, marker); err != nil {
		return profile, Classify(err)
	}

	rekeyErr := m.rekey.run(ctx, marker)

	updated := *profile
	updated.TenantID = marker.NewTenantID

	if rekeyErr != nil {
		log.Warn().
			Err(rekeyErr).
			Str("old_tenant_id", oldID).
			Str("new_tenant_id", marker.NewTenantID).
			Msg("Tenant migration partially completed")
		return &updated, fmt.Errorf("tenant %s partially migrated to %s: %w", oldID, marker.NewTenantID, rekeyErr)
	}

	if err := m.progress.Complete(ctx, oldID); err != nil {
		log.Warn().Err(err).Str("old_tenant_id", oldID).Msg("Failed to complete migration marker")
	}

	log.Info().
		Str("old_tenant_id", oldID).
		Str("new_tenant_id", marker.NewTenantID).
		Str("principal_id", profile.ID).
		Msg("Migrated legacy tenant identifier")

	return &updated, nil
}

// ensureReplacementTenant creates the canonical tenant record, copying
// name, plan, status and settings from the legacy record when it still
// exists. A record already present under the new id (resumed run,
// concurrent migration) is left as is.
func (m *Migrator) ensureReplacementTenant(ctx context.Context, marker *store.MigrationProgress) error {
	if _, err := m.tenants.Get(ctx, marker.NewTenantID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrTenantNotFound) {
		return Classify(err)
	}

	now := m.now()
	replacement := &models.Tenant{
		ID:               marker.NewTenantID,
		OwnerPrincipalID: marker.OwnerPrincipalID,
		Plan:             models.PlanFree,
		Status:           models.TenantStatusActive,
		Settings:         models.DefaultSettings(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	legacy, err := m.tenants.Get(ctx, marker.OldTenantID)
	switch {
	case err == nil:
		replacement.Name = legacy.Name
		replacement.Plan = legacy.Plan
		replacement.Status = legacy.Status
		replacement.OwnerPrincipalID = legacy.OwnerPrincipalID
		if legacy.Settings != nil {
			replacement.Settings = legacy.Clone().Settings
		}
	case errors.Is(err, store.ErrTenantNotFound):
		// Legacy record already gone; defaults stand.
	default:
		return Classify(err)
	}

	if err := m.tenants.Create(ctx, replacement); err != nil {
		classified := Classify(err)
		if IsConflict(classified) {
			return nil
		}
		return classified
	}

	return nil
}
