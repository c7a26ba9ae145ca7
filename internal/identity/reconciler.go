package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/store"
)

// Reconciler collapses duplicate tenant records left behind by earlier,
// possibly incomplete, identifier migrations. For each duplicate it re-keys
// every dependent collection to the owner's canonical tenant and only then
// deletes the empty duplicate, so a crash mid-reconciliation leaves
// recoverable duplicate data rather than orphaned dependent records.
type Reconciler struct {
	tenants    store.TenantStore
	dependents store.DependentStore
	progress   store.MigrationStore
	rekey      *rekeyer
	now        func() time.Time
}

// NewReconciler creates a reconciler over the given stores.
func NewReconciler(profiles store.ProfileStore, tenants store.TenantStore, dependents store.DependentStore, progress store.MigrationStore, retryDelay time.Duration) *Reconciler {
	return &Reconciler{
		tenants:    tenants,
		dependents: dependents,
		progress:   progress,
		rekey: &rekeyer{
			profiles:   profiles,
			dependents: dependents,
			progress:   progress,
			retryDelay: retryDelay,
		},
		now: time.Now,
	}
}

// Reconcile finishes any unfinished migration for the owner, then merges
// every remaining duplicate tenant into canonicalID and removes it. It
// returns the number of duplicate tenant records removed. Run to
// completion it leaves exactly one tenant record per owner and zero
// dependent records referencing a non-canonical id.
func (r *Reconciler) Reconcile(ctx context.Context, ownerPrincipalID, canonicalID string) (int, error) {
	var removed int

	// Resume unfinished migrations first; their markers already chose a
	// replacement id.
	markers, err := r.progress.ListIncompleteByOwner(ctx, ownerPrincipalID)
	if err != nil {
		return removed, Classify(err)
	}

	for _, marker := range markers {
		if marker.OldTenantID == canonicalID {
			// Never drain the canonical tenant itself.
			continue
		}
		if err := r.finish(ctx, marker); err != nil {
			return removed, err
		}
		removed++
	}

	// Collapse any remaining duplicates into the canonical tenant.
	owned, err := r.tenants.ListByOwner(ctx, ownerPrincipalID)
	if err != nil {
		return removed, Classify(err)
	}

	for _, tenant := range owned {
		if tenant.ID == canonicalID {
			continue
		}

		marker, err := r.progress.Get(ctx, tenant.ID)
		if errors.Is(err, store.ErrProgressNotFound) {
			marker = &store.MigrationProgress{
				OldTenantID:      tenant.ID,
				NewTenantID:      canonicalID,
				OwnerPrincipalID: ownerPrincipalID,
				Done:             make(map[string]bool),
				StartedAt:        r.now(),
			}
			if err := r.progress.Put(ctx, marker); err != nil {
				return removed, Classify(err)
			}
		} else if err != nil {
			return removed, Classify(err)
		}
		// A completed marker here means the migration finished but the
		// duplicate record survived a crash between re-key and delete;
		// finish skips straight to the delete.

		if err := r.finish(ctx, marker); err != nil {
			return removed, err
		}
		removed++
	}

	return removed, nil
}

// finish runs the remaining re-key steps of a marker, verifies the
// duplicate is empty, deletes it and completes the marker.
func (r *Reconciler) finish(ctx context.Context, marker *store.MigrationProgress) error {
	if !marker.Completed() {
		if err := r.rekey.run(ctx, marker); err != nil {
			return err
		}
	}

	// All re-keys are done; the duplicate must hold no dependent data
	// before it is deleted.
	for _, collection := range r.dependents.Collections() {
		count, err := r.dependents.Count(ctx, collection, marker.OldTenantID)
		if err != nil {
			return Classify(err)
		}
		if count > 0 {
			return fmt.Errorf("duplicate tenant %s still has %d %s records", marker.OldTenantID, count, collection)
		}
	}

	err := r.tenants.Delete(ctx, marker.OldTenantID)
	if err != nil && !errors.Is(err, store.ErrTenantNotFound) {
		return Classify(err)
	}

	if !marker.Completed() {
		if err := r.progress.Complete(ctx, marker.OldTenantID); err != nil {
			log.Warn().Err(err).Str("old_tenant_id", marker.OldTenantID).Msg("Failed to complete reconciliation marker")
		}
	}

	log.Info().
		Str("old_tenant_id", marker.OldTenantID).
		Str("new_tenant_id", marker.NewTenantID).
		Msg("Reconciled duplicate tenant")

	return nil
}
