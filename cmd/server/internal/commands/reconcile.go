package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/stocktide/stocktide/internal/identity"
	"github.com/stocktide/stocktide/internal/logger"
	"github.com/stocktide/stocktide/internal/tenantid"
)

const rekeyRetryDelay = 250 * time.Millisecond

// ReconcileCmd runs the migration and reconciliation pass for a single
// owner without waiting for their next sign-in. Intended for operators
// cleaning up after incidents.
type ReconcileCmd struct {
	PrincipalID string `arg:"" help:"Owner principal id to reconcile"`

	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (c *ReconcileCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	st, pool, err := postgresStores(ctx, c.PostgresStore)
	if err != nil {
		return err
	}
	defer pool.Close()

	profile, err := st.Profiles.Get(ctx, c.PrincipalID)
	if err != nil {
		return fmt.Errorf("failed to load profile %s: %w", c.PrincipalID, err)
	}

	if !profile.IsOwner() {
		return fmt.Errorf("principal %s is not a tenant owner", c.PrincipalID)
	}

	if tenantid.IsLegacy(profile.TenantID) {
		migrator := identity.NewMigrator(st.Profiles, st.Tenants, st.Dependents, st.Progress, rekeyRetryDelay)
		profile, err = migrator.Migrate(ctx, profile)
		if err != nil {
			return fmt.Errorf("failed to migrate tenant identifiers: %w", err)
		}
		log.Info().Str("tenant_id", profile.TenantID).Msg("Migrated legacy tenant identifier")
	}

	reconciler := identity.NewReconciler(st.Profiles, st.Tenants, st.Dependents, st.Progress, rekeyRetryDelay)
	removed, err := reconciler.Reconcile(ctx, profile.ID, profile.TenantID)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	log.Info().
		Str("principal_id", profile.ID).
		Str("tenant_id", profile.TenantID).
		Int("duplicates_removed", removed).
		Msg("Reconciliation complete")

	return nil
}
