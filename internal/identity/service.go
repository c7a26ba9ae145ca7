package identity

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/store"
	"github.com/stocktide/stocktide/internal/telemetry"
	"github.com/stocktide/stocktide/internal/tenantid"
)

// Service drives the session resolution state machine:
//
//	SESSION_EVENT -> RESOLVING -> FOUND -> DONE
//	                           -> NOT_FOUND -> HEALING -> DONE | FALLBACK
//	                           -> transient -> bounded retries -> FALLBACK
//	                           -> schema error -> SURFACED
//
// A FOUND resolution additionally triggers the opportunistic migration and
// reconciliation sub-sequence; its failures never revert the already
// complete primary resolution.
type Service struct {
	resolver   *Resolver
	healer     *Healer
	migrator   *Migrator
	reconciler *Reconciler
	tenants    store.TenantStore
	metrics    *telemetry.Metrics

	// coalesces concurrent resolutions per principal so two session events
	// in quick succession never run the healer twice
	inflight singleflight.Group
}

// Config carries the stores and tuning knobs the service is built from.
type Config struct {
	Profiles   store.ProfileStore
	Tenants    store.TenantStore
	Dependents store.DependentStore
	Progress   store.MigrationStore

	// Retry zero value means DefaultRetryPolicy.
	Retry RetryPolicy

	// RekeyRetryDelay is the pause between retries of a failed bulk
	// re-key step. Default 250ms.
	RekeyRetryDelay time.Duration
}

// NewService wires the resolver, healer, migrator and reconciler over the
// configured stores.
func NewService(cfg Config) *Service {
	if cfg.Retry.TransientDelays == nil && cfg.Retry.NotFoundRetries == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.RekeyRetryDelay == 0 {
		cfg.RekeyRetryDelay = 250 * time.Millisecond
	}

	resolver := NewResolver(cfg.Profiles, cfg.Retry)

	return &Service{
		resolver:   resolver,
		healer:     NewHealer(cfg.Profiles, cfg.Tenants, resolver),
		migrator:   NewMigrator(cfg.Profiles, cfg.Tenants, cfg.Dependents, cfg.Progress, cfg.RekeyRetryDelay),
		reconciler: NewReconciler(cfg.Profiles, cfg.Tenants, cfg.Dependents, cfg.Progress, cfg.RekeyRetryDelay),
		tenants:    cfg.Tenants,
		metrics:    telemetry.GetMetrics(),
	}
}

// Resolve turns a session event into a ResolvedIdentity. It never returns
// an error for a valid session except a *SchemaError, which requires an
// operator; every other failure degrades to the fallback identity. Late
// concurrent calls for the same principal await the in-flight resolution
// instead of starting a second one.
func (s *Service) Resolve(ctx context.Context, event *models.SessionEvent) (*ResolvedIdentity, error) {
	started := time.Now()

	v, err, shared := s.inflight.Do(event.PrincipalID, func() (any, error) {
		return s.resolveOnce(ctx, event)
	})

	s.metrics.ResolutionDuration.Record(ctx, float64(time.Since(started).Milliseconds()))

	if err != nil {
		s.metrics.ResolutionErrorsTotal.Add(ctx, 1)
		return nil, err
	}

	if shared {
		log.Debug().
			Str("principal_id", event.PrincipalID).
			Msg("Joined in-flight resolution")
	}

	s.metrics.ResolutionsTotal.Add(ctx, 1)
	return v.(*ResolvedIdentity), nil
}

func (s *Service) resolveOnce(ctx context.Context, event *models.SessionEvent) (*ResolvedIdentity, error) {
	profile, err := s.resolver.Resolve(ctx, event.PrincipalID)

	switch {
	case err == nil:
		return s.complete(ctx, event, profile)

	case errors.Is(err, store.ErrProfileNotFound):
		return s.heal(ctx, event)

	case IsSchema(err):
		// Operator-actionable: the deployment is broken, not the session.
		log.Error().Err(err).Str("principal_id", event.PrincipalID).Msg("Profile collection missing")
		return nil, err

	case IsTransient(err):
		// Retry budget exhausted. The caller may surface "try again" via
		// the advisory, but still gets a usable identity.
		fallback := BuildFallback(event)
		fallback.Advisory = err
		s.metrics.FallbacksTotal.Add(ctx, 1)
		return fallback, nil

	default:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error().Err(err).Str("principal_id", event.PrincipalID).Msg("Unclassified resolution failure")
		fallback := BuildFallback(event)
		fallback.Advisory = err
		s.metrics.FallbacksTotal.Add(ctx, 1)
		return fallback, nil
	}
}

// heal reconstructs the missing profile, falling back to a degraded
// identity when healing is inapplicable or fails.
func (s *Service) heal(ctx context.Context, event *models.SessionEvent) (*ResolvedIdentity, error) {
	if !event.HasSignupMetadata() {
		s.metrics.FallbacksTotal.Add(ctx, 1)
		return BuildFallback(event), nil
	}

	profile, tenant, err := s.healer.Heal(ctx, event)
	if err != nil {
		if IsConflict(Classify(err)) {
			s.metrics.HealConflictsTotal.Add(ctx, 1)
		}
		log.Warn().Err(err).Str("principal_id", event.PrincipalID).Msg("Heal failed, degrading to fallback")
		fallback := BuildFallback(event)
		fallback.Advisory = err
		s.metrics.FallbacksTotal.Add(ctx, 1)
		return fallback, nil
	}

	s.metrics.HealsTotal.Add(ctx, 1)

	identity := &ResolvedIdentity{Profile: profile, Tenant: tenant}
	s.normalize(ctx, event, identity)
	return identity, nil
}

// complete loads the tenant for a found profile and runs the opportunistic
// normalization pass.
func (s *Service) complete(ctx context.Context, event *models.SessionEvent, profile *models.Profile) (*ResolvedIdentity, error) {
	tenant, err := s.tenants.Get(ctx, profile.TenantID)
	if err != nil {
		classified := Classify(err)
		if IsSchema(classified) {
			return nil, classified
		}
		// A profile pointing at a missing or unreadable tenant record is a
		// broken mapping the store cannot explain; hand out the degraded
		// view rather than an error.
		log.Warn().
			Err(err).
			Str("principal_id", profile.ID).
			Str("tenant_id", profile.TenantID).
			Msg("Profile references unreadable tenant, degrading to fallback")
		fallback := BuildFallback(event)
		fallback.Advisory = classified
		s.metrics.FallbacksTotal.Add(ctx, 1)
		return fallback, nil
	}

	identity := &ResolvedIdentity{Profile: profile, Tenant: tenant}
	s.normalize(ctx, event, identity)
	return identity, nil
}

// normalize runs the migration and reconciliation sub-sequence after a
// successful resolution. It mutates the identity in place on success and
// records non-fatal conditions in the advisory; it never fails the
// resolution.
func (s *Service) normalize(ctx context.Context, event *models.SessionEvent, identity *ResolvedIdentity) {
	profile := identity.Profile

	if tenantid.IsLegacy(profile.TenantID) {
		if !profile.IsOwner() {
			// Non-owners cannot self-migrate; surface the condition without
			// blocking their resolution.
			identity.Advisory = &PermissionError{Op: "migrate tenant identifiers", Role: profile.Role}
			log.Warn().
				Str("principal_id", profile.ID).
				Str("tenant_id", profile.TenantID).
				Msg("Legacy tenant requires migration by its owner")
			return
		}

		migrated, err := s.migrator.Migrate(ctx, profile)
		if err != nil {
			var perm *PermissionError
			if errors.As(err, &perm) {
				identity.Advisory = perm
				return
			}
			s.metrics.MigrationsPartialTotal.Add(ctx, 1)
			log.Warn().Err(err).Str("principal_id", profile.ID).Msg("Migration incomplete, will resume on next pass")
		} else {
			s.metrics.MigrationsTotal.Add(ctx, 1)
		}

		identity.Profile = migrated
		if tenant, terr := s.tenants.Get(ctx, migrated.TenantID); terr == nil {
			identity.Tenant = tenant
		}
		profile = migrated
	}

	if !profile.IsOwner() || !tenantid.IsCanonical(profile.TenantID) {
		return
	}

	removed, err := s.reconciler.Reconcile(ctx, profile.ID, profile.TenantID)
	s.metrics.ReconciliationsTotal.Add(ctx, 1)
	if removed > 0 {
		s.metrics.OrphansRemovedTotal.Add(ctx, int64(removed))
	}
	if err != nil {
		log.Warn().Err(err).Str("principal_id", profile.ID).Msg("Reconciliation incomplete, will resume on next pass")
	}
}
