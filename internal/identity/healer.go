package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/store"
	"github.com/stocktide/stocktide/internal/tenantid"
)

// Healer reconstructs a missing profile/tenant pair for an authenticated
// principal. Crashed signups leave partial state behind (a tenant without a
// profile, or neither); the healer completes whatever is missing without
// ever creating a second tenant for the same principal.
type Healer struct {
	profiles store.ProfileStore
	tenants  store.TenantStore
	resolver *Resolver
	now      func() time.Time
}

// NewHealer creates a healer over the given stores. The resolver is used
// for the final re-read so callers see exactly what is persisted.
func NewHealer(profiles store.ProfileStore, tenants store.TenantStore, resolver *Resolver) *Healer {
	return &Healer{
		profiles: profiles,
		tenants:  tenants,
		resolver: resolver,
		now:      time.Now,
	}
}

// Heal reconstructs the profile and tenant for the event's principal.
// Callers must have established that the profile is authoritatively absent
// and that the event carries signup metadata. On any write failure the
// error is returned so the caller can fall back to a degraded identity.
func (h *Healer) Heal(ctx context.Context, event *models.SessionEvent) (*models.Profile, *models.Tenant, error) {
	tenant, err := h.findOrCreateTenant(ctx, event)
	if err != nil {
		return nil, nil, err
	}

	profile := &models.Profile{
		ID:          event.PrincipalID,
		TenantID:    tenant.ID,
		Role:        event.RequestedRole(),
		DisplayName: event.DisplayName(),
		CreatedAt:   h.now(),
	}
	if profile.Role == "" {
		profile.Role = models.RoleOwner
	}

	err = h.profiles.Create(ctx, profile)
	if err != nil {
		classified := Classify(err)
		if !IsConflict(classified) {
			return nil, nil, classified
		}
		// A concurrent heal or the original signup flow committed first.
		// The re-read below returns whatever won.
		log.Info().
			Str("principal_id", event.PrincipalID).
			Msg("Profile already created concurrently, re-reading")
	} else {
		log.Info().
			Str("principal_id", event.PrincipalID).
			Str("tenant_id", tenant.ID).
			Msg("Healed missing profile")
	}

	// Re-resolve once so the caller sees the persisted record, not the
	// locally constructed one.
	persisted, err := h.resolver.Resolve(ctx, event.PrincipalID)
	if err != nil {
		return nil, nil, fmt.Errorf("re-read after heal: %w", err)
	}

	if persisted.TenantID != tenant.ID {
		// The concurrent writer linked a different tenant; follow it.
		tenant, err = h.tenants.Get(ctx, persisted.TenantID)
		if err != nil {
			return nil, nil, Classify(err)
		}
	}

	return persisted, tenant, nil
}

// findOrCreateTenant reuses a tenant already owned by the principal, or
// mints a canonical one. Preference goes to a canonical tenant when both
// canonical and legacy records exist; the reconciler collapses the rest.
func (h *Healer) findOrCreateTenant(ctx context.Context, event *models.SessionEvent) (*models.Tenant, error) {
	owned, err := h.tenants.ListByOwner(ctx, event.PrincipalID)
	if err != nil {
		return nil, Classify(err)
	}

	if len(owned) > 0 {
		for _, t := range owned {
			if tenantid.IsCanonical(t.ID) {
				return t, nil
			}
		}
		return owned[0], nil
	}

	name := event.Metadata[models.MetaBusinessName]
	if name == "" {
		name = event.DisplayName()
	}

	now := h.now()
	tenant := &models.Tenant{
		ID:               tenantid.New(),
		OwnerPrincipalID: event.PrincipalID,
		Name:             name,
		Plan:             models.PlanFree,
		Status:           models.TenantStatusActive,
		Settings:         models.DefaultSettings(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.tenants.Create(ctx, tenant); err != nil {
		return nil, Classify(err)
	}

	log.Info().
		Str("principal_id", event.PrincipalID).
		Str("tenant_id", tenant.ID).
		Msg("Created tenant during heal")

	return tenant, nil
}
