package identity

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/tenantid"
)

// BuildFallback synthesizes a degraded identity from session metadata
// alone. It is the last-resort path when every persistence-based recovery
// failed or is inapplicable; it never touches the backing store and never
// fails, so an authenticated principal is never left without a usable
// identity.
func BuildFallback(event *models.SessionEvent) *ResolvedIdentity {
	role := event.RequestedRole()
	if role == "" {
		role = models.RoleOwner
	}

	now := time.Now()

	log.Warn().
		Str("principal_id", event.PrincipalID).
		Msg("Falling back to degraded session-only identity")

	return &ResolvedIdentity{
		Profile: &models.Profile{
			ID:          event.PrincipalID,
			TenantID:    tenantid.PendingSetup,
			Role:        role,
			DisplayName: event.DisplayName(),
			CreatedAt:   now,
		},
		Tenant: &models.Tenant{
			ID:               tenantid.PendingSetup,
			OwnerPrincipalID: event.PrincipalID,
			Name:             event.DisplayName(),
			Plan:             models.PlanFree,
			Status:           models.TenantStatusPendingSetup,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		Degraded: true,
	}
}
