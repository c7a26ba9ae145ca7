package identity

import (
	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/tenantid"
)

// ResolvedIdentity is the tenant view handed to the rest of the
// application. It is always a complete profile/tenant pair; a degraded
// identity carries the pending-setup sentinel tenant and was built without
// touching the backing store.
type ResolvedIdentity struct {
	Profile *models.Profile
	Tenant  *models.Tenant

	// Degraded marks a fallback identity synthesized from session metadata
	// alone. The application shows a "complete your setup" affordance
	// instead of tenant data.
	Degraded bool

	// Advisory carries a non-fatal condition the caller may surface: the
	// exhausted retry budget behind a degraded identity, or a
	// PermissionError when a non-owner signed in to a legacy tenant that
	// only its owner can migrate. Resolution itself still succeeded.
	Advisory error
}

// PendingSetup reports whether the identity's tenant is the pending-setup
// sentinel rather than a persisted tenant.
func (r *ResolvedIdentity) PendingSetup() bool {
	return r.Tenant != nil && r.Tenant.ID == tenantid.PendingSetup
}
