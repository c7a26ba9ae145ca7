package store

import (
	"context"

	"github.com/stocktide/stocktide/internal/models"
)

// TenantStore manages tenant (business) records.
type TenantStore interface {
	// Get retrieves a tenant by id.
	Get(ctx context.Context, tenantID string) (*models.Tenant, error)

	// Create persists a new tenant record.
	Create(ctx context.Context, tenant *models.Tenant) error

	// Delete removes a tenant record. Only the reconciler deletes tenants,
	// and only after every dependent record has been re-keyed away.
	Delete(ctx context.Context, tenantID string) error

	// ListByOwner returns every tenant owned by a principal, oldest first.
	// More than one result means legacy duplicates await reconciliation.
	ListByOwner(ctx context.Context, ownerPrincipalID string) ([]*models.Tenant, error)
}
