package store

import (
	"context"

	"github.com/stocktide/stocktide/internal/models"
)

// ProfileStore manages the principal-to-tenant mapping records.
type ProfileStore interface {
	// Get retrieves the profile for a principal id.
	Get(ctx context.Context, principalID string) (*models.Profile, error)

	// Create persists a new profile. Returns ErrProfileAlreadyExists when a
	// profile for the principal already exists (a concurrent signup or heal
	// won the race).
	Create(ctx context.Context, profile *models.Profile) error

	// Rekey moves every profile referencing oldTenantID to newTenantID and
	// returns the number of profiles moved. Used by migration and
	// reconciliation; issuing it twice is a no-op the second time.
	Rekey(ctx context.Context, oldTenantID, newTenantID string) (int64, error)
}
