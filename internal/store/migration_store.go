package store

import (
	"context"
	"time"
)

// MigrationProgress records how far a tenant identifier migration has
// gotten. It is persisted before any re-key is issued, so a crashed or
// partially-failed migration is detectable and resumable instead of
// leaving the tenant silently split across two identifiers.
type MigrationProgress struct {
	OldTenantID      string
	NewTenantID      string
	OwnerPrincipalID string
	Done             map[string]bool // collections already re-keyed
	StartedAt        time.Time
	CompletedAt      *time.Time
}

// IsDone reports whether a collection has already been re-keyed.
func (p *MigrationProgress) IsDone(collection string) bool {
	return p.Done != nil && p.Done[collection]
}

// Completed reports whether every step of the migration finished.
func (p *MigrationProgress) Completed() bool {
	return p.CompletedAt != nil
}

// MigrationStore persists migration progress markers, keyed by the old
// (legacy) tenant id.
type MigrationStore interface {
	// Get retrieves the progress marker for a legacy tenant id.
	Get(ctx context.Context, oldTenantID string) (*MigrationProgress, error)

	// Put creates or replaces a progress marker.
	Put(ctx context.Context, progress *MigrationProgress) error

	// MarkCollection records that a collection finished re-keying.
	MarkCollection(ctx context.Context, oldTenantID, collection string) error

	// Complete stamps the marker as fully finished.
	Complete(ctx context.Context, oldTenantID string) error

	// ListIncompleteByOwner returns unfinished markers for an owner so a
	// later reconciliation pass can resume them.
	ListIncompleteByOwner(ctx context.Context, ownerPrincipalID string) ([]*MigrationProgress, error)
}
