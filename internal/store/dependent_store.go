package store

import "context"

// Tenant-scoped collections subject to re-keying during migration and
// reconciliation. The profile collection is handled separately through
// ProfileStore.Rekey because its records are keyed by principal id.
const (
	CollectionBranch     = "branch"
	CollectionProduct    = "product"
	CollectionSaleRecord = "sale_record"
	CollectionExpense    = "expense"
)

// DependentCollections lists every tenant-scoped collection a migration
// must re-key. Order is not significant; re-keys are issued independently.
var DependentCollections = []string{
	CollectionBranch,
	CollectionProduct,
	CollectionSaleRecord,
	CollectionExpense,
}

// DependentStore performs bulk tenant re-key operations over the
// tenant-scoped collections. Implementations never wrap the per-collection
// updates in a shared transaction; each Rekey call is an independent,
// idempotent step that may be retried on its own.
type DependentStore interface {
	// Collections returns the collection names this store manages.
	Collections() []string

	// Rekey moves every record in collection referencing oldTenantID to
	// newTenantID and returns the number of records moved.
	Rekey(ctx context.Context, collection, oldTenantID, newTenantID string) (int64, error)

	// Count returns the number of records in collection referencing
	// tenantID. Used to verify a duplicate tenant is empty before deletion.
	Count(ctx context.Context, collection, tenantID string) (int64, error)
}
