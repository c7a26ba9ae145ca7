package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/store"
)

// collectionTables maps collection names onto their backing tables. The
// table names are fixed identifiers; collection input is validated against
// this map before being interpolated into SQL.
var collectionTables = map[string]string{
	store.CollectionBranch:     "branches",
	store.CollectionProduct:    "products",
	store.CollectionSaleRecord: "sale_records",
	store.CollectionExpense:    "expenses",
}

// DependentStore implements store.DependentStore using PostgreSQL. Each
// re-key is a single bulk UPDATE on one table; no cross-table transaction
// is taken out.
type DependentStore struct {
	pool *pgxpool.Pool
}

// NewDependentStore creates a new PostgreSQL-backed dependent store.
func NewDependentStore(pool *pgxpool.Pool) *DependentStore {
	return &DependentStore{pool: pool}
}

// Collections returns the collection names this store manages.
func (s *DependentStore) Collections() []string {
	return append([]string(nil), store.DependentCollections...)
}

// Rekey moves every record in collection referencing oldTenantID to
// newTenantID.
func (s *DependentStore) Rekey(ctx context.Context, collection, oldTenantID, newTenantID string) (int64, error) {
	table, exists := collectionTables[collection]
	if !exists {
		return 0, fmt.Errorf("%w: %s", store.ErrUnknownCollection, collection)
	}

	query := fmt.Sprintf(`UPDATE %s SET tenant_id = $2 WHERE tenant_id = $1`, table)

	result, err := s.pool.Exec(ctx, query, oldTenantID, newTenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to rekey %s: %w", collection, mapPostgresError(err))
	}

	moved := result.RowsAffected()
	if moved > 0 {
		log.Debug().
			Str("collection", collection).
			Str("old_tenant_id", oldTenantID).
			Str("new_tenant_id", newTenantID).
			Int64("moved", moved).
			Msg("Rekeyed collection")
	}

	return moved, nil
}

// Count returns the number of records in collection referencing tenantID.
func (s *DependentStore) Count(ctx context.Context, collection, tenantID string) (int64, error) {
	table, exists := collectionTables[collection]
	if !exists {
		return 0, fmt.Errorf("%w: %s", store.ErrUnknownCollection, collection)
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id = $1`, table)

	var count int64
	if err := s.pool.QueryRow(ctx, query, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, mapPostgresError(err))
	}

	return count, nil
}
