package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/store"
)

// TenantStore implements store.TenantStore using PostgreSQL.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore creates a new PostgreSQL-backed tenant store.
func NewTenantStore(pool *pgxpool.Pool) *TenantStore {
	return &TenantStore{pool: pool}
}

// Get retrieves a tenant by id.
func (s *TenantStore) Get(ctx context.Context, tenantID string) (*models.Tenant, error) {
	query := `
		SELECT tenant_id, owner_principal_id, name, plan, status, settings, created_at, updated_at
		FROM tenants
		WHERE tenant_id = $1
	`

	tenant, err := scanTenant(s.pool.QueryRow(ctx, query, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", mapPostgresError(err))
	}

	return tenant, nil
}

// Create persists a new tenant record.
func (s *TenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	settings, err := json.Marshal(tenant.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal tenant settings: %w", err)
	}

	query := `
		INSERT INTO tenants (
			tenant_id, owner_principal_id, name, plan, status, settings, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err = s.pool.Exec(ctx, query,
		tenant.ID,
		tenant.OwnerPrincipalID,
		tenant.Name,
		tenant.Plan,
		tenant.Status,
		settings,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)

	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().
		Str("tenant_id", tenant.ID).
		Str("owner_principal_id", tenant.OwnerPrincipalID).
		Msg("Created tenant")

	return nil
}

// Delete removes a tenant record.
func (s *TenantStore) Delete(ctx context.Context, tenantID string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM tenants WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrTenantNotFound
	}

	log.Info().Str("tenant_id", tenantID).Msg("Deleted tenant")
	return nil
}

// ListByOwner returns every tenant owned by a principal, oldest first.
func (s *TenantStore) ListByOwner(ctx context.Context, ownerPrincipalID string) ([]*models.Tenant, error) {
	query := `
		SELECT tenant_id, owner_principal_id, name, plan, status, settings, created_at, updated_at
		FROM tenants
		WHERE owner_principal_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, ownerPrincipalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenants: %w", mapPostgresError(err))
	}

	return tenants, nil
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var tenant models.Tenant
	var settings []byte

	err := row.Scan(
		&tenant.ID,
		&tenant.OwnerPrincipalID,
		&tenant.Name,
		&tenant.Plan,
		&tenant.Status,
		&settings,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &tenant.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tenant settings: %w", err)
		}
	}

	return &tenant, nil
}
