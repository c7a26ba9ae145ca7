package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/store"
)

// ProfileStore implements store.ProfileStore using PostgreSQL.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a new PostgreSQL-backed profile store. It shares
// the connection pool with the other identity stores.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// Get retrieves the profile for a principal id.
func (s *ProfileStore) Get(ctx context.Context, principalID string) (*models.Profile, error) {
	query := `
		SELECT principal_id, tenant_id, role, branch_id, display_name, must_change_password, created_at
		FROM profiles
		WHERE principal_id = $1
	`

	var profile models.Profile
	err := s.pool.QueryRow(ctx, query, principalID).Scan(
		&profile.ID,
		&profile.TenantID,
		&profile.Role,
		&profile.BranchID,
		&profile.DisplayName,
		&profile.MustChangePassword,
		&profile.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", mapPostgresError(err))
	}

	return &profile, nil
}

// Create persists a new profile.
func (s *ProfileStore) Create(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (
			principal_id, tenant_id, role, branch_id, display_name, must_change_password, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := s.pool.Exec(ctx, query,
		profile.ID,
		profile.TenantID,
		profile.Role,
		profile.BranchID,
		profile.DisplayName,
		profile.MustChangePassword,
		profile.CreatedAt,
	)

	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().
		Str("principal_id", profile.ID).
		Str("tenant_id", profile.TenantID).
		Msg("Created profile")

	return nil
}

// Rekey moves every profile referencing oldTenantID to newTenantID.
func (s *ProfileStore) Rekey(ctx context.Context, oldTenantID, newTenantID string) (int64, error) {
	result, err := s.pool.Exec(ctx,
		`UPDATE profiles SET tenant_id = $2 WHERE tenant_id = $1`,
		oldTenantID, newTenantID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to rekey profiles: %w", mapPostgresError(err))
	}

	moved := result.RowsAffected()
	if moved > 0 {
		log.Debug().
			Str("old_tenant_id", oldTenantID).
			Str("new_tenant_id", newTenantID).
			Int64("moved", moved).
			Msg("Rekeyed profiles")
	}

	return moved, nil
}
