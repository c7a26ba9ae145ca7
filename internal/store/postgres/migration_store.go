package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/store"
)

// MigrationStore implements store.MigrationStore using PostgreSQL.
type MigrationStore struct {
	pool *pgxpool.Pool
}

// NewMigrationStore creates a new PostgreSQL-backed migration store.
func NewMigrationStore(pool *pgxpool.Pool) *MigrationStore {
	return &MigrationStore{pool: pool}
}

// Get retrieves the progress marker for a legacy tenant id.
func (s *MigrationStore) Get(ctx context.Context, oldTenantID string) (*store.MigrationProgress, error) {
	query := `
		SELECT old_tenant_id, new_tenant_id, owner_principal_id, done_collections, started_at, completed_at
		FROM tenant_migrations
		WHERE old_tenant_id = $1
	`

	progress, err := scanProgress(s.pool.QueryRow(ctx, query, oldTenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get migration progress: %w", mapPostgresError(err))
	}

	return progress, nil
}

// Put creates or replaces a progress marker.
func (s *MigrationStore) Put(ctx context.Context, progress *store.MigrationProgress) error {
	done, err := json.Marshal(progress.Done)
	if err != nil {
		return fmt.Errorf("failed to marshal done collections: %w", err)
	}

	query := `
		INSERT INTO tenant_migrations (
			old_tenant_id, new_tenant_id, owner_principal_id, done_collections, started_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		ON CONFLICT (old_tenant_id) DO UPDATE SET
			new_tenant_id = EXCLUDED.new_tenant_id,
			owner_principal_id = EXCLUDED.owner_principal_id,
			done_collections = EXCLUDED.done_collections,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = s.pool.Exec(ctx, query,
		progress.OldTenantID,
		progress.NewTenantID,
		progress.OwnerPrincipalID,
		done,
		progress.StartedAt,
		progress.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put migration progress: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("old_tenant_id", progress.OldTenantID).
		Str("new_tenant_id", progress.NewTenantID).
		Msg("Stored migration progress")

	return nil
}

// MarkCollection records that a collection finished re-keying.
func (s *MigrationStore) MarkCollection(ctx context.Context, oldTenantID, collection string) error {
	query := `
		UPDATE tenant_migrations
		SET done_collections = done_collections || jsonb_build_object($2::text, true)
		WHERE old_tenant_id = $1
	`

	result, err := s.pool.Exec(ctx, query, oldTenantID, collection)
	if err != nil {
		return fmt.Errorf("failed to mark collection: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrProgressNotFound
	}

	return nil
}

// Complete stamps the marker as fully finished.
func (s *MigrationStore) Complete(ctx context.Context, oldTenantID string) error {
	result, err := s.pool.Exec(ctx,
		`UPDATE tenant_migrations SET completed_at = now() WHERE old_tenant_id = $1`,
		oldTenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete migration: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrProgressNotFound
	}

	log.Info().Str("old_tenant_id", oldTenantID).Msg("Migration marked complete")
	return nil
}

// ListIncompleteByOwner returns unfinished markers for an owner.
func (s *MigrationStore) ListIncompleteByOwner(ctx context.Context, ownerPrincipalID string) ([]*store.MigrationProgress, error) {
	query := `
		SELECT old_tenant_id, new_tenant_id, owner_principal_id, done_collections, started_at, completed_at
		FROM tenant_migrations
		WHERE owner_principal_id = $1 AND completed_at IS NULL
		ORDER BY started_at ASC
	`

	rows, err := s.pool.Query(ctx, query, ownerPrincipalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incomplete migrations: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var markers []*store.MigrationProgress
	for rows.Next() {
		progress, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration progress: %w", err)
		}
		markers = append(markers, progress)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migration progress: %w", mapPostgresError(err))
	}

	return markers, nil
}

func scanProgress(row pgx.Row) (*store.MigrationProgress, error) {
	var progress store.MigrationProgress
	var done []byte

	err := row.Scan(
		&progress.OldTenantID,
		&progress.NewTenantID,
		&progress.OwnerPrincipalID,
		&done,
		&progress.StartedAt,
		&progress.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(done) > 0 {
		if err := json.Unmarshal(done, &progress.Done); err != nil {
			return nil, fmt.Errorf("failed to unmarshal done collections: %w", err)
		}
	}

	return &progress, nil
}
