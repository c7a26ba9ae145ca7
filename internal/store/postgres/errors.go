package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stocktide/stocktide/internal/store"
)

// mapPostgresError maps PostgreSQL-specific errors onto the store sentinel
// errors the identity engine classifies on. Returns the original error when
// it is not a PostgreSQL error or matches no known pattern.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	// Call timeouts are transient by policy.
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", store.ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UndefinedTable:
		// The backing collection itself is missing. Never retried; this is
		// an operator-actionable deployment problem.
		return fmt.Errorf("%w: %s", store.ErrSchema, pgErr.Message)

	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case "profiles_pkey":
			return store.ErrProfileAlreadyExists
		case "tenants_pkey":
			return store.ErrTenantAlreadyExists
		}
		return fmt.Errorf("unique constraint violation: %s: %w", pgErr.ConstraintName, err)

	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown,
		pgerrcode.TooManyConnections,
		pgerrcode.QueryCanceled:
		return fmt.Errorf("%w: %s", store.ErrUnavailable, pgErr.Message)

	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return fmt.Errorf("%w: transaction conflict: %s", store.ErrUnavailable, pgErr.Message)

	default:
		return fmt.Errorf("postgres error [%s]: %s: %w", pgErr.Code, pgErr.Message, err)
	}
}
