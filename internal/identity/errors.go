// Package identity implements the tenant identity bootstrap and
// reconciliation engine: resolving an authenticated principal to exactly
// one tenant and one profile, healing missing mappings, migrating legacy
// tenant identifiers and collapsing duplicate tenant records.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/stocktide/stocktide/internal/store"
)

// TransientError wraps a backend failure that is worth retrying (network,
// timeout, connection loss). It is absorbed by the retry policy and, once
// the budget is exhausted, by the fallback path.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store failure: %v", e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// SchemaError wraps a failure caused by the backing collection itself being
// absent. It is never retried and is surfaced to an operator.
type SchemaError struct {
	Cause error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("store schema error: %v", e.Cause)
}

func (e *SchemaError) Unwrap() error { return e.Cause }

// ConflictError wraps a uniqueness violation during healing. It signals
// that a concurrent heal or signup already committed the record, so the
// caller re-reads instead of erroring.
type ConflictError struct {
	Cause error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("write conflict: %v", e.Cause)
}

func (e *ConflictError) Unwrap() error { return e.Cause }

// PermissionError reports an operation the principal's role does not allow,
// e.g. a non-owner attempting identifier migration. Surfaced, never
// retried.
type PermissionError struct {
	Op   string
	Role string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("role %q may not %s", e.Role, e.Op)
}

// Classify maps store sentinel errors onto the engine's error taxonomy.
// Not-found sentinels pass through unchanged: they are outcomes, not
// failures. Unknown errors pass through unchanged as well.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrSchema):
		return &SchemaError{Cause: err}
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return &TransientError{Cause: err}
	case errors.Is(err, store.ErrProfileAlreadyExists),
		errors.Is(err, store.ErrTenantAlreadyExists):
		return &ConflictError{Cause: err}
	default:
		return err
	}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsSchema reports whether err is (or wraps) a SchemaError.
func IsSchema(err error) bool {
	var s *SchemaError
	return errors.As(err, &s)
}
