// Package store defines the persistence interfaces the identity engine
// depends on, together with the sentinel errors every implementation maps
// its backend failures onto. Memory implementations live alongside the
// interfaces; the PostgreSQL implementations live in the postgres
// subpackage.
package store

import "errors"

// Errors
var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileAlreadyExists = errors.New("profile already exists")
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrTenantAlreadyExists  = errors.New("tenant already exists")
	ErrProgressNotFound     = errors.New("migration progress not found")
	ErrUnknownCollection    = errors.New("unknown collection")

	// ErrSchema indicates the backing collection itself is missing. It is
	// never retried; an operator has to fix the deployment.
	ErrSchema = errors.New("backing collection missing")

	// ErrUnavailable indicates a transient backend failure (network,
	// timeout, connection loss). Callers retry within their budget.
	ErrUnavailable = errors.New("store unavailable")
)
