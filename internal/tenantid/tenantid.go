// Package tenantid defines the canonical tenant identifier format and the
// checks used to detect legacy identifiers that still need migration.
package tenantid

import "github.com/google/uuid"

// PendingSetup is the sentinel tenant id carried by a degraded fallback
// identity. It signals "tenant setup incomplete" to the rest of the
// application and never appears in the backing store.
const PendingSetup = "pending-setup"

// canonicalLen is the length of the fixed textual uuid form. uuid.Parse
// accepts several renderings (urn prefix, braces, bare hex); only the
// hyphenated 36-char form is canonical here.
const canonicalLen = 36

// New mints a canonical tenant identifier: a 128-bit random value in the
// fixed textual uuid form.
func New() string {
	return uuid.NewString()
}

// IsCanonical reports whether id conforms to the canonical identifier
// format. The pending-setup sentinel is not canonical.
func IsCanonical(id string) bool {
	if len(id) != canonicalLen {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// IsLegacy reports whether id is a non-empty identifier in a pre-canonical
// format, e.g. the timestamp-derived "BIZ-1700000000000" ids issued by
// early releases. Such tenants must be migrated before reconciliation.
func IsLegacy(id string) bool {
	return id != "" && id != PendingSetup && !IsCanonical(id)
}
