package models

import "time"

// Tenant plan values.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Tenant status values.
const (
	TenantStatusActive       = "active"
	TenantStatusSuspended    = "suspended"
	TenantStatusPendingSetup = "pending_setup"
)

// Tenant represents a business: the unit of data isolation. Every
// tenant-scoped record (branch, product, sale_record, ...) carries its id.
// A principal may transiently own more than one tenant record (one canonical
// plus legacy duplicates awaiting reconciliation); the reconciler collapses
// that back to exactly one.
type Tenant struct {
	ID               string // canonical ids are uuid-formatted; legacy ids await migration
	OwnerPrincipalID string
	Name             string
	Plan             string
	Status           string
	Settings         map[string]string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Clone returns a deep copy of the tenant.
func (t *Tenant) Clone() *Tenant {
	c := *t
	if t.Settings != nil {
		c.Settings = make(map[string]string, len(t.Settings))
		for k, v := range t.Settings {
			c.Settings[k] = v
		}
	}
	return &c
}

// DefaultSettings returns the settings a freshly minted tenant starts with.
func DefaultSettings() map[string]string {
	return map[string]string{
		"currency":    "USD",
		"low_stock":   "5",
		"sales_round": "2",
	}
}
