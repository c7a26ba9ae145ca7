package models

import "time"

// Roles a profile can hold within a tenant.
const (
	RoleOwner   = "owner"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// Profile maps an authenticated principal to the tenant it belongs to.
// Exactly one profile exists per principal. It is created together with the
// canonical tenant, either by the signup flow or by the auto-healer, and is
// only deleted by explicit staff removal.
type Profile struct {
	ID                 string // principal id issued by the auth provider
	TenantID           string
	Role               string
	BranchID           *string // optional home branch assignment
	DisplayName        string
	MustChangePassword bool
	CreatedAt          time.Time
}

// IsOwner reports whether the profile holds the tenant-owner role.
func (p *Profile) IsOwner() bool {
	return p.Role == RoleOwner
}
