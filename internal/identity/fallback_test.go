package identity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/tenantid"
)

func TestBuildFallback(t *testing.T) {
	t.Run("from signup metadata", func(t *testing.T) {
		identity := BuildFallback(signInEvent("p1", signupMetadata()))

		require.True(t, identity.Degraded)
		require.True(t, identity.PendingSetup())
		require.Equal(t, "p1", identity.Profile.ID)
		require.Equal(t, tenantid.PendingSetup, identity.Profile.TenantID)
		require.Equal(t, models.RoleOwner, identity.Profile.Role)
		require.Equal(t, "Ada Okafor", identity.Profile.DisplayName)
		require.Equal(t, models.TenantStatusPendingSetup, identity.Tenant.Status)
	})

	t.Run("display name falls back to email local part", func(t *testing.T) {
		identity := BuildFallback(signInEvent("p1", nil))

		require.Equal(t, "p1", identity.Profile.DisplayName)
	})

	t.Run("requested role is honoured", func(t *testing.T) {
		event := signInEvent("p1", map[string]string{models.MetaRole: models.RoleStaff})

		identity := BuildFallback(event)

		require.Equal(t, models.RoleStaff, identity.Profile.Role)
	})
}
