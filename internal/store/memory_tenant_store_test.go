package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stocktide/stocktide/internal/models"
)

func TestMemoryTenantStore_CreateAndGet(t *testing.T) {
	s := NewMemoryTenantStore()
	ctx := context.Background()

	tenant := &models.Tenant{
		ID:               "tenant-1",
		OwnerPrincipalID: "principal-1",
		Name:             "Corner Shop",
		Plan:             models.PlanFree,
		Status:           models.TenantStatusActive,
		Settings:         models.DefaultSettings(),
		CreatedAt:        time.Now(),
	}

	require.NoError(t, s.Create(ctx, tenant))

	got, err := s.Get(ctx, "tenant-1")
	require.NoError(t, err)
	require.Equal(t, "Corner Shop", got.Name)
	require.Equal(t, "USD", got.Settings["currency"])

	// Settings are copied, not shared
	got.Settings["currency"] = "EUR"
	again, err := s.Get(ctx, "tenant-1")
	require.NoError(t, err)
	require.Equal(t, "USD", again.Settings["currency"])

	err = s.Create(ctx, tenant)
	require.ErrorIs(t, err, ErrTenantAlreadyExists)
}

func TestMemoryTenantStore_Delete(t *testing.T) {
	s := NewMemoryTenantStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &models.Tenant{ID: "tenant-1", OwnerPrincipalID: "p1"}))
	require.NoError(t, s.Delete(ctx, "tenant-1"))

	_, err := s.Get(ctx, "tenant-1")
	require.ErrorIs(t, err, ErrTenantNotFound)

	require.ErrorIs(t, s.Delete(ctx, "tenant-1"), ErrTenantNotFound)
}

func TestMemoryTenantStore_ListByOwner(t *testing.T) {
	s := NewMemoryTenantStore()
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, s.Create(ctx, &models.Tenant{ID: "BIZ-1600000000000", OwnerPrincipalID: "p1", CreatedAt: base.Add(-2 * time.Hour)}))
	require.NoError(t, s.Create(ctx, &models.Tenant{ID: "BIZ-1700000000000", OwnerPrincipalID: "p1", CreatedAt: base.Add(-time.Hour)}))
	require.NoError(t, s.Create(ctx, &models.Tenant{ID: "tenant-other", OwnerPrincipalID: "p2", CreatedAt: base}))

	owned, err := s.ListByOwner(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	require.Equal(t, "BIZ-1600000000000", owned[0].ID)
	require.Equal(t, "BIZ-1700000000000", owned[1].ID)

	none, err := s.ListByOwner(ctx, "p3")
	require.NoError(t, err)
	require.Empty(t, none)
}
