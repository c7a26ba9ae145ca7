package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stocktide/stocktide/internal/models"
)

func TestMemoryProfileStore_Create(t *testing.T) {
	t.Run("create new profile", func(t *testing.T) {
		s := NewMemoryProfileStore()
		ctx := context.Background()

		profile := &models.Profile{
			ID:          "principal-1",
			TenantID:    "tenant-1",
			Role:        models.RoleOwner,
			DisplayName: "Ada Okafor",
			CreatedAt:   time.Now(),
		}

		require.NoError(t, s.Create(ctx, profile))
	})

	t.Run("create duplicate profile returns error", func(t *testing.T) {
		s := NewMemoryProfileStore()
		ctx := context.Background()

		profile := &models.Profile{ID: "principal-1", TenantID: "tenant-1", Role: models.RoleOwner}
		require.NoError(t, s.Create(ctx, profile))

		err := s.Create(ctx, profile)
		require.ErrorIs(t, err, ErrProfileAlreadyExists)
	})
}

func TestMemoryProfileStore_Get(t *testing.T) {
	t.Run("get existing profile", func(t *testing.T) {
		s := NewMemoryProfileStore()
		ctx := context.Background()

		branch := "branch-7"
		profile := &models.Profile{
			ID:          "principal-1",
			TenantID:    "tenant-1",
			Role:        models.RoleStaff,
			BranchID:    &branch,
			DisplayName: "Ada Okafor",
		}
		require.NoError(t, s.Create(ctx, profile))

		got, err := s.Get(ctx, "principal-1")
		require.NoError(t, err)
		require.Equal(t, "tenant-1", got.TenantID)
		require.NotNil(t, got.BranchID)
		require.Equal(t, "branch-7", *got.BranchID)
	})

	t.Run("get missing profile returns not found", func(t *testing.T) {
		s := NewMemoryProfileStore()

		_, err := s.Get(context.Background(), "nobody")
		require.ErrorIs(t, err, ErrProfileNotFound)
	})

	t.Run("returned profile is a copy", func(t *testing.T) {
		s := NewMemoryProfileStore()
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, &models.Profile{ID: "principal-1", TenantID: "tenant-1"}))

		got, err := s.Get(ctx, "principal-1")
		require.NoError(t, err)
		got.TenantID = "mutated"

		again, err := s.Get(ctx, "principal-1")
		require.NoError(t, err)
		require.Equal(t, "tenant-1", again.TenantID)
	})
}

func TestMemoryProfileStore_Rekey(t *testing.T) {
	s := NewMemoryProfileStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &models.Profile{ID: "p1", TenantID: "old"}))
	require.NoError(t, s.Create(ctx, &models.Profile{ID: "p2", TenantID: "old"}))
	require.NoError(t, s.Create(ctx, &models.Profile{ID: "p3", TenantID: "other"}))

	moved, err := s.Rekey(ctx, "old", "new")
	require.NoError(t, err)
	require.EqualValues(t, 2, moved)

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "new", got.TenantID)

	untouched, err := s.Get(ctx, "p3")
	require.NoError(t, err)
	require.Equal(t, "other", untouched.TenantID)

	// Second pass is a no-op
	moved, err = s.Rekey(ctx, "old", "new")
	require.NoError(t, err)
	require.EqualValues(t, 0, moved)
}
