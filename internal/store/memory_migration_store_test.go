package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryMigrationStore(t *testing.T) {
	s := NewMemoryMigrationStore()
	ctx := context.Background()

	t.Run("get missing marker", func(t *testing.T) {
		_, err := s.Get(ctx, "BIZ-1700000000000")
		require.ErrorIs(t, err, ErrProgressNotFound)
	})

	t.Run("put, mark and complete", func(t *testing.T) {
		marker := &MigrationProgress{
			OldTenantID:      "BIZ-1700000000000",
			NewTenantID:      "3b241101-e2bb-4255-8caf-4136c566a962",
			OwnerPrincipalID: "p1",
			StartedAt:        time.Now(),
		}
		require.NoError(t, s.Put(ctx, marker))

		require.NoError(t, s.MarkCollection(ctx, marker.OldTenantID, CollectionProduct))

		got, err := s.Get(ctx, marker.OldTenantID)
		require.NoError(t, err)
		require.True(t, got.IsDone(CollectionProduct))
		require.False(t, got.IsDone(CollectionBranch))
		require.False(t, got.Completed())

		incomplete, err := s.ListIncompleteByOwner(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, incomplete, 1)

		require.NoError(t, s.Complete(ctx, marker.OldTenantID))

		got, err = s.Get(ctx, marker.OldTenantID)
		require.NoError(t, err)
		require.True(t, got.Completed())

		incomplete, err = s.ListIncompleteByOwner(ctx, "p1")
		require.NoError(t, err)
		require.Empty(t, incomplete)
	})

	t.Run("mark unknown marker", func(t *testing.T) {
		require.ErrorIs(t, s.MarkCollection(ctx, "unknown", CollectionProduct), ErrProgressNotFound)
		require.ErrorIs(t, s.Complete(ctx, "unknown"), ErrProgressNotFound)
	})
}
