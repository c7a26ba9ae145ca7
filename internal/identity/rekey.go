package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/stocktide/stocktide/internal/store"
)

// CollectionProfile is the re-key step covering the profile collection,
// which is keyed by principal id and therefore handled through
// ProfileStore rather than DependentStore.
const CollectionProfile = "profile"

const rekeyMaxTries = 3

// rekeyer moves every record referencing a legacy tenant id to its
// replacement. The per-collection updates are issued as independent
// concurrent bulk writes with no shared transaction; each step is
// idempotent, retried on transient failures, and checkpointed in the
// migration progress marker so a later pass can resume after a partial
// failure.
type rekeyer struct {
	profiles   store.ProfileStore
	dependents store.DependentStore
	progress   store.MigrationStore
	retryDelay time.Duration

	// guards concurrent checkpoint writes to a shared marker
	mu sync.Mutex
}

// run re-keys every collection named by the marker that is not already
// done. Partial completion is expected: the first error is returned after
// the remaining independent steps finish, and completed steps stay marked.
func (r *rekeyer) run(ctx context.Context, marker *store.MigrationProgress) error {
	// Snapshot the pending steps before launching anything: once the
	// goroutines start they update marker.Done, so the marker must not be
	// read again until Wait returns.
	var pending []string
	for _, collection := range append([]string{CollectionProfile}, r.dependents.Collections()...) {
		if !marker.IsDone(collection) {
			pending = append(pending, collection)
		}
	}

	var g errgroup.Group
	for _, collection := range pending {
		g.Go(func() error {
			return r.step(ctx, marker, collection)
		})
	}

	return g.Wait()
}

// step performs one collection's bulk re-key, retrying transient failures,
// then records the checkpoint.
func (r *rekeyer) step(ctx context.Context, marker *store.MigrationProgress, collection string) error {
	op := func() (int64, error) {
		var moved int64
		var err error

		if collection == CollectionProfile {
			moved, err = r.profiles.Rekey(ctx, marker.OldTenantID, marker.NewTenantID)
		} else {
			moved, err = r.dependents.Rekey(ctx, collection, marker.OldTenantID, marker.NewTenantID)
		}

		if err != nil {
			classified := Classify(err)
			if !IsTransient(classified) {
				return 0, backoff.Permanent(classified)
			}
			return 0, classified
		}

		return moved, nil
	}

	moved, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(r.retryDelay)),
		backoff.WithMaxTries(rekeyMaxTries),
	)
	if err != nil {
		return fmt.Errorf("rekey %s from %s to %s: %w", collection, marker.OldTenantID, marker.NewTenantID, err)
	}

	if err := r.progress.MarkCollection(ctx, marker.OldTenantID, collection); err != nil {
		// The re-key itself succeeded and is idempotent; a lost checkpoint
		// only costs a redundant no-op update on the next pass.
		log.Warn().
			Err(err).
			Str("collection", collection).
			Str("old_tenant_id", marker.OldTenantID).
			Msg("Failed to checkpoint rekey step")
	}

	log.Debug().
		Str("collection", collection).
		Str("old_tenant_id", marker.OldTenantID).
		Str("new_tenant_id", marker.NewTenantID).
		Int64("moved", moved).
		Msg("Rekeyed collection step")

	// Keep the in-memory marker in sync so run is not repeated within this
	// pass.
	r.mu.Lock()
	if marker.Done == nil {
		marker.Done = make(map[string]bool)
	}
	marker.Done[collection] = true
	r.mu.Unlock()

	return nil
}
