package identity

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/store"
)

// RetryPolicy bounds the resolver's retry behaviour. The schedules are
// plain values so tests can run with zero delays and the budget stays
// visible instead of hiding in recursion.
type RetryPolicy struct {
	// TransientDelays holds one delay per transient retry; its length is
	// the transient retry budget.
	TransientDelays []time.Duration

	// NotFoundRetries is how many times a not-found read is repeated before
	// it is treated as authoritative. Covers read-after-write lag right
	// after signup.
	NotFoundRetries int

	// NotFoundDelay is the fixed pause between not-found retries.
	NotFoundDelay time.Duration

	// CallTimeout bounds each individual store call. Exceeding it counts
	// as a transient failure.
	CallTimeout time.Duration
}

// DefaultRetryPolicy returns the production policy: three transient retries
// with linearly increasing delay, two not-found retries with a fixed short
// delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		TransientDelays: []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second},
		NotFoundRetries: 2,
		NotFoundDelay:   500 * time.Millisecond,
		CallTimeout:     5 * time.Second,
	}
}

// Resolver fetches the profile record for a principal and classifies the
// outcome, retrying transient failures within the policy's budget.
type Resolver struct {
	profiles store.ProfileStore
	policy   RetryPolicy
}

// NewResolver creates a resolver over the given profile store.
func NewResolver(profiles store.ProfileStore, policy RetryPolicy) *Resolver {
	return &Resolver{profiles: profiles, policy: policy}
}

// Resolve fetches the profile for a principal. It returns the profile on
// success, store.ErrProfileNotFound once not-found is authoritative, a
// *TransientError once the transient budget is exhausted, or a
// *SchemaError immediately (never retried).
func (r *Resolver) Resolve(ctx context.Context, principalID string) (*models.Profile, error) {
	var transientAttempt, notFoundAttempt int

	for {
		profile, err := r.get(ctx, principalID)
		if err == nil {
			return profile, nil
		}

		var delay time.Duration

		if errors.Is(err, store.ErrProfileNotFound) {
			if notFoundAttempt >= r.policy.NotFoundRetries {
				return nil, err
			}
			notFoundAttempt++
			delay = r.policy.NotFoundDelay

			log.Debug().
				Str("principal_id", principalID).
				Int("attempt", notFoundAttempt).
				Msg("Profile not found, retrying for read-after-write lag")
		} else {
			classified := Classify(err)
			if !IsTransient(classified) {
				// Schema errors and anything unknown surface immediately.
				return nil, classified
			}
			if transientAttempt >= len(r.policy.TransientDelays) {
				return nil, classified
			}
			delay = r.policy.TransientDelays[transientAttempt]
			transientAttempt++

			log.Warn().
				Err(err).
				Str("principal_id", principalID).
				Int("attempt", transientAttempt).
				Dur("delay", delay).
				Msg("Profile read failed, retrying")
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// get performs a single store read under the per-call timeout.
func (r *Resolver) get(ctx context.Context, principalID string) (*models.Profile, error) {
	if r.policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.CallTimeout)
		defer cancel()
	}

	return r.profiles.Get(ctx, principalID)
}
