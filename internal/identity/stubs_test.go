package identity

import (
	"context"
	"sync"
	"time"

	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/store"
)

// zeroDelayPolicy keeps the production retry budget but removes the waits
// so tests run instantly.
func zeroDelayPolicy() RetryPolicy {
	return RetryPolicy{
		TransientDelays: []time.Duration{0, 0, 0},
		NotFoundRetries: 2,
		NotFoundDelay:   0,
		CallTimeout:     0,
	}
}

// scriptedProfileStore returns canned responses in order; the final
// response repeats once the script is exhausted.
type scriptedProfileStore struct {
	mu        sync.Mutex
	responses []scriptedResponse
	calls     int
}

type scriptedResponse struct {
	profile *models.Profile
	err     error
}

func (s *scriptedProfileStore) Get(ctx context.Context, principalID string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++

	r := s.responses[idx]
	return r.profile, r.err
}

func (s *scriptedProfileStore) Create(ctx context.Context, profile *models.Profile) error {
	return nil
}

func (s *scriptedProfileStore) Rekey(ctx context.Context, oldTenantID, newTenantID string) (int64, error) {
	return 0, nil
}

func (s *scriptedProfileStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// flakyDependentStore wraps a memory dependent store and fails Rekey on
// one collection a configured number of times.
type flakyDependentStore struct {
	*store.MemoryDependentStore

	mu          sync.Mutex
	failingColl string
	failErr     error
	failures    int
}

func (s *flakyDependentStore) Rekey(ctx context.Context, collection, oldTenantID, newTenantID string) (int64, error) {
	s.mu.Lock()
	if collection == s.failingColl && s.failures > 0 {
		s.failures--
		err := s.failErr
		s.mu.Unlock()
		return 0, err
	}
	s.mu.Unlock()

	return s.MemoryDependentStore.Rekey(ctx, collection, oldTenantID, newTenantID)
}

// countingTenantStore wraps a memory tenant store and counts Create calls.
type countingTenantStore struct {
	*store.MemoryTenantStore

	mu      sync.Mutex
	creates int
}

func (s *countingTenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return s.MemoryTenantStore.Create(ctx, tenant)
}

func (s *countingTenantStore) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

func signInEvent(principalID string, metadata map[string]string) *models.SessionEvent {
	return &models.SessionEvent{
		Kind:        models.SessionSignedIn,
		PrincipalID: principalID,
		Email:       principalID + "@example.com",
		Metadata:    metadata,
		OccurredAt:  time.Now(),
	}
}

func signupMetadata() map[string]string {
	return map[string]string{
		models.MetaFirstName:    "Ada",
		models.MetaLastName:     "Okafor",
		models.MetaBusinessName: "Corner Shop",
	}
}
