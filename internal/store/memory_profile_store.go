package store

import (
	"context"
	"sync"

	"github.com/stocktide/stocktide/internal/models"
)

// MemoryProfileStore is an in-memory implementation of ProfileStore for
// development and testing.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.Profile
}

// NewMemoryProfileStore creates a new in-memory profile store.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{
		profiles: make(map[string]*models.Profile),
	}
}

// Get retrieves the profile for a principal id.
func (s *MemoryProfileStore) Get(ctx context.Context, principalID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, exists := s.profiles[principalID]
	if !exists {
		return nil, ErrProfileNotFound
	}

	return copyProfile(profile), nil
}

// Create persists a new profile.
func (s *MemoryProfileStore) Create(ctx context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[profile.ID]; exists {
		return ErrProfileAlreadyExists
	}

	s.profiles[profile.ID] = copyProfile(profile)
	return nil
}

// Rekey moves every profile referencing oldTenantID to newTenantID.
func (s *MemoryProfileStore) Rekey(ctx context.Context, oldTenantID, newTenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var moved int64
	for _, profile := range s.profiles {
		if profile.TenantID == oldTenantID {
			profile.TenantID = newTenantID
			moved++
		}
	}

	return moved, nil
}

func copyProfile(p *models.Profile) *models.Profile {
	c := *p
	if p.BranchID != nil {
		b := *p.BranchID
		c.BranchID = &b
	}
	return &c
}
