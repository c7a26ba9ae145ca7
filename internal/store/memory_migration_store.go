package store

import (
	"context"
	"sync"
	"time"
)

// MemoryMigrationStore is an in-memory implementation of MigrationStore for
// development and testing.
type MemoryMigrationStore struct {
	mu      sync.RWMutex
	markers map[string]*MigrationProgress // keyed by old tenant id
}

// NewMemoryMigrationStore creates a new in-memory migration store.
func NewMemoryMigrationStore() *MemoryMigrationStore {
	return &MemoryMigrationStore{
		markers: make(map[string]*MigrationProgress),
	}
}

// Get retrieves the progress marker for a legacy tenant id.
func (s *MemoryMigrationStore) Get(ctx context.Context, oldTenantID string) (*MigrationProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	marker, exists := s.markers[oldTenantID]
	if !exists {
		return nil, ErrProgressNotFound
	}

	return copyProgress(marker), nil
}

// Put creates or replaces a progress marker.
func (s *MemoryMigrationStore) Put(ctx context.Context, progress *MigrationProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markers[progress.OldTenantID] = copyProgress(progress)
	return nil
}

// MarkCollection records that a collection finished re-keying.
func (s *MemoryMigrationStore) MarkCollection(ctx context.Context, oldTenantID, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marker, exists := s.markers[oldTenantID]
	if !exists {
		return ErrProgressNotFound
	}

	if marker.Done == nil {
		marker.Done = make(map[string]bool)
	}
	marker.Done[collection] = true
	return nil
}

// Complete stamps the marker as fully finished.
func (s *MemoryMigrationStore) Complete(ctx context.Context, oldTenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marker, exists := s.markers[oldTenantID]
	if !exists {
		return ErrProgressNotFound
	}

	now := time.Now()
	marker.CompletedAt = &now
	return nil
}

// ListIncompleteByOwner returns unfinished markers for an owner.
func (s *MemoryMigrationStore) ListIncompleteByOwner(ctx context.Context, ownerPrincipalID string) ([]*MigrationProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*MigrationProgress
	for _, marker := range s.markers {
		if marker.OwnerPrincipalID == ownerPrincipalID && !marker.Completed() {
			result = append(result, copyProgress(marker))
		}
	}

	return result, nil
}

func copyProgress(p *MigrationProgress) *MigrationProgress {
	c := *p
	if p.Done != nil {
		c.Done = make(map[string]bool, len(p.Done))
		for k, v := range p.Done {
			c.Done[k] = v
		}
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
