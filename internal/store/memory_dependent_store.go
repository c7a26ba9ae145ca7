package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryDependentStore is an in-memory implementation of DependentStore for
// development and testing. Each collection holds record id to tenant id
// assignments.
type MemoryDependentStore struct {
	mu          sync.RWMutex
	collections []string
	records     map[string]map[string]string // collection -> record id -> tenant id
}

// NewMemoryDependentStore creates a new in-memory dependent store managing
// the default collections.
func NewMemoryDependentStore() *MemoryDependentStore {
	records := make(map[string]map[string]string, len(DependentCollections))
	for _, c := range DependentCollections {
		records[c] = make(map[string]string)
	}
	return &MemoryDependentStore{
		collections: slices.Clone(DependentCollections),
		records:     records,
	}
}

// Collections returns the collection names this store manages.
func (s *MemoryDependentStore) Collections() []string {
	return slices.Clone(s.collections)
}

// Add seeds a record into a collection. Intended for tests and dev setup.
func (s *MemoryDependentStore) Add(collection, recordID, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, exists := s.records[collection]
	if !exists {
		return ErrUnknownCollection
	}

	coll[recordID] = tenantID
	return nil
}

// Rekey moves every record in collection referencing oldTenantID to
// newTenantID.
func (s *MemoryDependentStore) Rekey(ctx context.Context, collection, oldTenantID, newTenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, exists := s.records[collection]
	if !exists {
		return 0, ErrUnknownCollection
	}

	var moved int64
	for id, tenantID := range coll {
		if tenantID == oldTenantID {
			coll[id] = newTenantID
			moved++
		}
	}

	return moved, nil
}

// Count returns the number of records in collection referencing tenantID.
func (s *MemoryDependentStore) Count(ctx context.Context, collection, tenantID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, exists := s.records[collection]
	if !exists {
		return 0, ErrUnknownCollection
	}

	var count int64
	for _, tid := range coll {
		if tid == tenantID {
			count++
		}
	}

	return count, nil
}
