package store

import (
	"context"
	"sort"
	"sync"

	"github.com/stocktide/stocktide/internal/models"
)

// MemoryTenantStore is an in-memory implementation of TenantStore for
// development and testing.
type MemoryTenantStore struct {
	mu      sync.RWMutex
	tenants map[string]*models.Tenant
}

// NewMemoryTenantStore creates a new in-memory tenant store.
func NewMemoryTenantStore() *MemoryTenantStore {
	return &MemoryTenantStore{
		tenants: make(map[string]*models.Tenant),
	}
}

// Get retrieves a tenant by id.
func (s *MemoryTenantStore) Get(ctx context.Context, tenantID string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, exists := s.tenants[tenantID]
	if !exists {
		return nil, ErrTenantNotFound
	}

	return tenant.Clone(), nil
}

// Create persists a new tenant record.
func (s *MemoryTenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[tenant.ID]; exists {
		return ErrTenantAlreadyExists
	}

	s.tenants[tenant.ID] = tenant.Clone()
	return nil
}

// Delete removes a tenant record.
func (s *MemoryTenantStore) Delete(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[tenantID]; !exists {
		return ErrTenantNotFound
	}

	delete(s.tenants, tenantID)
	return nil
}

// ListByOwner returns every tenant owned by a principal, oldest first.
func (s *MemoryTenantStore) ListByOwner(ctx context.Context, ownerPrincipalID string) ([]*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Tenant
	for _, tenant := range s.tenants {
		if tenant.OwnerPrincipalID == ownerPrincipalID {
			result = append(result, tenant.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}
