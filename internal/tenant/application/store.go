package application

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/dmehra2102/vending-machine/internal/tenant/domain"
)

// Store owns one Tenant per tenant id. Its own lock only guards the map;
// work inside a tenant is serialized by that tenant's lock.
type Store struct {
	log     *slog.Logger
	mu      sync.RWMutex
	tenants map[string]*domain.Tenant
}

func NewStore(log *slog.Logger) *Store {
	return &Store{log: log, tenants: make(map[string]*domain.Tenant)}
}

// GetOrCreate returns the tenant, creating empty state on first reference.
func (s *Store) GetOrCreate(id string) *domain.Tenant {
	s.mu.RLock()
	t, ok := s.tenants[id]
	s.mu.RUnlock()
	if ok {
		return t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok = s.tenants[id]; ok {
		return t
	}
	t = domain.New(id)
	s.tenants[id] = t
	s.log.Info("tenant initialized", "tenant_id", id)
	return t
}

func (s *Store) Get(id string) (*domain.Tenant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	return t, ok
}

// Remove unregisters the tenant and discards its state once any operation
// holding the tenant lock has finished. Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	t, ok := s.tenants[id]
	delete(s.tenants, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	t.Discard()
	s.log.Info("tenant removed", "tenant_id", id)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants)
}

func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
