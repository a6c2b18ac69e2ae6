package store

import (
	"context"
	"sort"
	"sync"

	"clusterwatch/pkg/core"
)

// ServiceStore persists discovered services for one account and cluster.
type ServiceStore interface {
	// PersistService upserts service by key. Deleted services are kept with
	// Deleted set.
	PersistService(ctx context.Context, service core.ServiceInfo) error
	// GetActiveServices returns every stored service that is not deleted.
	GetActiveServices(ctx context.Context) ([]core.ServiceInfo, error)
}

// MemoryStore is an in-process ServiceStore. Last write wins per key.
type MemoryStore struct {
	mu       sync.RWMutex
	services map[string]core.ServiceInfo
}

var _ ServiceStore = &MemoryStore{}

func NewMemoryStore(initial ...core.ServiceInfo) *MemoryStore {
	store := &MemoryStore{services: make(map[string]core.ServiceInfo, len(initial))}
	for _, service := range initial {
		store.services[service.Key()] = service
	}
	return store
}

func (m *MemoryStore) PersistService(_ context.Context, service core.ServiceInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[service.Key()] = service
	return nil
}

// GetActiveServices returns the active services ordered by key.
func (m *MemoryStore) GetActiveServices(_ context.Context) ([]core.ServiceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.ServiceInfo, 0, len(m.services))
	for _, service := range m.services {
		if !service.Deleted {
			out = append(out, service)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// Get returns the stored service for key, deleted or not.
func (m *MemoryStore) Get(key string) (core.ServiceInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	service, ok := m.services[key]
	return service, ok
}
