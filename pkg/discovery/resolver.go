package discovery

import (
	"sync"

	"clusterwatch/pkg/core"
)

// Resolver exposes the latest discovered services to readers outside the
// discovery loop. Readers may see a snapshot up to one period old.
type Resolver struct {
	mu       sync.RWMutex
	services []core.ServiceInfo
	byKey    map[string]core.ServiceInfo
}

func NewResolver() *Resolver {
	return &Resolver{byKey: map[string]core.ServiceInfo{}}
}

// Store replaces the snapshot.
func (r *Resolver) Store(services []core.ServiceInfo) {
	byKey := make(map[string]core.ServiceInfo, len(services))
	for _, service := range services {
		byKey[service.Key()] = service
	}
	snapshot := append([]core.ServiceInfo(nil), services...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = snapshot
	r.byKey = byKey
}

// Services returns a copy of the snapshot.
func (r *Resolver) Services() []core.ServiceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]core.ServiceInfo(nil), r.services...)
}

func (r *Resolver) Lookup(namespace, name string) (core.ServiceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	service, ok := r.byKey[core.ServiceInfo{Namespace: namespace, Name: name}.Key()]
	return service, ok
}
