package discovery

import (
	"sort"

	"clusterwatch/pkg/core"
)

// Cache holds the last published state of every known service, keyed by
// namespace/name. It has a single writer, the discovery loop, and is not
// safe for concurrent use.
type Cache struct {
	entries map[string]core.ServiceInfo
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]core.ServiceInfo)}
}

func (c *Cache) Get(key string) (core.ServiceInfo, bool) {
	service, ok := c.entries[key]
	return service, ok
}

func (c *Cache) Set(service core.ServiceInfo) {
	c.entries[service.Key()] = service
}

func (c *Cache) Delete(key string) {
	delete(c.entries, key)
}

func (c *Cache) Len() int {
	return len(c.entries)
}

// Snapshot returns the cached services ordered by key.
func (c *Cache) Snapshot() []core.ServiceInfo {
	out := make([]core.ServiceInfo, 0, len(c.entries))
	for _, service := range c.entries {
		out = append(out, service)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
