package discovery

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"clusterwatch/pkg/adapters"
	"clusterwatch/pkg/agents/summary"
	"clusterwatch/pkg/core"
	"clusterwatch/pkg/store"
)

// Reconciler brings the service store and the resolver in line with a
// workload snapshot, publishing only what changed.
type Reconciler struct {
	cache    *Cache
	store    store.ServiceStore
	resolver *Resolver
	logger   logr.Logger
}

func NewReconciler(cache *Cache, serviceStore store.ServiceStore, resolver *Resolver, logger logr.Logger) *Reconciler {
	return &Reconciler{
		cache:    cache,
		store:    serviceStore,
		resolver: resolver,
		logger:   logger,
	}
}

// Reconcile runs one diff cycle over the active workloads. When two
// workloads share a service key the first one in the snapshot wins. The cache entry
// of a service is updated only after its publish succeeded, so a failed
// publish is retried on the next cycle.
func (reconciler *Reconciler) Reconcile(ctx context.Context, active []adapters.Workload) (summary.Summary, error) {
	sum := summary.Summary{}

	activeKeys, err := reconciler.publishChanged(ctx, active, &sum)
	if err != nil {
		return sum, err
	}
	sum.Active = len(activeKeys)

	for _, cached := range reconciler.cache.Snapshot() {
		if _, ok := activeKeys[cached.Key()]; !ok {
			reconciler.cache.Delete(cached.Key())
		}
	}

	if err := reconciler.publishDeleted(ctx, &sum); err != nil {
		return sum, err
	}

	reconciler.resolver.Store(reconciler.cache.Snapshot())

	return sum, nil
}

func (reconciler *Reconciler) publishChanged(ctx context.Context, active []adapters.Workload, sum *summary.Summary) (map[string]struct{}, error) {
	activeKeys := make(map[string]struct{}, len(active))

	for _, workload := range active {
		if workload.Object == nil {
			continue
		}
		service := core.NewServiceInfo(workload.Kind, workload.Object)
		key := service.Key()
		if _, seen := activeKeys[key]; seen {
			reconciler.logger.V(1).Info("skipping workload with duplicate service key", "service", key, "type", service.ServiceType)
			continue
		}
		activeKeys[key] = struct{}{}

		cached, found := reconciler.cache.Get(key)
		if found && cached.Equal(service) {
			continue
		}

		if err := reconciler.store.PersistService(ctx, service); err != nil {
			return nil, fmt.Errorf("publish service %s: %w", key, err)
		}
		reconciler.cache.Set(service)

		action := summary.ActionCreated
		if found {
			action = summary.ActionUpdated
		}
		sum.Record(service, action)
		reconciler.logger.V(1).Info("published service", "service", key, "type", service.ServiceType, "action", action)
	}

	return activeKeys, nil
}

func (reconciler *Reconciler) publishDeleted(ctx context.Context, sum *summary.Summary) error {
	persisted, err := reconciler.store.GetActiveServices(ctx)
	if err != nil {
		return fmt.Errorf("get active services: %w", err)
	}

	for _, service := range persisted {
		if _, ok := reconciler.cache.Get(service.Key()); ok {
			continue
		}

		service.Deleted = true
		if err := reconciler.store.PersistService(ctx, service); err != nil {
			return fmt.Errorf("publish deleted service %s: %w", service.Key(), err)
		}
		sum.Record(service, summary.ActionDeleted)
		reconciler.logger.V(1).Info("published service", "service", service.Key(), "type", service.ServiceType, "action", summary.ActionDeleted)
	}

	return nil
}
