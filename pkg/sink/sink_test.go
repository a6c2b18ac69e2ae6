package sink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"clusterwatch/pkg/adapters"
	"clusterwatch/pkg/core"
	"clusterwatch/pkg/store"
)

type staticLister struct {
	mu    sync.Mutex
	calls int
}

func (l *staticLister) ListWorkloads(context.Context) ([]adapters.Workload, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return []adapters.Workload{{Kind: core.KindDeployment, Object: &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Namespace: "prod", Name: "api"}}}}, nil
}

func (l *staticLister) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestSinkDiscoversAndStops(t *testing.T) {
	lister := &staticLister{}
	memory := store.NewMemoryStore()
	s, err := New(core.SinkConfig{Name: "main", ClusterName: "prod-eu", DiscoveryPeriod: 3600}, Dependencies{
		Lister: lister,
		Store:  memory,
		Logger: logr.Discard(),
	})
	require.NoError(t, err)
	assert.Equal(t, "main", s.Name())

	require.Eventually(t, func() bool {
		_, ok := s.Resolver().Lookup("prod", "api")
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
	waitOrFail(t, s.Wait)

	assert.Equal(t, 1, lister.Calls(), "the hour long sleep is interrupted by Stop")
	active, err := memory.GetActiveServices(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Equal(t, int32(1), s.Status().ActiveServices)
}

func TestRunnableStopsSinkOnShutdown(t *testing.T) {
	s, err := New(core.SinkConfig{Name: "main", DiscoveryPeriod: 3600}, Dependencies{
		Lister: &staticLister{},
		Store:  store.NewMemoryStore(),
		Logger: logr.Discard(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- s.Runnable().Start(ctx) }()
	cancel()

	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runnable did not return")
	}
	assert.False(t, s.Runnable().NeedLeaderElection())
}

func TestNewValidates(t *testing.T) {
	_, err := New(core.SinkConfig{}, Dependencies{})
	assert.Error(t, err)
	_, err = New(core.SinkConfig{Name: "main"}, Dependencies{Logger: logr.Discard()})
	assert.Error(t, err)
}

func waitOrFail(t *testing.T, wait func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the discovery loop")
	}
}
