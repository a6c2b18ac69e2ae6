package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"clusterwatch/pkg/adapters"
	"clusterwatch/pkg/agents/status"
	"clusterwatch/pkg/core"
	"clusterwatch/pkg/discovery"
	"clusterwatch/pkg/store"
)

// Dependencies are the collaborators a Sink is built from.
type Dependencies struct {
	Lister  adapters.WorkloadLister
	Store   store.ServiceStore
	Metrics adapters.MetricsRecorder
	Tracker *status.Tracker
	Sleeper core.Sleeper
	Clock   core.Clock
	Logger  logr.Logger
	// IterationTimeout bounds each discovery cycle. Zero disables it.
	IterationTimeout time.Duration
}

// Sink owns the discovery state of one destination: its service cache,
// resolver and background loop.
type Sink struct {
	name     string
	resolver *discovery.Resolver
	loop     *discovery.Loop
	tracker  *status.Tracker

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New builds the sink and starts its discovery loop.
func New(cfg core.SinkConfig, deps Dependencies) (*Sink, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("sink name is required")
	}
	if deps.Lister == nil || deps.Store == nil {
		return nil, fmt.Errorf("sink %s: lister and store are required", cfg.Name)
	}
	if deps.Tracker == nil {
		deps.Tracker = status.NewTracker(deps.Clock)
	}

	logger := deps.Logger.WithName("sink").WithValues("sink", cfg.Name)
	resolver := discovery.NewResolver()
	reconciler := discovery.NewReconciler(discovery.NewCache(), deps.Store, resolver, logger)

	opts := []discovery.LoopOption{discovery.WithObserver(deps.Tracker)}
	if deps.Metrics != nil {
		opts = append(opts, discovery.WithMetrics(deps.Metrics))
	}
	if deps.Sleeper != nil {
		opts = append(opts, discovery.WithSleeper(deps.Sleeper))
	}
	if deps.Clock != nil {
		opts = append(opts, discovery.WithClock(deps.Clock))
	}
	if deps.IterationTimeout > 0 {
		opts = append(opts, discovery.WithIterationTimeout(deps.IterationTimeout))
	}
	loop := discovery.NewLoop(cfg.Name, core.DiscoveryPeriod(cfg), deps.Lister, reconciler, logger, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		name:     cfg.Name,
		resolver: resolver,
		loop:     loop,
		tracker:  deps.Tracker,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		loop.Run(ctx)
	}()

	return s, nil
}

func (s *Sink) Name() string { return s.name }

// Resolver exposes the services found by the latest discovery cycle.
func (s *Sink) Resolver() *discovery.Resolver { return s.resolver }

// Status returns the discovery health of the sink.
func (s *Sink) Status() core.DiscoveryStatus { return s.tracker.Status() }

// Stop signals the discovery loop and interrupts its sleep.
func (s *Sink) Stop() {
	s.once.Do(func() {
		s.loop.Stop()
		s.cancel()
	})
}

// Wait blocks until the discovery loop has returned.
func (s *Sink) Wait() {
	<-s.done
}

// Runnable stops the sink when the manager shuts down.
func (s *Sink) Runnable() *Runnable { return &Runnable{sink: s} }

// Runnable adapts a Sink to manager.Runnable.
type Runnable struct {
	sink *Sink
}

func (r *Runnable) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-r.sink.done:
	}
	r.sink.Stop()
	r.sink.Wait()
	return nil
}

// NeedLeaderElection reports false: every replica stops its own sink.
func (r *Runnable) NeedLeaderElection() bool { return false }
