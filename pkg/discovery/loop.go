package discovery

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"clusterwatch/pkg/adapters"
	"clusterwatch/pkg/agents/summary"
	"clusterwatch/pkg/core"
)

// CycleObserver is told about the outcome of every discovery cycle.
type CycleObserver interface {
	Observe(sum *summary.Summary, cycleErr error) core.DiscoveryStatus
}

// Loop periodically lists workloads and reconciles them. Failed cycles are
// logged and the loop carries on at the next period.
type Loop struct {
	Name   string
	Period time.Duration
	// IterationTimeout bounds the remote calls of one cycle. Zero disables it.
	IterationTimeout time.Duration

	lister     adapters.WorkloadLister
	reconciler *Reconciler
	sleeper    core.Sleeper
	clock      core.Clock
	logger     logr.Logger
	metrics    adapters.MetricsRecorder
	observer   CycleObserver

	active atomic.Bool
}

// LoopOption customises a Loop.
type LoopOption func(*Loop)

// WithSleeper replaces the interruptible timer sleep.
func WithSleeper(sleeper core.Sleeper) LoopOption {
	return func(l *Loop) { l.sleeper = sleeper }
}

func WithClock(clock core.Clock) LoopOption {
	return func(l *Loop) { l.clock = clock }
}

func WithMetrics(metrics adapters.MetricsRecorder) LoopOption {
	return func(l *Loop) { l.metrics = metrics }
}

func WithObserver(observer CycleObserver) LoopOption {
	return func(l *Loop) { l.observer = observer }
}

func WithIterationTimeout(timeout time.Duration) LoopOption {
	return func(l *Loop) { l.IterationTimeout = timeout }
}

func NewLoop(name string, period time.Duration, lister adapters.WorkloadLister, reconciler *Reconciler, logger logr.Logger, opts ...LoopOption) *Loop {
	loop := &Loop{
		Name:       name,
		Period:     period,
		lister:     lister,
		reconciler: reconciler,
		sleeper:    core.TimerSleeper(),
		clock:      core.RealClock(),
		logger:     logger,
		metrics:    adapters.NewNoopMetricsRecorder(),
	}
	for _, opt := range opts {
		opt(loop)
	}
	loop.active.Store(true)
	return loop
}

// Run loops until Stop is called or ctx is done. Stop is observed at the
// top of the next iteration, after the current sleep.
func (loop *Loop) Run(ctx context.Context) {
	loop.logger.Info("discovery loop started", "period", loop.Period)
	defer loop.logger.Info("discovery loop stopped")

	for loop.active.Load() && ctx.Err() == nil {
		loop.RunOnce(ctx)

		if err := loop.sleeper.Sleep(ctx, loop.Period); err != nil {
			return
		}
	}
}

// Stop asks Run to return.
func (loop *Loop) Stop() {
	loop.active.Store(false)
}

// Active reports whether Stop has not been called yet.
func (loop *Loop) Active() bool {
	return loop.active.Load()
}

// RunOnce runs a single discovery cycle and never fails: errors are
// logged, counted and reported to the observer.
func (loop *Loop) RunOnce(ctx context.Context) {
	start := loop.clock.Now()

	sum, err := loop.cycle(ctx)
	duration := loop.clock.Now().Sub(start)

	loop.metrics.ObserveCycle(loop.Name, sum, err, duration)
	if loop.observer != nil {
		loop.observer.Observe(sum, err)
	}

	if err != nil {
		loop.logger.Error(err, "discovery cycle failed", "category", core.ClassifyError(err), "duration", duration)
		return
	}

	loop.logger.Info("discovery cycle completed",
		"active", sum.Active,
		"created", sum.Count(summary.ActionCreated),
		"updated", sum.Count(summary.ActionUpdated),
		"deleted", sum.Count(summary.ActionDeleted),
		"duration", duration,
	)
}

func (loop *Loop) cycle(ctx context.Context) (*summary.Summary, error) {
	if loop.IterationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, loop.IterationTimeout)
		defer cancel()
	}

	workloads, err := loop.lister.ListWorkloads(ctx)
	if err != nil {
		return nil, err
	}

	sum, err := loop.reconciler.Reconcile(ctx, workloads)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}
