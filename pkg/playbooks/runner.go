package playbooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"clusterwatch/pkg/adapters"
	"clusterwatch/pkg/adapters/events"
	"clusterwatch/pkg/core"
	"clusterwatch/pkg/silencers"
)

// Execution is one queued run of a playbook for an object.
type Execution struct {
	PlaybookID string
	Trigger    string
	Object     client.Object
	Alert      *silencers.Alert
}

type executionKey struct {
	playbookID string
	namespace  string
	name       string
}

// Runner executes fired playbooks off the event path. Executions are
// queued per playbook and object; a newer fire for a queued pair replaces
// its payload instead of queueing twice.
type Runner struct {
	playbooks map[string]*Playbook
	queue     *core.WorkQueue[executionKey]

	mu      sync.Mutex
	pending map[executionKey]Execution

	clock   core.Clock
	logger  logr.Logger
	metrics adapters.MetricsRecorder
	events  *events.Recorder
}

func NewRunner(playbooks []*Playbook, clock core.Clock, logger logr.Logger, metrics adapters.MetricsRecorder, recorder *events.Recorder) *Runner {
	byID := make(map[string]*Playbook, len(playbooks))
	for _, playbook := range playbooks {
		byID[playbook.ID] = playbook
	}
	if clock == nil {
		clock = core.RealClock()
	}
	if metrics == nil {
		metrics = adapters.NewNoopMetricsRecorder()
	}
	return &Runner{
		playbooks: byID,
		queue:     core.NewWorkQueue[executionKey](),
		pending:   map[executionKey]Execution{},
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		events:    recorder,
	}
}

// Enqueue schedules playbookID for obj and reports whether a new queue
// entry was created.
func (r *Runner) Enqueue(playbookID, trigger string, obj client.Object) bool {
	key := executionKey{playbookID: playbookID, namespace: obj.GetNamespace(), name: obj.GetName()}

	r.mu.Lock()
	r.pending[key] = Execution{PlaybookID: playbookID, Trigger: trigger, Object: obj}
	r.mu.Unlock()

	return r.queue.Add(key)
}

// Len returns the number of queued executions.
func (r *Runner) Len() int {
	return r.queue.Len()
}

// Start drains the queue until ctx is done. It satisfies manager.Runnable.
func (r *Runner) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.queue.Ready():
			r.Drain(ctx)
		}
	}
}

// Drain runs every queued execution and returns how many ran.
func (r *Runner) Drain(ctx context.Context) int {
	ran := 0
	for {
		key, ok := r.queue.Get()
		if !ok {
			return ran
		}

		r.mu.Lock()
		execution, found := r.pending[key]
		delete(r.pending, key)
		r.mu.Unlock()

		if found {
			r.run(ctx, execution)
			ran++
		}
	}
}

func (r *Runner) run(ctx context.Context, execution Execution) {
	logger := r.logger.WithValues("playbook", execution.PlaybookID, "object", client.ObjectKeyFromObject(execution.Object))

	playbook, ok := r.playbooks[execution.PlaybookID]
	if !ok {
		logger.Info("skipping execution of unknown playbook")
		return
	}

	execution.Alert = alertFor(execution, r.clock)
	if playbook.Silencers.Process(ctx, execution.Alert) {
		logger.V(1).Info("alert silenced", "alert", execution.Alert.Name)
		return
	}

	for _, action := range playbook.Actions {
		if err := r.runAction(ctx, action, &execution); err != nil {
			logger.Error(err, "playbook action failed", "action", action.Name())
			r.metrics.IncActionError(action.Name())
			r.events.ActionFailed(execution.Object, execution.PlaybookID, action.Name(), err)
		}
		if execution.Alert.StopProcessing {
			logger.V(1).Info("alert silenced", "by", action.Name())
			return
		}
	}
}

// runAction reports a panic in action as its error.
func (r *Runner) runAction(ctx context.Context, action Action, execution *Execution) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("action panicked: %v", recovered)
		}
	}()
	return action.Run(ctx, execution)
}

func alertFor(execution Execution, clock core.Clock) *silencers.Alert {
	alert := &silencers.Alert{
		Name:     execution.Trigger,
		Severity: "warning",
		Labels:   execution.Object.GetLabels(),
		StartsAt: clock.Now(),
	}
	if pod, ok := execution.Object.(*corev1.Pod); ok {
		alert.Pod = &silencers.PodRef{Namespace: pod.Namespace, Name: pod.Name, NodeName: pod.Spec.NodeName}
	}
	return alert
}
