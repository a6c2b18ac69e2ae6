package podtrigger

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	"clusterwatch/pkg/adapters"
	"clusterwatch/pkg/adapters/events"
	"clusterwatch/pkg/playbooks"
	"clusterwatch/pkg/triggers"
)

// PodTriggerController turns pod changes into trigger evaluations and
// queues the playbooks that fire.
type PodTriggerController struct {
	client.Client
	logger    logr.Logger
	playbooks []*playbooks.Playbook
	runner    *playbooks.Runner
	events    *events.Recorder
	metrics   adapters.MetricsRecorder

	mu   sync.Mutex
	seen map[types.NamespacedName]*corev1.Pod
}

var _ reconcile.Reconciler = &PodTriggerController{}

func NewController(kubeClient client.Client, books []*playbooks.Playbook, runner *playbooks.Runner, recorder *events.Recorder, metrics adapters.MetricsRecorder) *PodTriggerController {
	if metrics == nil {
		metrics = adapters.NewNoopMetricsRecorder()
	}
	return &PodTriggerController{
		Client:    kubeClient,
		logger:    ctrl.Log.WithName("controllers").WithName("PodTrigger"),
		playbooks: books,
		runner:    runner,
		events:    recorder,
		metrics:   metrics,
		seen:      map[types.NamespacedName]*corev1.Pod{},
	}
}

// Reconcile evaluates every playbook trigger against the current pod. The
// first observation of a pod is a create, later ones are updates carrying
// the previously observed pod as OldObject.
func (controller *PodTriggerController) Reconcile(requestContext context.Context, reconcileRequest ctrl.Request) (ctrl.Result, error) {
	requestLogger := controller.logger.WithValues("pod", reconcileRequest.NamespacedName)

	var pod corev1.Pod

	if err := controller.Get(requestContext, reconcileRequest.NamespacedName, &pod); err != nil {
		if apierrors.IsNotFound(err) {
			controller.forget(reconcileRequest.NamespacedName)
			return ctrl.Result{}, nil
		}

		return ctrl.Result{}, err
	}

	event := triggers.ChangeEvent{Operation: triggers.OperationCreate, Kind: "Pod", Object: &pod}
	if previous := controller.observe(&pod); previous != nil {
		event.Operation = triggers.OperationUpdate
		event.OldObject = previous
	}

	for _, playbook := range controller.playbooks {
		for _, trigger := range playbook.Triggers {
			if !trigger.ShouldFire(event, playbook.ID) {
				controller.metrics.ObserveTrigger(trigger.Name(), adapters.TriggerOutcomeSuppressed)
				continue
			}

			controller.metrics.ObserveTrigger(trigger.Name(), adapters.TriggerOutcomeFired)
			controller.events.PlaybookFired(&pod, trigger.Name(), playbook.ID)
			queued := controller.runner.Enqueue(playbook.ID, trigger.Name(), pod.DeepCopy())
			requestLogger.Info("playbook triggered", "playbook", playbook.ID, "trigger", trigger.Name(), "queued", queued)
		}
	}

	return ctrl.Result{}, nil
}

// observe records pod and returns the previous observation, nil on first sight.
func (controller *PodTriggerController) observe(pod *corev1.Pod) *corev1.Pod {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	name := client.ObjectKeyFromObject(pod)
	previous := controller.seen[name]
	controller.seen[name] = pod.DeepCopy()
	return previous
}

func (controller *PodTriggerController) forget(name types.NamespacedName) {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	delete(controller.seen, name)
}

// SetupWithManager registers the pod controller and its playbook runner
// with the provided manager.
func SetupWithManager(manager ctrl.Manager, books []*playbooks.Playbook, runner *playbooks.Runner, metrics adapters.MetricsRecorder) error {
	if err := manager.Add(runner); err != nil {
		return err
	}

	reconciler := NewController(manager.GetClient(), books, runner, events.NewRecorder(manager.GetEventRecorderFor("clusterwatch-playbooks")), metrics)
	return ctrl.NewControllerManagedBy(manager).
		Named("podtrigger").
		WithOptions(controller.Options{MaxConcurrentReconciles: 1}).
		For(&corev1.Pod{}).
		Complete(reconciler)
}
