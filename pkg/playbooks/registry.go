package playbooks

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"

	"clusterwatch/pkg/adapters"
	"clusterwatch/pkg/adapters/events"
	"clusterwatch/pkg/core"
	"clusterwatch/pkg/silencers"
	"clusterwatch/pkg/triggers"
)

// Dependencies are the collaborators handed to trigger and action factories.
type Dependencies struct {
	Limiter triggers.RateLimiter
	Clock   core.Clock
	Nodes   adapters.NodeGetter
	Events  *events.Recorder
	Logger  logr.Logger
}

// Action is one step of a playbook.
type Action interface {
	Name() string
	Run(ctx context.Context, execution *Execution) error
}

type TriggerFactory func(raw json.RawMessage, deps Dependencies) (triggers.Trigger, error)

type ActionFactory func(raw json.RawMessage, deps Dependencies) (Action, error)

// Registry resolves trigger and action names from configuration.
type Registry struct {
	triggers map[string]TriggerFactory
	actions  map[string]ActionFactory
}

func NewRegistry() *Registry {
	return &Registry{triggers: map[string]TriggerFactory{}, actions: map[string]ActionFactory{}}
}

// DefaultRegistry knows every built in trigger and action.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.RegisterTrigger(core.TriggerImagePullBackoff, newImagePullBackoffTrigger)
	registry.RegisterAction(ActionRecordEvent, newRecordEventAction)
	registry.RegisterAction(ActionLogAlert, newLogAlertAction)
	registry.RegisterAction(ActionSeveritySilencer, newSeveritySilencerAction)
	registry.RegisterAction(ActionNameSilencer, newNameSilencerAction)
	registry.RegisterAction(ActionNodeRestartSilencer, newNodeRestartSilencerAction)
	return registry
}

func (r *Registry) RegisterTrigger(name string, factory TriggerFactory) {
	r.triggers[name] = factory
}

func (r *Registry) RegisterAction(name string, factory ActionFactory) {
	r.actions[name] = factory
}

func (r *Registry) Trigger(name string, raw json.RawMessage, deps Dependencies) (triggers.Trigger, error) {
	factory, ok := r.triggers[name]
	if !ok {
		return nil, fmt.Errorf("unknown trigger %q (known: %s)", name, strings.Join(keys(r.triggers), ", "))
	}
	return factory(raw, deps)
}

func (r *Registry) Action(name string, raw json.RawMessage, deps Dependencies) (Action, error) {
	factory, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("unknown action %q (known: %s)", name, strings.Join(keys(r.actions), ", "))
	}
	return factory(raw, deps)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func newImagePullBackoffTrigger(raw json.RawMessage, deps Dependencies) (triggers.Trigger, error) {
	var params core.TriggerParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, fmt.Errorf("%s params: %w", core.TriggerImagePullBackoff, err)
	}
	if err := core.ValidateTriggerParams(&params); err != nil {
		return nil, fmt.Errorf("%s params: %w", core.TriggerImagePullBackoff, err)
	}
	return triggers.NewPodImagePullBackoffTrigger(params, deps.Limiter, deps.Clock), nil
}

// Action names as they appear in playbook configuration.
const (
	ActionRecordEvent         = "record_event"
	ActionLogAlert            = "log_alert"
	ActionSeveritySilencer    = "severity_silencer"
	ActionNameSilencer        = "name_silencer"
	ActionNodeRestartSilencer = "node_restart_silencer"
)

type recordEventParams struct {
	Reason string `json:"reason,omitempty"`
}

type recordEventAction struct {
	reason string
	events *events.Recorder
}

func newRecordEventAction(raw json.RawMessage, deps Dependencies) (Action, error) {
	params := recordEventParams{}
	if err := decodeParams(raw, &params); err != nil {
		return nil, fmt.Errorf("%s params: %w", ActionRecordEvent, err)
	}
	return &recordEventAction{reason: params.Reason, events: deps.Events}, nil
}

func (a *recordEventAction) Name() string { return ActionRecordEvent }

// Run records a Kubernetes Event describing the waiting containers of the
// pod that fired.
func (a *recordEventAction) Run(_ context.Context, execution *Execution) error {
	if execution.Object == nil {
		return fmt.Errorf("execution has no object")
	}
	reason := a.reason
	if reason == "" {
		reason = execution.Trigger
	}
	message := fmt.Sprintf("playbook %s fired by %s", execution.PlaybookID, execution.Trigger)
	if pod, ok := execution.Object.(*corev1.Pod); ok {
		if waiting := describeWaiting(pod); waiting != "" {
			message += ": " + waiting
		}
	}
	a.events.Annotate(execution.Object, reason, message)
	return nil
}

func describeWaiting(pod *corev1.Pod) string {
	images := map[string]string{}
	for _, container := range append(append([]corev1.Container{}, pod.Spec.InitContainers...), pod.Spec.Containers...) {
		images[container.Name] = container.Image
	}
	var parts []string
	for _, status := range append(append([]corev1.ContainerStatus{}, pod.Status.InitContainerStatuses...), pod.Status.ContainerStatuses...) {
		if status.State.Waiting == nil || status.State.Waiting.Reason == "" {
			continue
		}
		image := status.Image
		if image == "" {
			image = images[status.Name]
		}
		parts = append(parts, fmt.Sprintf("%s (%s) %s", status.Name, image, status.State.Waiting.Reason))
	}
	return strings.Join(parts, ", ")
}

type logAlertAction struct {
	logger logr.Logger
}

func newLogAlertAction(raw json.RawMessage, deps Dependencies) (Action, error) {
	if err := decodeParams(raw, &struct{}{}); err != nil {
		return nil, fmt.Errorf("%s params: %w", ActionLogAlert, err)
	}
	return &logAlertAction{logger: deps.Logger.WithName(ActionLogAlert)}, nil
}

func (a *logAlertAction) Name() string { return ActionLogAlert }

func (a *logAlertAction) Run(_ context.Context, execution *Execution) error {
	a.logger.Info("alert", "playbook", execution.PlaybookID, "alert", execution.Alert.Name,
		"severity", execution.Alert.Severity, "labels", execution.Alert.Labels)
	return nil
}

// silencerAction adapts a silencer to a playbook step.
type silencerAction struct {
	name     string
	silencer silencers.Silencer
}

func (a *silencerAction) Name() string { return a.name }

func (a *silencerAction) Run(ctx context.Context, execution *Execution) error {
	a.silencer.Silence(ctx, execution.Alert)
	return nil
}

type severitySilencerParams struct {
	Severity string `json:"severity"`
}

func newSeveritySilencerAction(raw json.RawMessage, _ Dependencies) (Action, error) {
	params := severitySilencerParams{Severity: "none"}
	if err := decodeParams(raw, &params); err != nil {
		return nil, fmt.Errorf("%s params: %w", ActionSeveritySilencer, err)
	}
	return &silencerAction{name: ActionSeveritySilencer, silencer: silencers.SeveritySilencer{Severity: params.Severity}}, nil
}

type nameSilencerParams struct {
	Names []string `json:"names"`
}

func newNameSilencerAction(raw json.RawMessage, _ Dependencies) (Action, error) {
	var params nameSilencerParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, fmt.Errorf("%s params: %w", ActionNameSilencer, err)
	}
	if len(params.Names) == 0 {
		return nil, fmt.Errorf("%s params: names is required", ActionNameSilencer)
	}
	return &silencerAction{name: ActionNameSilencer, silencer: silencers.NameSilencer{Names: params.Names}}, nil
}

type nodeRestartParams struct {
	PostRestartSilence int `json:"post_restart_silence"`
}

func newNodeRestartSilencerAction(raw json.RawMessage, deps Dependencies) (Action, error) {
	params := nodeRestartParams{PostRestartSilence: core.DefaultPostRestartSilenceSec}
	if err := decodeParams(raw, &params); err != nil {
		return nil, fmt.Errorf("%s params: %w", ActionNodeRestartSilencer, err)
	}
	if params.PostRestartSilence < 0 {
		return nil, fmt.Errorf("%s params: post_restart_silence must be >= 0", ActionNodeRestartSilencer)
	}
	if deps.Nodes == nil {
		return nil, fmt.Errorf("%s requires cluster access", ActionNodeRestartSilencer)
	}
	silencer := silencers.NewNodeRestartSilencer(time.Duration(params.PostRestartSilence)*time.Second, deps.Nodes, deps.Clock, deps.Logger.WithName(ActionNodeRestartSilencer))
	return &silencerAction{name: ActionNodeRestartSilencer, silencer: silencer}, nil
}
