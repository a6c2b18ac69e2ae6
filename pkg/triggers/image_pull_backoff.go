package triggers

import (
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"clusterwatch/pkg/core"
)

const imagePullBackoffScope = "PodImagePullBackoffTrigger"

// PodImagePullBackoffTrigger fires for pods stuck pulling an image, at most
// once per RateLimit per owning workload.
type PodImagePullBackoffTrigger struct {
	BaseTrigger
	// RateLimit is the minimum time between two fires for the same owner.
	RateLimit time.Duration
	// FireDelay is the minimum pod age before firing. Image pulls often back
	// off briefly while a pod starts and a referenced secret is not yet loaded.
	FireDelay time.Duration

	limiter RateLimiter
	clock   core.Clock
}

var _ Trigger = &PodImagePullBackoffTrigger{}

// NewPodImagePullBackoffTrigger builds the trigger from defaulted params.
func NewPodImagePullBackoffTrigger(params core.TriggerParams, limiter RateLimiter, clock core.Clock) *PodImagePullBackoffTrigger {
	core.DefaultTriggerParams(&params)
	if clock == nil {
		clock = core.RealClock()
	}
	return &PodImagePullBackoffTrigger{
		BaseTrigger: BaseTrigger{
			Kind:            "Pod",
			Operations:      []Operation{OperationUpdate},
			NamePrefix:      params.NamePrefix,
			NamespacePrefix: params.NamespacePrefix,
			LabelsSelector:  params.LabelsSelector,
		},
		RateLimit: time.Duration(*params.RateLimit) * time.Second,
		FireDelay: time.Duration(*params.FireDelay) * time.Second,
		limiter:   limiter,
		clock:     clock,
	}
}

func (t *PodImagePullBackoffTrigger) Name() string { return core.TriggerImagePullBackoff }

// ShouldFire consults the rate limiter only after every other check passed.
func (t *PodImagePullBackoffTrigger) ShouldFire(event ChangeEvent, playbookID string) bool {
	if !t.Matches(event) {
		return false
	}

	pod, ok := event.Object.(*corev1.Pod)
	if !ok || pod == nil {
		return false
	}

	if t.runTime(pod) < t.FireDelay {
		return false
	}

	if !hasWaitingReason(pod, core.ReasonImagePullBackOff) {
		return false
	}

	if t.limiter == nil {
		return true
	}
	return t.limiter.MarkAndTest(imagePullBackoffScope+"_"+playbookID, RateLimitIdentity(pod), t.RateLimit)
}

// runTime is zero when the kubelet has not reported a start time yet.
func (t *PodImagePullBackoffTrigger) runTime(pod *corev1.Pod) time.Duration {
	if pod.Status.StartTime == nil || pod.Status.StartTime.IsZero() {
		return 0
	}
	return t.clock.Now().Sub(pod.Status.StartTime.Time)
}

func hasWaitingReason(pod *corev1.Pod, reason string) bool {
	statuses := make([]corev1.ContainerStatus, 0, len(pod.Status.ContainerStatuses)+len(pod.Status.InitContainerStatuses))
	statuses = append(statuses, pod.Status.ContainerStatuses...)
	statuses = append(statuses, pod.Status.InitContainerStatuses...)
	for _, status := range statuses {
		if status.State.Waiting != nil && status.State.Waiting.Reason == reason {
			return true
		}
	}
	return false
}

// RateLimitIdentity returns namespace:name of the pod's owner, or of the pod
// itself when it has none. Pods recreated by the same controller share it.
func RateLimitIdentity(obj metav1.Object) string {
	name := obj.GetName()
	if owner := metav1.GetControllerOf(obj); owner != nil {
		name = owner.Name
	} else if owners := obj.GetOwnerReferences(); len(owners) > 0 {
		name = owners[0].Name
	}
	return obj.GetNamespace() + ":" + name
}
