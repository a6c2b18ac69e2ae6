package events

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"clusterwatch/pkg/core"
)

// Recorder wraps an EventRecorder with helpers for playbook activity.
//
// The helper methods guard against nil receivers so tests can pass a nil
// recorder when event emission is not under test.
type Recorder struct {
	recorder record.EventRecorder
}

// NewRecorder constructs a Recorder from the provided EventRecorder.
func NewRecorder(rec record.EventRecorder) *Recorder {
	return &Recorder{recorder: rec}
}

// PlaybookFired records that a trigger fired for obj.
func (r *Recorder) PlaybookFired(obj client.Object, trigger, playbookID string) {
	if r == nil || r.recorder == nil || obj == nil {
		return
	}
	r.recorder.Eventf(obj, corev1.EventTypeWarning, core.EventReasonPlaybookFired, "%s fired playbook %s", trigger, playbookID)
}

// ActionFailed records that a playbook action failed for obj.
func (r *Recorder) ActionFailed(obj client.Object, playbookID, action string, err error) {
	if r == nil || r.recorder == nil || obj == nil || err == nil {
		return
	}
	r.recorder.Eventf(obj, corev1.EventTypeWarning, core.EventReasonActionFailed, "playbook %s action %s failed: %v", playbookID, action, err)
}

// Annotate records a free form event on behalf of a playbook action.
func (r *Recorder) Annotate(obj client.Object, reason, message string) {
	if r == nil || r.recorder == nil || obj == nil {
		return
	}
	r.recorder.Event(obj, corev1.EventTypeNormal, reason, message)
}
