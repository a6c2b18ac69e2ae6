package triggers

import (
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/labels"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Operation is the kind of change observed on a cluster object.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// ChangeEvent is a raw cluster change event handed to triggers.
type ChangeEvent struct {
	Operation Operation
	Kind      string
	Object    client.Object
	OldObject client.Object
}

// Trigger decides whether a change event should run a playbook.
// Implementations never fail: anything malformed simply does not fire.
type Trigger interface {
	Name() string
	ShouldFire(event ChangeEvent, playbookID string) bool
}

// RateLimiter is the admission control shared by triggers.
type RateLimiter interface {
	MarkAndTest(scope, entity string, window time.Duration) bool
}

// BaseTrigger holds the structural filters every Kubernetes trigger applies.
type BaseTrigger struct {
	Kind            string
	Operations      []Operation
	NamePrefix      string
	NamespacePrefix string
	LabelsSelector  string
}

// Matches applies the kind, operation, name, namespace and label filters.
func (b BaseTrigger) Matches(event ChangeEvent) bool {
	if event.Object == nil {
		return false
	}

	if b.Kind != "" && event.Kind != b.Kind {
		return false
	}

	if len(b.Operations) > 0 && !containsOperation(b.Operations, event.Operation) {
		return false
	}

	if b.NamePrefix != "" && !strings.HasPrefix(event.Object.GetName(), b.NamePrefix) {
		return false
	}

	if b.NamespacePrefix != "" && !strings.HasPrefix(event.Object.GetNamespace(), b.NamespacePrefix) {
		return false
	}

	if b.LabelsSelector != "" {
		selector, err := labels.Parse(b.LabelsSelector)
		if err != nil {
			return false
		}
		if !selector.Matches(labels.Set(event.Object.GetLabels())) {
			return false
		}
	}

	return true
}

func containsOperation(operations []Operation, op Operation) bool {
	for _, candidate := range operations {
		if candidate == op {
			return true
		}
	}
	return false
}
