package adapters

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Workload is a top level workload object together with its kind. Objects
// read through a typed client carry no TypeMeta, so the kind travels beside it.
type Workload struct {
	Kind   string
	Object metav1.Object
}

// WorkloadLister lists every tracked workload across namespaces.
type WorkloadLister interface {
	// ListWorkloads returns Deployments, StatefulSets, DaemonSets and
	// ReplicaSets that have no owner.
	ListWorkloads(ctx context.Context) ([]Workload, error)
}

// NodeGetter reads a single node by name.
type NodeGetter interface {
	GetNode(ctx context.Context, name string) (*corev1.Node, error)
}

// ClusterClient defines the cluster API interactions the agent needs.
type ClusterClient interface {
	WorkloadLister
	NodeGetter
}
