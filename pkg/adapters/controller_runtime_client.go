package adapters

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"clusterwatch/pkg/core"
)

type controllerRuntimeClient struct {
	client client.Reader
}

// NewControllerRuntimeClient returns a ClusterClient backed by a controller-runtime reader.
func NewControllerRuntimeClient(kubeClient client.Reader) ClusterClient {
	return &controllerRuntimeClient{client: kubeClient}
}

// ListWorkloads lists the four workload kinds across all namespaces.
// ReplicaSets managed by a Deployment are skipped.
func (clientAdapter *controllerRuntimeClient) ListWorkloads(ctx context.Context) ([]Workload, error) {
	var workloads []Workload

	var deployments appsv1.DeploymentList
	if err := clientAdapter.client.List(ctx, &deployments); err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	for i := range deployments.Items {
		workloads = append(workloads, Workload{Kind: core.KindDeployment, Object: &deployments.Items[i]})
	}

	var statefulSets appsv1.StatefulSetList
	if err := clientAdapter.client.List(ctx, &statefulSets); err != nil {
		return nil, fmt.Errorf("list statefulsets: %w", err)
	}
	for i := range statefulSets.Items {
		workloads = append(workloads, Workload{Kind: core.KindStatefulSet, Object: &statefulSets.Items[i]})
	}

	var daemonSets appsv1.DaemonSetList
	if err := clientAdapter.client.List(ctx, &daemonSets); err != nil {
		return nil, fmt.Errorf("list daemonsets: %w", err)
	}
	for i := range daemonSets.Items {
		workloads = append(workloads, Workload{Kind: core.KindDaemonSet, Object: &daemonSets.Items[i]})
	}

	var replicaSets appsv1.ReplicaSetList
	if err := clientAdapter.client.List(ctx, &replicaSets); err != nil {
		return nil, fmt.Errorf("list replicasets: %w", err)
	}
	for i := range replicaSets.Items {
		if len(replicaSets.Items[i].OwnerReferences) > 0 {
			continue
		}
		workloads = append(workloads, Workload{Kind: core.KindReplicaSet, Object: &replicaSets.Items[i]})
	}

	return workloads, nil
}

// GetNode reads a cluster scoped node.
func (clientAdapter *controllerRuntimeClient) GetNode(ctx context.Context, name string) (*corev1.Node, error) {
	var node corev1.Node

	if err := clientAdapter.client.Get(ctx, types.NamespacedName{Name: name}, &node); err != nil {
		return nil, err
	}

	return &node, nil
}
