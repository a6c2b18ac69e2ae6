package silencers

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"clusterwatch/pkg/adapters"
	"clusterwatch/pkg/core"
)

// PodRef locates the pod an alert is about.
type PodRef struct {
	Namespace string
	Name      string
	NodeName  string
}

// Alert is a notification flowing through a playbook. A silencer sets
// StopProcessing to drop it.
type Alert struct {
	Name           string
	Severity       string
	Labels         map[string]string
	StartsAt       time.Time
	Pod            *PodRef
	StopProcessing bool
}

// Silencer may mark an alert as silenced. Silencers never fail: missing
// data leaves the alert untouched.
type Silencer interface {
	Silence(ctx context.Context, alert *Alert)
}

// SeveritySilencer silences alerts of one severity.
type SeveritySilencer struct {
	Severity string
}

func (s SeveritySilencer) Silence(_ context.Context, alert *Alert) {
	if alert.Severity == s.Severity {
		alert.StopProcessing = true
	}
}

// NameSilencer silences alerts by name.
type NameSilencer struct {
	Names []string
}

func (s NameSilencer) Silence(_ context.Context, alert *Alert) {
	for _, name := range s.Names {
		if alert.Name == name {
			alert.StopProcessing = true
			return
		}
	}
}

// NodeRestartSilencer silences pod alerts while the pod's node is within
// PostRestartSilence of its last start.
type NodeRestartSilencer struct {
	PostRestartSilence time.Duration

	nodes  adapters.NodeGetter
	clock  core.Clock
	logger logr.Logger
}

func NewNodeRestartSilencer(postRestartSilence time.Duration, nodes adapters.NodeGetter, clock core.Clock, logger logr.Logger) *NodeRestartSilencer {
	if postRestartSilence <= 0 {
		postRestartSilence = core.DefaultPostRestartSilenceSec * time.Second
	}
	if clock == nil {
		clock = core.RealClock()
	}
	return &NodeRestartSilencer{PostRestartSilence: postRestartSilence, nodes: nodes, clock: clock, logger: logger}
}

func (s *NodeRestartSilencer) Silence(ctx context.Context, alert *Alert) {
	if alert.Pod == nil || alert.Pod.NodeName == "" {
		return
	}

	node, err := s.nodes.GetNode(ctx, alert.Pod.NodeName)
	if err != nil {
		if apierrors.IsNotFound(err) {
			s.logger.Info("node not found for node restart silencer", "node", alert.Pod.NodeName, "alert", alert.Name)
		} else {
			s.logger.Error(err, "read node for node restart silencer", "node", alert.Pod.NodeName, "alert", alert.Name)
		}
		return
	}

	alert.StopProcessing = s.clock.Now().Before(NodeStartTime(node).Add(s.PostRestartSilence))
}

// NodeStartTime is the last transition of the Ready condition, or the
// creation time when the node never reported one.
func NodeStartTime(node *corev1.Node) time.Time {
	for _, condition := range node.Status.Conditions {
		if condition.Type == corev1.NodeReady && !condition.LastTransitionTime.IsZero() {
			return condition.LastTransitionTime.Time
		}
	}
	return node.CreationTimestamp.Time
}

// Chain runs silencers in order.
type Chain []Silencer

// Process stops at the first silencer that silences the alert and reports
// whether it was silenced.
func (c Chain) Process(ctx context.Context, alert *Alert) bool {
	for _, silencer := range c {
		if alert.StopProcessing {
			break
		}
		silencer.Silence(ctx, alert)
	}
	return alert.StopProcessing
}
