package core

import "time"

// Trigger names as they appear in playbook configuration.
const (
	TriggerImagePullBackoff = "on_image_pull_backoff"
)

// Container waiting reasons inspected by pod triggers.
const (
	ReasonImagePullBackOff = "ImagePullBackOff"
	ReasonCrashLoopBackOff = "CrashLoopBackOff"
)

// Workload kinds tracked by service discovery.
const (
	KindDeployment  = "Deployment"
	KindStatefulSet = "StatefulSet"
	KindDaemonSet   = "DaemonSet"
	KindReplicaSet  = "ReplicaSet"
)

// Trigger defaults
const (
	DefaultRateLimitSeconds = 14400
	DefaultFireDelaySeconds = 120
)

// Discovery and silencer defaults
const (
	DefaultDiscoveryPeriod       = 90 * time.Second
	MinDiscoveryPeriod           = 5 * time.Second
	DefaultPostRestartSilenceSec = 300
)

// Kubernetes event reasons emitted when a playbook fires.
const (
	EventReasonPlaybookFired = "PlaybookTriggered"
	EventReasonActionFailed  = "PlaybookActionFailed"
)
