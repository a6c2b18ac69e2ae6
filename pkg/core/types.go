package core

import (
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ServiceInfo is the identity and state snapshot of one discovered workload.
type ServiceInfo struct {
	Name        string `json:"name"`
	Namespace   string `json:"namespace"`
	ServiceType string `json:"service_type"`
	Deleted     bool   `json:"deleted"`
}

// NewServiceInfo builds a ServiceInfo for a workload object of the given kind.
func NewServiceInfo(kind string, obj metav1.Object) ServiceInfo {
	return ServiceInfo{
		Name:        obj.GetName(),
		Namespace:   obj.GetNamespace(),
		ServiceType: kind,
	}
}

// Key identifies the workload independently of its type.
func (s ServiceInfo) Key() string {
	return fmt.Sprintf("%s/%s", s.Namespace, s.Name)
}

// Equal reports whether all fields match.
func (s ServiceInfo) Equal(other ServiceInfo) bool {
	return s == other
}

func (s ServiceInfo) String() string {
	return fmt.Sprintf("%s %s (deleted=%t)", s.ServiceType, s.Key(), s.Deleted)
}

// TriggerParams models the user facing trigger configuration.
type TriggerParams struct {
	NamePrefix      string `json:"name_prefix,omitempty"`
	NamespacePrefix string `json:"namespace_prefix,omitempty"`
	LabelsSelector  string `json:"labels_selector,omitempty"`
	RateLimit       *int   `json:"rate_limit,omitempty"` // seconds
	FireDelay       *int   `json:"fire_delay,omitempty"` // seconds
}

// SinkConfig configures a discovery sink.
type SinkConfig struct {
	Name            string `json:"name"`
	ClusterName     string `json:"cluster_name"`
	Token           string `json:"token"`
	DiscoveryPeriod int    `json:"discovery_period_sec,omitempty"`
}

// SinkToken is the decoded form of SinkConfig.Token.
type SinkToken struct {
	StoreURL  string `json:"store_url"`
	APIKey    string `json:"api_key"`
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Condition types reported for a discovery sink.
const (
	CondReady    = "Ready"
	CondDegraded = "Degraded"
)

// Condition mirrors metav1.Condition with string timestamps.
type Condition struct {
	Type               string `json:"type"`
	Status             string `json:"status"`
	Reason             string `json:"reason,omitempty"`
	Message            string `json:"message,omitempty"`
	LastTransitionTime string `json:"lastTransitionTime,omitempty"`
}

// DiscoveryStatus is the observed health of a sink's discovery loop.
type DiscoveryStatus struct {
	LastSyncTime        string      `json:"lastSyncTime,omitempty"`
	ActiveServices      int32       `json:"activeServices"`
	Published           int32       `json:"published"`
	ConsecutiveFailures int32       `json:"consecutiveFailures"`
	LastErrorCategory   string      `json:"lastErrorCategory,omitempty"`
	Conditions          []Condition `json:"conditions,omitempty"`
}
