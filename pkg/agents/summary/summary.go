package summary

import (
	"sort"

	"clusterwatch/pkg/core"
)

// ActionType enumerates what a discovery cycle published for a service.
type ActionType string

// Action types emitted by the discovery reconciler for observability.
const (
	ActionCreated ActionType = "created"
	ActionUpdated ActionType = "updated"
	ActionDeleted ActionType = "deleted"
)

// ServiceAction captures a single publish performed during a cycle.
type ServiceAction struct {
	Service core.ServiceInfo
	Action  ActionType
}

// Summary aggregates one discovery cycle for metrics, status and logs.
type Summary struct {
	Active  int
	Actions []ServiceAction
}

// Record appends a publish to the summary.
func (s *Summary) Record(service core.ServiceInfo, action ActionType) {
	s.Actions = append(s.Actions, ServiceAction{Service: service, Action: action})
}

// Count returns the number of actions for the provided type.
func (s *Summary) Count(t ActionType) int {
	if s == nil {
		return 0
	}
	count := 0
	for _, a := range s.Actions {
		if a.Action == t {
			count++
		}
	}
	return count
}

// Published returns the number of publishes of any type.
func (s *Summary) Published() int {
	if s == nil {
		return 0
	}
	return len(s.Actions)
}

// SortedActions returns a copy of the actions ordered by service key for determinism.
func (s *Summary) SortedActions() []ServiceAction {
	if s == nil || len(s.Actions) == 0 {
		return nil
	}
	out := append([]ServiceAction(nil), s.Actions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Service.Key() < out[j].Service.Key() })
	return out
}
