package adapters

import (
	"time"

	"clusterwatch/pkg/agents/summary"
)

// Trigger outcomes recorded per evaluation.
const (
	TriggerOutcomeFired      = "fired"
	TriggerOutcomeSuppressed = "suppressed"
)

// MetricsRecorder captures metrics for discovery cycles and trigger activity.
type MetricsRecorder interface {
	// ObserveCycle records the outcome and duration of a discovery cycle.
	ObserveCycle(sink string, sum *summary.Summary, cycleErr error, duration time.Duration)
	// ObserveTrigger counts a trigger evaluation for a playbook.
	ObserveTrigger(trigger, outcome string)
	// IncActionError counts a failed playbook action.
	IncActionError(action string)
}

// NewNoopMetricsRecorder returns a MetricsRecorder that performs no-ops.
func NewNoopMetricsRecorder() MetricsRecorder {
	return noopMetricsRecorder{}
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) ObserveCycle(string, *summary.Summary, error, time.Duration) {}
func (noopMetricsRecorder) ObserveTrigger(string, string)                              {}
func (noopMetricsRecorder) IncActionError(string)                                      {}
