package status

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"clusterwatch/pkg/agents/summary"
	"clusterwatch/pkg/core"
)

// DefaultFailureThreshold is the number of consecutive failed cycles after
// which the readiness check reports an error.
const DefaultFailureThreshold = 3

// Compute builds a DiscoveryStatus from the outcome of one discovery cycle.
func Compute(previous core.DiscoveryStatus, sum *summary.Summary, cycleErr error, now time.Time) core.DiscoveryStatus {
	status := previous
	timestamp := now.UTC().Format(time.RFC3339)
	if cycleErr != nil {
		status.ConsecutiveFailures++
		status.LastErrorCategory = string(core.ClassifyError(cycleErr))
	} else {
		status.LastSyncTime = timestamp
		status.ConsecutiveFailures = 0
		status.LastErrorCategory = ""
		if sum != nil {
			status.ActiveServices = int32(sum.Active)
			status.Published = int32(sum.Published())
		}
	}
	status.Conditions = mergeConditions(previous.Conditions, desiredConditions(previous, sum, cycleErr, timestamp))
	return status
}

func desiredConditions(previous core.DiscoveryStatus, sum *summary.Summary, cycleErr error, timestamp string) map[string]core.Condition {
	ready := core.Condition{Type: core.CondReady, Status: "True", Reason: "Discovered", LastTransitionTime: timestamp}
	degraded := core.Condition{Type: core.CondDegraded, Status: "False", Reason: "Healthy", Message: "no errors", LastTransitionTime: timestamp}

	switch {
	case cycleErr != nil:
		degraded.Status = "True"
		degraded.Reason = "Error"
		degraded.Message = fmt.Sprintf("discovery failed: %v", cycleErr)
		if previous.LastSyncTime == "" {
			ready.Status = "False"
			ready.Reason = "NeverSynced"
			ready.Message = "no discovery cycle has completed"
		} else {
			ready.Reason = "Stale"
			ready.Message = fmt.Sprintf("last successful discovery at %s", previous.LastSyncTime)
		}
	case sum != nil:
		ready.Message = fmt.Sprintf("tracking %d services", sum.Active)
	default:
		ready.Message = "discovery succeeded"
	}

	return map[string]core.Condition{
		core.CondReady:    ready,
		core.CondDegraded: degraded,
	}
}

func mergeConditions(previous []core.Condition, desired map[string]core.Condition) []core.Condition {
	byType := map[string]core.Condition{}
	for _, cond := range previous {
		byType[cond.Type] = cond
	}
	result := make([]core.Condition, 0, len(desired))
	for _, condType := range []string{core.CondReady, core.CondDegraded} {
		cond := desired[condType]
		if prev, ok := byType[cond.Type]; ok && prev.Status == cond.Status && prev.Reason == cond.Reason {
			cond.LastTransitionTime = prev.LastTransitionTime
		}
		result = append(result, cond)
	}
	return result
}

// FindCondition returns the condition of the given type, if any.
func FindCondition(conds []core.Condition, condType string) (core.Condition, bool) {
	for _, c := range conds {
		if c.Type == condType {
			return c, true
		}
	}
	return core.Condition{}, false
}

// Tracker keeps the latest DiscoveryStatus of a sink and serves it as a
// health check.
type Tracker struct {
	mu               sync.RWMutex
	status           core.DiscoveryStatus
	clock            core.Clock
	FailureThreshold int32
}

// NewTracker returns a Tracker using clock, or the wall clock when nil.
func NewTracker(clock core.Clock) *Tracker {
	if clock == nil {
		clock = core.RealClock()
	}
	return &Tracker{clock: clock, FailureThreshold: DefaultFailureThreshold}
}

// Observe folds the outcome of one cycle into the tracked status.
func (t *Tracker) Observe(sum *summary.Summary, cycleErr error) core.DiscoveryStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Compute(t.status, sum, cycleErr, t.clock.Now())
	return t.status
}

// Status returns a copy of the tracked status.
func (t *Tracker) Status() core.DiscoveryStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := t.status
	out.Conditions = append([]core.Condition(nil), t.status.Conditions...)
	return out
}

// Check satisfies healthz.Checker. It fails until the first successful cycle
// and after FailureThreshold consecutive failures.
func (t *Tracker) Check(_ *http.Request) error {
	status := t.Status()
	if status.LastSyncTime == "" {
		return fmt.Errorf("discovery has not completed a cycle yet")
	}
	if t.FailureThreshold > 0 && status.ConsecutiveFailures >= t.FailureThreshold {
		return fmt.Errorf("discovery failed %d consecutive cycles (last error category %q)", status.ConsecutiveFailures, status.LastErrorCategory)
	}
	return nil
}
