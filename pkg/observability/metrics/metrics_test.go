package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"clusterwatch/pkg/adapters"
	"clusterwatch/pkg/agents/summary"
	"clusterwatch/pkg/core"
)

func TestObserveCycle(t *testing.T) {
	rec := NewRecorder(prometheus.NewRegistry())

	sum := &summary.Summary{Active: 5}
	sum.Record(core.ServiceInfo{Namespace: "a", Name: "x"}, summary.ActionCreated)
	sum.Record(core.ServiceInfo{Namespace: "a", Name: "y"}, summary.ActionCreated)
	sum.Record(core.ServiceInfo{Namespace: "a", Name: "z", Deleted: true}, summary.ActionDeleted)
	rec.ObserveCycle("main", sum, nil, 2*time.Second)

	if got := testutil.ToFloat64(rec.cycles.WithLabelValues("main", "success")); got != 1 {
		t.Fatalf("expected success counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(rec.activeServices.WithLabelValues("main")); got != 5 {
		t.Fatalf("expected active gauge 5, got %v", got)
	}
	if got := testutil.ToFloat64(rec.published.WithLabelValues("main", "created")); got != 2 {
		t.Fatalf("expected 2 created publishes, got %v", got)
	}
	if got := testutil.ToFloat64(rec.published.WithLabelValues("main", "deleted")); got != 1 {
		t.Fatalf("expected 1 deleted publish, got %v", got)
	}

	rec.ObserveCycle("main", nil, context.DeadlineExceeded, time.Second)
	rec.ObserveCycle("main", nil, errors.New("boom"), time.Second)

	if got := testutil.ToFloat64(rec.cycles.WithLabelValues("main", string(core.ErrorCategoryTransient))); got != 1 {
		t.Fatalf("expected transient counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(rec.cycles.WithLabelValues("main", string(core.ErrorCategoryPermanent))); got != 1 {
		t.Fatalf("expected permanent counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(rec.activeServices.WithLabelValues("main")); got != 5 {
		t.Fatalf("failed cycles must not reset the active gauge, got %v", got)
	}
}

func TestObserveTriggerAndActions(t *testing.T) {
	rec := NewRecorder(prometheus.NewRegistry())
	rec.ObserveTrigger(core.TriggerImagePullBackoff, adapters.TriggerOutcomeFired)
	rec.ObserveTrigger(core.TriggerImagePullBackoff, adapters.TriggerOutcomeSuppressed)
	rec.ObserveTrigger(core.TriggerImagePullBackoff, adapters.TriggerOutcomeSuppressed)
	rec.IncActionError("record_event")

	if got := testutil.ToFloat64(rec.triggers.WithLabelValues(core.TriggerImagePullBackoff, adapters.TriggerOutcomeSuppressed)); got != 2 {
		t.Fatalf("expected 2 suppressed, got %v", got)
	}
	if got := testutil.ToFloat64(rec.actionErrors.WithLabelValues("record_event")); got != 1 {
		t.Fatalf("expected 1 action error, got %v", got)
	}
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewRecorder(reg)
	second := NewRecorder(reg)
	first.IncActionError("a")
	if got := testutil.ToFloat64(second.actionErrors.WithLabelValues("a")); got != 1 {
		t.Fatalf("expected shared collector, got %v", got)
	}
}

func TestNilRecorder(t *testing.T) {
	var rec *Recorder
	rec.ObserveCycle("main", nil, nil, time.Second)
	rec.ObserveTrigger("t", "fired")
	rec.IncActionError("a")
}
