package summary

import (
	"testing"

	"clusterwatch/pkg/core"
)

func TestCounts(t *testing.T) {
	var sum Summary
	sum.Record(core.ServiceInfo{Namespace: "b", Name: "api", ServiceType: core.KindDeployment}, ActionCreated)
	sum.Record(core.ServiceInfo{Namespace: "a", Name: "db", ServiceType: core.KindStatefulSet}, ActionUpdated)
	sum.Record(core.ServiceInfo{Namespace: "a", Name: "old", Deleted: true}, ActionDeleted)
	sum.Record(core.ServiceInfo{Namespace: "c", Name: "web", ServiceType: core.KindDeployment}, ActionCreated)

	if got := sum.Count(ActionCreated); got != 2 {
		t.Fatalf("expected 2 created, got %d", got)
	}
	if got := sum.Count(ActionDeleted); got != 1 {
		t.Fatalf("expected 1 deleted, got %d", got)
	}
	if got := sum.Published(); got != 4 {
		t.Fatalf("expected 4 published, got %d", got)
	}

	sorted := sum.SortedActions()
	want := []string{"a/db", "a/old", "b/api", "c/web"}
	for i, key := range want {
		if sorted[i].Service.Key() != key {
			t.Fatalf("position %d: expected %s got %s", i, key, sorted[i].Service.Key())
		}
	}
	if sum.Actions[0].Service.Key() != "b/api" {
		t.Fatalf("SortedActions must not reorder the summary")
	}
}

func TestNilSummary(t *testing.T) {
	var sum *Summary
	if sum.Count(ActionCreated) != 0 || sum.Published() != 0 || sum.SortedActions() != nil {
		t.Fatalf("nil summary should report nothing")
	}
}
