package core_test

import (
	core "clusterwatch/pkg/core"
	"testing"
	"time"
)

func TestConstantsStability(t *testing.T) {
	if core.TriggerImagePullBackoff != "on_image_pull_backoff" {
		t.Fatalf("TriggerImagePullBackoff changed: %s", core.TriggerImagePullBackoff)
	}
	if core.ReasonImagePullBackOff != "ImagePullBackOff" {
		t.Fatalf("ReasonImagePullBackOff changed: %s", core.ReasonImagePullBackOff)
	}
	if core.DefaultRateLimitSeconds != 14400 || core.DefaultFireDelaySeconds != 120 {
		t.Fatalf("trigger defaults changed: %d/%d", core.DefaultRateLimitSeconds, core.DefaultFireDelaySeconds)
	}
	if core.DefaultDiscoveryPeriod != 90*time.Second {
		t.Fatalf("DefaultDiscoveryPeriod changed: %s", core.DefaultDiscoveryPeriod)
	}
}
