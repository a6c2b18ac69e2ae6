package playbooks

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clusterwatch/pkg/core"
	"clusterwatch/pkg/ratelimit"
	"clusterwatch/pkg/silencers"
	"clusterwatch/pkg/triggers"
)

const sampleConfig = `
customPlaybooks:
- name: image-pull
  triggers:
  - on_image_pull_backoff:
      rate_limit: 3600
      fire_delay: 60
      namespace_prefix: prod
  actions:
  - node_restart_silencer: {post_restart_silence: 600}
  - severity_silencer: {severity: info}
  - record_event: {reason: ImagePullBackOff}
- triggers:
  - on_image_pull_backoff: {}
  actions:
  - log_alert:
`

func testDeps() Dependencies {
	return Dependencies{
		Limiter: ratelimit.New(nil),
		Nodes:   &nodeStub{},
		Logger:  logr.Discard(),
	}
}

func TestParseAndBuild(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)
	require.Len(t, cfg.CustomPlaybooks, 2)

	playbooks, err := Build(cfg, DefaultRegistry(), testDeps())
	require.NoError(t, err)
	require.Len(t, playbooks, 2)

	assert.Equal(t, "image-pull", playbooks[0].ID)
	assert.Equal(t, "playbook-1", playbooks[1].ID)

	trigger, ok := playbooks[0].Triggers[0].(*triggers.PodImagePullBackoffTrigger)
	require.True(t, ok)
	assert.Equal(t, time.Hour, trigger.RateLimit)
	assert.Equal(t, time.Minute, trigger.FireDelay)
	assert.Equal(t, "prod", trigger.NamespacePrefix)

	defaulted := playbooks[1].Triggers[0].(*triggers.PodImagePullBackoffTrigger)
	assert.Equal(t, time.Duration(core.DefaultRateLimitSeconds)*time.Second, defaulted.RateLimit)

	var names []string
	for _, action := range playbooks[0].Actions {
		names = append(names, action.Name())
	}
	assert.Equal(t, []string{ActionRecordEvent}, names)
	require.Len(t, playbooks[0].Silencers, 2)
	assert.IsType(t, &silencers.NodeRestartSilencer{}, playbooks[0].Silencers[0])
	assert.Equal(t, silencers.SeveritySilencer{Severity: "info"}, playbooks[0].Silencers[1])
	assert.Empty(t, playbooks[1].Silencers)
	assert.Equal(t, ActionLogAlert, playbooks[1].Actions[0].Name())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbooks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.CustomPlaybooks, 2)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigErrors(t *testing.T) {
	cases := map[string]string{
		"unknown top level field": "playbooks: []",
		"no triggers":             "customPlaybooks:\n- actions:\n  - log_alert: {}",
		"no actions":              "customPlaybooks:\n- triggers:\n  - on_image_pull_backoff: {}",
		"two names in one entry":  "customPlaybooks:\n- triggers:\n  - {on_image_pull_backoff: {}, other: {}}\n  actions:\n  - log_alert: {}",
		"not yaml":                "customPlaybooks: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	cases := map[string]string{
		"unknown trigger":       "customPlaybooks:\n- triggers:\n  - on_pod_crash: {}\n  actions:\n  - log_alert: {}",
		"unknown action":        "customPlaybooks:\n- triggers:\n  - on_image_pull_backoff: {}\n  actions:\n  - page_someone: {}",
		"negative rate limit":   "customPlaybooks:\n- triggers:\n  - on_image_pull_backoff: {rate_limit: -1}\n  actions:\n  - log_alert: {}",
		"bad selector":          "customPlaybooks:\n- triggers:\n  - on_image_pull_backoff: {labels_selector: 'a in (b'}\n  actions:\n  - log_alert: {}",
		"unknown trigger param": "customPlaybooks:\n- triggers:\n  - on_image_pull_backoff: {ratelimit: 5}\n  actions:\n  - log_alert: {}",
		"empty name silencer":   "customPlaybooks:\n- triggers:\n  - on_image_pull_backoff: {}\n  actions:\n  - name_silencer: {}",
		"duplicate names":       "customPlaybooks:\n- name: a\n  triggers:\n  - on_image_pull_backoff: {}\n  actions:\n  - log_alert: {}\n- name: a\n  triggers:\n  - on_image_pull_backoff: {}\n  actions:\n  - log_alert: {}",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(body))
			require.NoError(t, err)
			_, err = Build(cfg, DefaultRegistry(), testDeps())
			assert.Error(t, err)
		})
	}
}

func TestNodeRestartSilencerNeedsClusterAccess(t *testing.T) {
	cfg, err := ParseConfig([]byte("customPlaybooks:\n- triggers:\n  - on_image_pull_backoff: {}\n  actions:\n  - node_restart_silencer: {}"))
	require.NoError(t, err)
	deps := testDeps()
	deps.Nodes = nil
	_, err = Build(cfg, DefaultRegistry(), deps)
	assert.ErrorContains(t, err, "requires cluster access")
}
