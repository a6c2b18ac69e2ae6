package playbooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Config is the playbook configuration file.
//
//	customPlaybooks:
//	- name: image-pull
//	  triggers:
//	  - on_image_pull_backoff: {rate_limit: 3600}
//	  actions:
//	  - node_restart_silencer: {post_restart_silence: 300}
//	  - record_event: {}
type Config struct {
	CustomPlaybooks []Definition `json:"customPlaybooks"`
}

// Definition declares one playbook. Every trigger and action entry is a
// single key map from its registered name to its parameters.
type Definition struct {
	Name     string                       `json:"name,omitempty"`
	Triggers []map[string]json.RawMessage `json:"triggers"`
	Actions  []map[string]json.RawMessage `json:"actions"`
}

// LoadConfig reads and parses a YAML playbook configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbooks config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML or JSON playbook configuration.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse playbooks config: %w", err)
	}
	for i, definition := range cfg.CustomPlaybooks {
		if len(definition.Triggers) == 0 {
			return nil, fmt.Errorf("playbook %s: at least one trigger is required", definition.id(i))
		}
		if len(definition.Actions) == 0 {
			return nil, fmt.Errorf("playbook %s: at least one action is required", definition.id(i))
		}
		for _, entry := range append(append([]map[string]json.RawMessage{}, definition.Triggers...), definition.Actions...) {
			if len(entry) != 1 {
				return nil, fmt.Errorf("playbook %s: each trigger and action must have exactly one name, got %d", definition.id(i), len(entry))
			}
		}
	}
	return &cfg, nil
}

func (d Definition) id(index int) string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("playbook-%d", index)
}

// single returns the only name and parameters of a trigger or action entry.
func single(entry map[string]json.RawMessage) (string, json.RawMessage) {
	for name, raw := range entry {
		return name, raw
	}
	return "", nil
}

// decodeParams strictly decodes raw into out. Absent or null params leave
// out untouched.
func decodeParams(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}
