package playbooks

import (
	"fmt"

	"clusterwatch/pkg/silencers"
	"clusterwatch/pkg/triggers"
)

// Playbook is a set of triggers and the ordered actions they start.
// Silencer steps are collected into Silencers and run before Actions.
type Playbook struct {
	ID        string
	Triggers  []triggers.Trigger
	Silencers silencers.Chain
	Actions   []Action
}

// Build resolves every definition of cfg against registry.
func Build(cfg *Config, registry *Registry, deps Dependencies) ([]*Playbook, error) {
	if cfg == nil {
		return nil, nil
	}
	seen := map[string]struct{}{}
	playbooks := make([]*Playbook, 0, len(cfg.CustomPlaybooks))
	for i, definition := range cfg.CustomPlaybooks {
		playbook := &Playbook{ID: definition.id(i)}
		if _, duplicate := seen[playbook.ID]; duplicate {
			return nil, fmt.Errorf("duplicate playbook name %q", playbook.ID)
		}
		seen[playbook.ID] = struct{}{}

		for _, entry := range definition.Triggers {
			name, raw := single(entry)
			trigger, err := registry.Trigger(name, raw, deps)
			if err != nil {
				return nil, fmt.Errorf("playbook %s: %w", playbook.ID, err)
			}
			playbook.Triggers = append(playbook.Triggers, trigger)
		}

		for _, entry := range definition.Actions {
			name, raw := single(entry)
			action, err := registry.Action(name, raw, deps)
			if err != nil {
				return nil, fmt.Errorf("playbook %s: %w", playbook.ID, err)
			}
			if step, ok := action.(*silencerAction); ok {
				playbook.Silencers = append(playbook.Silencers, step.silencer)
				continue
			}
			playbook.Actions = append(playbook.Actions, action)
		}

		playbooks = append(playbooks, playbook)
	}
	return playbooks, nil
}
