package brain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/moorebrett0/moodstage/internal/stage"
)

// ToolParam is one argument of a tool. Type is a JSON schema type.
type ToolParam struct {
	Name        string
	Type        string // "string" or "boolean"
	Description string
	Enum        []string
	Required    bool
}

// ToolSpec describes a tool independently of any provider's schema types.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParam
	Mutates     bool // refused for non-owners
}

// toolSpecs builds the tool list for a catalog of mood names.
func toolSpecs(moods []string) []ToolSpec {
	return []ToolSpec{
		{
			Name:        "get_state",
			Description: "Return the current mood, latest environment reading, rule list and output connection states as JSON.",
		},
		{
			Name:        "set_mood",
			Description: "Activate a mood immediately, overriding the rules until they next match.",
			Params: []ToolParam{
				{Name: "mood", Type: "string", Description: "Mood to activate", Enum: moods, Required: true},
			},
			Mutates: true,
		},
		{
			Name:        "set_rule_enabled",
			Description: "Enable or disable a rule by ID or exact name.",
			Params: []ToolParam{
				{Name: "rule", Type: "string", Description: "Rule ID or name", Required: true},
				{Name: "enabled", Type: "boolean", Description: "Whether the rule should be evaluated", Required: true},
			},
			Mutates: true,
		},
		{
			Name:        "set_connection",
			Description: "Set the state of a show-control output (mock link state only).",
			Params: []ToolParam{
				{Name: "name", Type: "string", Description: "Connection name, e.g. QLab", Required: true},
				{Name: "state", Type: "string", Description: "New state", Enum: []string{
					string(stage.Connected), string(stage.Disconnected), string(stage.Errored),
				}, Required: true},
			},
			Mutates: true,
		},
	}
}

func (b *Brain) executeTool(name string, input json.RawMessage, allowWrites bool) (string, bool) {
	spec, ok := b.tools[name]
	if !ok {
		return fmt.Sprintf("unknown tool: %s", name), true
	}
	if spec.Mutates && !allowWrites {
		return "not permitted: only the installation owner can change the show", true
	}

	switch name {
	case "get_state":
		snap := b.store.Snapshot()
		out, err := json.Marshal(struct {
			Mood        string             `json:"mood"`
			Active      bool               `json:"active"`
			Override    bool               `json:"override"`
			Controls    stage.Controls     `json:"controls"`
			Reading     any                `json:"reading"`
			Rules       any                `json:"rules"`
			Connections []stage.Connection `json:"connections"`
		}{snap.Mood.Name, snap.Active, snap.Override, snap.Controls, snap.Reading, snap.Rules, snap.Connections})
		if err != nil {
			return err.Error(), true
		}
		return string(out), false

	case "set_mood":
		var params struct {
			Mood string `json:"mood"`
		}
		if err := json.Unmarshal(input, &params); err != nil {
			return fmt.Sprintf("invalid input: %v", err), true
		}
		slog.Info("brain: setting mood", "mood", params.Mood)
		changed, err := b.moods.SetMood(params.Mood)
		if err != nil {
			return fmt.Sprintf("Error: %v", err), true
		}
		if !changed {
			return fmt.Sprintf("%s was already active", params.Mood), false
		}
		return fmt.Sprintf("mood is now %s", params.Mood), false

	case "set_rule_enabled":
		var params struct {
			Rule    string `json:"rule"`
			Enabled *bool  `json:"enabled"`
		}
		if err := json.Unmarshal(input, &params); err != nil {
			return fmt.Sprintf("invalid input: %v", err), true
		}
		if params.Enabled == nil {
			return "invalid input: enabled is required", true
		}
		id := b.resolveRule(params.Rule)
		if id == "" {
			return fmt.Sprintf("Error: no rule %q", params.Rule), true
		}
		r, err := b.store.UpdateRule(id, stage.RulePatch{Enabled: params.Enabled})
		if err != nil {
			return fmt.Sprintf("Error: %v", err), true
		}
		slog.Info("brain: rule toggled", "rule", r.Name, "enabled", r.Enabled)
		return fmt.Sprintf("rule %q enabled=%v", r.Name, r.Enabled), false

	case "set_connection":
		var params struct {
			Name  string `json:"name"`
			State string `json:"state"`
		}
		if err := json.Unmarshal(input, &params); err != nil {
			return fmt.Sprintf("invalid input: %v", err), true
		}
		state, err := stage.ParseConnState(params.State)
		if err != nil {
			return fmt.Sprintf("Error: %v", err), true
		}
		if err := b.store.SetConnection(params.Name, state); err != nil {
			return fmt.Sprintf("Error: %v", err), true
		}
		slog.Info("brain: connection set", "connection", params.Name, "state", state)
		return fmt.Sprintf("%s is now %s", params.Name, state), false
	}
	return fmt.Sprintf("unknown tool: %s", name), true
}

// resolveRule accepts a rule ID or a case-insensitive name.
func (b *Brain) resolveRule(ref string) string {
	rules := b.store.Rules()
	for _, r := range rules {
		if r.ID == ref {
			return r.ID
		}
	}
	for _, r := range rules {
		if strings.EqualFold(r.Name, ref) {
			return r.ID
		}
	}
	return ""
}
