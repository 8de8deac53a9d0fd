package automation

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/dohr-michael/ruleflow/internal/host"
)

// TriggerType identifies what activates a rule.
type TriggerType string

const (
	TriggerTaskCreated   TriggerType = "taskCreated"
	TriggerTaskUpdated   TriggerType = "taskUpdated"
	TriggerTaskCompleted TriggerType = "taskCompleted"
	TriggerTimeBased     TriggerType = "timeBased"
)

// Trigger decides when a rule is considered. For timeBased triggers Value is
// a 24-hour "HH:MM" clock time.
type Trigger struct {
	Type  TriggerType `json:"type" yaml:"type"`
	Value string      `json:"value,omitempty" yaml:"value,omitempty"`
}

// Condition filters an activated rule. Type is a registered condition id.
type Condition struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

// Action is a side effect run when a rule fully matches. Type is a
// registered action id; the meaning of Value depends on it.
type Action struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

// Rule is a user-defined automation. ID never changes once assigned.
type Rule struct {
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	IsEnabled  bool        `json:"isEnabled" yaml:"isEnabled"`
	Trigger    Trigger     `json:"trigger" yaml:"trigger"`
	Conditions []Condition `json:"conditions" yaml:"conditions"`
	Actions    []Action    `json:"actions" yaml:"actions"`
}

// Clone returns a deep copy of the rule. Nil condition and action lists are
// normalized to empty slices so they serialize as [].
func (r Rule) Clone() Rule {
	c := r
	c.Conditions = slices.Clone(r.Conditions)
	if c.Conditions == nil {
		c.Conditions = []Condition{}
	}
	c.Actions = slices.Clone(r.Actions)
	if c.Actions == nil {
		c.Actions = []Action{}
	}
	return c
}

func cloneRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = r.Clone()
	}
	return out
}

// TaskEvent is what the engine evaluates rules against. Task is nil for
// synthetic time-based events.
type TaskEvent struct {
	Type              TriggerType `json:"type"`
	Task              *host.Task  `json:"task,omitempty"`
	PreviousTaskState *host.Task  `json:"previousTaskState,omitempty"`
}

// GenerateRuleID creates a unique rule identifier with "rule_" prefix.
func GenerateRuleID() string {
	u := uuid.New().String()
	return "rule_" + strings.ReplaceAll(u[:8], "-", "")
}
