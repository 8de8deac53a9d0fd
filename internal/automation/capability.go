package automation

import (
	"context"
	"time"

	"github.com/dohr-michael/ruleflow/internal/host"
)

// Capability is the metadata every trigger, condition and action exposes
// for the rule editor catalog.
type Capability interface {
	ID() string
	Name() string
	Description() string
}

// TriggerCapability decides whether an event activates a rule.
type TriggerCapability interface {
	Capability
	Matches(event TaskEvent, value string) bool
}

// ConditionCapability filters an activated rule.
type ConditionCapability interface {
	Capability
	Check(ctx context.Context, cond Condition, event TaskEvent, env Env) (bool, error)
}

// ActionCapability performs a side effect against the host.
type ActionCapability interface {
	Capability
	Execute(ctx context.Context, action Action, event TaskEvent, env Env) error
}

// Env is the shared context handed to conditions and actions.
type Env struct {
	Host  host.Host
	Cache *DataCache
	Now   func() time.Time
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Descriptor implements the metadata half of Capability and is embedded by
// the built-in capabilities.
type Descriptor struct {
	CapID          string
	CapName        string
	CapDescription string
}

func (d Descriptor) ID() string          { return d.CapID }
func (d Descriptor) Name() string        { return d.CapName }
func (d Descriptor) Description() string { return d.CapDescription }
