package automation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dohr-michael/ruleflow/internal/host"
)

// countingCondition returns a fixed result and counts its calls.
type countingCondition struct {
	Descriptor
	result bool
	err    error
	calls  int
}

func (c *countingCondition) Check(context.Context, Condition, TaskEvent, Env) (bool, error) {
	c.calls++
	return c.result, c.err
}

func newCounting(id string, result bool) *countingCondition {
	return &countingCondition{Descriptor: Descriptor{CapID: id}, result: result}
}

func TestEvaluator_AllConditionsMatch(t *testing.T) {
	yes, no, after := newCounting("yes", true), newCounting("no", false), newCounting("after", true)
	reg := NewRegistry()
	reg.RegisterCondition(yes)
	reg.RegisterCondition(no)
	reg.RegisterCondition(after)
	ev := NewEvaluator(reg, Env{})
	ctx := context.Background()
	event := TaskEvent{Type: TriggerTaskCreated, Task: &host.Task{Title: "x"}}

	assert.True(t, ev.AllConditionsMatch(ctx, nil, event))
	assert.True(t, ev.AllConditionsMatch(ctx, []Condition{{Type: "yes"}, {Type: "after"}}, event))

	yes.calls, after.calls = 0, 0
	assert.False(t, ev.AllConditionsMatch(ctx, []Condition{{Type: "yes"}, {Type: "no"}, {Type: "after"}}, event))
	assert.Equal(t, 1, yes.calls)
	assert.Equal(t, 1, no.calls)
	assert.Equal(t, 0, after.calls, "evaluation stops at the first failing condition")
}

func TestEvaluator_FailsClosed(t *testing.T) {
	after := newCounting("after", true)
	broken := newCounting("broken", true)
	broken.err = errBoom
	reg := NewRegistry()
	reg.RegisterCondition(after)
	reg.RegisterCondition(broken)
	ev := NewEvaluator(reg, Env{})
	event := TaskEvent{Type: TriggerTaskCreated, Task: &host.Task{}}

	assert.False(t, ev.AllConditionsMatch(context.Background(), []Condition{{Type: "unknown"}, {Type: "after"}}, event))
	assert.False(t, ev.AllConditionsMatch(context.Background(), []Condition{{Type: "broken"}, {Type: "after"}}, event))
	assert.Equal(t, 0, after.calls)
}
