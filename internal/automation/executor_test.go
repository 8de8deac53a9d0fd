package automation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingAction appends its value to a shared log, then behaves per mode.
type recordingAction struct {
	Descriptor
	log  *[]string
	mode string
}

func (a recordingAction) Execute(_ context.Context, act Action, _ TaskEvent, _ Env) error {
	*a.log = append(*a.log, act.Value)
	switch a.mode {
	case "error":
		return errBoom
	case "panic":
		panic("action exploded")
	}
	return nil
}

func TestExecutor_RunsInOrderAndFailsOpen(t *testing.T) {
	var log []string
	reg := NewRegistry()
	reg.RegisterAction(recordingAction{Descriptor: Descriptor{CapID: "ok"}, log: &log})
	reg.RegisterAction(recordingAction{Descriptor: Descriptor{CapID: "error"}, log: &log, mode: "error"})
	reg.RegisterAction(recordingAction{Descriptor: Descriptor{CapID: "panic"}, log: &log, mode: "panic"})
	x := NewExecutor(reg, Env{})

	done := x.ExecuteAll(context.Background(), []Action{
		{Type: "ok", Value: "1"},
		{Type: "error", Value: "2"},
		{Type: "missing", Value: "skipped"},
		{Type: "panic", Value: "3"},
		{Type: "ok", Value: "4"},
	}, TaskEvent{Type: TriggerTaskCreated})

	assert.Equal(t, []string{"1", "2", "3", "4"}, log)
	assert.Equal(t, 2, done)
}
