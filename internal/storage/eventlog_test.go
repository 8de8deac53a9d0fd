package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dohr-michael/ruleflow/internal/events"
	"github.com/dohr-michael/ruleflow/internal/host"
)

func TestEventLogger_WriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)
	defer el.Close()

	bus.Publish(events.NewTypedEvent(events.SourceEngine, events.RuleExecutedPayload{
		RuleID:   "rule_1",
		RuleName: "tag milk",
		Trigger:  "taskCompleted",
	}))
	// Task events are not logged.
	bus.Publish(events.NewTypedEvent(events.SourceHost, events.NewTaskPayload(events.EventTaskCreated, &host.Task{ID: "t"}, nil)))

	require.Eventually(t, func() bool {
		got, err := ReadEventLog(filepath.Join(dir, EventLogFile), 10)
		return err == nil && len(got) == 1
	}, time.Second, 10*time.Millisecond)

	got, err := ReadEventLog(filepath.Join(dir, EventLogFile), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, events.EventRuleExecuted, got[0].Type)

	p, ok := events.GetRuleExecutedPayload(got[0])
	require.True(t, ok)
	assert.Equal(t, "rule_1", p.RuleID)
}

func TestReadEventLog_LimitAndCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), EventLogFile)
	content := `{"id":"1","type":"rule.executed"}
not json
{"id":"2","type":"rule.executed"}

{"id":"3","type":"rule.throttled"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := ReadEventLog(path, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}

func TestReadEventLog_Missing(t *testing.T) {
	got, err := ReadEventLog(filepath.Join(t.TempDir(), "nope.jsonl"), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
