package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dohr-michael/ruleflow/internal/events"
)

func TestStatsTracker_Accumulation(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()

	st := NewStatsTracker(bus)
	defer st.Close()

	bus.Publish(events.NewTypedEvent(events.SourceEngine, events.RuleExecutedPayload{RuleID: "r1", RuleName: "one"}))
	bus.Publish(events.NewTypedEvent(events.SourceEngine, events.RuleExecutedPayload{RuleID: "r1", RuleName: "one"}))
	bus.Publish(events.NewTypedEvent(events.SourceEngine, events.RuleThrottledPayload{RuleID: "r1"}))
	bus.Publish(events.NewTypedEvent(events.SourceEngine, events.RuleThrottledPayload{RuleID: "r2", RuleName: "two"}))

	require.Eventually(t, func() bool {
		snap := st.Snapshot()
		return len(snap) == 2 && snap[0].Executions == 2 && snap[0].Throttled == 1 && snap[1].Throttled == 1
	}, time.Second, 10*time.Millisecond)

	snap := st.Snapshot()
	assert.Equal(t, "r1", snap[0].RuleID)
	assert.Equal(t, "one", snap[0].RuleName)
	assert.NotNil(t, snap[0].LastExecuted)
	assert.Equal(t, "two", snap[1].RuleName)
	assert.Nil(t, snap[1].LastExecuted)
}
