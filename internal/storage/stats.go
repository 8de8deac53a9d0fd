package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/dohr-michael/ruleflow/internal/events"
)

// RuleStat aggregates what a rule did since the process started.
type RuleStat struct {
	RuleID       string     `json:"rule_id"`
	RuleName     string     `json:"rule_name"`
	Executions   int        `json:"executions"`
	Throttled    int        `json:"throttled"`
	LastExecuted *time.Time `json:"last_executed,omitempty"`
}

// StatsTracker subscribes to rule events and accumulates per-rule counters.
type StatsTracker struct {
	mu          sync.Mutex
	stats       map[string]*RuleStat
	unsubscribe func()
}

// NewStatsTracker creates a StatsTracker listening on bus.
func NewStatsTracker(bus *events.Bus) *StatsTracker {
	st := &StatsTracker{stats: make(map[string]*RuleStat)}
	st.unsubscribe = bus.Subscribe(st.handleEvent, events.EventRuleExecuted, events.EventRuleThrottled)
	return st
}

// Close unsubscribes the tracker from the event bus.
func (st *StatsTracker) Close() {
	if st.unsubscribe != nil {
		st.unsubscribe()
	}
}

func (st *StatsTracker) handleEvent(e events.Event) {
	switch e.Type {
	case events.EventRuleExecuted:
		p, ok := events.GetRuleExecutedPayload(e)
		if !ok || p.RuleID == "" {
			return
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		s := st.entry(p.RuleID, p.RuleName)
		s.Executions++
		ts := e.Timestamp
		s.LastExecuted = &ts
	case events.EventRuleThrottled:
		p, ok := events.GetRuleThrottledPayload(e)
		if !ok || p.RuleID == "" {
			return
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		st.entry(p.RuleID, p.RuleName).Throttled++
	}
}

// entry returns the stat for id, creating it. Caller must hold st.mu.
func (st *StatsTracker) entry(id, name string) *RuleStat {
	s, ok := st.stats[id]
	if !ok {
		s = &RuleStat{RuleID: id}
		st.stats[id] = s
	}
	if name != "" {
		s.RuleName = name
	}
	return s
}

// Snapshot returns a copy of all stats sorted by rule id.
func (st *StatsTracker) Snapshot() []RuleStat {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]RuleStat, 0, len(st.stats))
	for _, s := range st.stats {
		c := *s
		if s.LastExecuted != nil {
			ts := *s.LastExecuted
			c.LastExecuted = &ts
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}
