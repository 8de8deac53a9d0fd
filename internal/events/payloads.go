package events

import (
	"encoding/json"
	"time"

	"github.com/dohr-michael/ruleflow/internal/host"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// TASK EVENTS
// =============================================================================

// TaskPayload carries a task lifecycle change. Previous is set for updates
// when the host knows the state before the change.
type TaskPayload struct {
	Kind     EventType  `json:"kind"`
	Task     *host.Task `json:"task,omitempty"`
	Previous *host.Task `json:"previous,omitempty"`
}

func (p TaskPayload) EventType() EventType { return p.Kind }

// NewTaskPayload builds a payload for one of the task.* event types.
func NewTaskPayload(kind EventType, task, previous *host.Task) TaskPayload {
	return TaskPayload{Kind: kind, Task: task, Previous: previous}
}

// =============================================================================
// ENGINE EVENTS
// =============================================================================

type RuleExecutedPayload struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Trigger  string `json:"trigger"`
	TaskID   string `json:"task_id,omitempty"`
	Actions  int    `json:"actions"`
}

func (RuleExecutedPayload) EventType() EventType { return EventRuleExecuted }

type RuleThrottledPayload struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Pending  bool   `json:"pending"`
}

func (RuleThrottledPayload) EventType() EventType { return EventRuleThrottled }

// =============================================================================
// NOTIFICATION EVENTS
// =============================================================================

type SnackPayload struct {
	Message string         `json:"message"`
	Type    host.SnackType `json:"type,omitempty"`
}

func (SnackPayload) EventType() EventType { return EventSnack }

type DialogOpenedPayload struct {
	DialogID string   `json:"dialog_id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Buttons  []string `json:"buttons,omitempty"`
}

func (DialogOpenedPayload) EventType() EventType { return EventDialogOpened }

type DialogAnsweredPayload struct {
	DialogID string        `json:"dialog_id"`
	Button   string        `json:"button"`
	Error    string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"elapsed,omitempty"`
}

func (DialogAnsweredPayload) EventType() EventType { return EventDialogAnswered }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}

// GetTaskPayload extracts a task payload. The kind is taken from the event
// type so payloads built by hand without "kind" still resolve.
func GetTaskPayload(e Event) (TaskPayload, bool) {
	p, ok := ExtractPayload[TaskPayload](e)
	if !ok {
		return p, false
	}
	p.Kind = e.Type
	return p, true
}

func GetRuleExecutedPayload(e Event) (RuleExecutedPayload, bool) {
	return ExtractPayload[RuleExecutedPayload](e)
}

func GetRuleThrottledPayload(e Event) (RuleThrottledPayload, bool) {
	return ExtractPayload[RuleThrottledPayload](e)
}

func GetSnackPayload(e Event) (SnackPayload, bool) {
	return ExtractPayload[SnackPayload](e)
}

func GetDialogOpenedPayload(e Event) (DialogOpenedPayload, bool) {
	return ExtractPayload[DialogOpenedPayload](e)
}

func GetDialogAnsweredPayload(e Event) (DialogAnsweredPayload, bool) {
	return ExtractPayload[DialogAnsweredPayload](e)
}
