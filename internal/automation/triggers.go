package automation

// eventTrigger matches events of a single trigger type. The value is
// ignored; clock matching for timeBased rules happens in the engine's poll.
type eventTrigger struct {
	Descriptor
	kind TriggerType
}

func (t eventTrigger) Matches(event TaskEvent, _ string) bool {
	return event.Type == t.kind
}

func builtinTriggers() []TriggerCapability {
	return []TriggerCapability{
		eventTrigger{
			Descriptor: Descriptor{string(TriggerTaskCreated), "Task Created", "When a new task is created"},
			kind:       TriggerTaskCreated,
		},
		eventTrigger{
			Descriptor: Descriptor{string(TriggerTaskUpdated), "Task Updated", "When a task is changed"},
			kind:       TriggerTaskUpdated,
		},
		eventTrigger{
			Descriptor: Descriptor{string(TriggerTaskCompleted), "Task Completed", "When a task is marked as done"},
			kind:       TriggerTaskCompleted,
		},
		eventTrigger{
			Descriptor: Descriptor{string(TriggerTimeBased), "Time Based", "Every day at the given time (HH:MM)"},
			kind:       TriggerTimeBased,
		},
	}
}
