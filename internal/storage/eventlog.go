package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dohr-michael/ruleflow/internal/events"
)

// EventLogFile is the JSONL file the EventLogger writes to inside its dir.
const EventLogFile = "events.jsonl"

// loggedEvents are the engine-side events worth keeping. Task events are
// owned by the host and not duplicated here.
var loggedEvents = []events.EventType{
	events.EventRuleExecuted,
	events.EventRuleThrottled,
	events.EventDialogOpened,
	events.EventDialogAnswered,
}

// EventLogger persists engine events to a JSONL file.
type EventLogger struct {
	mu          sync.Mutex
	path        string
	unsubscribe func()
}

// NewEventLogger creates an EventLogger that subscribes to engine events
// and appends them as JSONL to dir/events.jsonl.
func NewEventLogger(dir string, bus *events.Bus) *EventLogger {
	el := &EventLogger{path: filepath.Join(dir, EventLogFile)}
	el.unsubscribe = bus.Subscribe(el.handleEvent, loggedEvents...)
	return el
}

// Close unsubscribes the logger from the event bus.
func (el *EventLogger) Close() {
	if el.unsubscribe != nil {
		el.unsubscribe()
	}
}

func (el *EventLogger) handleEvent(e events.Event) {
	if err := el.writeEvent(e); err != nil {
		slog.Warn("event log: write failed", "type", e.Type, "error", err)
	}
}

func (el *EventLogger) writeEvent(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	el.mu.Lock()
	defer el.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(el.path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(el.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// ReadEventLog returns the last limit events from an event log file.
// A missing file yields no events. Corrupted lines are skipped.
func ReadEventLog(path string, limit int) ([]events.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var out []events.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e events.Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) > limit {
			out = out[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}
	return out, nil
}
