package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dohr-michael/ruleflow/internal/host"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	var received []Event

	bus.Subscribe(func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	}, EventTaskCompleted)

	bus.Publish(NewTypedEvent(SourceHost, NewTaskPayload(EventTaskCompleted, &host.Task{ID: "t1"}, nil)))
	bus.Publish(NewTypedEvent(SourceEngine, SnackPayload{Message: "hi"}))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != EventTaskCompleted {
		t.Errorf("expected task.completed, got %s", received[0].Type)
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	count := 0

	bus.Subscribe(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(NewTypedEvent(SourceHost, NewTaskPayload(EventTaskCreated, &host.Task{ID: "t1"}, nil)))
	bus.Publish(NewTypedEvent(SourceEngine, SnackPayload{Message: "hi"}))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if count != 2 {
		t.Errorf("expected 2 events, got %d", count)
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(3)

	for i := 0; i < 5; i++ {
		rb.Add(NewEvent(EventSnack, SourceEngine, map[string]any{"i": i}))
	}

	events := rb.Get(10)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	// Oldest retained first.
	if events[0].Payload["i"] != 2 {
		t.Errorf("expected oldest retained i=2, got %v", events[0].Payload["i"])
	}
}

func TestSubscribeChan(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	ch, unsub := bus.SubscribeChan(8, EventRuleExecuted)
	defer unsub()

	bus.Publish(NewTypedEvent(SourceEngine, RuleExecutedPayload{RuleID: "r1"}))

	select {
	case e := <-ch:
		if e.Type != EventRuleExecuted {
			t.Errorf("expected rule.executed, got %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPublishAsync_Closed(t *testing.T) {
	bus := NewBus(4)
	bus.Close()

	err := bus.PublishAsync(context.Background(), NewTypedEvent(SourceEngine, SnackPayload{}))
	if !errors.Is(err, ErrBusClosed) {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}

	// Publishing after close is a silent no-op.
	bus.Publish(NewTypedEvent(SourceEngine, SnackPayload{}))
}

func TestHistory(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	for i := 0; i < 3; i++ {
		bus.Publish(NewTypedEvent(SourceEngine, SnackPayload{Message: "m"}))
	}
	time.Sleep(50 * time.Millisecond)

	if got := len(bus.History(2)); got != 2 {
		t.Errorf("expected 2 history events, got %d", got)
	}
	if got := len(bus.History(50)); got != 3 {
		t.Errorf("expected 3 history events, got %d", got)
	}
}
