package events

import (
	"fmt"
	"testing"
	"time"
)

func unlocked(project string) StageUnlockedEvent {
	return StageUnlockedEvent{
		Project:   project,
		StageID:   "pop",
		StageName: "POP Stage",
		DaysLeft:  8,
		Timestamp: time.Now(),
	}
}

// TestPublishSubscribe verifies basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicStage, 10)
	bus.Publish(TopicStage, unlocked("p1"))

	select {
	case received := <-ch:
		if received.ProjectID() != "p1" {
			t.Errorf("expected project ID 'p1', got '%s'", received.ProjectID())
		}
		if received.EventType() != EventTypeStageUnlocked {
			t.Errorf("expected event type '%s', got '%s'", EventTypeStageUnlocked, received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

// TestMultipleSubscribers verifies multiple subscribers receive the same event.
func TestMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch1 := bus.Subscribe(TopicStage, 10)
	ch2 := bus.Subscribe(TopicStage, 10)

	bus.Publish(TopicStage, StageCompletedEvent{Project: "p2", StageID: "pop", Timestamp: time.Now()})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.ProjectID() != "p2" {
				t.Errorf("subscriber %d: expected project 'p2', got '%s'", i+1, received.ProjectID())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i+1)
		}
	}
}

// TestNonBlockingSend verifies that publishing doesn't block when channels are full.
func TestNonBlockingSend(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicStage, 1)

	done := make(chan bool)
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(TopicStage, unlocked(fmt.Sprintf("p%d", i)))
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publisher blocked (expected non-blocking behavior)")
	}

	select {
	case received := <-ch:
		if received.ProjectID() != "p0" {
			t.Errorf("expected first event to be kept, got %s", received.ProjectID())
		}
	default:
		t.Error("expected at least one event in buffer")
	}

	if got := bus.Dropped(); got != 9 {
		t.Errorf("Dropped() = %d, want 9", got)
	}
}

// TestCloseSignalsSubscribers verifies that closing the bus closes subscriber channels.
func TestCloseSignalsSubscribers(t *testing.T) {
	bus := NewEventBus()

	ch := bus.Subscribe(TopicStage, 10)
	all := bus.SubscribeAll(10)
	bus.Close()
	bus.Close() // idempotent

	for _, sub := range []<-chan Event{ch, all} {
		received := 0
		for range sub {
			received++
		}
		if received != 0 {
			t.Errorf("expected 0 events after close, got %d", received)
		}
	}
}

// TestPublishAfterClose verifies publishing after close doesn't panic.
func TestPublishAfterClose(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TopicStage, 10)

	bus.Close()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("publishing after close caused panic: %v", r)
		}
	}()

	bus.Publish(TopicStage, unlocked("p1"))

	if _, ok := <-ch; ok {
		t.Error("received event after bus was closed")
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	bus := NewEventBus()
	bus.Close()

	if _, ok := <-bus.Subscribe(TopicStage, 1); ok {
		t.Error("subscription after close should be closed")
	}
	if _, ok := <-bus.SubscribeAll(1); ok {
		t.Error("SubscribeAll after close should be closed")
	}
}

// TestMultipleTopics verifies topic isolation.
func TestMultipleTopics(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	stageCh := bus.Subscribe(TopicStage, 10)
	projectCh := bus.Subscribe(TopicProject, 10)

	bus.Publish(TopicStage, unlocked("p1"))
	bus.Publish(TopicProject, ProjectProgressEvent{Project: "p1", Timestamp: time.Now()})

	select {
	case received := <-stageCh:
		if received.EventType() != EventTypeStageUnlocked {
			t.Errorf("stage channel: expected stage event, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("stage channel: timeout waiting for event")
	}

	select {
	case received := <-projectCh:
		if received.EventType() != EventTypeProjectProgress {
			t.Errorf("project channel: expected progress event, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("project channel: timeout waiting for event")
	}

	select {
	case <-stageCh:
		t.Error("stage channel received unexpected event")
	case <-projectCh:
		t.Error("project channel received unexpected event")
	case <-time.After(10 * time.Millisecond):
	}
}

// TestSubscribeAll verifies that SubscribeAll receives events from all topics.
func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	allCh := bus.SubscribeAll(20)

	bus.Publish(TopicStage, StageOverdueEvent{Project: "p1", StageID: "pop", Timestamp: time.Now()})
	bus.Publish(TopicProject, TasksUnmappedEvent{Project: "p1", TaskIDs: []string{"t9"}, Timestamp: time.Now()})

	receivedTypes := make(map[string]bool)
	for i := 0; i < 2; i++ {
		select {
		case received := <-allCh:
			receivedTypes[received.EventType()] = true
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}

	if !receivedTypes[EventTypeStageOverdue] {
		t.Error("SubscribeAll did not receive overdue event")
	}
	if !receivedTypes[EventTypeTasksUnmapped] {
		t.Error("SubscribeAll did not receive unmapped event")
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	kept := bus.Subscribe(TopicStage, 10)
	removed := bus.Subscribe(TopicStage, 10)
	removedAll := bus.SubscribeAll(10)

	bus.Unsubscribe(removed)
	bus.Unsubscribe(removedAll)
	bus.Unsubscribe(make(chan Event)) // unknown, ignored

	if _, ok := <-removed; ok {
		t.Error("unsubscribed channel should be closed")
	}
	if _, ok := <-removedAll; ok {
		t.Error("unsubscribed SubscribeAll channel should be closed")
	}

	bus.Publish(TopicStage, unlocked("p1"))

	select {
	case <-kept:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("remaining subscriber missed event")
	}
}
