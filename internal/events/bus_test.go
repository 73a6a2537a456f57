package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan FrameDroppedEvent, 1)

	unsub := bus.Subscribe(func(e FrameDroppedEvent) {
		received <- e
	})
	defer unsub()

	event := FrameDroppedEvent{
		FrameIndex: 42,
		QueueDepth: 8,
		Timestamp:  "2026-08-24T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.FrameIndex != event.FrameIndex {
		t.Errorf("Expected frame_index %d, got %d", event.FrameIndex, got.FrameIndex)
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	received1 := make(chan BackendChangedEvent, 1)
	received2 := make(chan BackendChangedEvent, 1)

	unsub1 := bus.Subscribe(func(e BackendChangedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e BackendChangedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(BackendChangedEvent{Backend: "scalar", Policy: "auto"})

	for i, ch := range []chan BackendChangedEvent{received1, received2} {
		select {
		case got := <-ch:
			if got.Backend != "scalar" {
				t.Errorf("subscriber %d: backend = %q", i+1, got.Backend)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i+1)
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	var mu sync.Mutex
	count := 0

	unsub := bus.Subscribe(func(ConversionFailedEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(ConversionFailedEvent{Reason: "first"})
	time.Sleep(50 * time.Millisecond)
	unsub()
	bus.Publish(ConversionFailedEvent{Reason: "second"})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("handler ran %d times after unsubscribe, want 1", count)
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(s string) {})
	unsub() // must be a safe no-op
}
