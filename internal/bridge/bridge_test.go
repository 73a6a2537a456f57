package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/smazurov/framegrab/internal/events"
)

func TestEnqueueRoutingAndEnvelope(t *testing.T) {
	bus := events.New()
	b := New(Config{URL: "amqp://unused"}, bus)
	b.subscribe()
	defer b.unsubscribe()

	bus.Publish(events.FrameDroppedEvent{FrameIndex: 7, QueueDepth: 8, Timestamp: "t"})

	select {
	case msg := <-b.outbox:
		if msg.key != "framegrab.frame.dropped" {
			t.Errorf("routing key = %q, want framegrab.frame.dropped", msg.key)
		}
		var env struct {
			Event   string                   `json:"event"`
			Payload events.FrameDroppedEvent `json:"payload"`
		}
		if err := json.Unmarshal(msg.body, &env); err != nil {
			t.Fatalf("body is not valid JSON: %v", err)
		}
		if env.Event != "frame.dropped" || env.Payload.FrameIndex != 7 {
			t.Errorf("envelope = %+v", env)
		}
	case <-time.After(time.Second):
		t.Fatal("event never reached the outbox")
	}
}

func TestEnqueueDropsWhenOutboxFull(t *testing.T) {
	b := New(Config{}, events.New())
	b.outbox = make(chan message, 1)

	b.enqueue("backend.changed", events.BackendChangedEvent{Backend: "scalar"})
	b.enqueue("backend.changed", events.BackendChangedEvent{Backend: "paired"})

	if got := len(b.outbox); got != 1 {
		t.Errorf("outbox length = %d, want 1 (second event dropped)", got)
	}
}

func TestRunRequiresURL(t *testing.T) {
	b := New(Config{}, events.New())
	if err := b.Run(context.Background()); err == nil {
		t.Fatal("Run without a URL should fail")
	}
}

func TestDefaultsApplied(t *testing.T) {
	b := New(Config{URL: "amqp://h"}, events.New())
	if b.cfg.Exchange != "framegrab.events" || b.cfg.RoutingKey != "framegrab" {
		t.Errorf("defaults not applied: %+v", b.cfg)
	}
}
