package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(FrameDroppedEvent{...})
func (b *Bus) Publish(ev Event) {
	// Use type switch to call the generic Publish with the correct type
	switch e := ev.(type) {
	case FrameDroppedEvent:
		event.Publish(b.dispatcher, e)
	case FrameLeakSuspectedEvent:
		event.Publish(b.dispatcher, e)
	case BackendChangedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureStartedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureStoppedEvent:
		event.Publish(b.dispatcher, e)
	case ConversionFailedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives (type inference)
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e FrameDroppedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	// The kelindar/event library infers the event type from the handler
	// signature; match each known handler shape explicitly.
	switch h := handler.(type) {
	case func(FrameDroppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameLeakSuspectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BackendChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConversionFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
