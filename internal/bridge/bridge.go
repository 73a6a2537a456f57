// Package bridge forwards pipeline events to RabbitMQ so off-box
// consumers can watch drops, leaks, and backend changes without polling
// the API.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/smazurov/framegrab/internal/events"
	"github.com/smazurov/framegrab/internal/logging"
)

const (
	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second
)

// Config holds connection settings for the event bridge.
type Config struct {
	URL        string
	Exchange   string
	RoutingKey string // prefix; the event name is appended
}

// Bridge subscribes to the event bus and publishes each event as a JSON
// message on a topic exchange. Connection loss is retried with exponential
// backoff; events raised while disconnected are dropped, not queued.
type Bridge struct {
	cfg    Config
	bus    *events.Bus
	logger logging.Logger

	conn    *amqp.Connection
	channel *amqp.Channel
	closed  chan *amqp.Error

	outbox chan message
	unsubs []func()
}

type message struct {
	key  string
	body []byte
}

// New creates a bridge wired to the given bus. Call Run to connect.
func New(cfg Config, bus *events.Bus) *Bridge {
	if cfg.Exchange == "" {
		cfg.Exchange = "framegrab.events"
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = "framegrab"
	}
	return &Bridge{
		cfg:    cfg,
		bus:    bus,
		logger: logging.GetLogger("bridge"),
		outbox: make(chan message, 64),
	}
}

// Run connects, subscribes, and forwards events until the context ends.
func (b *Bridge) Run(ctx context.Context) error {
	if b.cfg.URL == "" {
		return fmt.Errorf("bridge: no AMQP URL configured")
	}

	b.subscribe()
	defer b.unsubscribe()

	backoff := reconnectBase
	for {
		if err := b.connect(); err != nil {
			b.logger.Warn("AMQP connect failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, reconnectMax)
			continue
		}
		backoff = reconnectBase
		b.logger.Info("AMQP connected", "exchange", b.cfg.Exchange)

		if err := b.pump(ctx); err != nil {
			b.disconnect()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("AMQP connection lost, reconnecting", "error", err)
		}
	}
}

// connect dials the broker and declares the topic exchange.
func (b *Bridge) connect() error {
	conn, err := amqp.Dial(b.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		b.cfg.Exchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare an exchange: %w", err)
	}

	b.conn = conn
	b.channel = ch
	b.closed = conn.NotifyClose(make(chan *amqp.Error, 1))
	return nil
}

func (b *Bridge) disconnect() {
	if b.channel != nil {
		b.channel.Close()
		b.channel = nil
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// pump drains the outbox into the broker until the connection dies or the
// context ends.
func (b *Bridge) pump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.disconnect()
			return ctx.Err()
		case amqpErr := <-b.closed:
			if amqpErr != nil {
				return amqpErr
			}
			return fmt.Errorf("connection closed")
		case msg := <-b.outbox:
			err := b.channel.Publish(
				b.cfg.Exchange,
				msg.key,
				false, // mandatory
				false, // immediate
				amqp.Publishing{
					ContentType: "application/json",
					Body:        msg.body,
					Timestamp:   time.Now(),
				})
			if err != nil {
				return fmt.Errorf("failed to publish a message: %w", err)
			}
		}
	}
}

// subscribe registers one handler per event type on the bus.
func (b *Bridge) subscribe() {
	b.unsubs = append(b.unsubs,
		b.bus.Subscribe(func(e events.FrameDroppedEvent) { b.enqueue("frame.dropped", e) }),
		b.bus.Subscribe(func(e events.FrameLeakSuspectedEvent) { b.enqueue("frame.leak", e) }),
		b.bus.Subscribe(func(e events.BackendChangedEvent) { b.enqueue("backend.changed", e) }),
		b.bus.Subscribe(func(e events.CaptureStartedEvent) { b.enqueue("capture.started", e) }),
		b.bus.Subscribe(func(e events.CaptureStoppedEvent) { b.enqueue("capture.stopped", e) }),
		b.bus.Subscribe(func(e events.ConversionFailedEvent) { b.enqueue("conversion.failed", e) }),
	)
}

func (b *Bridge) unsubscribe() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
}

// enqueue marshals the event and queues it without blocking the bus.
// A full outbox drops the event; the broker is an observer, never
// backpressure on the pipeline.
func (b *Bridge) enqueue(name string, ev any) {
	body, err := json.Marshal(envelope{Event: name, Payload: ev})
	if err != nil {
		b.logger.Warn("Failed to marshal event", "event", name, "error", err)
		return
	}
	select {
	case b.outbox <- message{key: b.routingKey(name), body: body}:
	default:
		b.logger.Debug("Bridge outbox full, dropping event", "event", name)
	}
}

// envelope wraps event payloads with their name for consumers that bind
// a wildcard routing key.
type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func (b *Bridge) routingKey(name string) string {
	return b.cfg.RoutingKey + "." + name
}
