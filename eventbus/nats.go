package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/c360/linkstream/errors"
	"github.com/c360/linkstream/natsclient"
)

// DefaultSubjectPrefix namespaces event subjects on the NATS side
const DefaultSubjectPrefix = "linkstream.events"

// NATS is a Bus over core NATS subjects. Topics map to subjects as
// "<prefix>.<topic>", events travel as JSON. Every process connected
// to the same server sees every publish, so subscriptions work across
// replicas.
type NATS struct {
	client *natsclient.Client
	prefix string
	buffer int
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[uint64]func()
	closed bool
	nextID uint64
}

// NATSOption configures the NATS bus
type NATSOption func(*NATS)

// WithSubjectPrefix overrides the subject prefix
func WithSubjectPrefix(prefix string) NATSOption {
	return func(b *NATS) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithNATSBuffer overrides the per-subscriber channel buffer
func WithNATSBuffer(n int) NATSOption {
	return func(b *NATS) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithNATSLogger sets the bus logger
func WithNATSLogger(logger *slog.Logger) NATSOption {
	return func(b *NATS) {
		if logger != nil {
			b.logger = logger.With("component", "eventbus")
		}
	}
}

// NewNATS creates a bus backed by an established NATS connection
func NewNATS(client *natsclient.Client, opts ...NATSOption) (*NATS, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"eventbus", "NewNATS", "validate client")
	}
	b := &NATS{
		client: client,
		prefix: DefaultSubjectPrefix,
		buffer: DefaultBuffer,
		logger: slog.Default().With("component", "eventbus"),
		subs:   make(map[uint64]func()),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *NATS) subject(topic string) string {
	return b.prefix + "." + topic
}

// Publish sends the event to the topic's subject as JSON
func (b *NATS) Publish(topic string, ev Event) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return errors.ErrBusClosed
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return errors.WrapInvalid(err, "eventbus", "Publish", "marshal event")
	}
	if err := b.client.Publish(context.Background(), b.subject(topic), data); err != nil {
		return errors.WrapTransient(err, "eventbus", "Publish", "publish event")
	}
	return nil
}

// Subscribe opens a NATS subscription on the topic's subject and
// bridges incoming messages onto the subscriber channel. Events keep
// their node as raw JSON; callers use Event.DecodeNode.
func (b *NATS) Subscribe(topic string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.ErrBusClosed
	}

	ch := make(chan Event, b.buffer)

	// The handler races with cancel: a message dispatched just before
	// Unsubscribe could land after the channel closes.
	var handlerMu sync.Mutex
	stopped := false

	natsSub, err := b.client.Subscribe(context.Background(), b.subject(topic), func(data []byte) {
		var wire struct {
			Mutation string          `json:"mutation"`
			Node     json.RawMessage `json:"node"`
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			b.logger.Warn("Discarding malformed event",
				"topic", topic, "error", err)
			return
		}
		handlerMu.Lock()
		defer handlerMu.Unlock()
		if stopped {
			return
		}
		select {
		case ch <- Event{Mutation: wire.Mutation, Node: wire.Node}:
		default:
			b.logger.Warn("Dropping event for slow subscriber",
				"topic", topic, "mutation", wire.Mutation)
		}
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "eventbus", "Subscribe", "subscribe subject")
	}

	teardown := func() {
		if err := natsSub.Unsubscribe(); err != nil {
			b.logger.Warn("Failed to unsubscribe", "topic", topic, "error", err)
		}
		handlerMu.Lock()
		stopped = true
		close(ch)
		handlerMu.Unlock()
	}

	b.nextID++
	id := b.nextID
	b.subs[id] = teardown

	sub := &Subscription{ch: ch}
	sub.cancel = func() {
		b.mu.Lock()
		td, ok := b.subs[id]
		delete(b.subs, id)
		b.mu.Unlock()
		if ok {
			td()
		}
	}
	return sub, nil
}

// Close unsubscribes everything and closes every subscriber channel.
// The NATS connection itself belongs to the caller and stays open.
func (b *NATS) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	teardowns := make([]func(), 0, len(b.subs))
	for id, td := range b.subs {
		teardowns = append(teardowns, td)
		delete(b.subs, id)
	}
	b.mu.Unlock()

	for _, td := range teardowns {
		td()
	}
	return nil
}

var _ Bus = (*NATS)(nil)
