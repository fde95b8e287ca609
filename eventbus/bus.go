// Package eventbus decouples mutations from subscriptions: mutations
// publish entity events to a topic, subscription resolvers consume an
// independent ordered sequence of those events per subscriber.
//
// Two implementations share the Bus interface: Memory for a single
// process and NATS for multi-process deployments.
package eventbus

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/c360/linkstream/errors"
)

// Mutation kinds carried on events, matching the _ModelMutationType
// schema enum.
const (
	MutationCreated = "CREATED"
	MutationUpdated = "UPDATED"
	MutationDeleted = "DELETED"
)

// Event is one published mutation notification
type Event struct {
	Mutation string `json:"mutation"`
	Node     any    `json:"node"`
}

// DecodeNode unmarshals the event node into v. Handles both in-process
// events (typed Node) and wire events (raw JSON Node).
func (e Event) DecodeNode(v any) error {
	switch n := e.Node.(type) {
	case json.RawMessage:
		return json.Unmarshal(n, v)
	case []byte:
		return json.Unmarshal(n, v)
	default:
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, v)
	}
}

// Bus is a topic-keyed publish/subscribe channel
type Bus interface {
	// Publish delivers the event to every currently-active subscriber
	// of the topic. Fire-and-forget: it never blocks on subscriber
	// processing and never fails because a subscriber is slow.
	Publish(topic string, ev Event) error
	// Subscribe registers a new independent subscriber. The returned
	// subscription receives every event published to the topic from
	// this moment onward, in publish order.
	Subscribe(topic string) (*Subscription, error)
	// Close tears down the bus and all subscriptions
	Close() error
}

// Subscription is one subscriber's lazy sequence of events
type Subscription struct {
	ch     chan Event
	cancel func()
	once   sync.Once
}

// C returns the subscriber's event channel. It is closed on
// Unsubscribe or bus shutdown.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Unsubscribe stops delivery to this subscriber. Other subscribers are
// unaffected. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// DefaultBuffer is the per-subscriber channel buffer
const DefaultBuffer = 64

// Memory is the process-wide in-memory Bus. The subscriber registry is
// mutex-guarded: subscribe and unsubscribe happen concurrently with
// publishes. Publishes are serialized per bus so every subscriber of a
// topic observes the same relative event order.
type Memory struct {
	mu     sync.Mutex
	topics map[string][]*memorySub
	buffer int
	closed bool
	logger *slog.Logger
	nextID uint64

	dropped uint64
}

type memorySub struct {
	id  uint64
	sub *Subscription
}

// MemoryOption configures the memory bus
type MemoryOption func(*Memory)

// WithBuffer overrides the per-subscriber channel buffer
func WithBuffer(n int) MemoryOption {
	return func(b *Memory) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithLogger sets the bus logger
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(b *Memory) {
		if logger != nil {
			b.logger = logger.With("component", "eventbus")
		}
	}
}

// NewMemory creates an in-memory bus
func NewMemory(opts ...MemoryOption) *Memory {
	b := &Memory{
		topics: make(map[string][]*memorySub),
		buffer: DefaultBuffer,
		logger: slog.Default().With("component", "eventbus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers the event to every active subscriber of the topic.
// A subscriber whose buffer is full misses the event rather than
// blocking the publisher; drops are counted and logged.
func (b *Memory) Publish(topic string, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.ErrBusClosed
	}

	for _, ms := range b.topics[topic] {
		select {
		case ms.sub.ch <- ev:
		default:
			b.dropped++
			b.logger.Warn("Dropping event for slow subscriber",
				"topic", topic,
				"mutation", ev.Mutation,
				"dropped_total", b.dropped)
		}
	}
	return nil
}

// Subscribe registers a new subscriber on the topic
func (b *Memory) Subscribe(topic string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.ErrBusClosed
	}

	b.nextID++
	id := b.nextID
	ms := &memorySub{
		id: id,
		sub: &Subscription{
			ch: make(chan Event, b.buffer),
		},
	}
	ms.sub.cancel = func() { b.remove(topic, id) }
	b.topics[topic] = append(b.topics[topic], ms)
	return ms.sub, nil
}

// remove drops one subscriber from the registry and closes its channel
func (b *Memory) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, ms := range subs {
		if ms.id == id {
			b.topics[topic] = append(subs[:i], subs[i+1:]...)
			close(ms.sub.ch)
			return
		}
	}
}

// Close shuts down the bus and closes every subscription channel
func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for topic, subs := range b.topics {
		for _, ms := range subs {
			close(ms.sub.ch)
		}
		delete(b.topics, topic)
	}
	return nil
}

// Dropped returns the number of events dropped for slow subscribers
func (b *Memory) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

var _ Bus = (*Memory)(nil)
