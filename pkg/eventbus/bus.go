package eventbus

import (
	"log/slog"
	"sync"
)

// Handler receives the payload of a dispatched event.
type Handler func(payload any)

// subscription is one registration. Registering the same handler twice
// for the same event produces two independent subscriptions.
type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a concurrent-safe named-event dispatcher.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	topics map[string][]subscription
	logger *slog.Logger
}

// Option configures the Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report handler failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		topics: make(map[string][]subscription),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for an event name and returns a cancel
// function that removes exactly this registration. Cancelling twice is
// safe; the second call is a no-op.
func (b *Bus) Subscribe(event string, handler Handler) func() {
	if handler == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.topics[event] = append(b.topics[event], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(event, id)
		})
	}
}

// Dispatch invokes every handler registered for the event, in
// registration order. The handler set is fixed when the pass begins.
// Dispatching an event with no subscribers is a no-op.
func (b *Bus) Dispatch(event string, payload any) {
	b.mu.RLock()
	subs := b.topics[event]
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	b.mu.RUnlock()

	for _, sub := range snapshot {
		b.invoke(event, sub, payload)
	}
}

// SubscriberCount returns the number of handlers registered for an event.
func (b *Bus) SubscriberCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[event])
}

// invoke runs a single handler, containing any panic it raises.
func (b *Bus) invoke(event string, sub subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", event,
				"subscription_id", sub.id,
				"panic", r,
			)
		}
	}()
	sub.handler(payload)
}

func (b *Bus) unsubscribe(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[event]
	for i, sub := range subs {
		if sub.id == id {
			b.topics[event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[event]) == 0 {
		delete(b.topics, event)
	}
}
