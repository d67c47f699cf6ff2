// Package events provides a named event bus. Events must be registered
// before they can be subscribed to or invoked, which catches misspelled
// event names at the call site instead of silently dropping them.
//
// A Bus is an ordinary value: create one with NewBus and pass it to whatever
// needs it. It is safe for concurrent use.
package events

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/boxfriend/poolkit/pkg/errors"
)

// Handler receives the argument and sender passed to Invoke.
type Handler func(arg, sender any)

// SubscriptionID identifies one subscription for Unsubscribe.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus dispatches named events to their subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	events map[string][]subscription
	nextID SubscriptionID
	logger *zap.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for registration changes.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		events: make(map[string][]subscription),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds an event with optional initial handlers. It fails with
// ErrorTypeConflict when name is already registered and ErrorTypeInvalidArgument
// when a handler is nil.
func (b *Bus) Register(name string, handlers ...Handler) ([]SubscriptionID, error) {
	for _, h := range handlers {
		if h == nil {
			return nil, errNilHandler(name)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.events[name]; ok {
		return nil, errors.New(errors.ErrorTypeConflict, "event already registered").
			WithDetail("event", name)
	}

	subs := make([]subscription, 0, len(handlers))
	ids := make([]SubscriptionID, 0, len(handlers))
	for _, h := range handlers {
		id := b.newID()
		subs = append(subs, subscription{id: id, handler: h})
		ids = append(ids, id)
	}
	b.events[name] = subs

	b.logger.Debug("event registered", zap.String("event", name), zap.Int("handlers", len(subs)))
	return ids, nil
}

// Unregister removes an event and all of its subscriptions.
func (b *Bus) Unregister(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.events[name]; !ok {
		return errNotRegistered(name)
	}
	delete(b.events, name)

	b.logger.Debug("event unregistered", zap.String("event", name))
	return nil
}

// Subscribe appends h to the handlers of a registered event.
func (b *Bus) Subscribe(name string, h Handler) (SubscriptionID, error) {
	if h == nil {
		return 0, errNilHandler(name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.events[name]
	if !ok {
		return 0, errNotRegistered(name)
	}
	id := b.newID()
	b.events[name] = append(subs, subscription{id: id, handler: h})
	return id, nil
}

// Unsubscribe removes one subscription. Unknown IDs on a registered event are
// ignored.
func (b *Bus) Unsubscribe(name string, id SubscriptionID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.events[name]
	if !ok {
		return errNotRegistered(name)
	}
	for i, s := range subs {
		if s.id == id {
			kept := make([]subscription, 0, len(subs)-1)
			kept = append(kept, subs[:i]...)
			b.events[name] = append(kept, subs[i+1:]...)
			break
		}
	}
	return nil
}

// Invoke calls every handler of name with arg and sender. Handlers run on
// the calling goroutine without the bus lock held, against the subscriber
// list as it was when Invoke started, so they may subscribe or unsubscribe.
func (b *Bus) Invoke(name string, arg, sender any) error {
	b.mu.RLock()
	subs, ok := b.events[name]
	b.mu.RUnlock()

	if !ok {
		return errNotRegistered(name)
	}
	for _, s := range subs {
		s.handler(arg, sender)
	}
	return nil
}

// Events returns the registered event names in sorted order.
func (b *Bus) Events() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.events))
	for name := range b.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subscribers returns the number of subscriptions on name, or 0 if name is
// not registered.
func (b *Bus) Subscribers(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events[name])
}

func (b *Bus) newID() SubscriptionID {
	b.nextID++
	return b.nextID
}

func errNotRegistered(name string) error {
	return errors.New(errors.ErrorTypeNotFound, "event not registered").
		WithDetail("event", name)
}

func errNilHandler(name string) error {
	return errors.New(errors.ErrorTypeInvalidArgument, "event handler is nil").
		WithDetail("event", name)
}
