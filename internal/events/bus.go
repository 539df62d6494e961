package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Handler reacts to an event.
type Handler func(ctx context.Context, event Event) error

type subscription struct {
	name    string
	handler Handler
}

// Bus provides in-process typed pub/sub. Handlers run synchronously in the
// publisher's goroutine, one after another; a failing or panicking handler
// neither stops the others nor reaches the publisher through Publish.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Kind][]subscription
	logger      zerolog.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger *zerolog.Logger) *Bus {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "event-bus").Logger()
	}
	return &Bus{subscribers: make(map[Kind][]subscription), logger: base}
}

// SubscribeKind registers an untyped handler for kind.
func (b *Bus) SubscribeKind(kind Kind, name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[kind] = append(b.subscribers[kind], subscription{name: name, handler: handler})
}

// Subscribe registers a handler for events of type E.
func Subscribe[E Event](b *Bus, name string, handler func(ctx context.Context, event E) error) {
	var zero E
	b.SubscribeKind(zero.EventKind(), name, func(ctx context.Context, event Event) error {
		typed, ok := event.(E)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event, zero.EventKind())
		}
		return handler(ctx, typed)
	})
}

// Listeners returns the number of handlers registered for kind.
func (b *Bus) Listeners(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[kind])
}

// Publish delivers the event and swallows handler failures after logging them.
func (b *Bus) Publish(ctx context.Context, event Event) {
	_ = b.Dispatch(ctx, event)
}

// Dispatch delivers the event and returns the joined handler failures.
// Every handler runs regardless of earlier failures.
func (b *Bus) Dispatch(ctx context.Context, event Event) error {
	if b == nil || event == nil {
		return nil
	}

	kind := event.EventKind()
	b.mu.RLock()
	subs := append([]subscription(nil), b.subscribers[kind]...)
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.logger.Debug().Str("kind", string(kind)).Msg("no listeners for event")
		return nil
	}

	var errs []error
	for _, sub := range subs {
		if err := b.invoke(ctx, sub, event); err != nil {
			b.logger.Error().Err(err).
				Str("kind", string(kind)).
				Str("listener", sub.name).
				Msg("event listener failed")
			errs = append(errs, fmt.Errorf("%s: %w", sub.name, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) invoke(ctx context.Context, sub subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return sub.handler(ctx, event)
}
