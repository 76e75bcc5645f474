// Package events routes domain events to in-process subscribers.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/pkg/slogx"
)

// Subscriber handles one event. Subscribers run synchronously on the
// dispatching goroutine; a slow subscriber delays the caller.
type Subscriber func(ctx context.Context, e domain.Event)

// Dispatcher fans events out to subscribers registered by event name.
// Dispatching an event nobody registered for is a silent no-op.
type Dispatcher struct {
	mu   sync.RWMutex
	subs map[string][]Subscriber
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[string][]Subscriber)}
}

// Register appends subscribers for the named event. Registration order is
// dispatch order.
func (d *Dispatcher) Register(name string, subscribers ...Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs[name] = append(d.subs[name], subscribers...)
}

// Dispatch delivers one event to its subscribers, in registration order.
func (d *Dispatcher) Dispatch(ctx context.Context, e domain.Event) {
	d.mu.RLock()
	subscribers := d.subs[e.EventName()]
	d.mu.RUnlock()

	for _, sub := range subscribers {
		sub(ctx, e)
	}
}

// DispatchAll delivers a batch of released events in order.
func (d *Dispatcher) DispatchAll(ctx context.Context, events []domain.Event) {
	for _, e := range events {
		d.Dispatch(ctx, e)
	}
}

// LogSubscriber returns a subscriber that records each event at info level.
// Useful as a default audit sink.
func LogSubscriber() Subscriber {
	return func(ctx context.Context, e domain.Event) {
		slogx.FromContext(ctx).InfoContext(ctx, "domain event", slog.String("event", e.EventName()))
	}
}
