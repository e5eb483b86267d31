// internal/events/handler.go
package events

import (
	"context"
)

// Handler processes events of a specific type.
type Handler interface {
	// Handle processes an event. Should not block.
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f(ctx, event).
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription represents a subscription to events.
type Subscription interface {
	// Unsubscribe removes the subscription.
	Unsubscribe()
}

type subscription struct {
	id       string
	eventBus *Bus
	typ      EventType
}

func (s *subscription) Unsubscribe() {
	s.eventBus.unsubscribe(s.id, s.typ)
}
