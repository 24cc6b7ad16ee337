// Package pubsub provides a generic publish/subscribe event system.
//
// Session lifecycle changes, capability unlocks and journal entries all
// travel over a Broker. Subscribers either tolerate drops (UI refreshes that
// re-read full snapshots) or subscribe reliably (consumers that must see every
// transition).
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"

	// StateChangedEvent carries a session lifecycle transition.
	StateChangedEvent EventType = "state_changed"
	// UnlockedEvent carries a newly available capability.
	UnlockedEvent EventType = "unlocked"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
	SubscribeReliable(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc[T any] func(eventType EventType, payload T)

// Publish calls f.
func (f PublisherFunc[T]) Publish(eventType EventType, payload T) {
	f(eventType, payload)
}
