// Package streaming carries scheduling decisions to external observers
// (dashboards, log aggregators). It sits entirely outside the scheduler
// CORE: spec.md §1 places "delivery of decisions to external observers"
// out of scope, so nothing in internal/scheduler imports this package.
package streaming

import (
	"context"
	"time"
)

// Event is one published occurrence, e.g. a scheduling decision or a
// replica-set change.
type Event struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Publisher fans an event out to whatever backs a given topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Close() error
}

// Subscriber registers a callback for events on a topic.
type Subscriber interface {
	Subscribe(topic string, handler func(event Event)) (Subscription, error)
}

// Subscription can be cancelled.
type Subscription interface {
	Unsubscribe() error
}
