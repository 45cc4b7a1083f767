package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is the capability every published value must carry.
// Concrete event types are defined by bus users, typically by embedding Base,
// and are always published by pointer so that cancellation is visible to the
// dispatching worker.
//
// Cancellation is cooperative and advisory. Cancel may be called by the
// publisher before Publish, or by one of the event's own handlers while it is
// being dispatched. Calling Cancel from any other goroutine while the event is
// in flight is undefined behavior: the bus hands each event to exactly one
// worker and relies on that single-owner discipline instead of a lock.
type Event interface {
	// Cancel marks the event as cancelled. A cancelled event is never
	// delivered to further handlers and is dropped if published again.
	Cancel()

	// Cancelled reports whether the event has been cancelled.
	Cancelled() bool
}

// Base is an embeddable Event implementation carrying a unique ID, a creation
// timestamp, and the cancellation flag.
//
// Example:
//
//	type UserCreated struct {
//	    bus.Base
//	    UserID string
//	}
//
//	evt := &UserCreated{Base: bus.NewBase(), UserID: "123"}
type Base struct {
	id         string
	occurredAt time.Time
	cancelled  bool
}

// NewBase creates a Base with an auto-generated UUID and the current time.
// The zero value of Base is also usable; it simply has no ID or timestamp.
func NewBase() Base {
	return Base{
		id:         uuid.New().String(),
		occurredAt: time.Now(),
	}
}

// ID returns the event's unique identifier, or an empty string for a zero Base.
func (b *Base) ID() string { return b.id }

// OccurredAt returns the event's creation time, or a zero time for a zero Base.
func (b *Base) OccurredAt() time.Time { return b.occurredAt }

// Cancel marks the event as cancelled. See Event for the ownership rules that
// make the plain flag safe.
func (b *Base) Cancel() { b.cancelled = true }

// Cancelled reports whether the event has been cancelled.
func (b *Base) Cancelled() bool { return b.cancelled }

// envelope pairs an event with the context it was published under, so handlers
// observe the publisher's deadlines and values. A nil *envelope on the queue
// is the termination sentinel for workers.
type envelope struct {
	ctx   context.Context
	event Event
}
