package bus

import (
	"context"
	"time"
)

type eventIDCtx struct{}

// WithEventID attaches an event ID to the context.
func WithEventID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, eventIDCtx{}, id)
}

// EventID extracts the event ID from the context.
// Returns empty string if not present.
func EventID(ctx context.Context) string {
	if id, ok := ctx.Value(eventIDCtx{}).(string); ok {
		return id
	}
	return ""
}

type eventTypeCtx struct{}

// WithEventType attaches an event type name to the context.
func WithEventType(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, eventTypeCtx{}, name)
}

// EventType extracts the event type name from the context.
// Returns empty string if not present.
func EventType(ctx context.Context) string {
	if name, ok := ctx.Value(eventTypeCtx{}).(string); ok {
		return name
	}
	return ""
}

type eventTimeCtx struct{}

// WithEventTime attaches the event creation time to the context.
func WithEventTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, eventTimeCtx{}, t)
}

// EventTime extracts the event creation time from the context.
// Returns zero time if not present.
func EventTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(eventTimeCtx{}).(time.Time); ok {
		return t
	}
	return time.Time{}
}

type startProcessingAt struct{}

// WithStartProcessingTime attaches the processing start time to the context.
func WithStartProcessingTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startProcessingAt{}, t)
}

// StartProcessingTime extracts the processing start time from the context.
// Returns zero time if not present.
func StartProcessingTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(startProcessingAt{}).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// Optional metadata interfaces satisfied by events embedding Base.
type identifiable interface{ ID() string }
type timestamped interface{ OccurredAt() time.Time }

// withEventMeta attaches whatever metadata the event exposes (ID, type name,
// creation time) plus the processing start time to the handler context.
func withEventMeta(ctx context.Context, event Event, typeName string) context.Context {
	if e, ok := event.(identifiable); ok {
		ctx = WithEventID(ctx, e.ID())
	}
	if e, ok := event.(timestamped); ok {
		ctx = WithEventTime(ctx, e.OccurredAt())
	}
	ctx = WithEventType(ctx, typeName)
	return WithStartProcessingTime(ctx, time.Now())
}
