package bus

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

// Middleware wraps a Handler to add bus-wide functionality such as logging or
// metrics. Apply middleware with the WithMiddleware option.
type Middleware func(Handler) Handler

// middlewareHandler wraps a Handler with additional functionality.
type middlewareHandler struct {
	eventType reflect.Type
	fn        func(ctx context.Context, event Event) error
}

func (h *middlewareHandler) EventType() reflect.Type {
	return h.eventType
}

func (h *middlewareHandler) Handle(ctx context.Context, event Event) error {
	return h.fn(ctx, event)
}

// chainMiddleware applies multiple middleware to a handler in order.
// Middleware are applied left-to-right (first middleware wraps innermost).
func chainMiddleware(handler Handler, middleware []Middleware) Handler {
	for _, mw := range middleware {
		handler = mw(handler)
	}
	return handler
}

// LoggingMiddleware logs handler execution with timing.
// Logs completion and errors for all handlers it wraps.
//
// Example:
//
//	b := bus.New(bus.WithMiddleware(bus.LoggingMiddleware(logger)))
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return &middlewareHandler{
			eventType: next.EventType(),
			fn: func(ctx context.Context, event Event) error {
				start := time.Now()

				err := next.Handle(ctx, event)
				duration := time.Since(start)

				if err != nil {
					logger.ErrorContext(ctx, "handler failed",
						slog.String("event_type", eventTypeName(next.EventType())),
						slog.Duration("duration", duration),
						slog.String("error", err.Error()))
				} else {
					logger.InfoContext(ctx, "handler completed",
						slog.String("event_type", eventTypeName(next.EventType())),
						slog.Duration("duration", duration))
				}

				return err
			},
		}
	}
}
