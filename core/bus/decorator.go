package bus

import (
	"context"
	"fmt"
	"time"
)

// Decorator wraps a typed handler function to add cross-cutting functionality.
// It follows the same pattern as HTTP middleware, allowing decorators to be
// composed and applied in order.
type Decorator[T Event] func(HandlerFunc[T]) HandlerFunc[T]

// ApplyDecorators applies a series of decorators to a handler function.
// Decorators are applied in the order they are defined: the first decorator
// in the list becomes the outermost wrapper (executes first).
//
// Example:
//
//	bus.Subscribe(b, bus.ApplyDecorators(
//	    handleUserCreated,
//	    bus.WithTimeout[*UserCreated](5*time.Second),
//	    bus.WithRetry[*UserCreated](3),
//	))
func ApplyDecorators[T Event](fn HandlerFunc[T], decorators ...Decorator[T]) HandlerFunc[T] {
	// Apply decorators from last to first to achieve proper nesting order
	for i := len(decorators) - 1; i >= 0; i-- {
		fn = decorators[i](fn)
	}
	return fn
}

// WithTimeout bounds a single handler invocation with a context deadline.
// The handler must respect its context for the timeout to take effect.
func WithTimeout[T Event](timeout time.Duration) Decorator[T] {
	return func(next HandlerFunc[T]) HandlerFunc[T] {
		return func(ctx context.Context, event T) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, event)
		}
	}
}

// WithRetry retries a failing handler up to maxRetries times.
// Returns the last error if all retries fail. Handlers wrapped with WithRetry
// should be idempotent.
func WithRetry[T Event](maxRetries int) Decorator[T] {
	return func(next HandlerFunc[T]) HandlerFunc[T] {
		return func(ctx context.Context, event T) error {
			var lastErr error

			for attempt := 0; attempt <= maxRetries; attempt++ {
				if attempt > 0 && ctx.Err() != nil {
					return ctx.Err()
				}

				err := next(ctx, event)
				if err == nil {
					return nil
				}

				lastErr = err
			}

			return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
		}
	}
}
