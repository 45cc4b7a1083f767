package bus

import (
	"log/slog"
	"time"
)

// Option configures a Bus.
type Option func(*Bus)

// WithWorkers sets the number of workers spawned by Start.
// Default is the runtime's parallelism hint. Values below 1 are ignored.
//
// Example:
//
//	b := bus.New(bus.WithWorkers(4))
func WithWorkers(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.workerCount = n
		}
	}
}

// WithShutdownTimeout configures the maximum wait time for workers to drain
// and terminate during Stop. Default is 30 seconds.
func WithShutdownTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.shutdownTimeout = d
		}
	}
}

// WithLogger configures structured logging for bus operations.
// Logging is disabled by default.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMiddleware applies middleware to every handler registered with the bus.
// Middleware is applied at registration time, so it only affects handlers
// registered after the bus is constructed (which is all of them).
//
// Example:
//
//	b := bus.New(
//	    bus.WithLogger(logger),
//	    bus.WithMiddleware(bus.LoggingMiddleware(logger)),
//	)
func WithMiddleware(mw ...Middleware) Option {
	return func(b *Bus) {
		b.middleware = append(b.middleware, mw...)
	}
}
