package bus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultShutdownTimeout is the maximum time Stop waits for workers to drain
// and terminate before giving up.
const DefaultShutdownTimeout = 30 * time.Second

// Bus is an in-process publish/subscribe event bus. Producers publish typed
// event values; registered handlers are invoked asynchronously on a fixed
// pool of workers according to the event's concrete type.
//
// A Bus is an explicit instance: construct one with New and pass it to the
// components that need it. Applications wanting a shared bus hold one in
// their composition code.
//
// Example:
//
//	b := bus.New(bus.WithWorkers(4))
//	bus.Subscribe(b, func(ctx context.Context, evt *UserCreated) error {
//	    return sendWelcomeEmail(ctx, evt.Email)
//	})
//
//	if err := b.Start(); err != nil {
//	    return err
//	}
//	defer b.Stop()
//
//	b.Publish(ctx, &UserCreated{Base: bus.NewBase(), Email: "user@example.com"})
type Bus struct {
	registry *registry
	queue    *eventQueue

	mu      sync.Mutex
	running bool
	spawned int
	wg      sync.WaitGroup

	workerCount     int
	shutdownTimeout time.Duration
	logger          *slog.Logger
	middleware      []Middleware

	stats busStats
}

// busStats holds the atomic counters shared between the facade and workers.
type busStats struct {
	eventsPublished atomic.Int64
	eventsProcessed atomic.Int64
	eventsFailed    atomic.Int64
	eventsDropped   atomic.Int64
	activeHandlers  atomic.Int32
	lastActivityAt  atomic.Int64
}

// Stats provides observability metrics for monitoring and debugging.
type Stats struct {
	EventsPublished int64     // Events accepted by Publish
	EventsProcessed int64     // Events fully dispatched (cancelled mid-dispatch included)
	EventsFailed    int64     // Handler invocations that returned an error or panicked
	EventsDropped   int64     // Events dropped because they were already cancelled
	ActiveHandlers  int32     // Handler invocations currently executing
	QueueDepth      int       // Items sitting in the queue, shutdown sentinels included
	Workers         int       // Workers spawned by the current Start
	IsRunning       bool      // Whether the bus is running
	LastActivityAt  time.Time // Time of the last completed dispatch
}

// New creates a new Bus with the given options. The default worker count is
// the runtime's parallelism hint (runtime.GOMAXPROCS).
func New(opts ...Option) *Bus {
	b := &Bus{
		registry:        newRegistry(),
		queue:           newEventQueue(),
		workerCount:     runtime.GOMAXPROCS(0),
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Register registers one or more handlers. Multiple handlers may be
// registered for the same event type; they are invoked in registration order.
// Register is thread-safe and may be called before or after Start; a handler
// becomes effective for any event dequeued after Register returns.
func (b *Bus) Register(handlers ...Handler) {
	for _, h := range handlers {
		if h == nil {
			continue
		}
		b.registry.add(chainMiddleware(h, b.middleware))
	}
}

// Subscribe registers a type-safe handler function for events of type T.
// It is shorthand for b.Register(NewHandlerFunc(fn)).
//
// Example:
//
//	bus.Subscribe(b, func(ctx context.Context, evt *KeyPressed) error {
//	    return handleKey(evt.Code)
//	})
func Subscribe[T Event](b *Bus, fn HandlerFunc[T]) {
	b.Register(NewHandlerFunc(fn))
}

// Publish submits an event for asynchronous delivery and returns immediately;
// it never blocks on handler execution. An already-cancelled event is dropped
// silently. Publishing while the bus is stopped is allowed - the event waits
// in the queue until the next Start.
//
// The context is preserved and passed to handlers when the event is
// dispatched, so publisher deadlines and values carry through.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return ErrNilEvent
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if event.Cancelled() {
		b.stats.eventsDropped.Add(1)
		b.logger.DebugContext(ctx, "cancelled event dropped",
			slog.String("event_type", eventTypeName(reflect.TypeOf(event))))
		return nil
	}

	b.queue.push(&envelope{ctx: ctx, event: event})
	b.stats.eventsPublished.Add(1)
	return nil
}

// Start spawns the worker pool and marks the bus running. It is idempotent:
// starting a running bus is a no-op. After Stop, Start may be called again,
// possibly with a different worker count set via SetWorkerCount.
func (b *Bus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		b.logger.Debug("bus already running")
		return nil
	}

	count := b.workerCount
	if count < 1 {
		count = 1
	}

	b.wg.Add(count)
	for i := 0; i < count; i++ {
		w := &worker{
			id:       i + 1,
			queue:    b.queue,
			registry: b.registry,
			logger:   b.logger,
			stats:    &b.stats,
		}
		go func() {
			defer b.wg.Done()
			w.run()
		}()
	}

	b.spawned = count
	b.running = true

	b.logger.Info("event bus started",
		slog.Int("workers", count),
		slog.Int("handler_count", b.registry.handlerCount()))
	return nil
}

// Stop drains the bus and joins the worker pool: one termination sentinel is
// queued per worker, so every event enqueued before Stop is dispatched first,
// then each worker exits. Stop blocks until all workers have terminated or
// the shutdown timeout elapses, and is a no-op on a stopped bus.
//
// Start and Stop are serialized; neither ever observes a half-started pool.
func (b *Bus) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil
	}

	for i := 0; i < b.spawned; i++ {
		b.queue.push(nil)
	}

	b.logger.Info("event bus stopping, waiting for workers to drain",
		slog.Int("workers", b.spawned),
		slog.Duration("timeout", b.shutdownTimeout))

	ctx, cancel := context.WithTimeout(context.Background(), b.shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	b.running = false
	b.spawned = 0

	select {
	case <-done:
		b.logger.Info("event bus stopped cleanly")
		return nil
	case <-ctx.Done():
		b.logger.Warn("event bus shutdown timeout exceeded - some workers may be abandoned",
			slog.Duration("timeout", b.shutdownTimeout))
		return fmt.Errorf("%w after %s", ErrShutdownTimeout, b.shutdownTimeout)
	}
}

// SetWorkerCount sets the number of workers spawned by the next Start.
// It has no effect on a pool that is already running.
func (b *Bus) SetWorkerCount(n int) {
	if n < 1 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		b.logger.Info("worker count change takes effect at next start",
			slog.Int("workers", n))
	}
	b.workerCount = n
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Returns a function that starts the bus, waits for context cancellation,
// and performs graceful shutdown.
//
// Example:
//
//	g, ctx := errgroup.WithContext(context.Background())
//	g.Go(b.Run(ctx))
func (b *Bus) Run(ctx context.Context) func() error {
	return func() error {
		if err := b.Start(); err != nil {
			return err
		}
		<-ctx.Done()
		return b.Stop()
	}
}

// Stats returns current bus statistics for observability and monitoring.
// This method is thread-safe and can be called at any time.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	isRunning := b.running
	workers := b.spawned
	b.mu.Unlock()

	lastActivity := b.stats.lastActivityAt.Load()
	var lastActivityTime time.Time
	if lastActivity > 0 {
		lastActivityTime = time.Unix(lastActivity, 0)
	}

	return Stats{
		EventsPublished: b.stats.eventsPublished.Load(),
		EventsProcessed: b.stats.eventsProcessed.Load(),
		EventsFailed:    b.stats.eventsFailed.Load(),
		EventsDropped:   b.stats.eventsDropped.Load(),
		ActiveHandlers:  b.stats.activeHandlers.Load(),
		QueueDepth:      b.queue.len(),
		Workers:         workers,
		IsRunning:       isRunning,
		LastActivityAt:  lastActivityTime,
	}
}

// Healthcheck validates that the bus is operational.
// Returns nil if healthy, or an error describing the health issue.
//
// The returned error can be checked using errors.Is:
//
//	if errors.Is(err, bus.ErrBusNotRunning) { ... }
func (b *Bus) Healthcheck(ctx context.Context) error {
	if !b.Stats().IsRunning {
		return fmt.Errorf("%w: %w", ErrHealthcheckFailed, ErrBusNotRunning)
	}
	return nil
}
