// Package bus provides an in-process publish/subscribe event bus for
// decoupling components within a single process. Producers publish typed
// event values; independently registered handlers are invoked asynchronously
// on a fixed pool of workers according to the event's concrete type.
//
// # Core Components
//
// Event is the capability every published value carries: a cooperative
// cancellation flag. Concrete event types are user-defined structs embedding
// Base, which adds a UUID and creation timestamp, and are published by
// pointer.
//
// Handler reacts to events of one concrete event type. Handlers are created
// from typed functions with NewHandlerFunc (or the Subscribe shorthand) and
// invoked in registration order on the single worker that dequeued the event.
//
// Bus owns the subscriber registry, the unbounded event queue, and the worker
// pool, and exposes the subscribe/publish/start/stop lifecycle. Start and
// Stop are idempotent; Stop drains the queue and joins every worker before
// returning.
//
// # Basic Usage
//
//	type UserCreated struct {
//	    bus.Base
//	    UserID string
//	    Email  string
//	}
//
//	func main() {
//	    logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//
//	    b := bus.New(
//	        bus.WithWorkers(4),
//	        bus.WithLogger(logger),
//	    )
//
//	    bus.Subscribe(b, func(ctx context.Context, evt *UserCreated) error {
//	        logger.Info("user created", "user_id", evt.UserID)
//	        return nil
//	    })
//
//	    if err := b.Start(); err != nil {
//	        logger.Error("bus failed to start", "error", err)
//	        return
//	    }
//	    defer b.Stop()
//
//	    b.Publish(context.Background(), &UserCreated{
//	        Base:   bus.NewBase(),
//	        UserID: "123",
//	        Email:  "user@example.com",
//	    })
//	}
//
// # Cancellation
//
// A handler may cancel the event it is processing; remaining handlers for
// that event are then skipped. An event cancelled before Publish is dropped
// without entering the queue:
//
//	bus.Subscribe(b, func(ctx context.Context, evt *OrderPlaced) error {
//	    if evt.Amount <= 0 {
//	        evt.Cancel() // later handlers never see this event
//	    }
//	    return nil
//	})
//
// Cancellation is cooperative: no goroutine is interrupted, and it has no
// effect on other events already enqueued.
//
// # Delivery Semantics
//
// The queue hands events to workers in publish order (global FIFO), but with
// more than one worker two events may complete out of relative order.
// Handlers for a single event always run sequentially, in registration order,
// on one worker. Events with no registered handlers are silently unconsumed.
//
// Every handler invocation is isolated: a panic or returned error fails that
// invocation only, is logged and counted in Stats, and never takes down the
// worker that ran it.
//
// # Graceful Shutdown with errgroup
//
//	g, ctx := errgroup.WithContext(context.Background())
//	g.Go(b.Run(ctx))
//
//	if err := g.Wait(); err != nil {
//	    logger.Error("service error", "error", err)
//	}
//
// # Observability and Health Checks
//
//	stats := b.Stats()
//	logger.Info("bus stats",
//	    "published", stats.EventsPublished,
//	    "processed", stats.EventsProcessed,
//	    "failed", stats.EventsFailed,
//	    "queue_depth", stats.QueueDepth)
//
//	healthSrv.AddCheck("event-bus", b.Healthcheck)
//
// # Configuration
//
// Bus settings can come from the environment via the Config struct:
//
//	var cfg bus.Config
//	config.MustLoad(&cfg)
//	b := bus.NewFromConfig(cfg, bus.WithLogger(logger))
//
// # Thread Safety
//
// Publish and Register are safe for concurrent use from any goroutine and
// never block on handler execution. Start and Stop are serialized with each
// other. The one deliberate exception is the cancellation flag itself: it is
// owned by the publisher before Publish and by the dispatching worker
// afterwards, so Cancel must only be called from those places.
package bus
