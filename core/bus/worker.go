package bus

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

// worker is one member of the bus's fixed pool. Its loop is a small state
// machine: pop an envelope, terminate on the nil sentinel, otherwise dispatch
// and pop again. Handlers for one event always run sequentially on the worker
// that dequeued it, in registration order, so cancellation short-circuiting is
// well defined.
type worker struct {
	id       int
	queue    *eventQueue
	registry *registry
	logger   *slog.Logger
	stats    *busStats
}

func (w *worker) run() {
	for {
		env := w.queue.pop()
		if env == nil {
			w.logger.Debug("worker terminating", slog.Int("worker", w.id))
			return
		}
		w.dispatch(env)
	}
}

func (w *worker) dispatch(env *envelope) {
	event := env.event

	// Lazy removal: an event cancelled while it sat in the queue is skipped
	// here rather than purged eagerly.
	if event.Cancelled() {
		w.stats.eventsDropped.Add(1)
		w.logger.DebugContext(env.ctx, "cancelled event skipped",
			slog.Int("worker", w.id),
			slog.String("event_type", eventTypeName(reflect.TypeOf(event))))
		return
	}

	eventType := reflect.TypeOf(event)
	typeName := eventTypeName(eventType)
	handlers := w.registry.handlersFor(eventType)

	if len(handlers) == 0 {
		// Not an error - the event is silently unconsumed.
		w.logger.DebugContext(env.ctx, "no handlers registered for event type",
			slog.Int("worker", w.id),
			slog.String("event_type", typeName))
	}

	ctx := withEventMeta(env.ctx, event, typeName)

	for _, h := range handlers {
		w.invoke(ctx, h, event, typeName)

		// A handler may cancel the event it is processing; remaining handlers
		// for this event are then never called.
		if event.Cancelled() {
			w.logger.DebugContext(ctx, "event cancelled by handler, skipping remaining handlers",
				slog.Int("worker", w.id),
				slog.String("event_type", typeName))
			break
		}
	}

	w.stats.eventsProcessed.Add(1)
	w.stats.lastActivityAt.Store(time.Now().Unix())
}

// invoke runs a single handler in isolation: a panic or returned error fails
// this invocation only and never takes down the worker, so one faulty handler
// cannot shrink the pool or wedge Stop.
func (w *worker) invoke(ctx context.Context, h Handler, event Event, typeName string) {
	w.stats.activeHandlers.Add(1)
	defer w.stats.activeHandlers.Add(-1)

	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			w.stats.eventsFailed.Add(1)
			w.logger.ErrorContext(ctx, "event handler panicked",
				slog.Int("worker", w.id),
				slog.String("event_type", typeName),
				slog.Duration("duration", time.Since(start)),
				slog.Any("panic", r))
		}
	}()

	if err := h.Handle(ctx, event); err != nil {
		w.stats.eventsFailed.Add(1)
		w.logger.ErrorContext(ctx, "event handler failed",
			slog.Int("worker", w.id),
			slog.String("event_type", typeName),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
	} else {
		w.logger.DebugContext(ctx, "event handler completed",
			slog.Int("worker", w.id),
			slog.String("event_type", typeName),
			slog.Duration("duration", time.Since(start)))
	}
}
