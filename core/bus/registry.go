package bus

import (
	"reflect"
	"sync"
)

// registry maps concrete event types to their handlers in registration order.
// Reads are snapshots: workers copy the handler list under the lock and then
// invoke handlers lock-free, so a slow handler never starves Register or Stop,
// and concurrent registration never invalidates an in-flight dispatch.
type registry struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]Handler
}

func newRegistry() *registry {
	return &registry{
		handlers: make(map[reflect.Type][]Handler),
	}
}

// add appends a handler to the list for its event type, creating the list if
// absent. Invocation order for a type equals registration order.
func (r *registry) add(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := h.EventType()
	r.handlers[t] = append(r.handlers[t], h)
}

// handlersFor returns a snapshot of the current handlers for the given event
// type, or nil if none are registered.
func (r *registry) handlersFor(t reflect.Type) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := r.handlers[t]
	if len(handlers) == 0 {
		return nil
	}

	snapshot := make([]Handler, len(handlers))
	copy(snapshot, handlers)
	return snapshot
}

// handlerCount returns the total number of registered handlers across all
// event types.
func (r *registry) handlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, hs := range r.handlers {
		count += len(hs)
	}
	return count
}
