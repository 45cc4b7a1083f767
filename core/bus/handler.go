package bus

import (
	"context"
	"fmt"
	"reflect"
)

// HandlerFunc is a type-safe function signature for handling events of type T.
type HandlerFunc[T Event] func(context.Context, T) error

// Handler reacts to events of one concrete event type.
// Implementations are registered with a Bus via Register, or created from
// typed functions with NewHandlerFunc.
type Handler interface {
	// EventType returns the concrete event type this handler reacts to.
	EventType() reflect.Type

	// Handle executes the handler for the given event.
	Handle(ctx context.Context, event Event) error
}

// NewHandlerFunc creates a type-safe Handler from a function. The event type
// key is derived from the type parameter, so two identically named event
// types in different packages never collide.
//
// Example:
//
//	handler := bus.NewHandlerFunc(func(ctx context.Context, evt *UserCreated) error {
//	    return sendWelcomeEmail(ctx, evt.Email)
//	})
func NewHandlerFunc[T Event](fn HandlerFunc[T]) Handler {
	return &handlerFuncWrapper[T]{
		eventType: typeFor[T](),
		fn:        fn,
	}
}

// handlerFuncWrapper is a generic, type-safe event handler implementation.
type handlerFuncWrapper[T Event] struct {
	eventType reflect.Type
	fn        HandlerFunc[T]
}

func (h *handlerFuncWrapper[T]) EventType() reflect.Type {
	return h.eventType
}

// Handle executes the handler function with type-safe event conversion.
// The registry only routes events whose concrete type matches EventType, so a
// failed assertion indicates a hand-rolled Handler lying about its type.
func (h *handlerFuncWrapper[T]) Handle(ctx context.Context, event Event) error {
	typed, ok := event.(T)
	if !ok {
		return fmt.Errorf("%w: got %T, want %s", ErrEventTypeMismatch, event, h.eventType)
	}
	return h.fn(ctx, typed)
}

// typeFor returns the registry key for event type T.
func typeFor[T Event]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// eventTypeName extracts a bare type name for logging, unwrapping pointers
// (e.g., "*UserCreated" logs as "UserCreated").
func eventTypeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
