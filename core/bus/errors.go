package bus

import "errors"

var (
	// ErrNilEvent is returned by Publish when the event is nil.
	ErrNilEvent = errors.New("cannot publish nil event")

	// ErrEventTypeMismatch is returned when a handler receives an event whose
	// concrete type does not match the handler's declared event type.
	ErrEventTypeMismatch = errors.New("event type mismatch")

	// ErrShutdownTimeout is returned by Stop when workers do not terminate
	// within the configured shutdown timeout.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")

	// ErrBusNotRunning is reported by Healthcheck when the bus is stopped.
	ErrBusNotRunning = errors.New("bus is not running")

	// ErrHealthcheckFailed indicates a failed health check.
	ErrHealthcheckFailed = errors.New("healthcheck failed")
)
