package bus

import (
	"runtime"
	"time"
)

// Config holds bus configuration.
// Designed for environment-based configuration using popular env parsing libraries.
type Config struct {
	// Workers is the number of workers spawned by Start.
	// Zero means the runtime's parallelism hint.
	Workers int `env:"EVENTBUS_WORKERS" envDefault:"0"`

	// ShutdownTimeout bounds how long Stop waits for workers to drain.
	ShutdownTimeout time.Duration `env:"EVENTBUS_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		Workers:         runtime.GOMAXPROCS(0),
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// NewFromConfig creates a Bus from configuration.
// Additional options can override config values.
//
// Example:
//
//	var cfg bus.Config
//	config.MustLoad(&cfg)
//	b := bus.NewFromConfig(cfg, bus.WithLogger(logger))
func NewFromConfig(cfg Config, opts ...Option) *Bus {
	allOpts := append([]Option{
		WithWorkers(cfg.Workers),
		WithShutdownTimeout(cfg.ShutdownTimeout),
	}, opts...)

	return New(allOpts...)
}
