package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrNilConfig is returned when a nil pointer is passed to Load.
var ErrNilConfig = errors.New("config target must be a non-nil pointer")

var (
	// cache holds one loaded value per configuration type.
	cache sync.Map // reflect.Type -> loaded config value

	// dotenvOnce guards the one-time .env autoload. A missing .env file is
	// not an error; the environment simply wins.
	dotenvOnce sync.Once
)

// Load parses environment variables into cfg using its `env` struct tags.
// Each configuration type is loaded once per process and cached; subsequent
// calls for the same type return the cached value regardless of environment
// changes in between.
//
// Example:
//
//	type BusConfig struct {
//	    Workers int `env:"EVENTBUS_WORKERS" envDefault:"0"`
//	}
//
//	var cfg BusConfig
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilConfig
	}

	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	t := reflect.TypeOf(cfg).Elem()

	if cached, ok := cache.Load(t); ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment for %s: %w", t, err)
	}

	// LoadOrStore keeps the first winner if two goroutines race here, so all
	// callers observe the same value.
	cached, _ := cache.LoadOrStore(t, *cfg)
	*cfg = cached.(T)
	return nil
}

// MustLoad is like Load but panics on failure. Useful during startup when a
// missing required variable should abort the process.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
