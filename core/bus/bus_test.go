package bus_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventbus/core/bus"
)

type TestEvent struct {
	bus.Base
	Value string
}

type KeyPressEvent struct {
	bus.Base
	KeyCode int
}

type UnhandledEvent struct {
	bus.Base
}

func TestBus_DeliveryCompleteness(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(2))

	var handled atomic.Int32
	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		handled.Add(1)
		return nil
	})

	require.NoError(t, b.Start())

	const published = 25
	for i := 0; i < published; i++ {
		require.NoError(t, b.Publish(context.Background(), &TestEvent{Base: bus.NewBase()}))
	}

	require.Eventually(t, func() bool {
		return handled.Load() == published
	}, 2*time.Second, 10*time.Millisecond, "every published event should be handled exactly once")

	require.NoError(t, b.Stop())
	assert.Equal(t, int32(published), handled.Load())
}

func TestBus_TypedDispatch(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(2))

	var (
		testHandled atomic.Int32
		keyHandled  atomic.Int32
		gotValue    atomic.Value
		gotKeyCode  atomic.Int32
	)

	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		testHandled.Add(1)
		gotValue.Store(evt.Value)
		return nil
	})
	bus.Subscribe(b, func(ctx context.Context, evt *KeyPressEvent) error {
		keyHandled.Add(1)
		gotKeyCode.Store(int32(evt.KeyCode))
		return nil
	})

	require.NoError(t, b.Start())

	require.NoError(t, b.Publish(context.Background(), &TestEvent{Base: bus.NewBase(), Value: "hello"}))
	require.NoError(t, b.Publish(context.Background(), &KeyPressEvent{Base: bus.NewBase(), KeyCode: 42}))

	require.Eventually(t, func() bool {
		return testHandled.Load() == 1 && keyHandled.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Stop())

	assert.Equal(t, int32(1), testHandled.Load())
	assert.Equal(t, int32(1), keyHandled.Load())
	assert.Equal(t, "hello", gotValue.Load())
	assert.Equal(t, int32(42), gotKeyCode.Load())

	stats := b.Stats()
	assert.False(t, stats.IsRunning)
	assert.Zero(t, stats.Workers)
}

func TestBus_TypeIsolation(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(1))

	var handled atomic.Int32
	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		handled.Add(1)
		return nil
	})

	require.NoError(t, b.Start())
	require.NoError(t, b.Publish(context.Background(), &UnhandledEvent{Base: bus.NewBase()}))

	// The unhandled event is silently unconsumed, not an error.
	require.Eventually(t, func() bool {
		return b.Stats().EventsProcessed == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Stop())
	assert.Zero(t, handled.Load())
	assert.Zero(t, b.Stats().EventsFailed)
}

func TestBus_CancellationShortCircuit(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(1))

	var first, second, third atomic.Int32
	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		first.Add(1)
		evt.Cancel()
		return nil
	})
	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		second.Add(1)
		return nil
	})
	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		third.Add(1)
		return nil
	})

	require.NoError(t, b.Start())

	evt := &TestEvent{Base: bus.NewBase()}
	require.NoError(t, b.Publish(context.Background(), evt))

	require.Eventually(t, func() bool {
		return first.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Stop())

	assert.Equal(t, int32(1), first.Load(), "the cancelling handler always runs")
	assert.Zero(t, second.Load(), "handlers after the cancelling one never run")
	assert.Zero(t, third.Load())
	assert.True(t, evt.Cancelled())
}

func TestBus_PreCancelledPublishIsNoOp(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(1))

	var handled atomic.Int32
	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		handled.Add(1)
		return nil
	})

	require.NoError(t, b.Start())

	evt := &TestEvent{Base: bus.NewBase()}
	evt.Cancel()
	require.NoError(t, b.Publish(context.Background(), evt))

	stats := b.Stats()
	assert.Equal(t, int64(1), stats.EventsDropped)
	assert.Zero(t, stats.EventsPublished)
	assert.Zero(t, stats.QueueDepth)

	require.NoError(t, b.Stop())
	assert.Zero(t, handled.Load())
}

func TestBus_IdempotentLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("double start keeps one pool", func(t *testing.T) {
		t.Parallel()

		b := bus.New(bus.WithWorkers(3))

		require.NoError(t, b.Start())
		assert.Equal(t, 3, b.Stats().Workers)

		require.NoError(t, b.Start())
		assert.Equal(t, 3, b.Stats().Workers)

		require.NoError(t, b.Stop())
	})

	t.Run("double stop is a no-op", func(t *testing.T) {
		t.Parallel()

		b := bus.New(bus.WithWorkers(2))
		require.NoError(t, b.Start())
		require.NoError(t, b.Stop())
		require.NoError(t, b.Stop())
	})

	t.Run("stop before start returns promptly", func(t *testing.T) {
		t.Parallel()

		b := bus.New()

		done := make(chan error, 1)
		go func() {
			done <- b.Stop()
		}()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("stop on a non-running bus did not return promptly")
		}
	})
}

func TestBus_GracefulShutdownDrainsQueue(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(4))

	var handled atomic.Int32
	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		time.Sleep(time.Millisecond)
		handled.Add(1)
		return nil
	})

	require.NoError(t, b.Start())

	const published = 50
	for i := 0; i < published; i++ {
		require.NoError(t, b.Publish(context.Background(), &TestEvent{Base: bus.NewBase()}))
	}

	// Sentinels sit behind every already-queued event, so Stop returns only
	// after all of them were dispatched.
	require.NoError(t, b.Stop())

	stats := b.Stats()
	assert.Equal(t, int32(published), handled.Load())
	assert.Equal(t, int64(published), stats.EventsProcessed)
	assert.Zero(t, stats.QueueDepth, "no events or sentinels left behind")
	assert.False(t, stats.IsRunning)
}

func TestBus_PanicIsolation(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(1), bus.WithShutdownTimeout(2*time.Second))

	var handled atomic.Int32
	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		if evt.Value == "boom" {
			panic("handler exploded")
		}
		handled.Add(1)
		return nil
	})

	require.NoError(t, b.Start())

	require.NoError(t, b.Publish(context.Background(), &TestEvent{Base: bus.NewBase(), Value: "boom"}))
	require.NoError(t, b.Publish(context.Background(), &TestEvent{Base: bus.NewBase(), Value: "ok"}))

	// The worker that ran the panicking handler must survive to process the
	// second event; a dead worker would also wedge Stop.
	require.Eventually(t, func() bool {
		return handled.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Stop())

	stats := b.Stats()
	assert.Equal(t, int64(1), stats.EventsFailed)
	assert.Equal(t, int64(2), stats.EventsProcessed)
}

func TestBus_HandlerErrorDoesNotStopLaterHandlers(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(1))

	var secondRan atomic.Int32
	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		return errors.New("first handler failed")
	})
	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		secondRan.Add(1)
		return nil
	})

	require.NoError(t, b.Start())
	require.NoError(t, b.Publish(context.Background(), &TestEvent{Base: bus.NewBase()}))

	require.Eventually(t, func() bool {
		return secondRan.Load() == 1
	}, 2*time.Second, 10*time.Millisecond, "an error (unlike cancellation) must not short-circuit dispatch")

	require.NoError(t, b.Stop())
	assert.Equal(t, int64(1), b.Stats().EventsFailed)
}

func TestBus_PublishWhileStopped(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(1))

	var handled atomic.Int32
	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		handled.Add(1)
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), &TestEvent{Base: bus.NewBase()}))
	assert.Equal(t, 1, b.Stats().QueueDepth)
	assert.Zero(t, handled.Load())

	require.NoError(t, b.Start())

	require.Eventually(t, func() bool {
		return handled.Load() == 1
	}, 2*time.Second, 10*time.Millisecond, "events published while stopped are delivered after start")

	require.NoError(t, b.Stop())
}

func TestBus_RestartWithDifferentWorkerCount(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(2))

	require.NoError(t, b.Start())
	assert.Equal(t, 2, b.Stats().Workers)
	require.NoError(t, b.Stop())

	b.SetWorkerCount(4)
	require.NoError(t, b.Start())
	assert.Equal(t, 4, b.Stats().Workers)

	// The restarted pool must actually dispatch.
	var handled atomic.Int32
	bus.Subscribe(b, func(ctx context.Context, evt *KeyPressEvent) error {
		handled.Add(1)
		return nil
	})
	require.NoError(t, b.Publish(context.Background(), &KeyPressEvent{Base: bus.NewBase(), KeyCode: 7}))

	require.Eventually(t, func() bool {
		return handled.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Stop())
}

func TestBus_SetWorkerCountWhileRunningDefersChange(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(2))
	require.NoError(t, b.Start())

	b.SetWorkerCount(5)
	assert.Equal(t, 2, b.Stats().Workers, "running pool keeps its size")

	require.NoError(t, b.Stop())
	require.NoError(t, b.Start())
	assert.Equal(t, 5, b.Stats().Workers)

	require.NoError(t, b.Stop())
}

func TestBus_SubscribeAfterStart(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(1))
	require.NoError(t, b.Start())

	var handled atomic.Int32
	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		handled.Add(1)
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), &TestEvent{Base: bus.NewBase()}))

	require.Eventually(t, func() bool {
		return handled.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Stop())
}

func TestBus_PublishNilEvent(t *testing.T) {
	t.Parallel()

	b := bus.New()

	err := b.Publish(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, bus.ErrNilEvent)
}

func TestBus_Run(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Run(ctx)()
	}()

	require.Eventually(t, func() bool {
		return b.Stats().IsRunning
	}, time.Second, 10*time.Millisecond, "run should start the bus")

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after context cancellation")
	}

	assert.False(t, b.Stats().IsRunning)
}

func TestBus_Healthcheck(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(1))

	err := b.Healthcheck(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, bus.ErrHealthcheckFailed)
	assert.ErrorIs(t, err, bus.ErrBusNotRunning)

	require.NoError(t, b.Start())
	assert.NoError(t, b.Healthcheck(context.Background()))

	require.NoError(t, b.Stop())
	assert.Error(t, b.Healthcheck(context.Background()))
}

func TestBus_HandlerContextMetadata(t *testing.T) {
	t.Parallel()

	b := bus.New(bus.WithWorkers(1))

	var (
		gotID   atomic.Value
		gotType atomic.Value
	)
	bus.Subscribe(b, func(ctx context.Context, evt *TestEvent) error {
		gotID.Store(bus.EventID(ctx))
		gotType.Store(bus.EventType(ctx))
		return nil
	})

	require.NoError(t, b.Start())

	evt := &TestEvent{Base: bus.NewBase()}
	require.NoError(t, b.Publish(context.Background(), evt))

	require.Eventually(t, func() bool {
		id, _ := gotID.Load().(string)
		return id != ""
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Stop())

	assert.Equal(t, evt.ID(), gotID.Load())
	assert.Equal(t, "TestEvent", gotType.Load())
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	cfg := bus.Config{Workers: 3, ShutdownTimeout: time.Second}
	b := bus.NewFromConfig(cfg)

	require.NoError(t, b.Start())
	assert.Equal(t, 3, b.Stats().Workers)
	require.NoError(t, b.Stop())
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := bus.DefaultConfig()
	assert.Greater(t, cfg.Workers, 0)
	assert.Equal(t, bus.DefaultShutdownTimeout, cfg.ShutdownTimeout)
}
