package component

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LifecycleFactory creates a fresh component instance for conformance
// testing.
type LifecycleFactory func() LifecycleComponent

// StandardLifecycleTests verifies a component against the lifecycle
// contract. Component packages run it from their own tests so every
// managed component behaves the same under cmd's start/stop sequencing.
func StandardLifecycleTests(t *testing.T, factory LifecycleFactory) {
	t.Run("InitializeStartStop", func(t *testing.T) {
		comp := factory()
		require.NotNil(t, comp)

		require.NoError(t, comp.Initialize())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, comp.Start(ctx))
		require.NoError(t, comp.Stop(2*time.Second))
	})

	t.Run("DoubleStart", func(t *testing.T) {
		comp := factory()
		require.NoError(t, comp.Initialize())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, comp.Start(ctx))
		assert.NoError(t, comp.Start(ctx), "second Start must be a no-op")
		require.NoError(t, comp.Stop(2*time.Second))
	})

	t.Run("DoubleStop", func(t *testing.T) {
		comp := factory()
		require.NoError(t, comp.Initialize())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, comp.Start(ctx))
		require.NoError(t, comp.Stop(2*time.Second))
		assert.NoError(t, comp.Stop(2*time.Second), "second Stop must be a no-op")
	})

	t.Run("StopWithoutStart", func(t *testing.T) {
		comp := factory()
		require.NoError(t, comp.Initialize())
		assert.NoError(t, comp.Stop(2*time.Second))
	})

	t.Run("RestartAfterStop", func(t *testing.T) {
		comp := factory()
		require.NoError(t, comp.Initialize())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, comp.Start(ctx))
		require.NoError(t, comp.Stop(2*time.Second))

		require.NoError(t, comp.Start(ctx))
		require.NoError(t, comp.Stop(2*time.Second))
	})

	t.Run("ConcurrentStop", func(t *testing.T) {
		comp := factory()
		require.NoError(t, comp.Initialize())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, comp.Start(ctx))

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(slot int) {
				defer wg.Done()
				errs[slot] = comp.Stop(2 * time.Second)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			assert.NoError(t, err)
		}
	})

	t.Run("Discoverable", func(t *testing.T) {
		comp := factory()
		meta := comp.Meta()
		assert.NotEmpty(t, meta.Name)
		assert.NotEmpty(t, meta.Type)

		schema := comp.ConfigSchema()
		assert.NotNil(t, schema.Properties)
	})
}
