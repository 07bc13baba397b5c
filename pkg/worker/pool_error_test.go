package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolLifecycleSentinels(t *testing.T) {
	broker := &fakeBroker{}

	t.Run("submit before start", func(t *testing.T) {
		pool := NewPool(2, 8, broker.publish)
		err := pool.Submit(publishJob{subject: "probestream.text.raw"})
		assert.ErrorIs(t, err, ErrPoolNotStarted)
	})

	t.Run("double start", func(t *testing.T) {
		pool := NewPool(2, 8, broker.publish)
		require.NoError(t, pool.Start(context.Background()))
		defer pool.Stop(time.Second)

		assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)
	})

	t.Run("submit after stop", func(t *testing.T) {
		pool := NewPool(2, 8, broker.publish)
		require.NoError(t, pool.Start(context.Background()))
		require.NoError(t, pool.Stop(time.Second))

		err := pool.Submit(publishJob{subject: "probestream.text.raw"})
		assert.ErrorIs(t, err, ErrPoolStopped)
	})

	t.Run("stop timeout on stuck worker", func(t *testing.T) {
		stuck := func(ctx context.Context, _ publishJob) error {
			select {
			case <-time.After(10 * time.Second):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		pool := NewPool(1, 8, stuck)
		require.NoError(t, pool.Start(context.Background()))
		require.NoError(t, pool.Submit(publishJob{subject: "probestream.window.Scope"}))

		// Let the worker pick the job up before asking it to stop.
		time.Sleep(10 * time.Millisecond)

		assert.ErrorIs(t, pool.Stop(50*time.Millisecond), ErrStopTimeout)
	})
}

// The mirror branches on these with errors.Is, so Submit must return the
// sentinels unwrapped.
func TestPoolSentinelsUnwrapped(t *testing.T) {
	broker := &fakeBroker{}
	pool := NewPool(2, 8, broker.publish)

	err := pool.Submit(publishJob{subject: "probestream.text.raw"})
	require.Error(t, err)
	assert.Same(t, ErrPoolNotStarted, err)
}
