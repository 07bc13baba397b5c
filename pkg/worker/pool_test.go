package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// publishJob mirrors the shape of the work the mirror output submits: a
// subject, a payload, and switches to simulate a slow or rejecting broker.
type publishJob struct {
	subject string
	payload []byte
	reject  bool
	hold    time.Duration
}

type fakeBroker struct {
	mu       sync.Mutex
	subjects []string
	rejected int
}

func (b *fakeBroker) publish(ctx context.Context, job publishJob) error {
	if job.hold > 0 {
		select {
		case <-time.After(job.hold):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if job.reject {
		b.rejected++
		return errors.New("publish rejected")
	}
	b.subjects = append(b.subjects, job.subject)
	return nil
}

func (b *fakeBroker) published() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subjects)
}

func TestNewPoolDefaults(t *testing.T) {
	broker := &fakeBroker{}

	pool := NewPool(4, 64, broker.publish)
	assert.Equal(t, 4, pool.workers)
	assert.Equal(t, 64, pool.queueSize)

	pool = NewPool(0, 0, broker.publish)
	assert.Equal(t, 10, pool.workers)
	assert.Equal(t, 1000, pool.queueSize)
}

func TestNewPoolNilProcessorPanics(t *testing.T) {
	assert.PanicsWithValue(t, ErrNilProcessor, func() {
		NewPool[publishJob](2, 8, nil)
	})
}

func TestPoolPublishRoundTrip(t *testing.T) {
	broker := &fakeBroker{}
	pool := NewPool(2, 32, broker.publish)

	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 8; i++ {
		job := publishJob{
			subject: fmt.Sprintf("probestream.text.cog%d", i%4),
			payload: []byte("line"),
		}
		require.NoError(t, pool.Submit(job))
	}

	require.Eventually(t, func() bool {
		return broker.published() == 8
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(8), stats.Submitted)
	assert.Equal(t, int64(8), stats.Processed)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Dropped)
}

func TestPoolRejectedPublishesCountAsFailed(t *testing.T) {
	broker := &fakeBroker{}
	pool := NewPool(2, 32, broker.publish)

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(time.Second)

	for i := 0; i < 10; i++ {
		job := publishJob{subject: "probestream.window.Scope", reject: i%2 == 0}
		require.NoError(t, pool.Submit(job))
	}

	require.Eventually(t, func() bool {
		return pool.Stats().Processed == 10
	}, 2*time.Second, 5*time.Millisecond)

	stats := pool.Stats()
	assert.Equal(t, int64(5), stats.Failed)
	assert.Equal(t, 5, broker.published())
}

func TestPoolQueueFullDrops(t *testing.T) {
	broker := &fakeBroker{}
	pool := NewPool(1, 2, broker.publish)

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(2 * time.Second)

	// One job occupies the single worker, the next two fill the queue;
	// everything after that must drop.
	var dropped int
	for i := 0; i < 6; i++ {
		err := pool.Submit(publishJob{
			subject: "probestream.debugger.cog0",
			hold:    200 * time.Millisecond,
		})
		if err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			dropped++
		}
	}

	assert.Positive(t, dropped)
	assert.Equal(t, int64(dropped), pool.Stats().Dropped)
}

func TestPoolContextCancellationStopsWorkers(t *testing.T) {
	broker := &fakeBroker{}
	pool := NewPool(2, 16, broker.publish)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))

	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(publishJob{
			subject: "probestream.text.raw",
			hold:    20 * time.Millisecond,
		}))
	}
	cancel()

	// Cancelled workers exit without draining; Stop must still return
	// promptly instead of waiting out the full timeout.
	start := time.Now()
	require.NoError(t, pool.Stop(2*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPoolConcurrentSubmitters(t *testing.T) {
	broker := &fakeBroker{}
	pool := NewPool(4, 256, broker.publish)

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(time.Second)

	const submitters, perSubmitter = 8, 16

	var wg sync.WaitGroup
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perSubmitter; j++ {
				subject := fmt.Sprintf("probestream.text.cog%d", id%4)
				assert.NoError(t, pool.Submit(publishJob{subject: subject}))
			}
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return broker.published() == submitters*perSubmitter
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(submitters*perSubmitter), pool.Stats().Submitted)
}

func TestPoolStatsBeforeStart(t *testing.T) {
	broker := &fakeBroker{}
	pool := NewPool(3, 50, broker.publish)

	stats := pool.Stats()
	assert.Equal(t, 3, stats.Workers)
	assert.Equal(t, 50, stats.QueueSize)
	assert.Zero(t, stats.Submitted)
	assert.Zero(t, stats.Processed)
}
