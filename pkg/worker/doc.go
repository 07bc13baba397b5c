// Package worker provides a generic, thread-safe worker pool for concurrent task processing.
//
// # Overview
//
// The worker package implements a bounded worker pool with:
//   - Generic type support for type-safe work processing
//   - Bounded queues with backpressure (non-blocking submit)
//   - Context-aware cancellation and graceful shutdown
//   - Dual-tracking observability (always-on statistics + optional Prometheus metrics)
//
// Its main consumer is the NATS mirror output, which uses a pool to decouple
// network publishing from the decode path: the pipeline thread hands each
// message to Submit and moves on, and a full queue drops the mirror copy
// rather than stalling decoding.
//
// # Usage
//
//	pool := worker.NewPool[frame.Message](
//	    2,    // workers
//	    1024, // queue size
//	    func(ctx context.Context, msg frame.Message) error {
//	        return publish(ctx, msg)
//	    },
//	    worker.WithMetricsRegistry[frame.Message](registry, "mirror"),
//	)
//
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(msg); errors.Is(err, worker.ErrQueueFull) {
//	    // overload: the item was dropped, counted in Stats().Dropped
//	}
//
// # Semantics
//
// Submit never blocks. A full queue returns ErrQueueFull and increments the
// dropped counter; the caller decides whether that matters. Submit on a pool
// that was never started returns ErrPoolNotStarted, and ErrPoolStopped after
// Stop.
//
// Stop closes the queue, lets workers drain the remaining items, and waits up
// to the given timeout. Workers also exit immediately when the Start context
// is cancelled, abandoning queued items; use Stop for a draining shutdown and
// context cancellation for a hard one.
//
// Statistics are always tracked with atomics and readable via Stats().
// Prometheus metrics are opt-in through WithMetricsRegistry and appear under
// the given prefix (queue depth, utilization, submitted/processed/failed/
// dropped totals, processing duration histogram).
package worker
