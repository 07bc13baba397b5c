package buffer

import (
	"context"
	"sync"

	"github.com/c360/probestream/errors"
)

// Ring is a thread-safe fixed-capacity ring buffer.
type Ring[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	stats    *Statistics
	metrics  *ringMetrics
	opts     *ringOptions[T]

	// For Block policy
	notFull *sync.Cond
	closed  bool
}

// NewRing creates a ring with the given capacity. Capacity is required; all
// other configuration is via functional options. Returns an error if metrics
// registration fails when metrics are requested.
func NewRing[T any](capacity int, options ...Option[T]) (*Ring[T], error) {
	opts := applyOptions(options...)

	if capacity <= 0 {
		capacity = 1
	}

	var metrics *ringMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newRingMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "NewRing", "metrics registration")
		}
	}

	r := &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}
	r.notFull = sync.NewCond(&r.mu)
	return r, nil
}

// Write adds an item to the ring according to the overflow policy. With the
// Block policy it waits indefinitely for space; use WriteContext to bound the
// wait.
func (r *Ring[T]) Write(item T) error {
	return r.WriteContext(context.Background(), item)
}

// WriteContext adds an item to the ring, honoring context cancellation while
// waiting for space under the Block policy. For the drop policies the context
// is only checked on entry.
func (r *Ring[T]) WriteContext(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var dropped T
	var didDrop bool

	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Ring", "Write", "ring closed")
	}

	if r.size == r.capacity {
		switch r.opts.overflowPolicy {
		case DropOldest:
			dropped = r.items[r.tail]
			r.tail = (r.tail + 1) % r.capacity
			r.size--
			didDrop = true
			r.recordDrop()

		case DropNewest:
			r.recordDrop()
			r.mu.Unlock()
			if r.opts.dropCallback != nil {
				r.opts.dropCallback(item)
			}
			return nil

		case Block:
			if err := r.waitNotFull(ctx); err != nil {
				r.mu.Unlock()
				return err
			}
			if r.closed {
				r.mu.Unlock()
				return errors.WrapInvalid(errors.ErrAlreadyStopped, "Ring", "Write",
					"ring closed during blocking wait")
			}
		}
	}

	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.size++

	r.stats.Write()
	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.recordWrite(r.size, r.capacity)
	}

	r.mu.Unlock()

	if didDrop && r.opts.dropCallback != nil {
		r.opts.dropCallback(dropped)
	}
	return nil
}

// waitNotFull blocks on the notFull condition until space is available, the
// ring closes, or the context is cancelled. Caller must hold r.mu.
func (r *Ring[T]) waitNotFull(ctx context.Context) error {
	if ctx.Done() == nil {
		for r.size == r.capacity && !r.closed {
			r.notFull.Wait()
		}
		return nil
	}

	// A watcher goroutine converts context cancellation into a broadcast so
	// the cond wait can observe it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.notFull.Broadcast()
		case <-done:
		}
	}()

	for r.size == r.capacity && !r.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.notFull.Wait()
	}
	return ctx.Err()
}

// Read retrieves and removes one item from the ring. Returns the zero value
// and false if the ring is empty.
func (r *Ring[T]) Read() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}

	item := r.items[r.tail]
	r.items[r.tail] = zero // release for GC
	r.tail = (r.tail + 1) % r.capacity
	r.size--

	r.stats.Read()
	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.recordRead(r.size, r.capacity)
	}

	r.notFull.Signal()
	return item, true
}

// ReadBatch retrieves and removes up to max items in FIFO order.
func (r *Ring[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return nil
	}

	n := max
	if n > r.size {
		n = r.size
	}

	result := make([]T, n)
	var zero T
	for i := 0; i < n; i++ {
		result[i] = r.items[r.tail]
		r.items[r.tail] = zero
		r.tail = (r.tail + 1) % r.capacity
		r.size--
		r.stats.Read()
	}

	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.updateSize(r.size, r.capacity)
	}

	for i := 0; i < n; i++ {
		r.notFull.Signal()
	}
	return result
}

// Peek retrieves the oldest item without removing it.
func (r *Ring[T]) Peek() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.items[r.tail], true
}

// Items returns a snapshot of the ring contents in FIFO order without
// removing anything. The live display tail is served from this.
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.size == 0 {
		return nil
	}
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.tail+i)%r.capacity]
	}
	return out
}

// Size returns the current number of items in the ring.
func (r *Ring[T]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Capacity returns the maximum number of items the ring can hold.
func (r *Ring[T]) Capacity() int {
	return r.capacity // immutable, no lock needed
}

// IsFull returns true if the ring is at capacity.
func (r *Ring[T]) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size == r.capacity
}

// IsEmpty returns true if the ring contains no items.
func (r *Ring[T]) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size == 0
}

// Clear removes all items. The drop callback is invoked for each discarded
// item, after the lock is released.
func (r *Ring[T]) Clear() {
	r.mu.Lock()

	var discarded []T
	if r.opts.dropCallback != nil && r.size > 0 {
		discarded = make([]T, r.size)
		for i := 0; i < r.size; i++ {
			discarded[i] = r.items[(r.tail+i)%r.capacity]
		}
	}

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.tail = 0
	r.size = 0

	r.stats.UpdateSize(0)
	if r.metrics != nil {
		r.metrics.updateSize(0, r.capacity)
	}

	r.notFull.Broadcast()
	r.mu.Unlock()

	for _, item := range discarded {
		r.opts.dropCallback(item)
	}
}

// Stats returns the ring's statistics tracker.
func (r *Ring[T]) Stats() *Statistics {
	return r.stats
}

// Close shuts down the ring and wakes any blocked writers.
func (r *Ring[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.notFull.Broadcast()
	return nil
}

// recordDrop updates stats and metrics for an overflow drop. Caller must hold
// r.mu.
func (r *Ring[T]) recordDrop() {
	r.stats.Overflow()
	r.stats.Drop()
	if r.metrics != nil {
		r.metrics.recordOverflow()
		r.metrics.recordDrop()
	}
}
