package logsink

import "time"

// velocityBuckets fixes the sliding-window resolution.
const velocityBuckets = 8

// velocity measures message arrival rate over a sliding window split into
// fixed-width buckets. Timestamps are microseconds. The pipeline goroutine
// owns it; no locking.
type velocity struct {
	bucketSpan   int64 // microseconds per bucket
	windowMicros int64
	counts       []int64
	head         int64 // absolute index of the newest bucket
	total        int64
}

func newVelocity(window time.Duration) *velocity {
	windowMicros := window.Microseconds()
	span := windowMicros / velocityBuckets
	if span <= 0 {
		span = 1
	}
	return &velocity{
		bucketSpan:   span,
		windowMicros: windowMicros,
		counts:       make([]int64, velocityBuckets),
	}
}

// Record counts one message at the given clock reading.
func (v *velocity) Record(now int64) {
	v.advance(now)
	v.counts[v.head%velocityBuckets]++
	v.total++
}

// Rate returns messages per second observed over the window.
func (v *velocity) Rate(now int64) float64 {
	v.advance(now)
	return float64(v.total) * 1e6 / float64(v.windowMicros)
}

// Reset clears the window at a session boundary.
func (v *velocity) Reset() {
	for i := range v.counts {
		v.counts[i] = 0
	}
	v.total = 0
}

// advance expires buckets that fell out of the window.
func (v *velocity) advance(now int64) {
	idx := now / v.bucketSpan
	if idx <= v.head {
		return
	}
	steps := idx - v.head
	if steps > velocityBuckets {
		steps = velocityBuckets
	}
	for i := int64(1); i <= steps; i++ {
		slot := (v.head + i) % velocityBuckets
		v.total -= v.counts[slot]
		v.counts[slot] = 0
	}
	v.head = idx
}
