// Package buffer provides a generic, thread-safe ring buffer with
// configurable overflow policies.
//
// The decoder pipeline leans on rings in several places: the router parks
// window messages for not-yet-registered destinations in a DropOldest ring,
// the log sink keeps its live display tail in one, and best-effort fanout
// paths (mirror publishing, websocket clients) absorb bursts through one.
// Statistics are always collected; Prometheus export is optional via
// WithMetrics().
package buffer

// OverflowPolicy defines how the ring behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest drops new items when the ring is full.
	DropNewest

	// Block causes Write operations to block until space is available.
	Block
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	case Block:
		return "Block"
	default:
		return "Unknown"
	}
}

// DropCallback is called when an item is dropped due to the overflow policy.
// It receives the item that was dropped. The callback runs outside the ring's
// lock, so it may safely call back into the ring.
type DropCallback[T any] func(item T)
