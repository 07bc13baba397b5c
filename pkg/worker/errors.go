package worker

import "errors"

// Lifecycle and submission sentinels. Submit and Stop return these
// unwrapped so callers can branch with errors.Is; the mirror output treats
// ErrQueueFull as a drop to count, not a failure to report.
var (
	ErrPoolNotStarted     = errors.New("pool not started")
	ErrPoolStopped        = errors.New("pool stopped")
	ErrPoolAlreadyStarted = errors.New("pool already started")
	ErrQueueFull          = errors.New("work queue full")
	ErrNilProcessor       = errors.New("nil processor")
	ErrStopTimeout        = errors.New("workers did not stop before timeout")
)
