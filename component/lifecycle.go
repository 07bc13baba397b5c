package component

import (
	"context"
	"time"
)

// State is a component's position in its lifecycle.
type State int

const (
	// StateCreated means constructed but not initialized.
	StateCreated State = iota
	// StateInitialized means validated and ready to start.
	StateInitialized
	// StateStarted means running.
	StateStarted
	// StateStopped means shut down.
	StateStopped
	// StateFailed means a lifecycle operation failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LifecycleComponent is the uniform lifecycle contract:
//   - Initialize() error: validate configuration, no I/O, no context
//   - Start(ctx) error: bind resources and spawn goroutines; idempotent
//   - Stop(timeout) error: graceful shutdown with deadline; idempotent
type LifecycleComponent interface {
	Discoverable
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// IsLifecycleComponent reports whether a component supports lifecycle
// management.
func IsLifecycleComponent(comp Discoverable) bool {
	_, ok := comp.(LifecycleComponent)
	return ok
}

// AsLifecycleComponent safely casts a component to LifecycleComponent.
func AsLifecycleComponent(comp Discoverable) (LifecycleComponent, bool) {
	lc, ok := comp.(LifecycleComponent)
	return lc, ok
}
