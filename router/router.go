package router

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/c360/probestream/errors"
	"github.com/c360/probestream/frame"
	"github.com/c360/probestream/metric"
	"github.com/c360/probestream/pkg/buffer"
)

// KeyLog is the well-known key the log sink registers under. TextLine and
// DebuggerPacket messages always route there.
const KeyLog = "log"

const (
	// DefaultPendingCapacity is the per-window pending queue size.
	DefaultPendingCapacity = 256

	// DefaultMaxPendingWindows caps how many distinct unregistered window
	// names may hold pending queues at once.
	DefaultMaxPendingWindows = 64
)

// CoreKey returns the registry key for a per-core debugger view.
func CoreKey(core int) string {
	return fmt.Sprintf("cog%d", core)
}

// Destination receives routed messages. Implementations are registered by
// collaborators (log sink, window views, debugger views) and are invoked on
// the pipeline goroutine.
type Destination interface {
	Deliver(msg frame.Message)
}

// Config bounds the pending-queue machinery.
type Config struct {
	PendingCapacity   int
	MaxPendingWindows int
}

func (c Config) withDefaults() Config {
	if c.PendingCapacity <= 0 {
		c.PendingCapacity = DefaultPendingCapacity
	}
	if c.MaxPendingWindows <= 0 {
		c.MaxPendingWindows = DefaultMaxPendingWindows
	}
	return c
}

// Deps carries the router's ambient collaborators.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Router maps messages to registered destinations and parks window traffic
// whose destination has not been created yet. It exclusively owns the
// registry; a reset never invalidates registrations, taps, or pending
// queues. Not goroutine-safe: the pipeline serializes all calls.
type Router struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metric.Metrics

	dests   map[string]Destination
	pending map[string]*buffer.Ring[frame.Message]
	taps    map[string]Destination

	resets uint64
}

// New creates an empty router.
func New(cfg Config, deps Deps) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var core *metric.Metrics
	if deps.Metrics != nil {
		core = deps.Metrics.CoreMetrics()
	}
	return &Router{
		cfg:     cfg.withDefaults(),
		logger:  logger.With("component", "router"),
		metrics: core,
		dests:   make(map[string]Destination),
		pending: make(map[string]*buffer.Ring[frame.Message]),
		taps:    make(map[string]Destination),
	}
}

// Register binds a destination to a key. An occupied key is replaced, last
// write wins. Any messages parked for the key are delivered to the new
// destination in original arrival order and the pending queue is removed.
func (r *Router) Register(key string, dest Destination) error {
	if key == "" {
		return errors.WrapInvalid(
			fmt.Errorf("empty key"),
			"Router", "Register", "destination key required")
	}
	if dest == nil {
		return errors.WrapInvalid(
			fmt.Errorf("nil destination"),
			"Router", "Register", fmt.Sprintf("destination required for key %q", key))
	}

	if _, exists := r.dests[key]; exists {
		r.logger.Warn("destination replaced", "key", key)
	}
	r.dests[key] = dest

	if q, ok := r.pending[key]; ok {
		items := q.Items()
		delete(r.pending, key)
		for _, msg := range items {
			dest.Deliver(msg)
		}
		if r.metrics != nil {
			r.metrics.PendingFlushed.Add(float64(len(items)))
		}
		r.logger.Info("pending queue flushed", "key", key, "messages", len(items))
		r.publishPendingDepth()
	}
	return nil
}

// Unregister removes a destination. Parked messages for the key, if any,
// stay parked for a future registration.
func (r *Router) Unregister(key string) {
	if _, ok := r.dests[key]; !ok {
		return
	}
	delete(r.dests, key)
	r.logger.Debug("destination unregistered", "key", key)
}

// RegisterTap adds an observer that sees every message passed to Route,
// including messages that were parked or dropped. Flushed pending messages
// are not replayed to taps; each message is observed exactly once.
func (r *Router) RegisterTap(name string, dest Destination) {
	if dest == nil {
		return
	}
	r.taps[name] = dest
}

// UnregisterTap removes a tap.
func (r *Router) UnregisterTap(name string) {
	delete(r.taps, name)
}

// Route delivers a message and returns the registry keys it reached, in
// delivery order. A message may reach zero keys (parked or dropped), one,
// or several (a debugger packet with a per-core view open).
func (r *Router) Route(msg frame.Message) []string {
	var delivered []string

	switch m := msg.(type) {
	case frame.TextLine:
		delivered = r.deliverLog(msg)
	case frame.DebuggerPacket:
		delivered = r.deliverLog(msg)
		coreKey := CoreKey(m.Core)
		if dest, ok := r.dests[coreKey]; ok {
			dest.Deliver(msg)
			delivered = append(delivered, coreKey)
		}
	case frame.WindowCommand:
		delivered = r.deliverWindow(m.Window, msg)
	case frame.WindowSample:
		delivered = r.deliverWindow(m.Window, msg)
	default:
		r.logger.Warn("unroutable message", "kind", msg.Kind().String())
	}

	if r.metrics != nil {
		r.metrics.RecordMessageRouted(msg.Kind().String())
		if len(r.taps) > 0 {
			r.metrics.TapDeliveries.Add(float64(len(r.taps)))
		}
	}
	for _, tap := range r.taps {
		tap.Deliver(msg)
	}
	return delivered
}

// OnReset observes a session boundary. Registrations, taps, and pending
// queues all survive: the epoch is annotation for consumers, never a
// routing filter.
func (r *Router) OnReset(epoch uint64) {
	r.resets++
	r.logger.Info("session boundary observed",
		"epoch", epoch,
		"resets", r.resets,
		"destinations", len(r.dests),
		"pending_windows", len(r.pending))
}

// Keys returns the registered destination keys, sorted.
func (r *Router) Keys() []string {
	keys := make([]string, 0, len(r.dests))
	for key := range r.dests {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// PendingDepth returns how many messages are parked for a window name.
func (r *Router) PendingDepth(name string) int {
	q, ok := r.pending[name]
	if !ok {
		return 0
	}
	return q.Size()
}

func (r *Router) deliverLog(msg frame.Message) []string {
	dest, ok := r.dests[KeyLog]
	if !ok {
		r.logger.Warn("log sink not registered, message dropped",
			"kind", msg.Kind().String())
		if r.metrics != nil {
			r.metrics.RecordUndeliverable(msg.Kind().String())
		}
		return nil
	}
	dest.Deliver(msg)
	return []string{KeyLog}
}

func (r *Router) deliverWindow(name string, msg frame.Message) []string {
	if dest, ok := r.dests[name]; ok {
		dest.Deliver(msg)
		return []string{name}
	}
	r.park(name, msg)
	return nil
}

// park queues a window message for a destination that does not exist yet.
func (r *Router) park(name string, msg frame.Message) {
	q, ok := r.pending[name]
	if !ok {
		if len(r.pending) >= r.cfg.MaxPendingWindows {
			r.logger.Warn("pending window limit reached, message dropped",
				"window", name, "limit", r.cfg.MaxPendingWindows)
			if r.metrics != nil {
				r.metrics.RecordUndeliverable(msg.Kind().String())
			}
			return
		}
		var err error
		q, err = buffer.NewRing[frame.Message](r.cfg.PendingCapacity,
			buffer.WithOverflowPolicy[frame.Message](buffer.DropOldest),
			buffer.WithDropCallback[frame.Message](func(frame.Message) {
				r.logger.Warn("pending queue overflow, oldest message evicted",
					"window", name)
				if r.metrics != nil {
					r.metrics.PendingEvicted.Inc()
				}
			}),
		)
		if err != nil {
			r.logger.Error("pending queue allocation failed",
				"window", name, "error", err)
			if r.metrics != nil {
				r.metrics.RecordUndeliverable(msg.Kind().String())
			}
			return
		}
		r.pending[name] = q
	}

	if err := q.Write(msg); err != nil {
		r.logger.Warn("pending queue write failed",
			"window", name, "error", err)
		if r.metrics != nil {
			r.metrics.RecordUndeliverable(msg.Kind().String())
		}
		return
	}
	r.publishPendingDepth()
}

// publishPendingDepth recomputes the total parked count. At most
// MaxPendingWindows queues exist so the walk stays small.
func (r *Router) publishPendingDepth() {
	if r.metrics == nil {
		return
	}
	total := 0
	for _, q := range r.pending {
		total += q.Size()
	}
	r.metrics.PendingDepth.Set(float64(total))
}
