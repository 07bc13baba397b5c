package reset

import (
	"log/slog"

	"github.com/c360/probestream/metric"
)

// ExtractorReset is implemented by the frame extractor: it discards any
// partial frame and tags subsequent messages with the new epoch.
type ExtractorReset interface {
	Reset(newEpoch uint64)
}

// SinkReset is implemented by the log sink: it finalizes the current
// artifact and starts a fresh one for the new session.
type SinkReset interface {
	OnReset(newEpoch uint64)
}

// RouterNotify is implemented by the router. Informational only:
// registrations and pending queues survive the reset.
type RouterNotify interface {
	OnReset(newEpoch uint64)
}

// LineSetter drives the physical reset line. The serial input implements
// this with DTR; when absent the reset stays logical.
type LineSetter interface {
	SetLine(asserted bool) error
}

// Deps wires the controller to its reset targets.
type Deps struct {
	Extractor ExtractorReset
	Sink      SinkReset
	Router    RouterNotify
	Line      LineSetter // optional
	Logger    *slog.Logger
	Metrics   *metric.Registry
}

// Controller owns the logical reset line state and the session epoch.
//
// The epoch starts at 0 and increments exactly once per assert/release
// cycle, on release. The controller is not goroutine-safe; the pipeline
// serializes all calls to it.
type Controller struct {
	deps     Deps
	logger   *slog.Logger
	asserted bool
	epoch    uint64
}

// NewController creates a controller in the released state at epoch 0.
func NewController(deps Deps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		deps:   deps,
		logger: logger.With("component", "reset"),
	}
}

// SetAsserted sets the absolute line state. It is not a toggle and nothing
// auto-reverts it; calling with the current state is a no-op. Release
// (asserted → released) advances the epoch exactly once, then runs the
// reset chain in order: extractor, sink, router.
func (c *Controller) SetAsserted(asserted bool) {
	if asserted == c.asserted {
		return
	}
	c.asserted = asserted
	c.driveLine(asserted)

	if asserted {
		c.logger.Info("reset asserted", "epoch", c.epoch)
		return
	}

	c.epoch++
	newEpoch := c.epoch
	c.logger.Info("reset released, new session", "epoch", newEpoch)

	if c.deps.Extractor != nil {
		c.deps.Extractor.Reset(newEpoch)
	}
	if c.deps.Sink != nil {
		c.deps.Sink.OnReset(newEpoch)
	}
	if c.deps.Router != nil {
		c.deps.Router.OnReset(newEpoch)
	}

	if c.deps.Metrics != nil {
		c.deps.Metrics.CoreMetrics().RecordReset(newEpoch)
	}
}

// BindLine attaches the physical line driver. Assembly wires the serial
// input here after construction; call before the pipeline starts.
func (c *Controller) BindLine(line LineSetter) {
	c.deps.Line = line
}

// Epoch returns the current session epoch.
func (c *Controller) Epoch() uint64 {
	return c.epoch
}

// Asserted reports whether the logical reset line is currently held.
func (c *Controller) Asserted() bool {
	return c.asserted
}

// driveLine forwards the state to the physical line when one is wired.
// A drive failure is logged but never blocks the logical protocol.
func (c *Controller) driveLine(asserted bool) {
	if c.deps.Line == nil {
		return
	}
	if err := c.deps.Line.SetLine(asserted); err != nil {
		c.logger.Warn("reset line drive failed", "asserted", asserted, "error", err)
	}
}
