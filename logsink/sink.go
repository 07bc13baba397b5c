package logsink

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360/probestream/frame"
	"github.com/c360/probestream/metric"
	"github.com/c360/probestream/pkg/buffer"
	"github.com/c360/probestream/pkg/timestamp"
)

// Mode is the sink's delivery mode.
type Mode int

const (
	// ModeImmediate formats and emits every message synchronously.
	ModeImmediate Mode = iota

	// ModeBatched accumulates formatted lines and flushes them on the
	// adaptive timer.
	ModeBatched
)

func (m Mode) String() string {
	switch m {
	case ModeImmediate:
		return "immediate"
	case ModeBatched:
		return "batched"
	default:
		return "unknown"
	}
}

// Batching defaults. The interval adapts between the bounds as velocity
// moves; below the threshold the sink stops batching entirely.
const (
	DefaultMinInterval        = 50 * time.Millisecond
	DefaultMaxInterval        = 500 * time.Millisecond
	DefaultBatchTarget        = 50
	DefaultImmediateThreshold = 20.0
	DefaultDisplayLines       = 500
	DefaultVelocityWindow     = 2 * time.Second
)

// Config tunes formatting and adaptive batching.
type Config struct {
	// HexUnit is the hex dump group width in bytes: 1, 2, or 4.
	HexUnit int

	// HexBytesPerLine is the hex dump line width in bytes.
	HexBytesPerLine int

	// MinInterval and MaxInterval bound the adaptive flush interval.
	MinInterval time.Duration
	MaxInterval time.Duration

	// BatchTarget is the preferred number of messages per flush; the
	// adaptive interval is BatchTarget/velocity clamped to the bounds.
	BatchTarget int

	// ImmediateThreshold is the velocity in messages/second below which
	// the sink emits synchronously.
	ImmediateThreshold float64

	// DisplayLines sizes the live display ring.
	DisplayLines int

	// VelocityWindow is the sliding window for velocity measurement.
	VelocityWindow time.Duration

	// Clock overrides the timestamp source, for tests.
	Clock func() int64
}

func (c Config) withDefaults() Config {
	if c.HexUnit != 1 && c.HexUnit != 2 && c.HexUnit != 4 {
		c.HexUnit = 2
	}
	if c.HexBytesPerLine <= 0 {
		c.HexBytesPerLine = 16
	}
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.MaxInterval < c.MinInterval {
		c.MaxInterval = DefaultMaxInterval
		if c.MaxInterval < c.MinInterval {
			c.MaxInterval = c.MinInterval
		}
	}
	if c.BatchTarget <= 0 {
		c.BatchTarget = DefaultBatchTarget
	}
	if c.ImmediateThreshold <= 0 {
		c.ImmediateThreshold = DefaultImmediateThreshold
	}
	if c.DisplayLines <= 0 {
		c.DisplayLines = DefaultDisplayLines
	}
	if c.VelocityWindow <= 0 {
		c.VelocityWindow = DefaultVelocityWindow
	}
	if c.Clock == nil {
		c.Clock = timestamp.Now
	}
	return c
}

// Deps wires the sink's collaborators.
type Deps struct {
	// Store persists session artifacts. Nil means display-only.
	Store   ArtifactStore
	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Sink formats messages into a human-readable trace, persists them in
// per-session artifacts, and keeps a bounded live display. Delivery is
// immediate at low message velocity and batched on an adaptive interval at
// high velocity.
//
// The sink is not goroutine-safe; the pipeline serializes all calls,
// including subscriptions.
type Sink struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metric.Metrics
	store   ArtifactStore

	format *formatter
	vel    *velocity

	epoch        uint64
	sessionID    string
	sessionStart int64
	artifact     Artifact
	degraded     bool
	dropped      uint64

	mode       Mode
	batch      []string
	batchStart int64

	display *buffer.Ring[string]
	subs    map[chan<- string]struct{}
}

// New creates a sink and opens the artifact for session 0.
func New(cfg Config, deps Deps) *Sink {
	cfg = cfg.withDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var core *metric.Metrics
	if deps.Metrics != nil {
		core = deps.Metrics.CoreMetrics()
	}
	display, _ := buffer.NewRing[string](cfg.DisplayLines,
		buffer.WithOverflowPolicy[string](buffer.DropOldest))

	s := &Sink{
		cfg:          cfg,
		logger:       logger.With("component", "logsink"),
		metrics:      core,
		store:        deps.Store,
		format:       newFormatter(cfg.HexUnit, cfg.HexBytesPerLine),
		vel:          newVelocity(cfg.VelocityWindow),
		sessionStart: cfg.Clock(),
		display:      display,
		subs:         make(map[chan<- string]struct{}),
	}
	s.openSession()
	return s
}

// Ingest formats and delivers one message. In immediate mode the formatted
// lines emit synchronously; in batched mode they wait for the flush timer.
func (s *Sink) Ingest(msg frame.Message) {
	now := s.cfg.Clock()
	s.vel.Record(now)
	rate := s.vel.Rate(now)

	mode := ModeImmediate
	if rate >= s.cfg.ImmediateThreshold {
		mode = ModeBatched
	}
	if mode != s.mode {
		s.logger.Debug("delivery mode changed", "mode", mode.String(), "velocity", rate)
		s.mode = mode
	}
	if s.metrics != nil {
		s.metrics.RecordSinkIngested(msg.Kind().String())
		s.metrics.SinkVelocity.Set(rate)
		s.metrics.RecordSinkMode(mode == ModeBatched)
	}

	lines := s.format.Render(msg, s.sessionStart, now)
	if len(s.batch) == 0 {
		s.batchStart = now
	}
	s.batch = append(s.batch, lines...)

	if s.mode == ModeImmediate {
		s.Flush()
	}
}

// Deliver satisfies the router's Destination contract; the sink registers
// under the well-known log key at assembly.
func (s *Sink) Deliver(msg frame.Message) {
	s.Ingest(msg)
}

// Flush emits all pending lines to the artifact, the display ring, and
// live subscribers.
func (s *Sink) Flush() {
	if len(s.batch) == 0 {
		return
	}
	lines := s.batch
	s.batch = nil
	s.emit(lines)
	if s.metrics != nil {
		s.metrics.SinkFlushes.Inc()
	}
}

// FlushDue reports whether the pending batch has aged past the adaptive
// interval.
func (s *Sink) FlushDue() bool {
	if len(s.batch) == 0 {
		return false
	}
	return s.remaining() <= 0
}

// NextFlushIn tells the pipeline when to arm the flush timer. With no
// pending batch it returns the maximum interval; the resulting no-op fire
// simply re-arms.
func (s *Sink) NextFlushIn() time.Duration {
	if len(s.batch) == 0 {
		return s.cfg.MaxInterval
	}
	r := s.remaining()
	if r < 0 {
		return 0
	}
	return r
}

// OnReset finalizes the current session and starts the next one. Pending
// lines flush into the old artifact first: they belong to the session that
// produced them.
func (s *Sink) OnReset(newEpoch uint64) {
	s.Flush()
	s.closeArtifact(fmt.Sprintf("==== reset: entering session %d ====", newEpoch))

	s.display.Clear()
	s.format.breakContinuity()
	s.vel.Reset()
	s.mode = ModeImmediate

	s.epoch = newEpoch
	s.sessionStart = s.cfg.Clock()
	s.openSession()
}

// Snapshot returns the live display contents, oldest first.
func (s *Sink) Snapshot() []string {
	return s.display.Items()
}

// SubscribeLines registers a live line channel. Sends never block: a full
// channel skips lines rather than stalling the pipeline.
func (s *Sink) SubscribeLines(ch chan<- string) {
	s.subs[ch] = struct{}{}
}

// UnsubscribeLines removes a subscriber.
func (s *Sink) UnsubscribeLines(ch chan<- string) {
	delete(s.subs, ch)
}

// Mode returns the current delivery mode.
func (s *Sink) Mode() Mode {
	return s.mode
}

// SessionID returns the current session's artifact ID.
func (s *Sink) SessionID() string {
	return s.sessionID
}

// Dropped returns how many lines were not persisted this session because
// the artifact store is unavailable.
func (s *Sink) Dropped() uint64 {
	return s.dropped
}

// Close flushes pending lines and finalizes the current artifact without a
// boundary marker.
func (s *Sink) Close() error {
	s.Flush()
	if s.artifact == nil {
		return nil
	}
	artifact := s.artifact
	s.artifact = nil
	return artifact.Finalize("")
}

// remaining is time left until the pending batch is due.
func (s *Sink) remaining() time.Duration {
	now := s.cfg.Clock()
	interval := s.interval(s.vel.Rate(now))
	deadline := s.batchStart + interval.Microseconds()
	return time.Duration(deadline-now) * time.Microsecond
}

// interval derives the adaptive flush delay from velocity: higher velocity,
// longer interval, within the configured bounds.
func (s *Sink) interval(rate float64) time.Duration {
	if rate <= 0 {
		return s.cfg.MaxInterval
	}
	d := time.Duration(float64(s.cfg.BatchTarget) / rate * float64(time.Second))
	if d < s.cfg.MinInterval {
		return s.cfg.MinInterval
	}
	if d > s.cfg.MaxInterval {
		return s.cfg.MaxInterval
	}
	return d
}

// openSession assigns a fresh session ID, opens its artifact, and emits
// the session marker. An open failure degrades persistence for this
// session only; the live display keeps working.
func (s *Sink) openSession() {
	s.sessionID = fmt.Sprintf("%d-%s", s.epoch, uuid.NewString()[:8])
	s.degraded = false
	s.dropped = 0

	marker := fmt.Sprintf("==== session %d started ====", s.epoch)

	if s.store != nil {
		artifact, err := s.store.Open(s.sessionID)
		if err != nil {
			s.artifact = nil
			s.degraded = true
			s.logger.Error("artifact open failed, persistence degraded",
				"session", s.sessionID, "error", err)
			if s.metrics != nil {
				s.metrics.ArtifactErrors.Inc()
			}
		} else {
			s.artifact = artifact
			s.appendArtifact([]string{marker})
			if s.metrics != nil {
				s.metrics.ArtifactRotations.Inc()
			}
		}
	}

	s.publish([]string{marker})
	s.logger.Info("session started", "session", s.sessionID, "epoch", s.epoch)
}

// closeArtifact finalizes the current artifact with a boundary marker.
func (s *Sink) closeArtifact(marker string) {
	if s.artifact == nil {
		return
	}
	if err := s.artifact.Finalize(marker); err != nil {
		s.logger.Warn("artifact finalize failed",
			"session", s.sessionID, "error", err)
		if s.metrics != nil {
			s.metrics.ArtifactErrors.Inc()
		}
	}
	s.artifact = nil
}

// emit pushes formatted lines to every output.
func (s *Sink) emit(lines []string) {
	s.appendArtifact(lines)
	s.publish(lines)
}

func (s *Sink) appendArtifact(lines []string) {
	if s.artifact == nil {
		if s.degraded {
			if s.dropped == 0 {
				s.logger.Warn("artifact unavailable, dropping lines until next session",
					"session", s.sessionID)
			}
			s.dropped += uint64(len(lines))
		}
		return
	}

	data := strings.Join(lines, "\n") + "\n"
	if err := s.artifact.Append([]byte(data)); err != nil {
		s.logger.Error("artifact append failed, persistence degraded",
			"session", s.sessionID, "error", err)
		if s.metrics != nil {
			s.metrics.ArtifactErrors.Inc()
		}
		s.artifact = nil
		s.degraded = true
		s.dropped += uint64(len(lines))
	}
}

// publish sends lines to the display ring and live subscribers.
func (s *Sink) publish(lines []string) {
	for _, line := range lines {
		_ = s.display.Write(line)
		for ch := range s.subs {
			select {
			case ch <- line:
			default:
				// slow subscriber, line skipped
			}
		}
	}
}
