package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/probestream/component"
	"github.com/c360/probestream/errors"
	"github.com/c360/probestream/frame"
	"github.com/c360/probestream/logsink"
	"github.com/c360/probestream/metric"
	"github.com/c360/probestream/reset"
	"github.com/c360/probestream/router"
)

// Defaults for the event queue and decode-warning logging.
const (
	DefaultQueueSize = 1024
	DefaultWarnRate  = 10.0 // warnings logged per second
	DefaultWarnBurst = 20
)

// Config tunes the pipeline.
type Config struct {
	// Frame configures the extractor. OnWarning is owned by the pipeline;
	// a caller-supplied callback is replaced.
	Frame frame.Config

	// QueueSize bounds the event channel. Producers block when it fills;
	// no event is reordered or dropped.
	QueueSize int `json:"queue_size" schema:"type:int,description:Event queue capacity,min:1,default:1024"`

	// WarnRate and WarnBurst limit decode-warning log volume so a corrupt
	// stream cannot flood the logger. Counters are unaffected.
	WarnRate  float64 `json:"warn_rate"  schema:"type:float,description:Decode warnings logged per second,default:10"`
	WarnBurst int     `json:"warn_burst" schema:"type:int,description:Decode warning log burst,min:1,default:20"`
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.WarnRate <= 0 {
		c.WarnRate = DefaultWarnRate
	}
	if c.WarnBurst <= 0 {
		c.WarnBurst = DefaultWarnBurst
	}
	return c
}

// Deps wires the pipeline's collaborators. The pipeline constructs the
// extractor and reset controller itself; both are owned by the loop
// goroutine and must not be touched from outside.
type Deps struct {
	Router  *router.Router
	Sink    *logsink.Sink
	Logger  *slog.Logger
	Metrics *metric.Registry
}

// event is one unit of work for the loop goroutine.
type event interface {
	apply(p *Pipeline)
}

type evChunk struct{ data []byte }

type evSetAsserted struct{ level bool }

type evRegister struct {
	key  string
	dest router.Destination
}

type evUnregister struct{ key string }

type evRegisterTap struct {
	name string
	dest router.Destination
}

type evUnregisterTap struct{ name string }

type evFlushTimer struct{}

type evInspect struct {
	fn   func()
	done chan struct{}
}

// Pipeline is the single-threaded decode core: one goroutine owns the
// extractor, router, sink, and reset controller, and processes byte chunks,
// reset transitions, registration changes, and flush-timer fires strictly
// in FIFO arrival order.
//
// The ordering guarantee callers rely on: a reset enqueued after a chunk is
// handled after that chunk completes (old epoch), and a chunk enqueued
// after a reset sees the new epoch. Nothing interleaves.
type Pipeline struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metric.Metrics

	extractor  *frame.Extractor
	controller *reset.Controller
	router     *router.Router
	sink       *logsink.Sink

	warnLimit *rate.Limiter

	mu       sync.Mutex
	events   chan event
	shutdown chan struct{}
	done     chan struct{}
	running  atomic.Bool

	startTime    time.Time
	bytesIn      atomic.Uint64
	msgsOut      atomic.Uint64
	warnings     atomic.Uint64
	lastActivity atomic.Int64 // unix micros
}

var configSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// New creates a pipeline around the given router and sink. The extractor's
// warning callback is bound to the pipeline's rate-limited logger.
func New(cfg Config, deps Deps) *Pipeline {
	cfg = cfg.withDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var core *metric.Metrics
	if deps.Metrics != nil {
		core = deps.Metrics.CoreMetrics()
	}

	p := &Pipeline{
		cfg:       cfg,
		logger:    logger.With("component", "pipeline"),
		metrics:   core,
		router:    deps.Router,
		sink:      deps.Sink,
		warnLimit: rate.NewLimiter(rate.Limit(cfg.WarnRate), cfg.WarnBurst),
	}

	frameCfg := cfg.Frame
	frameCfg.OnWarning = p.onWarning
	p.extractor = frame.New(frameCfg)

	p.controller = reset.NewController(reset.Deps{
		Extractor: p.extractor,
		Sink:      deps.Sink,
		Router:    deps.Router,
		Logger:    deps.Logger,
		Metrics:   deps.Metrics,
	})

	return p
}

// BindResetLine attaches the physical reset-line driver (the serial input's
// DTR). Call during assembly, before Start.
func (p *Pipeline) BindResetLine(line reset.LineSetter) {
	p.controller.BindLine(line)
}

// Epoch returns the current session epoch. Safe only between events; use
// Do to read it from another goroutine while the loop runs.
func (p *Pipeline) Epoch() uint64 {
	return p.controller.Epoch()
}

// Initialize validates the wiring.
func (p *Pipeline) Initialize() error {
	if p.router == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "pipeline", "Initialize", "router wiring")
	}
	if p.sink == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "pipeline", "Initialize", "sink wiring")
	}
	return nil
}

// Start launches the loop goroutine. Idempotent.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return nil
	}

	p.events = make(chan event, p.cfg.QueueSize)
	p.shutdown = make(chan struct{})
	p.done = make(chan struct{})
	p.startTime = time.Now()
	p.running.Store(true)

	go p.run(ctx, p.events, p.shutdown, p.done)
	return nil
}

// Stop drains queued events, performs a final flush, and stops the loop.
// Idempotent.
func (p *Pipeline) Stop(timeout time.Duration) error {
	if !p.running.Load() {
		return nil
	}
	p.running.Store(false)

	p.mu.Lock()
	shutdown, done := p.shutdown, p.done
	if shutdown != nil {
		select {
		case <-shutdown:
		default:
			close(shutdown)
		}
	}
	p.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"pipeline", "Stop", "loop shutdown")
	}
}

// Feed enqueues one byte chunk. The chunk is copied; callers may reuse
// their buffer. Blocks until accepted, the context ends, or the pipeline
// shuts down.
func (p *Pipeline) Feed(ctx context.Context, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	data := make([]byte, len(chunk))
	copy(data, chunk)
	return p.enqueue(ctx, evChunk{data: data})
}

// SetAsserted enqueues a logical reset-line transition.
func (p *Pipeline) SetAsserted(ctx context.Context, asserted bool) error {
	return p.enqueue(ctx, evSetAsserted{level: asserted})
}

// Register enqueues a destination registration. Pending messages for the
// key flush to the destination in arrival order before any later message.
func (p *Pipeline) Register(ctx context.Context, key string, dest router.Destination) error {
	if key == "" {
		return errors.WrapInvalid(fmt.Errorf("empty key"), "pipeline", "Register", "key validation")
	}
	if dest == nil {
		return errors.WrapInvalid(fmt.Errorf("nil destination"), "pipeline", "Register", "destination validation")
	}
	return p.enqueue(ctx, evRegister{key: key, dest: dest})
}

// Unregister enqueues a destination removal.
func (p *Pipeline) Unregister(ctx context.Context, key string) error {
	return p.enqueue(ctx, evUnregister{key: key})
}

// RegisterTap enqueues a tap registration. Taps observe every routed
// message without affecting delivery.
func (p *Pipeline) RegisterTap(ctx context.Context, name string, dest router.Destination) error {
	if dest == nil {
		return errors.WrapInvalid(fmt.Errorf("nil tap"), "pipeline", "RegisterTap", "tap validation")
	}
	return p.enqueue(ctx, evRegisterTap{name: name, dest: dest})
}

// UnregisterTap enqueues a tap removal.
func (p *Pipeline) UnregisterTap(ctx context.Context, name string) error {
	return p.enqueue(ctx, evUnregisterTap{name: name})
}

// Do runs fn on the loop goroutine and waits for it to finish. Collaborators
// use it to read loop-owned state (sink snapshot, epoch) without racing the
// loop. If the context ends first, fn may still run later.
func (p *Pipeline) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := p.enqueue(ctx, evInspect{fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "pipeline", "Do", "inspection wait")
	}
}

func (p *Pipeline) enqueue(ctx context.Context, ev event) error {
	p.mu.Lock()
	events, shutdown := p.events, p.shutdown
	p.mu.Unlock()

	if !p.running.Load() || events == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "pipeline", "enqueue", "event delivery")
	}

	select {
	case events <- ev:
		return nil
	case <-shutdown:
		return errors.WrapInvalid(errors.ErrShuttingDown, "pipeline", "enqueue", "event delivery")
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "pipeline", "enqueue", "event delivery")
	}
}

// run is the loop goroutine. It alone touches the extractor, controller,
// router, and sink after Start.
func (p *Pipeline) run(ctx context.Context, events chan event, shutdown, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(p.sink.NextFlushIn())
	defer timer.Stop()

	for {
		select {
		case ev := <-events:
			ev.apply(p)
		case <-timer.C:
			evFlushTimer{}.apply(p)
		case <-shutdown:
			p.drain(events)
			return
		case <-ctx.Done():
			p.drain(events)
			return
		}
		rearmTimer(timer, p.sink.NextFlushIn())
	}
}

// drain applies events already queued at shutdown, then flushes the sink.
func (p *Pipeline) drain(events chan event) {
	for {
		select {
		case ev := <-events:
			ev.apply(p)
		default:
			p.sink.Flush()
			return
		}
	}
}

func rearmTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func (e evChunk) apply(p *Pipeline) {
	p.bytesIn.Add(uint64(len(e.data)))
	if p.metrics != nil {
		p.metrics.RecordBytesConsumed(len(e.data))
	}

	msgs := p.extractor.Feed(e.data)
	for _, msg := range msgs {
		if p.metrics != nil {
			p.metrics.RecordMessageExtracted(msg.Kind().String())
		}
		p.router.Route(msg)
	}

	p.msgsOut.Add(uint64(len(msgs)))
	p.lastActivity.Store(time.Now().UnixMicro())
}

func (e evSetAsserted) apply(p *Pipeline) {
	p.controller.SetAsserted(e.level)
}

func (e evRegister) apply(p *Pipeline) {
	if err := p.router.Register(e.key, e.dest); err != nil {
		p.logger.Warn("destination registration rejected", "key", e.key, "error", err)
	}
}

func (e evUnregister) apply(p *Pipeline) {
	p.router.Unregister(e.key)
}

func (e evRegisterTap) apply(p *Pipeline) {
	p.router.RegisterTap(e.name, e.dest)
}

func (e evUnregisterTap) apply(p *Pipeline) {
	p.router.UnregisterTap(e.name)
}

func (e evFlushTimer) apply(p *Pipeline) {
	if p.sink.FlushDue() {
		p.sink.Flush()
	}
}

func (e evInspect) apply(p *Pipeline) {
	e.fn()
	close(e.done)
}

// onWarning handles decode anomalies from the extractor, synchronously on
// the loop goroutine. Counters always advance; log lines are rate limited.
func (p *Pipeline) onWarning(w frame.Warning) {
	p.warnings.Add(1)
	if p.metrics != nil {
		p.metrics.RecordDecodeWarning(w.Reason.String())
	}
	if p.warnLimit.Allow() {
		p.logger.Warn("decode anomaly",
			"reason", w.Reason.String(),
			"offset", w.Offset,
			"byte", fmt.Sprintf("0x%02X", w.Byte))
	}
}
