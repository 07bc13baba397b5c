// Package natsmirror republishes decoded probe messages onto NATS subjects
package natsmirror

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/probestream/component"
	"github.com/c360/probestream/errors"
	"github.com/c360/probestream/frame"
	"github.com/c360/probestream/metric"
	"github.com/c360/probestream/natsclient"
	"github.com/c360/probestream/pkg/worker"
)

const componentName = "nats-mirror"

// dropLogEvery throttles queue-overflow warnings so a saturated probe does
// not flood the log.
const dropLogEvery = 1000

// Metrics holds Prometheus metrics for the mirror output component
type Metrics struct {
	published     *prometheus.CounterVec
	publishErrors prometheus.Counter
	lastActivity  prometheus.Gauge
}

// newMetrics creates and registers mirror metrics
func newMetrics(registry *metric.Registry) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "probestream",
			Subsystem: "mirror",
			Name:      "published_total",
			Help:      "Messages republished to NATS by kind",
		}, []string{"kind"}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probestream",
			Subsystem: "mirror",
			Name:      "publish_errors_total",
			Help:      "Publishes that failed or were refused",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "probestream",
			Subsystem: "mirror",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last successful publish",
		}),
	}

	serviceName := "nats_mirror"
	registry.RegisterCounterVec(serviceName, "published", metrics.published)
	registry.RegisterCounter(serviceName, "publish_errors", metrics.publishErrors)
	registry.RegisterGauge(serviceName, "last_activity", metrics.lastActivity)

	return metrics
}

// publisher is the slice of natsclient.Client the mirror publishes through.
// Narrowed so tests can substitute an in-process fake.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Output mirrors every routed message onto NATS. It satisfies
// router.Destination and is meant to be attached as a tap, so delivery is
// observation only: the mirror never blocks the decode path, dropping
// messages instead when the publish queue is full.
type Output struct {
	name          string
	prefix        string
	workers       int
	queueSize     int
	reconnectWait time.Duration
	logger        *slog.Logger

	client   *natsclient.Client
	pub      publisher
	registry *metric.Registry

	// Lifecycle management
	shutdown  chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	pool      *worker.Pool[frame.Message]

	// Counters (atomic for thread safety)
	published     atomic.Int64
	publishErrors atomic.Int64
	dropped       atomic.Int64
	lastActivity  atomic.Value // stores time.Time
	lastError     atomic.Value // stores string

	// Prometheus metrics
	metrics *Metrics
}

// Ensure Output implements all required interfaces
var _ component.Discoverable = (*Output)(nil)
var _ component.LifecycleComponent = (*Output)(nil)

// mirrorSchema is generated from Config struct tags using reflection
var mirrorSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the mirror output component
type Config struct {
	SubjectPrefix string `json:"subject_prefix" schema:"type:string,description:Leading token of published subjects,default:probestream,category:basic"`
	Workers       int    `json:"workers"        schema:"type:int,description:Concurrent publish workers,min:1,default:2,category:advanced"`
	QueueSize     int    `json:"queue_size"     schema:"type:int,description:Bounded publish queue length,min:1,default:1024,category:advanced"`

	// ReconnectWait paces connect retries. Set programmatically; zero means
	// the default.
	ReconnectWait time.Duration `json:"reconnect_wait"`
}

// Validate implements component.Validatable
func (c *Config) Validate() error {
	if !validSubjectPrefix(c.SubjectPrefix) {
		return errors.WrapInvalid(
			fmt.Errorf("subject prefix %q is not valid for NATS subjects", c.SubjectPrefix),
			componentName, "Validate", "subject prefix validation")
	}
	if c.Workers < 1 {
		return errors.WrapInvalid(
			fmt.Errorf("workers must be positive, got %d", c.Workers),
			componentName, "Validate", "workers validation")
	}
	if c.QueueSize < 1 {
		return errors.WrapInvalid(
			fmt.Errorf("queue size must be positive, got %d", c.QueueSize),
			componentName, "Validate", "queue size validation")
	}
	return nil
}

// DefaultConfig returns sensible defaults for the mirror output
func DefaultConfig() Config {
	return Config{
		SubjectPrefix: "probestream",
		Workers:       2,
		QueueSize:     1024,
		ReconnectWait: 2 * time.Second,
	}
}

// validSubjectPrefix reports whether p can lead a NATS subject. Dots
// separate tokens; each token must be non-empty alphanumeric with dashes
// and underscores.
func validSubjectPrefix(p string) bool {
	if p == "" {
		return false
	}
	lastDot := true
	for _, r := range p {
		switch {
		case r == '.':
			if lastDot {
				return false
			}
			lastDot = true
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == '-':
			lastDot = false
		default:
			return false
		}
	}
	return !lastDot
}

// Deps holds runtime dependencies for the mirror output component
type Deps struct {
	Name    string
	Config  Config
	Client  *natsclient.Client
	Metrics *metric.Registry
	Logger  *slog.Logger
}

// NewOutput creates a new mirror output component. The client should be
// constructed but not yet connected; Start brings the connection up in the
// background.
func NewOutput(deps Deps) *Output {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := deps.Config
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultConfig().SubjectPrefix
	}
	if cfg.Workers < 1 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = DefaultConfig().ReconnectWait
	}

	o := &Output{
		name:          deps.Name,
		prefix:        cfg.SubjectPrefix,
		workers:       cfg.Workers,
		queueSize:     cfg.QueueSize,
		reconnectWait: cfg.ReconnectWait,
		logger:        logger.With("component", componentName),
		client:        deps.Client,
		registry:      deps.Metrics,
		startTime:     time.Now(),
		metrics:       newMetrics(deps.Metrics),
	}
	if deps.Client != nil {
		o.pub = deps.Client
	}
	o.lastActivity.Store(time.Time{})
	o.lastError.Store("")
	return o
}

// Meta returns the component metadata
func (o *Output) Meta() component.Metadata {
	name := o.name
	if name == "" {
		name = componentName
	}

	return component.Metadata{
		Name:        name,
		Type:        "output",
		Description: fmt.Sprintf("NATS mirror publishing decoded messages under %s.>", o.prefix),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component. The mirror taps the
// router in-process, so there is no external input resource.
func (o *Output) InputPorts() []component.Port {
	return nil
}

// OutputPorts returns the output ports for this component
func (o *Output) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "mirror_subjects",
			Direction:   component.DirectionOutput,
			Required:    false,
			Description: "Decoded messages republished as JSON",
			Config: component.NATSPort{
				Subject: o.prefix + ".>",
			},
		},
	}
}

// ConfigSchema returns the configuration schema for this component
func (o *Output) ConfigSchema() component.ConfigSchema {
	return mirrorSchema
}

// Health returns the current health status. The mirror is healthy only while
// running with a live NATS connection; a probe that decodes fine with a dead
// mirror degrades rather than fails.
func (o *Output) Health() component.HealthStatus {
	running := o.running.Load()
	connected := o.client == nil || o.client.IsHealthy()
	lastErr, _ := o.lastError.Load().(string)

	return component.HealthStatus{
		Healthy:    running && connected,
		LastCheck:  time.Now(),
		ErrorCount: int(o.publishErrors.Load() + o.dropped.Load()),
		LastError:  lastErr,
		Uptime:     time.Since(o.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (o *Output) DataFlow() component.FlowMetrics {
	published := o.published.Load()
	failed := o.publishErrors.Load() + o.dropped.Load()
	lastActivity, _ := o.lastActivity.Load().(time.Time)

	var perSecond float64
	if uptime := time.Since(o.startTime).Seconds(); uptime > 0 {
		perSecond = float64(published) / uptime
	}

	var errorRate float64
	if total := published + failed; total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		BytesPerSecond:    0,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates configuration but does not connect
func (o *Output) Initialize() error {
	if o.pub == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			componentName, "Initialize", "nats client validation")
	}
	if !validSubjectPrefix(o.prefix) {
		return errors.WrapInvalid(
			fmt.Errorf("subject prefix %q is not valid for NATS subjects", o.prefix),
			componentName, "Initialize", "subject prefix validation")
	}
	return nil
}

// Start launches the publish workers and brings the NATS connection up in
// the background. It returns without waiting for the connection: the mirror
// reports unhealthy until the first connect succeeds, and publishes drop in
// the meantime.
func (o *Output) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running.Load() {
		return nil // Already running, idempotent
	}

	if o.pub == nil {
		return errors.WrapFatal(errors.ErrMissingConfig,
			componentName, "Start", "nats client required")
	}

	o.shutdown = make(chan struct{})

	// Fresh pool per start; pools do not restart.
	var opts []worker.Option[frame.Message]
	if o.registry != nil {
		opts = append(opts, worker.WithMetricsRegistry[frame.Message](o.registry, "mirror"))
	}
	pool := worker.NewPool(o.workers, o.queueSize, o.publish, opts...)
	if err := pool.Start(ctx); err != nil {
		return errors.WrapFatal(err, componentName, "Start", "worker pool startup")
	}
	o.pool = pool

	o.running.Store(true)
	o.startTime = time.Now()

	if o.client != nil {
		o.wg.Add(1)
		go o.connectLoop(ctx)
	}

	return nil
}

// connectLoop dials until it succeeds or the component stops. Once the
// driver is connected its own reconnect machinery takes over.
func (o *Output) connectLoop(ctx context.Context) {
	defer o.wg.Done()

	for {
		err := o.client.Connect(ctx)
		if err == nil {
			o.logger.Info("mirror connected", "url", o.client.URL())
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-o.shutdown:
			return
		default:
		}

		o.lastError.Store(err.Error())

		wait := o.reconnectWait
		if stderrors.Is(err, natsclient.ErrCircuitOpen) {
			if b := o.client.Backoff(); b > wait {
				wait = b
			}
		}
		o.logger.Warn("mirror connect failed", "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return
		case <-o.shutdown:
			return
		case <-time.After(wait):
		}
	}
}

// Stop drains queued publishes and closes the NATS connection
func (o *Output) Stop(timeout time.Duration) error {
	if !o.running.Load() {
		return nil
	}

	o.running.Store(false)
	deadline := time.Now().Add(timeout)

	o.mu.Lock()
	if o.shutdown != nil {
		select {
		case <-o.shutdown:
		default:
			close(o.shutdown)
		}
	}
	pool := o.pool
	o.pool = nil
	o.mu.Unlock()

	var errs []error

	// Drain queued publishes while the connection is still up.
	if pool != nil {
		if err := pool.Stop(time.Until(deadline)); err != nil {
			errs = append(errs, errors.WrapTransient(err,
				componentName, "Stop", "drain publish queue"))
		}
	}

	// Join the connect loop before closing so a dial in flight cannot
	// resurrect the connection afterwards.
	waitCh := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(time.Until(deadline)):
		errs = append(errs, errors.WrapTransient(
			fmt.Errorf("connect loop still running after %v", timeout),
			componentName, "Stop", "join connect loop"))
	}

	if o.client != nil {
		closeCtx, cancel := context.WithDeadline(context.Background(), deadline)
		err := o.client.Close(closeCtx)
		cancel()
		if err != nil {
			errs = append(errs, errors.WrapTransient(err,
				componentName, "Stop", "close nats client"))
		}
	}

	if len(errs) > 0 {
		return stderrors.Join(errs...)
	}
	return nil
}

// Deliver queues msg for publication. It runs on the pipeline goroutine and
// never blocks: when the queue is full the message is dropped and counted.
// Implements router.Destination.
func (o *Output) Deliver(msg frame.Message) {
	o.mu.RLock()
	pool := o.pool
	o.mu.RUnlock()

	if pool == nil {
		o.dropped.Add(1)
		return
	}

	if err := pool.Submit(msg); err != nil {
		n := o.dropped.Add(1)
		if n == 1 || n%dropLogEvery == 0 {
			o.logger.Warn("mirror dropped message",
				"dropped_total", n, "error", err)
		}
	}
}

// publish is the pool processor: one message in, one NATS publish out.
func (o *Output) publish(ctx context.Context, msg frame.Message) error {
	data, err := encodeMessage(msg)
	if err != nil {
		o.publishErrors.Add(1)
		o.lastError.Store(err.Error())
		if o.metrics != nil {
			o.metrics.publishErrors.Inc()
		}
		return errors.WrapInvalid(err, componentName, "publish", "encode message")
	}

	subject := subjectFor(o.prefix, msg)
	if err := o.pub.Publish(ctx, subject, data); err != nil {
		o.publishErrors.Add(1)
		o.lastError.Store(err.Error())
		if o.metrics != nil {
			o.metrics.publishErrors.Inc()
		}

		// While NATS is down every queued message fails this way; keep it
		// at debug.
		if stderrors.Is(err, natsclient.ErrNotConnected) {
			o.logger.Debug("mirror publish skipped", "subject", subject)
		} else {
			o.logger.Warn("mirror publish failed", "subject", subject, "error", err)
		}
		return err
	}

	now := time.Now()
	o.published.Add(1)
	o.lastActivity.Store(now)
	if o.metrics != nil {
		o.metrics.published.WithLabelValues(msg.Kind().String()).Inc()
		o.metrics.lastActivity.Set(float64(now.Unix()))
	}
	return nil
}
