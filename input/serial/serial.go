// Package serial provides the serial-port input that feeds the decode pipeline
package serial

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goserial "go.bug.st/serial"

	"github.com/c360/probestream/component"
	"github.com/c360/probestream/errors"
	"github.com/c360/probestream/metric"
	"github.com/c360/probestream/pkg/retry"
)

const (
	// readBufferSize bounds a single read; the extractor reassembles frames
	// across chunks, so the value only affects syscall granularity.
	readBufferSize = 4096

	// readPollInterval is the port read deadline. Reads return empty on
	// expiry so the loop can notice shutdown.
	readPollInterval = 100 * time.Millisecond
)

// Metrics holds Prometheus metrics for the serial input component
type Metrics struct {
	bytesReceived  prometheus.Counter
	chunksReceived prometheus.Counter
	portErrors     prometheus.Counter
	portReopens    prometheus.Counter
	chunksDropped  prometheus.Counter
	lastActivity   prometheus.Gauge
}

// newMetrics creates and registers serial input metrics
func newMetrics(registry *metric.Registry) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probestream",
			Subsystem: "serial",
			Name:      "bytes_received_total",
			Help:      "Total bytes read from the serial port",
		}),
		chunksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probestream",
			Subsystem: "serial",
			Name:      "chunks_received_total",
			Help:      "Total read chunks handed to the pipeline",
		}),
		portErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probestream",
			Subsystem: "serial",
			Name:      "port_errors_total",
			Help:      "Serial port read errors encountered",
		}),
		portReopens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probestream",
			Subsystem: "serial",
			Name:      "port_reopens_total",
			Help:      "Times the port was reopened after an error",
		}),
		chunksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probestream",
			Subsystem: "serial",
			Name:      "chunks_dropped_total",
			Help:      "Chunks the pipeline refused (not running)",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "probestream",
			Subsystem: "serial",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last received chunk",
		}),
	}

	serviceName := "serial_input"
	registry.RegisterCounter(serviceName, "bytes_received", metrics.bytesReceived)
	registry.RegisterCounter(serviceName, "chunks_received", metrics.chunksReceived)
	registry.RegisterCounter(serviceName, "port_errors", metrics.portErrors)
	registry.RegisterCounter(serviceName, "port_reopens", metrics.portReopens)
	registry.RegisterCounter(serviceName, "chunks_dropped", metrics.chunksDropped)
	registry.RegisterGauge(serviceName, "last_activity", metrics.lastActivity)

	return metrics
}

// ChunkSink receives raw byte chunks in arrival order. The pipeline
// implements this.
type ChunkSink interface {
	Feed(ctx context.Context, chunk []byte) error
}

// devicePort is the subset of the serial driver the input uses. Narrowed
// from goserial.Port so tests can substitute a fake device.
type devicePort interface {
	Read(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	SetDTR(asserted bool) error
	ResetInputBuffer() error
	Close() error
}

// Input reads the probe's serial stream and feeds it to the pipeline.
// It also drives the DTR line for hardware resets.
type Input struct {
	name   string
	device string
	baud   int
	sink   ChunkSink
	logger *slog.Logger

	// Retry configuration for opening the port
	retryConfig retry.Config

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	port      devicePort

	// Metrics (atomic for thread safety)
	bytesReceived  atomic.Int64
	chunksReceived atomic.Int64
	errors         atomic.Int64
	lastActivity   atomic.Value // stores time.Time
	lastError      atomic.Value // stores string

	// Prometheus metrics
	metrics *Metrics
}

// Ensure Input implements all required interfaces
var _ component.Discoverable = (*Input)(nil)
var _ component.LifecycleComponent = (*Input)(nil)

// serialSchema is generated from Config struct tags using reflection
var serialSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the serial input component
type Config struct {
	Device string `json:"device" schema:"type:string,description:Serial device path,required,category:basic"`
	Baud   int    `json:"baud"   schema:"type:int,description:Line rate in bits per second,min:1,default:2000000,category:basic"`
}

// Validate implements component.Validatable
func (c *Config) Validate() error {
	if c.Device == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"serial-input", "Validate", "device path required")
	}
	if c.Baud <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("invalid baud rate %d", c.Baud),
			"serial-input", "Validate", "baud validation")
	}
	return nil
}

// DefaultConfig returns sensible defaults for the serial input
func DefaultConfig() Config {
	return Config{
		Device: "/dev/ttyUSB0",
		Baud:   2_000_000,
	}
}

// InputDeps holds runtime dependencies for the serial input component
type InputDeps struct {
	Name    string
	Config  Config
	Sink    ChunkSink
	Metrics *metric.Registry
	Logger  *slog.Logger
}

// NewInput creates a new serial input component
func NewInput(deps InputDeps) *Input {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Input{
		name:        deps.Name,
		device:      deps.Config.Device,
		baud:        deps.Config.Baud,
		sink:        deps.Sink,
		logger:      logger.With("component", "serial-input", "device", deps.Config.Device),
		retryConfig: retry.DefaultConfig(),
		startTime:   time.Now(),
		metrics:     newMetrics(deps.Metrics),
	}
	s.lastActivity.Store(time.Time{})
	s.lastError.Store("")
	return s
}

// Meta returns the component metadata
func (s *Input) Meta() component.Metadata {
	name := s.name
	if name == "" {
		name = "serial-input"
	}

	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("Serial input reading %s at %d baud", s.device, s.baud),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component
func (s *Input) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "probe_serial",
			Direction:   component.DirectionInput,
			Required:    true,
			Description: fmt.Sprintf("Debug probe serial device %s", s.device),
			Config: component.SerialPort{
				Device:   s.device,
				BaudRate: s.baud,
			},
		},
	}
}

// OutputPorts returns the output ports for this component. The chunk handoff
// to the pipeline is in-process, so there is no external output resource.
func (s *Input) OutputPorts() []component.Port {
	return nil
}

// ConfigSchema returns the configuration schema for this component
func (s *Input) ConfigSchema() component.ConfigSchema {
	return serialSchema
}

// Health returns the current health status of the component
func (s *Input) Health() component.HealthStatus {
	s.mu.RLock()
	portOpen := s.port != nil
	s.mu.RUnlock()

	running := s.running.Load()
	lastErr, _ := s.lastError.Load().(string)

	return component.HealthStatus{
		Healthy:    running && portOpen,
		LastCheck:  time.Now(),
		ErrorCount: int(s.errors.Load()),
		LastError:  lastErr,
		Uptime:     time.Since(s.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (s *Input) DataFlow() component.FlowMetrics {
	chunks := s.chunksReceived.Load()
	bytes := s.bytesReceived.Load()
	errorCount := s.errors.Load()
	lastActivity, _ := s.lastActivity.Load().(time.Time)

	var chunksPerSecond float64
	var bytesPerSecond float64
	var errorRate float64

	if uptime := time.Since(s.startTime).Seconds(); uptime > 0 {
		chunksPerSecond = float64(chunks) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}

	if chunks > 0 {
		errorRate = float64(errorCount) / float64(chunks)
	}

	return component.FlowMetrics{
		MessagesPerSecond: chunksPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates configuration but does not open the port
func (s *Input) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"serial-input", "Initialize", "device validation")
	}

	if s.baud <= 0 {
		return errors.WrapInvalid(fmt.Errorf("invalid baud rate %d", s.baud),
			"serial-input", "Initialize", "baud validation")
	}

	if s.sink == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"serial-input", "Initialize", "sink validation")
	}

	return nil
}

// Start opens the serial port and begins the read loop
func (s *Input) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil // Already running, idempotent
	}

	s.shutdown = make(chan struct{})
	s.done = make(chan struct{})

	if err := retry.Do(ctx, s.retryConfig, s.openPortLocked); err != nil {
		s.cleanupUnlocked()
		return errors.WrapTransient(err, "serial-input", "Start", "open port")
	}

	s.running.Store(true)
	s.startTime = time.Now()

	s.launchReadLoop(ctx)

	return nil
}

// launchReadLoop runs readLoop on its own goroutine and closes done when it
// exits.
func (s *Input) launchReadLoop(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.done != nil {
				select {
				case <-s.done:
				default:
					close(s.done)
				}
			}
		}()
		s.readLoop(ctx)
	}()
}

// openPortLocked opens the device and applies the read deadline. Caller
// holds s.mu.
func (s *Input) openPortLocked() error {
	mode := &goserial.Mode{
		BaudRate: s.baud,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	}

	port, err := goserial.Open(s.device, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.device, err)
	}

	if err := port.SetReadTimeout(readPollInterval); err != nil {
		_ = port.Close()
		return fmt.Errorf("set read timeout on %s: %w", s.device, err)
	}

	// Discard bytes buffered before we attached
	_ = port.ResetInputBuffer()

	s.port = port
	return nil
}

// Stop closes the port and joins the read loop
func (s *Input) Stop(timeout time.Duration) error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)

	s.mu.Lock()
	if s.shutdown != nil {
		select {
		case <-s.shutdown:
		default:
			close(s.shutdown)
		}
	}
	// Close the port to unblock a pending read
	if s.port != nil {
		_ = s.port.Close()
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		// Read loop finished cleanly
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"serial-input", "Stop", "graceful shutdown")
	}

	s.cleanup()
	return nil
}

// cleanup cleans up resources
func (s *Input) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupUnlocked()
}

// cleanupUnlocked cleans up resources without acquiring the mutex
func (s *Input) cleanupUnlocked() {
	if s.shutdown != nil {
		select {
		case <-s.shutdown:
		default:
			close(s.shutdown)
		}
		s.shutdown = nil
	}
	s.done = nil
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
}

// SetLine drives the DTR pin, which the probe carrier wires to the target's
// reset. Implements reset.LineSetter.
func (s *Input) SetLine(asserted bool) error {
	s.mu.RLock()
	port := s.port
	s.mu.RUnlock()

	if port == nil {
		return errors.WrapTransient(errors.ErrPortUnavailable,
			"serial-input", "SetLine", "port check")
	}

	if err := port.SetDTR(asserted); err != nil {
		return errors.WrapTransient(err, "serial-input", "SetLine", "drive DTR")
	}

	return nil
}

// readLoop reads chunks until shutdown, reopening the port after errors
func (s *Input) readLoop(ctx context.Context) {
	readBuf := make([]byte, readBufferSize)

	for s.running.Load() {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		default:
		}

		s.mu.RLock()
		port := s.port
		s.mu.RUnlock()

		if port == nil {
			return
		}

		n, err := port.Read(readBuf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-s.shutdown:
				return
			default:
			}

			s.errors.Add(1)
			s.lastError.Store(err.Error())
			if s.metrics != nil {
				s.metrics.portErrors.Inc()
			}
			s.logger.Warn("serial read failed", "error", err)

			// A read error usually means the device dropped off the bus.
			// Reopen with backoff; if it stays gone the component turns
			// unhealthy and the loop exits.
			if !s.reopenPort(ctx) {
				return
			}
			continue
		}

		if n == 0 {
			// Read deadline expired with no data
			continue
		}

		now := time.Now()
		s.chunksReceived.Add(1)
		s.bytesReceived.Add(int64(n))
		s.lastActivity.Store(now)

		if s.metrics != nil {
			s.metrics.chunksReceived.Inc()
			s.metrics.bytesReceived.Add(float64(n))
			s.metrics.lastActivity.Set(float64(now.Unix()))
		}

		// Copy before handing off; the pipeline retains the chunk beyond
		// this iteration
		chunk := make([]byte, n)
		copy(chunk, readBuf[:n])

		if err := s.sink.Feed(ctx, chunk); err != nil {
			s.errors.Add(1)
			if s.metrics != nil {
				s.metrics.chunksDropped.Inc()
			}
			s.logger.Debug("pipeline refused chunk", "error", err)
		}
	}
}

// reopenPort closes the dead port and opens a fresh one with backoff.
// Returns false when the device stayed unavailable.
func (s *Input) reopenPort(ctx context.Context) bool {
	s.mu.Lock()
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
	s.mu.Unlock()

	err := retry.Do(ctx, s.retryConfig, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.openPortLocked()
	})
	if err != nil {
		s.lastError.Store(err.Error())
		s.logger.Error("serial port unavailable", "error", err)
		return false
	}

	if s.metrics != nil {
		s.metrics.portReopens.Inc()
	}
	s.logger.Info("serial port reopened")
	return true
}
