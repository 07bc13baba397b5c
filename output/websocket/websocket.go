// Package websocket streams the formatted probe log to browser clients
package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/probestream/component"
	"github.com/c360/probestream/errors"
	"github.com/c360/probestream/metric"
)

const componentName = "websocket-view"

// readDeadline bounds how long a client may stay silent. The ping ticker
// keeps healthy connections well inside it.
const (
	readDeadline = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Stream is the live line source: the log sink's display ring and
// subscriber list. Only the pipeline goroutine may touch it, so every call
// goes through Runner.Do.
type Stream interface {
	Snapshot() []string
	SubscribeLines(ch chan<- string)
	UnsubscribeLines(ch chan<- string)
}

// Runner schedules fn on the pipeline goroutine and waits for it to run.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// Config holds configuration for the websocket view component
type Config struct {
	Addr string `json:"addr" schema:"type:string,description:Listen address (host:port),default::8080,category:basic"`
	Path string `json:"path" schema:"type:string,description:WebSocket endpoint path,default:/stream,category:basic"`

	// SendBuffer is the per-client line buffer. A client that falls this
	// far behind starts losing lines rather than stalling the pipeline.
	SendBuffer int `json:"send_buffer" schema:"type:int,description:Per-client line buffer,min:1,default:64,category:advanced"`

	// WriteTimeout bounds a single frame write. Set programmatically; zero
	// means the default.
	WriteTimeout time.Duration `json:"write_timeout"`
}

// Validate implements component.Validatable
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			componentName, "Validate", "listen address required")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return errors.WrapInvalid(
			fmt.Errorf("path %q must start with /", c.Path),
			componentName, "Validate", "path validation")
	}
	if c.SendBuffer < 1 {
		return errors.WrapInvalid(
			fmt.Errorf("send buffer must be positive, got %d", c.SendBuffer),
			componentName, "Validate", "send buffer validation")
	}
	return nil
}

// DefaultConfig returns sensible defaults for the websocket view
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		Path:         "/stream",
		SendBuffer:   64,
		WriteTimeout: 5 * time.Second,
	}
}

// viewSchema is generated from Config struct tags using reflection
var viewSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Metrics holds Prometheus metrics for the websocket view component
type Metrics struct {
	clientsConnected prometheus.Gauge
	connectionsTotal prometheus.Counter
	linesSent        prometheus.Counter
	bytesSent        prometheus.Counter
	disconnections   *prometheus.CounterVec
}

// newMetrics creates and registers view metrics
func newMetrics(registry *metric.Registry) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "probestream",
			Subsystem: "websocket",
			Name:      "clients_connected",
			Help:      "Currently connected live-view clients",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probestream",
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Client connections accepted since start",
		}),
		linesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probestream",
			Subsystem: "websocket",
			Name:      "lines_sent_total",
			Help:      "Formatted log lines delivered to clients",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probestream",
			Subsystem: "websocket",
			Name:      "bytes_sent_total",
			Help:      "Bytes delivered to clients",
		}),
		disconnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "probestream",
			Subsystem: "websocket",
			Name:      "disconnections_total",
			Help:      "Client disconnections by reason",
		}, []string{"reason"}),
	}

	serviceName := "websocket_view"
	registry.RegisterGauge(serviceName, "clients_connected", metrics.clientsConnected)
	registry.RegisterCounter(serviceName, "connections_total", metrics.connectionsTotal)
	registry.RegisterCounter(serviceName, "lines_sent", metrics.linesSent)
	registry.RegisterCounter(serviceName, "bytes_sent", metrics.bytesSent)
	registry.RegisterCounterVec(serviceName, "disconnections", metrics.disconnections)

	return metrics
}

// Deps holds runtime dependencies for the websocket view component
type Deps struct {
	Name    string
	Config  Config
	Stream  Stream
	Run     Runner
	Metrics *metric.Registry
	Logger  *slog.Logger
}

// Output serves the sink's display-ready line stream over WebSocket. Each
// client gets the current display snapshot on connect, then live lines as
// the sink emits them. Slow clients lose lines instead of exerting
// backpressure on the decode path.
type Output struct {
	name         string
	addr         string
	path         string
	sendBuffer   int
	writeTimeout time.Duration
	logger       *slog.Logger

	stream Stream
	run    Runner

	upgrader websocket.Upgrader

	// Lifecycle management
	server    *http.Server
	listener  net.Listener
	shutdown  chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.Mutex
	wg        sync.WaitGroup

	clients   map[*websocket.Conn]struct{}
	clientsMu sync.Mutex

	// Counters (atomic for thread safety)
	linesSent    atomic.Int64
	bytesSent    atomic.Int64
	sendErrors   atomic.Int64
	lastActivity atomic.Value // stores time.Time
	lastError    atomic.Value // stores string

	// Prometheus metrics
	metrics *Metrics
}

// Ensure Output implements all required interfaces
var _ component.Discoverable = (*Output)(nil)
var _ component.LifecycleComponent = (*Output)(nil)

// NewOutput creates a new websocket view component
func NewOutput(deps Deps) *Output {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := deps.Config
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	o := &Output{
		name:         deps.Name,
		addr:         cfg.Addr,
		path:         cfg.Path,
		sendBuffer:   cfg.SendBuffer,
		writeTimeout: cfg.WriteTimeout,
		logger:       logger.With("component", componentName),
		stream:       deps.Stream,
		run:          deps.Run,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The view is read-only diagnostics on a trusted network.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]struct{}),
		startTime: time.Now(),
		metrics:   newMetrics(deps.Metrics),
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
		Description: fmt.Sprintf("Live log view at ws://%s%s", o.addr, o.path),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component. The view reads the
// sink in-process, so there is no external input resource.
func (o *Output) InputPorts() []component.Port {
	return nil
}

// OutputPorts returns the output ports for this component
func (o *Output) OutputPorts() []component.Port {
	host, port := splitAddr(o.addr)
	return []component.Port{
		{
			Name:        "live_view",
			Direction:   component.DirectionOutput,
			Required:    false,
			Description: fmt.Sprintf("WebSocket endpoint at ws://%s%s", o.addr, o.path),
			Config: component.NetworkPort{
				Protocol: "tcp",
				Host:     host,
				Port:     port,
			},
		},
	}
}

// splitAddr breaks a listen address into host and numeric port, tolerating
// the bare ":8080" form.
func splitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

// ConfigSchema returns the configuration schema for this component
func (o *Output) ConfigSchema() component.ConfigSchema {
	return viewSchema
}

// Health returns the current health status
func (o *Output) Health() component.HealthStatus {
	lastErr, _ := o.lastError.Load().(string)

	return component.HealthStatus{
		Healthy:    o.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(o.sendErrors.Load()),
		LastError:  lastErr,
		Uptime:     time.Since(o.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (o *Output) DataFlow() component.FlowMetrics {
	lines := o.linesSent.Load()
	bytes := o.bytesSent.Load()
	failed := o.sendErrors.Load()
	lastActivity, _ := o.lastActivity.Load().(time.Time)

	var linesPerSecond, bytesPerSecond float64
	if uptime := time.Since(o.startTime).Seconds(); uptime > 0 {
		linesPerSecond = float64(lines) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}

	var errorRate float64
	if total := lines + failed; total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return component.FlowMetrics{
		MessagesPerSecond: linesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates configuration but does not bind the listener
func (o *Output) Initialize() error {
	if o.stream == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			componentName, "Initialize", "line stream required")
	}
	if o.run == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			componentName, "Initialize", "pipeline runner required")
	}
	if o.addr == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			componentName, "Initialize", "listen address required")
	}
	if !strings.HasPrefix(o.path, "/") {
		return errors.WrapInvalid(
			fmt.Errorf("path %q must start with /", o.path),
			componentName, "Initialize", "path validation")
	}
	return nil
}

// Start binds the listener and begins serving clients
func (o *Output) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running.Load() {
		return nil // Already running, idempotent
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, componentName, "Start", "context already cancelled")
	}

	listener, err := net.Listen("tcp", o.addr)
	if err != nil {
		return errors.WrapFatal(err, componentName, "Start",
			fmt.Sprintf("bind %s", o.addr))
	}

	mux := http.NewServeMux()
	mux.HandleFunc(o.path, o.handleWebSocket)

	o.listener = listener
	o.server = &http.Server{Handler: mux}
	o.shutdown = make(chan struct{})
	o.running.Store(true)
	o.startTime = time.Now()

	o.wg.Add(1)
	go o.serve(o.server, listener)

	o.logger.Info("live view listening", "addr", listener.Addr().String(), "path", o.path)
	return nil
}

// serve runs the HTTP server until Stop shuts it down.
func (o *Output) serve(server *http.Server, listener net.Listener) {
	defer o.wg.Done()

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		o.lastError.Store(err.Error())
		o.logger.Error("live view server failed", "error", err)
		o.running.Store(false)
	}
}

// Addr returns the bound listen address, useful when configured with ":0".
func (o *Output) Addr() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.listener == nil {
		return o.addr
	}
	return o.listener.Addr().String()
}

// Stop closes the listener and disconnects every client
func (o *Output) Stop(timeout time.Duration) error {
	o.mu.Lock()
	if !o.running.Load() {
		o.mu.Unlock()
		return nil
	}
	o.running.Store(false)
	close(o.shutdown)
	server := o.server
	o.server = nil
	o.listener = nil
	o.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		o.logger.Warn("live view shutdown incomplete", "error", err)
	}

	o.clientsMu.Lock()
	for conn := range o.clients {
		_ = conn.Close()
	}
	o.clientsMu.Unlock()

	waitCh := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("client goroutines still running after %v", timeout),
			componentName, "Stop", "join client goroutines")
	}
}

// handleWebSocket upgrades one connection and attaches it to the line
// stream: snapshot first, then live lines, in order and without gaps.
func (o *Output) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !o.running.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.sendErrors.Add(1)
		o.lastError.Store(err.Error())
		return
	}

	lines := make(chan string, o.sendBuffer)

	// Snapshot and subscription happen in one pipeline event, so no line
	// can fall between the snapshot and the first live send.
	var snapshot []string
	err = o.run.Do(r.Context(), func() {
		snapshot = o.stream.Snapshot()
		o.stream.SubscribeLines(lines)
	})
	if err != nil {
		_ = conn.Close()
		o.sendErrors.Add(1)
		o.lastError.Store(err.Error())
		return
	}

	o.clientsMu.Lock()
	o.clients[conn] = struct{}{}
	clientCount := len(o.clients)
	o.clientsMu.Unlock()

	if o.metrics != nil {
		o.metrics.connectionsTotal.Inc()
		o.metrics.clientsConnected.Set(float64(clientCount))
	}
	o.logger.Debug("client connected",
		"remote", conn.RemoteAddr().String(), "clients", clientCount)

	o.wg.Add(2)
	go o.writeLoop(conn, snapshot, lines)
	go o.readLoop(conn)
}

// writeLoop pushes the snapshot and then live lines to one client. It owns
// all writes on the connection, including pings.
func (o *Output) writeLoop(conn *websocket.Conn, snapshot []string, lines chan string) {
	defer o.wg.Done()
	defer o.detach(conn, lines)

	for _, line := range snapshot {
		if !o.send(conn, line) {
			return
		}
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case line := <-lines:
			if !o.send(conn, line) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(o.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				o.countDisconnect("ping_failed")
				return
			}
		case <-o.shutdown:
			o.countDisconnect("shutdown")
			return
		}
	}
}

// send writes one line, reporting false when the client is gone.
func (o *Output) send(conn *websocket.Conn, line string) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(o.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		o.sendErrors.Add(1)
		o.lastError.Store(err.Error())
		o.countDisconnect("write_failed")
		return false
	}

	o.linesSent.Add(1)
	o.bytesSent.Add(int64(len(line)))
	o.lastActivity.Store(time.Now())
	if o.metrics != nil {
		o.metrics.linesSent.Inc()
		o.metrics.bytesSent.Add(float64(len(line)))
	}
	return true
}

// readLoop drains client frames so pongs and close frames are processed.
// The view is one-way; inbound payloads are discarded.
func (o *Output) readLoop(conn *websocket.Conn) {
	defer o.wg.Done()

	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			// Close the connection so the write loop unblocks too.
			_ = conn.Close()
			return
		}
	}
}

// detach unsubscribes the client from the sink and forgets the connection.
// Runs once per client, from the write loop.
func (o *Output) detach(conn *websocket.Conn, lines chan string) {
	_ = conn.Close()

	o.clientsMu.Lock()
	delete(o.clients, conn)
	clientCount := len(o.clients)
	o.clientsMu.Unlock()

	if o.metrics != nil {
		o.metrics.clientsConnected.Set(float64(clientCount))
	}

	// Best effort: when the pipeline has already stopped there is nothing
	// left to unsubscribe from.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = o.run.Do(ctx, func() {
		o.stream.UnsubscribeLines(lines)
	})

	o.logger.Debug("client disconnected",
		"remote", conn.RemoteAddr().String(), "clients", clientCount)
}

// countDisconnect records one disconnect reason.
func (o *Output) countDisconnect(reason string) {
	if o.metrics != nil {
		o.metrics.disconnections.WithLabelValues(reason).Inc()
	}
}
