// Package main implements the entry point for the ProbeStream decoder.
// ProbeStream reads the serial byte stream of an embedded debug probe,
// decodes it into typed messages, and fans them out to a session log,
// live views, and an optional NATS mirror.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/probestream/component"
	"github.com/c360/probestream/config"
	"github.com/c360/probestream/frame"
	"github.com/c360/probestream/health"
	"github.com/c360/probestream/input/serial"
	"github.com/c360/probestream/logsink"
	"github.com/c360/probestream/metric"
	"github.com/c360/probestream/natsclient"
	"github.com/c360/probestream/output/natsmirror"
	"github.com/c360/probestream/output/websocket"
	"github.com/c360/probestream/pipeline"
	"github.com/c360/probestream/router"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "probestream"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		fmt.Println(cfg.String())
		slog.Info("Configuration is valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewRegistry()

	// Decode core: router, sink, pipeline. The sink registers under the
	// well-known log key before any byte is fed.
	core, err := buildCore(cfg, registry, logger)
	if err != nil {
		return err
	}

	components := component.NewRegistry()
	if err := components.Register("pipeline", core.pipe); err != nil {
		return fmt.Errorf("register pipeline: %w", err)
	}

	if err := core.pipe.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	app := &application{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		components: components,
		core:       core,
	}
	defer app.shutdown(cliCfg.ShutdownTimeout)

	if err := app.startComponents(ctx); err != nil {
		return err
	}

	// Observability servers run under an errgroup: a listener failure tears
	// the group context down; a shutdown signal stops them cleanly.
	group, groupCtx := errgroup.WithContext(ctx)
	app.startObservability(groupCtx, group)
	group.Go(func() error {
		<-groupCtx.Done()
		return nil
	})

	slog.Info("ProbeStream running",
		"serial", cfg.Serial.Enabled,
		"mirror", cfg.Mirror.Enabled,
		"websocket", cfg.WebSocket.Enabled,
		"metrics", cfg.Metrics.Enabled)

	err = group.Wait()
	slog.Info("Shutdown signal received")
	return err
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting ProbeStream (debug probe stream decoder)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// loadConfiguration loads the config file, or the built-in defaults when no
// file was named.
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	if cliCfg.ConfigPath == "" {
		cfg := config.DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid default configuration: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// decodeCore bundles the three objects the pipeline event loop owns.
type decodeCore struct {
	rt   *router.Router
	sink *logsink.Sink
	pipe *pipeline.Pipeline
}

// buildCore assembles router, log sink, and pipeline from configuration.
func buildCore(cfg *config.Config, registry *metric.Registry, logger *slog.Logger) (*decodeCore, error) {
	rt := router.New(router.Config{
		PendingCapacity:   cfg.Router.PendingCapacity,
		MaxPendingWindows: cfg.Router.MaxPendingWindows,
	}, router.Deps{
		Logger:  logger,
		Metrics: registry,
	})

	sink := logsink.New(logsink.Config{
		HexUnit:            cfg.Log.HexUnit,
		HexBytesPerLine:    cfg.Log.HexBytesPerLine,
		MinInterval:        cfg.Log.MinInterval.Std(),
		MaxInterval:        cfg.Log.MaxInterval.Std(),
		BatchTarget:        cfg.Log.BatchTarget,
		ImmediateThreshold: cfg.Log.ImmediateThreshold,
		DisplayLines:       cfg.Log.DisplayLines,
		VelocityWindow:     cfg.Log.VelocityWindow.Std(),
	}, logsink.Deps{
		Store: &logsink.FileStore{
			Directory: cfg.Log.Dir,
			Prefix:    cfg.Log.FilePrefix,
		},
		Logger:  logger,
		Metrics: registry,
	})

	if err := rt.Register(router.KeyLog, sink); err != nil {
		return nil, fmt.Errorf("register log sink: %w", err)
	}

	pipe := pipeline.New(pipeline.Config{
		Frame: frame.Config{
			Cores:          cfg.Probe.Cores,
			MaxPacketBytes: cfg.Probe.MaxPacketBytes,
			MaxLineBytes:   cfg.Probe.MaxLineBytes,
		},
		QueueSize: cfg.Probe.QueueSize,
	}, pipeline.Deps{
		Router:  rt,
		Sink:    sink,
		Logger:  logger,
		Metrics: registry,
	})

	if err := pipe.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize pipeline: %w", err)
	}

	return &decodeCore{rt: rt, sink: sink, pipe: pipe}, nil
}

// application holds everything run assembles, so shutdown can unwind it.
type application struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *metric.Registry
	components *component.Registry
	core       *decodeCore

	serialIn *serial.Input
	mirror   *natsmirror.Output
	view     *websocket.Output
}

// startComponents brings up the configured inputs and outputs around the
// already-running pipeline.
func (a *application) startComponents(ctx context.Context) error {
	if a.cfg.Serial.Enabled {
		if err := a.startSerial(ctx); err != nil {
			return err
		}
	}
	if a.cfg.Mirror.Enabled {
		if err := a.startMirror(ctx); err != nil {
			return err
		}
	}
	if a.cfg.WebSocket.Enabled {
		if err := a.startView(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *application) startSerial(ctx context.Context) error {
	in := serial.NewInput(serial.InputDeps{
		Name: "serial",
		Config: serial.Config{
			Device: a.cfg.Serial.Device,
			Baud:   a.cfg.Serial.BaudRate,
		},
		Sink:    a.core.pipe,
		Metrics: a.registry,
		Logger:  a.logger,
	})
	if err := in.Initialize(); err != nil {
		return fmt.Errorf("initialize serial input: %w", err)
	}
	if err := a.components.Register("serial", in); err != nil {
		return fmt.Errorf("register serial input: %w", err)
	}

	// The input drives DTR, so reset requests reach the target's reset pin.
	a.core.pipe.BindResetLine(in)

	if err := in.Start(ctx); err != nil {
		return fmt.Errorf("start serial input: %w", err)
	}
	a.serialIn = in
	return nil
}

func (a *application) startMirror(ctx context.Context) error {
	client, err := natsclient.NewClient(strings.Join(a.cfg.Mirror.URLs, ","),
		natsclient.WithMaxReconnects(a.cfg.Mirror.MaxReconnects),
		natsclient.WithReconnectWait(a.cfg.Mirror.ReconnectWait.Std()),
		natsclient.WithLogger(natsclient.SlogLogger(a.logger)),
		natsclient.WithMetrics(a.registry),
	)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	mirror := natsmirror.NewOutput(natsmirror.Deps{
		Name: "mirror",
		Config: natsmirror.Config{
			SubjectPrefix: a.cfg.Mirror.SubjectPrefix,
			Workers:       a.cfg.Mirror.Workers,
			QueueSize:     a.cfg.Mirror.QueueSize,
			ReconnectWait: a.cfg.Mirror.ReconnectWait.Std(),
		},
		Client:  client,
		Metrics: a.registry,
		Logger:  a.logger,
	})
	if err := mirror.Initialize(); err != nil {
		return fmt.Errorf("initialize mirror: %w", err)
	}
	if err := a.components.Register("mirror", mirror); err != nil {
		return fmt.Errorf("register mirror: %w", err)
	}
	if err := mirror.Start(ctx); err != nil {
		return fmt.Errorf("start mirror: %w", err)
	}
	if err := a.core.pipe.RegisterTap(ctx, "mirror", mirror); err != nil {
		return fmt.Errorf("attach mirror tap: %w", err)
	}
	a.mirror = mirror
	return nil
}

func (a *application) startView(ctx context.Context) error {
	view := websocket.NewOutput(websocket.Deps{
		Name: "live-view",
		Config: websocket.Config{
			Addr:         a.cfg.WebSocket.Addr,
			Path:         a.cfg.WebSocket.Path,
			SendBuffer:   a.cfg.WebSocket.SendBuffer,
			WriteTimeout: a.cfg.WebSocket.WriteTimeout.Std(),
		},
		Stream:  a.core.sink,
		Run:     a.core.pipe,
		Metrics: a.registry,
		Logger:  a.logger,
	})
	if err := view.Initialize(); err != nil {
		return fmt.Errorf("initialize live view: %w", err)
	}
	if err := a.components.Register("live-view", view); err != nil {
		return fmt.Errorf("register live view: %w", err)
	}
	if err := view.Start(ctx); err != nil {
		return fmt.Errorf("start live view: %w", err)
	}
	a.view = view
	return nil
}

// startObservability serves /metrics and /healthz and runs the periodic
// health check loop, all supervised by the caller's errgroup.
func (a *application) startObservability(ctx context.Context, group *errgroup.Group) {
	if !a.cfg.Metrics.Enabled {
		return
	}

	monitor := health.NewMonitor(a.components, "pipeline", health.MonitorDeps{
		Logger:  a.logger,
		Metrics: a.registry,
	})

	server := metric.NewServer(portFromAddr(a.cfg.Metrics.Addr), "/metrics", a.registry)
	server.SetHealthHandler(monitor)

	group.Go(server.Start)
	group.Go(func() error {
		<-ctx.Done()
		return server.Stop()
	})
	group.Go(func() error {
		return monitor.Run(ctx, health.DefaultCheckInterval)
	})
}

// shutdown unwinds the application in dependency order: stop the byte
// source first, drain the pipeline, then the outputs, then close the log.
func (a *application) shutdown(timeout time.Duration) {
	deadline := time.Now().Add(timeout)

	if a.serialIn != nil {
		if err := a.serialIn.Stop(time.Until(deadline)); err != nil {
			slog.Warn("serial input stop", "error", err)
		}
	}
	if err := a.core.pipe.Stop(time.Until(deadline)); err != nil {
		slog.Warn("pipeline stop", "error", err)
	}
	if a.mirror != nil {
		if err := a.mirror.Stop(time.Until(deadline)); err != nil {
			slog.Warn("mirror stop", "error", err)
		}
	}
	if a.view != nil {
		if err := a.view.Stop(time.Until(deadline)); err != nil {
			slog.Warn("live view stop", "error", err)
		}
	}
	if err := a.core.sink.Close(); err != nil {
		slog.Warn("log sink close", "error", err)
	}

	slog.Info("Shutdown complete")
}

// portFromAddr extracts the numeric port from a listen address like
// ":9090" or "0.0.0.0:9090".
func portFromAddr(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(portStr)
	return port
}
