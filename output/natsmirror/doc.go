// Package natsmirror republishes every decoded probe message onto NATS.
//
// # Overview
//
// The mirror is a router tap: attached through pipeline.RegisterTap, it sees
// each message after routing and republishes it as JSON so other tools on
// the bench (recorders, plotters, alerting) can consume the probe stream
// without touching the serial port. Subjects encode the message's origin:
//
//	<prefix>.text.cog3       trace line attributed to core 3
//	<prefix>.text.raw        trace line with no core prefix
//	<prefix>.debugger.cog0   debug monitor snapshot from core 0
//	<prefix>.window.MyScope  commands and samples for window MyScope
//
// Window commands and samples share a subject; payloads carry a "kind"
// field to discriminate. Window names are sanitized to valid subject
// tokens, with any reserved character replaced by '_'.
//
// # Quick Start
//
//	client, _ := natsclient.NewClient(strings.Join(cfg.URLs, ","),
//	    natsclient.WithLogger(natsclient.SlogLogger(logger)),
//	    natsclient.WithMetrics(registry),
//	)
//
//	mirror := natsmirror.NewOutput(natsmirror.Deps{
//	    Name:    "mirror",
//	    Config:  natsmirror.DefaultConfig(),
//	    Client:  client,
//	    Metrics: registry,
//	    Logger:  logger,
//	})
//
//	if err := mirror.Initialize(); err != nil { ... }
//	if err := mirror.Start(ctx); err != nil { ... }
//	defer mirror.Stop(5 * time.Second)
//
//	pipe.RegisterTap(ctx, "mirror", mirror)
//
// # Delivery semantics
//
// Deliver runs on the pipeline goroutine and must never block, so messages
// pass through a bounded worker pool. When the queue is full, or while NATS
// is unreachable, messages are dropped and counted; the decode path is never
// throttled by the network. The mirror is fire-and-forget: the log sink is
// the durable record, NATS is the live feed.
//
// # Connection handling
//
// Start returns immediately and dials in the background, retrying with the
// client's circuit breaker backoff until the first connect succeeds; from
// then on the driver's own reconnect machinery takes over. The component
// reports unhealthy while disconnected, which degrades the process health
// without failing it.
package natsmirror
