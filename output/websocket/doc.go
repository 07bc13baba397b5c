// Package websocket serves the probe log as a live WebSocket stream.
//
// # Overview
//
// The view is the display surface of the decoder: it serves the log sink's
// formatted, display-ready lines to any number of browser or tool clients.
// Each line is one text frame, already carrying its timestamp prefix, core
// tag, and hex-dump layout, so a client only has to append it to a scrollback.
//
// On connect a client first receives the sink's display ring snapshot, then
// live lines as the sink emits them. Snapshot and subscription happen in a
// single pipeline event, so the handoff has no gap and no duplicate: a
// client joining mid-session sees recent history followed seamlessly by new
// output, including across resets (the session-start marker is a line like
// any other).
//
// # Quick Start
//
//	view := websocket.NewOutput(websocket.Deps{
//	    Name:    "live-view",
//	    Config:  websocket.DefaultConfig(),
//	    Stream:  sink,
//	    Run:     pipe,
//	    Metrics: registry,
//	    Logger:  logger,
//	})
//
//	if err := view.Initialize(); err != nil { ... }
//	if err := view.Start(ctx); err != nil { ... }
//	defer view.Stop(5 * time.Second)
//
// # Delivery semantics
//
// The sink's subscriber sends are non-blocking: a client that stops reading
// fills its per-client buffer and loses lines rather than stalling the
// pipeline. The log artifact is the complete record; the view is best-effort
// display, like a terminal window.
package websocket
