// Package probestream decodes the serial byte stream of an embedded debug
// probe into typed messages and fans them out to a session log, live views,
// and an optional NATS mirror.
//
// # Architecture
//
// The decoder is a single-threaded pipeline wrapped in concurrent edge
// components:
//
//	serial input ──▶ pipeline ──▶ router ──▶ log sink ──▶ artifacts
//	                    │            │           └──▶ websocket live view
//	                    │            └──▶ window/debugger destinations, taps (NATS mirror)
//	                    └── reset controller (session epochs, DTR)
//
// One goroutine (the pipeline event loop) owns all decode state: the frame
// extractor, the destination router, the log sink, and the reset
// controller. Byte chunks, reset transitions, registration changes, and
// flush-timer fires are events applied strictly in FIFO arrival order, so a
// reset enqueued after a chunk runs after that chunk completes and a chunk
// enqueued after a reset decodes into the new session. Nothing interleaves
// and nothing needs a lock.
//
// # Frame grammars
//
// The probe multiplexes three grammars over one byte stream:
//
//   - Text lines: LF-terminated trace output, optionally attributed to a
//     core by an inline marker byte.
//   - Binary packets: a core-identifying marker byte followed by a length
//     field; the declared length alone decides where the packet ends, so
//     identical packets back to back each extract exactly once.
//   - Window frames: a delimiter character, a window name, and either a
//     command verb with arguments or a streaming sample payload.
//
// Malformed input never aborts decoding: the extractor resynchronizes one
// byte at a time and surfaces a warning per anomaly.
//
// # Sessions
//
// A hardware reset (assert, then release, of the probe's reset line) starts
// a new session: the reset controller bumps the session epoch, the
// extractor discards any partial frame, and the log sink finalizes the
// current artifact with a boundary marker and opens the next one. Router
// registrations survive resets; epoch is annotation, not a routing filter.
//
// # Packages
//
//   - frame: message model and the resumable frame extractor
//   - reset: reset line state and session epochs
//   - router: destination registry, pending window queues, taps
//   - logsink: formatting, adaptive batching, session artifacts
//   - pipeline: the single-goroutine event loop
//   - input/serial: probe serial device and DTR reset line
//   - output/websocket: live formatted-line stream
//   - output/natsmirror: decoded-message republisher
//   - config, component, errors, health, metric, natsclient, pkg/...:
//     supporting infrastructure
//
// The cmd/probestream binary assembles the above from a JSON or YAML config
// file; every section has working defaults.
package probestream
