// Package logsink renders decoded messages into the human-readable probe
// trace and persists it per session.
//
// Each session (one reset epoch) gets its own artifact from an
// ArtifactStore; a reset finalizes the old artifact with a boundary marker
// and opens a new one. Delivery adapts to message velocity: quiet streams
// emit line by line with zero added delay, busy streams batch on an
// interval derived from the observed rate. A bounded ring of recent lines
// backs the live display, with non-blocking channel subscriptions for the
// websocket view.
//
// Trace format, pinned by tests: text lines carry a `ssssss.uuuuuu` prefix
// of seconds and microseconds since session start, consecutive lines from
// one core in the same second blank the seconds column, and binary
// payloads render through pkg/hexdump indented under a header line.
package logsink
