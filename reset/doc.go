// Package reset owns the target's logical reset line and the session epoch.
//
// Asserting the line marks the beginning of a hardware reset; releasing it
// starts a new session: the epoch advances by one and the extractor, log
// sink, and router are notified synchronously, in that order, before any
// later byte chunk is decoded. Router registrations deliberately survive
// resets; the epoch is metadata for consumers, not a routing filter.
package reset
