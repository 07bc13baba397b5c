// Package timestamp provides standardized Unix timestamp handling utilities.
//
// This package uses int64 microseconds as the canonical timestamp format.
// Microsecond resolution matches the arrival-time precision recorded on
// decoded stream messages and the second.microsecond prefix written to log
// artifacts. All timestamps are stored as microseconds since Unix epoch (UTC).
//
// Zero Value Semantics:
//   - A timestamp value of 0 means "not set" or "unknown"
//   - Functions handle zero values gracefully, returning appropriate defaults
//
// Usage Examples:
//
//	// Current time
//	now := timestamp.Now()
//
//	// Convert from time.Time
//	ts := timestamp.ToUnixMicros(time.Now())
//
//	// Convert to time.Time
//	t := timestamp.FromUnixMicros(ts)
//
//	// Split an offset into the seconds/micros pair used by log prefixes
//	secs, micros := timestamp.SplitOffset(sessionStart, ts)
package timestamp

import (
	"fmt"
	"time"
)

// Now returns the current time as Unix microseconds.
func Now() int64 {
	return time.Now().UnixMicro()
}

// ToUnixMicros converts a time.Time to Unix microseconds.
func ToUnixMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

// FromUnixMicros converts Unix microseconds to time.Time.
// Returns zero time if timestamp is 0.
func FromUnixMicros(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us)
}

// ToTime is an alias for FromUnixMicros for better readability.
func ToTime(us int64) time.Time {
	return FromUnixMicros(us)
}

// Format converts Unix microseconds to RFC3339 string for display.
// Returns empty string if timestamp is 0.
func Format(us int64) string {
	if us == 0 {
		return ""
	}
	return time.UnixMicro(us).UTC().Format(time.RFC3339)
}

// IsZero checks if a timestamp is unset (zero).
func IsZero(us int64) bool {
	return us == 0
}

// Since returns the duration since the given timestamp.
// Returns 0 if timestamp is zero.
func Since(us int64) time.Duration {
	if us == 0 {
		return 0
	}
	return time.Since(time.UnixMicro(us))
}

// Add adds a duration to a timestamp and returns the new timestamp.
// Returns 0 if the input timestamp is zero.
func Add(us int64, d time.Duration) int64 {
	if us == 0 {
		return 0
	}
	return us + d.Microseconds()
}

// Between returns the duration between two timestamps.
// Returns 0 if either timestamp is zero.
func Between(start, end int64) time.Duration {
	if start == 0 || end == 0 {
		return 0
	}
	return time.Duration(end-start) * time.Microsecond
}

// SplitOffset splits the offset from start to ts into whole seconds and the
// remaining microseconds. Offsets before start clamp to (0, 0) rather than
// going negative, so a message stamped just ahead of the session clock still
// renders a sane prefix.
func SplitOffset(start, ts int64) (secs, micros int64) {
	if ts <= start {
		return 0, 0
	}
	delta := ts - start
	return delta / 1_000_000, delta % 1_000_000
}

// Min returns the earlier of two timestamps.
// Zero values are treated as "later than any other time".
func Min(a, b int64) int64 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

// Max returns the later of two timestamps.
// Zero values are treated as "earlier than any other time".
func Max(a, b int64) int64 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a > b {
		return a
	}
	return b
}

// Validate checks if a timestamp is valid (non-negative and reasonable).
// Returns an error if the timestamp is negative or unreasonably large.
func Validate(us int64) error {
	if us < 0 {
		return fmt.Errorf("timestamp cannot be negative: %d", us)
	}
	// Reject timestamps past year 3000; almost certainly a unit mixup.
	if us > 32503680000000000 {
		return fmt.Errorf("timestamp too far in future: %d", us)
	}
	return nil
}
