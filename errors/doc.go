// Package errors provides standardized error handling patterns for ProbeStream components.
//
// # Overview
//
// The errors package implements a three-class error classification system for the
// decode pipeline: Transient (temporary, retryable), Invalid (bad input,
// non-retryable), and Fatal (unrecoverable, stop the affected stage).
//
// Classification drives the failure-isolation design of the pipeline: decode
// errors are Invalid and recovered locally by single-byte resynchronization, port
// and broker problems are Transient and retried with backoff, and log-artifact
// failures are Fatal to the log sink only while the extractor and router keep
// operating. No classified error terminates the process.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // Retryable
//	errors.WrapInvalid(err, "Component", "Method", "action")    // Validation
//	errors.WrapFatal(err, "Component", "Method", "action")      // Unrecoverable
//
// The plain Wrap() adds context without forcing a classification:
//
//	errors.Wrap(err, "Component", "Method", "action")
//
// # Classification Checks
//
// Make handling decisions with the Is* helpers instead of string matching:
//
//	if err := port.Open(); err != nil {
//	    if errors.IsTransient(err) {
//	        // retry with pkg/retry backoff
//	    } else if errors.IsFatal(err) {
//	        // degrade this stage, surface to health
//	    }
//	}
//
// Context errors (context.DeadlineExceeded, context.Canceled) classify as
// Transient. All types support errors.Is, errors.As and unwrapping chains;
// classification is preserved through Wrap.
//
// # Standard Error Variables
//
// Sentinels are grouped by category: component lifecycle (ErrAlreadyStarted,
// ErrNotStarted), serial port (ErrPortClosed, ErrPortUnavailable), stream
// decoding (ErrDecodeMalformed, ErrLengthOverflow, ErrUnknownMarker), routing
// (ErrQueueOverflow, ErrTooManyPending), log persistence
// (ErrArtifactUnavailable, ErrStorageFull) and configuration
// (ErrInvalidConfig, ErrMissingConfig). Prefer the sentinel over an ad-hoc
// message so callers can match with errors.Is.
//
// # Retry Integration
//
// RetryConfig bridges classification into the pkg/retry framework:
//
//	cfg := errors.DefaultRetryConfig()
//	err := retry.Do(ctx, cfg.ToRetryConfig(), func() error { return port.Open() })
package errors
