// Package errors provides standardized error handling patterns for logship.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// remote log delivery: Transient (temporary, retryable), Invalid (bad input,
// non-retryable), and Fatal (unrecoverable, stop processing).
//
// The delivery pipeline uses classification to decide whether a failed batch
// append is retried with backoff, or abandoned immediately, without hardcoded
// error string matching at the call sites.
//
// # Error Classification
//
// Errors are classified based on their type or content:
//
//   - Transient: network timeouts, connection loss, throttling, temporary
//     unavailability (retry recommended)
//   - Invalid: malformed events, unknown destinations, empty batches
//     (do not retry)
//   - Fatal: configuration errors, authorization failures, unrecoverable
//     states (stop processing)
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for common conditions:
//
//	if stream == "" {
//	    return errors.ErrInvalidDestination
//	}
//
// Wrap errors with context for debugging:
//
//	if err := snk.Append(ctx, dest, cursor, events); err != nil {
//	    return errors.WrapTransient(err, "Deliverer", "deliver", "append batch")
//	}
//
// Check classification for retry logic:
//
//	if err := attempt(); err != nil {
//	    if errors.IsTransient(err) {
//	        // retry with backoff
//	    } else {
//	        // abandon the batch
//	    }
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // retryable
//	errors.WrapInvalid(err, "Component", "Method", "action")    // bad input
//	errors.WrapFatal(err, "Component", "Method", "action")      // unrecoverable
//
// The generic Wrap() function adds context without forcing a class, so the
// original error's classification flows through the chain.
//
// # Context Cancellation
//
// Context errors (context.DeadlineExceeded, context.Canceled) are classified
// as Transient. A delivery attempt cut short by a deadline is worth retrying;
// the retry loop itself observes the context and stops when it is done.
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable and safe for concurrent access.
package errors
