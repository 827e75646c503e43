// Package deliver drives batches through resolve, append, and bounded retry.
//
// One Deliver call owns one batch from first attempt to terminal state. The
// controller resolves the destination's cursor through the registry, appends
// through the sink, and classifies every failure: transient failures back
// off and retry within the configured budget, invalid and fatal failures
// end the batch immediately. Cursor conflicts are transient with a twist:
// the registry's cursor is refreshed, from the conflict itself when the
// service reported its position, otherwise by refetching, and the next
// attempt appends behind the writer that won. A stream deleted out from
// under the shipper is forgotten and re-created on the next attempt.
//
// Delivery is best effort. A batch that exhausts its budget or hits a
// terminal failure is abandoned, never requeued: its events are counted as
// dropped by reason, handed to the drop callback one by one, and the
// classified error is returned to the caller for logging. Nothing here ever
// blocks or fails the application code that produced the log records.
//
// Deliveries to one destination never overlap; the registry's in-flight
// lock serializes them so concurrent flushes cannot race the cursor.
package deliver
