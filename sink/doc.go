// Package sink defines the delivery seam between the shipping pipeline
// and a remote log service, plus an in-memory reference implementation.
//
// A Sink does three things: ensure a stream exists (CreateStream,
// idempotent), write a batch at a known position (Append, atomic per
// batch), and report the current position (Cursor). Implementations
// classify their errors with the errors package; the delivery layer
// retries transient failures, drops batches the service calls invalid,
// and stops on fatal ones. An append at a stale position returns
// *CursorConflictError carrying the position the service expects, so
// the caller can refetch and retry instead of guessing.
//
// Memory implements the seam in process with full service strictness
// (cursor checking, chronological order, batch ceilings). Remote
// implementations live in the subpackages natstream (NATS JetStream)
// and lokipush (Loki HTTP push).
package sink
