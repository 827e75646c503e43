// Package handler provides the slog.Handler facade over the shipping
// pipeline. A Handler owns a bounded queue, a background batcher, and a
// deliverer bound to one group/stream destination; Handle formats the
// record, stamps it with a clamped monotonic timestamp, and queues it
// without ever blocking on or reporting delivery problems. Delivery
// starts with Start and ends with Close, which flushes what is queued
// before stopping the worker.
//
// WithAttrs and WithGroup return handler views that share the one
// pipeline, so records logged through any view keep a single
// chronological order and a single delivery stream.
//
// Diagnostics about the pipeline itself go to a separate logger; wiring
// that logger back through the handler would make every delivery
// failure produce more traffic for the failing destination.
package handler
