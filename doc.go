// Package logship provides a batching log-delivery handler: a
// log/slog.Handler that forwards application log records to a remote
// log-aggregation service without ever blocking or failing the
// application doing the logging.
//
// # Philosophy: Logging Must Not Hurt
//
// A logging pipe is the one dependency every code path touches, so it
// gets the strictest contract in the module:
//
//   - Handle never blocks beyond a bounded in-memory queue insert
//   - Handle never returns an error, whatever the network is doing
//   - Under sustained overload the oldest queued events are shed first,
//     so the newest evidence survives
//   - Delivery is best effort: bounded retries, then the batch is
//     abandoned with metrics and an optional callback, never a panic
//     and never backpressure on producers
//
// # Architecture
//
// One handler owns one pipeline bound to one destination (a group and
// stream pair on the remote service):
//
//	┌─────────────────────────────────────┐
//	│        handler.Handler              │  slog.Handler facade
//	│  (format, truncate, stamp, queue)   │  clamped monotonic time
//	└──────────────┬──────────────────────┘
//	               ↓ non-blocking Write
//	┌─────────────────────────────────────┐
//	│         queue.Queue                 │  bounded ring,
//	│        (shed-oldest)                │  sheds oldest when full
//	└──────────────┬──────────────────────┘
//	               ↓ drained by one worker
//	┌─────────────────────────────────────┐
//	│       batcher.Batcher               │  count / byte / idle-time
//	│   (assemble batches in order)       │  flush triggers
//	└──────────────┬──────────────────────┘
//	               ↓ one batch in flight
//	┌─────────────────────────────────────┐
//	│      deliver.Deliverer              │  bounded retry, backoff,
//	│  (classify, retry, resolve cursor)  │  cursor-conflict recovery
//	└──────────────┬──────────────────────┘
//	               ↓ sink.Sink
//	   Memory │ NATS JetStream │ Loki
//
// The stream package sits beside the deliverer: a Registry caches the
// append cursor per destination, creates missing groups and streams
// exactly once, and serializes deliveries per destination so no two
// appends ever race on one cursor.
//
// # Packages
//
// Core pipeline:
//   - handler: slog.Handler facade, lifecycle, Flush/Close, Stats
//   - queue: bounded shed-oldest event queue
//   - batcher: batch assembly worker with count/size/idle triggers
//   - deliver: per-batch retry controller
//   - stream: destinations, cursors, stream registry
//   - event: event and batch data model, size accounting, truncation
//
// Sink backends:
//   - sink: the Sink interface and the in-memory backend
//   - sink/natstream: NATS JetStream backend (compare-and-append)
//   - sink/lokipush: Grafana Loki push backend (cursorless)
//
// Infrastructure:
//   - errors: transient/invalid/fatal classification and wrap helpers
//   - metric: prometheus registry, core shipper metrics, HTTP server
//   - pkg/retry: exponential backoff with bounded attempts and jitter
//   - pkg/timestamp: canonical Unix-millisecond timestamps
//   - testutil: scripted sink fake and event builders for tests
//
// # Usage
//
// Ship slog records to NATS JetStream:
//
//	sk, _ := natstream.New(natstream.Config{URL: "nats://localhost:4222"})
//	defer sk.Close()
//
//	h, _ := handler.New(handler.Config{
//	    Sink:          sk,
//	    Group:         "checkout",
//	    RetentionDays: 14,
//	})
//	h.Start(context.Background())
//
//	logger := slog.New(h)
//	logger.Info("order placed", "order", orderID)
//
//	// On shutdown, deliver what is still queued.
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	h.Close(ctx)
//
// Producers outside log/slog use the convenience entry point:
//
//	h.Log(time.Now(), "raw line from a legacy component")
//
// # Delivery Semantics
//
// Best-effort, at-most-once per batch attempt sequence:
//
//  1. A batch ships when a count or byte ceiling is reached, when the
//     flush interval elapses with events queued, or on Flush.
//  2. Transient failures retry with exponential backoff and jitter up
//     to the configured attempt budget.
//  3. A cursor conflict refreshes the cursor from the service and
//     retries; a deleted stream is re-created and retried.
//  4. Fatal and invalid failures abandon the batch immediately.
//  5. Events are never requeued after their batch reaches a terminal
//     outcome; abandonment is visible in metrics, Stats, and the
//     OnDrop callback.
//
// Flush returns once everything queued at call time reached a terminal
// outcome. Close is Flush then a bounded worker stop; after Close the
// handler drops new records immediately and still returns nil.
//
// # Observability
//
// Every drop path is counted: queue shedding, shutdown discards, and
// abandoned batches each carry their reason label. The metric package
// exposes the full set (events emitted/dropped/truncated, batches
// delivered/failed, delivery attempts and durations, queue depth and
// bytes, cursor conflicts, handler status) on a prometheus registry,
// with an optional HTTP server for scraping. The handler's own
// diagnostics go to an injected slog logger that must not feed back
// into the handler.
package logship
