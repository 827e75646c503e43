// Package batcher turns queued log events into delivered batches.
//
// A single worker goroutine drains the queue, assembles batches under
// the count and byte ceilings, and hands each batch to the deliverer,
// waiting for its terminal outcome before draining the next. Three
// things wake the worker:
//
//   - Notify, called by producers after each enqueue. The worker
//     flushes while either ceiling is reached, so bursts ship as full
//     batches without waiting for the timer.
//   - The idle ticker. Events that never fill a batch still leave
//     within FlushInterval of the last flush.
//   - Flush, which drains everything queued at call time and returns
//     once every drained batch reached a terminal outcome.
//
// A flush of a non-empty queue never produces an empty batch, and an
// event whose size alone reaches MaxBatchBytes ships as a batch of
// one. Drained events never return to the queue: delivery failures are
// counted and logged by the deliverer, not retried by the batcher.
//
// Stop ends the worker after any in-flight delivery completes. It does
// not drain; callers that want a clean shutdown call Flush first.
package batcher
