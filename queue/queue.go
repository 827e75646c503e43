package queue

import (
	"sync"

	"github.com/c360/logship/errors"
	"github.com/c360/logship/event"
)

// DefaultCapacity bounds the queue when the caller does not pick a size.
const DefaultCapacity = 8192

// Queue is a fixed-capacity ring of pending log events. Writes never
// block: when the queue is full the oldest event is shed to make room,
// so under sustained overload the queue always holds the newest events.
// All operations are safe for concurrent use.
type Queue struct {
	mu       sync.RWMutex
	items    []event.Event
	capacity int
	size     int
	bytes    int
	head     int // next write position
	tail     int // next read position
	stats    *Statistics
	opts     queueOptions
	closed   bool
}

// New creates a queue holding at most capacity events. A capacity of
// zero or less falls back to DefaultCapacity.
func New(capacity int, options ...Option) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Queue{
		items:    make([]event.Event, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		opts:     applyOptions(options...),
	}
}

// Write adds one event to the queue. When the queue is full the oldest
// event is shed to make room, counted as a drop, and handed to the drop
// callback. Write never blocks.
func (q *Queue) Write(ev event.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Queue", "Write", "queue closed")
	}

	if q.size == q.capacity {
		shed := q.items[q.tail]
		q.items[q.tail] = event.Event{} // Clear for GC
		q.tail = (q.tail + 1) % q.capacity
		q.size--
		q.bytes -= shed.Size()

		q.stats.Drop()
		if q.opts.metrics != nil {
			q.opts.metrics.RecordEventsDropped(q.opts.handler, ReasonFull, 1)
		}
		if q.opts.dropCallback != nil {
			// Run the callback outside the lock so it may touch the queue.
			defer q.opts.dropCallback(shed, ReasonFull)
		}
	}

	q.items[q.head] = ev
	q.head = (q.head + 1) % q.capacity
	q.size++
	q.bytes += ev.Size()

	q.stats.Write()
	q.stats.UpdateDepth(int64(q.size), int64(q.bytes))
	q.publishGauges()

	return nil
}

// Drain removes and returns up to maxCount events, stopping before the
// result would exceed maxBytes of serialized payload. Events come back
// in arrival order. A maxBytes of zero or less means no byte limit. A
// single event larger than maxBytes is still returned alone so an
// oversized record cannot wedge the queue.
func (q *Queue) Drain(maxCount, maxBytes int) []event.Event {
	if maxCount <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return nil
	}

	limit := maxCount
	if limit > q.size {
		limit = q.size
	}

	out := make([]event.Event, 0, limit)
	total := 0

	for len(out) < limit {
		next := q.items[q.tail]
		if len(out) > 0 && maxBytes > 0 && total+next.Size() > maxBytes {
			break
		}

		q.items[q.tail] = event.Event{} // Clear for GC
		q.tail = (q.tail + 1) % q.capacity
		q.size--
		total += next.Size()
		out = append(out, next)
	}

	q.bytes -= total
	q.stats.DrainN(int64(len(out)))
	q.stats.UpdateDepth(int64(q.size), int64(q.bytes))
	q.publishGauges()

	return out
}

// Len returns the current number of queued events.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Bytes returns the serialized size of all queued events.
func (q *Queue) Bytes() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.bytes
}

// Capacity returns the maximum number of events the queue can hold.
func (q *Queue) Capacity() int {
	return q.capacity // Immutable, no lock needed
}

// IsEmpty returns true if the queue contains no events.
func (q *Queue) IsEmpty() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size == 0
}

// IsFull returns true if the queue is at capacity.
func (q *Queue) IsFull() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size == q.capacity
}

// Stats returns queue statistics (always available for observability).
func (q *Queue) Stats() *Statistics {
	return q.stats
}

// Close stops the queue. Events still waiting are dropped with reason
// "shutdown" so they remain visible in the drop accounting. Close is
// idempotent.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	if q.size == 0 {
		return nil
	}

	remaining := make([]event.Event, 0, q.size)
	for q.size > 0 {
		remaining = append(remaining, q.items[q.tail])
		q.items[q.tail] = event.Event{} // Clear for GC
		q.tail = (q.tail + 1) % q.capacity
		q.size--
	}
	q.bytes = 0

	q.stats.DropN(int64(len(remaining)))
	q.stats.UpdateDepth(0, 0)
	if q.opts.metrics != nil {
		q.opts.metrics.RecordEventsDropped(q.opts.handler, ReasonShutdown, len(remaining))
	}
	q.publishGauges()

	if q.opts.dropCallback != nil {
		// Callbacks run outside the lock, same as the Write shed path.
		defer func() {
			for _, ev := range remaining {
				q.opts.dropCallback(ev, ReasonShutdown)
			}
		}()
	}

	return nil
}

// publishGauges mirrors depth and byte gauges when metrics are enabled.
// Callers must hold the lock.
func (q *Queue) publishGauges() {
	if q.opts.metrics == nil {
		return
	}
	q.opts.metrics.RecordQueueDepth(q.opts.handler, q.size)
	q.opts.metrics.RecordQueueBytes(q.opts.handler, q.bytes)
}
