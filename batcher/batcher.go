package batcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/logship/deliver"
	"github.com/c360/logship/errors"
	"github.com/c360/logship/event"
	"github.com/c360/logship/pkg/timestamp"
	"github.com/c360/logship/queue"
	"github.com/c360/logship/stream"
)

// Flush triggers used as the trigger label on the flush counter.
const (
	// TriggerCount marks a flush started because the queue reached the
	// batch count ceiling.
	TriggerCount = "count"

	// TriggerSize marks a flush started because the queue reached the
	// batch byte ceiling.
	TriggerSize = "size"

	// TriggerInterval marks a flush started because FlushInterval passed
	// with events waiting.
	TriggerInterval = "interval"

	// TriggerManual marks a flush requested through Flush.
	TriggerManual = "manual"
)

// ReasonUnbatchable marks an event discarded because it could not be
// placed in any batch.
const ReasonUnbatchable = "unbatchable"

// Config holds batch assembly settings.
type Config struct {
	// MaxBatchCount caps the number of events per batch. Values above
	// the service limit are rejected.
	MaxBatchCount int `json:"max_batch_count"`

	// MaxBatchBytes caps the serialized payload per batch. Values above
	// the service limit are rejected. A single event larger than the cap
	// still ships as a batch of one.
	MaxBatchBytes int `json:"max_batch_bytes"`

	// FlushInterval is how long queued events may wait before an idle
	// flush picks them up.
	FlushInterval time.Duration `json:"flush_interval"`
}

// DefaultConfig returns batch settings at the service ceilings with a
// one second idle flush.
func DefaultConfig() Config {
	return Config{
		MaxBatchCount: event.MaxBatchCount,
		MaxBatchBytes: event.MaxBatchBytes,
		FlushInterval: time.Second,
	}
}

// Validate checks configuration values against the service limits.
func (c Config) Validate() error {
	if c.MaxBatchCount < 1 || c.MaxBatchCount > event.MaxBatchCount {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("max batch count must be 1..%d", event.MaxBatchCount))
	}
	if c.MaxBatchBytes < 1 || c.MaxBatchBytes > event.MaxBatchBytes {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("max batch bytes must be 1..%d", event.MaxBatchBytes))
	}
	if c.FlushInterval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"flush interval must be positive")
	}
	return nil
}

// Stats is a snapshot of batcher counters.
type Stats struct {
	Flushes          int64 `json:"flushes"`
	BatchesDelivered int64 `json:"batches_delivered"`
	BatchesFailed    int64 `json:"batches_failed"`
	EventsDelivered  int64 `json:"events_delivered"`
	EventsFailed     int64 `json:"events_failed"`
}

type flushRequest struct {
	done chan struct{}
}

// Batcher drains the queue into batches and hands them to the
// deliverer. One worker goroutine owns the drain side of the queue, so
// batches leave in arrival order and at most one batch is in flight.
type Batcher struct {
	queue     *queue.Queue
	deliverer *deliver.Deliverer
	dest      stream.Destination
	cfg       Config
	opts      batcherOptions

	notify  chan struct{}
	flushCh chan flushRequest

	// Lifecycle management
	lifecycleMu sync.Mutex
	running     bool
	shutdown    chan struct{}
	wg          sync.WaitGroup

	// Statistics (atomic)
	flushes          int64
	batchesDelivered int64
	batchesFailed    int64
	eventsDelivered  int64
	eventsFailed     int64
}

// New creates a batcher for one destination. Zero config values fall
// back to defaults before validation.
func New(q *queue.Queue, d *deliver.Deliverer, dest stream.Destination, cfg Config, options ...Option) (*Batcher, error) {
	if q == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Batcher", "New", "provide a queue")
	}
	if d == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Batcher", "New", "provide a deliverer")
	}
	if err := dest.Validate(); err != nil {
		return nil, err
	}

	defaults := DefaultConfig()
	if cfg.MaxBatchCount == 0 {
		cfg.MaxBatchCount = defaults.MaxBatchCount
	}
	if cfg.MaxBatchBytes == 0 {
		cfg.MaxBatchBytes = defaults.MaxBatchBytes
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Batcher{
		queue:     q,
		deliverer: d,
		dest:      dest,
		cfg:       cfg,
		opts:      applyOptions(options...),
		notify:    make(chan struct{}, 1),
		flushCh:   make(chan flushRequest),
	}, nil
}

// Start launches the worker goroutine. The context bounds the worker's
// lifetime and every delivery it makes.
func (b *Batcher) Start(ctx context.Context) error {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()

	if b.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Batcher", "Start", "stop the batcher first")
	}

	b.shutdown = make(chan struct{})
	b.wg.Add(1)
	go b.worker(ctx)

	b.running = true
	b.opts.logger.Debug("Batcher started",
		"destination", b.dest.String(),
		"max_batch_count", b.cfg.MaxBatchCount,
		"max_batch_bytes", b.cfg.MaxBatchBytes,
		"flush_interval", b.cfg.FlushInterval)
	return nil
}

// Stop signals the worker and waits for it to exit. An in-flight
// delivery finishes first. Events still queued are not drained; call
// Flush before Stop to push them out.
func (b *Batcher) Stop(timeout time.Duration) error {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()

	if !b.running {
		return nil
	}

	select {
	case <-b.shutdown:
		// Signalled by an earlier Stop that timed out.
	default:
		close(b.shutdown)
	}

	waitCh := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("shutdown timeout after %v", timeout),
			"Batcher", "Stop", "wait for worker")
	}

	b.running = false
	return nil
}

// Notify nudges the worker to check the batch ceilings. It never
// blocks; producers call it after each enqueue.
func (b *Batcher) Notify() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Flush drains everything queued at call time and returns once each
// drained batch reached a terminal outcome. Delivery failures do not
// surface here; they are counted and logged like any other flush. The
// context bounds the wait.
func (b *Batcher) Flush(ctx context.Context) error {
	b.lifecycleMu.Lock()
	running := b.running
	b.lifecycleMu.Unlock()
	if !running {
		return errors.WrapInvalid(errors.ErrNotStarted, "Batcher", "Flush", "start the batcher first")
	}

	req := flushRequest{done: make(chan struct{})}
	select {
	case b.flushCh <- req:
	case <-b.shutdown:
		return errors.WrapInvalid(errors.ErrShuttingDown, "Batcher", "Flush", "queue flush request")
	case <-ctx.Done():
		return errors.WrapTransient(errors.ErrFlushTimeout, "Batcher", "Flush", "queue flush request")
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(errors.ErrFlushTimeout, "Batcher", "Flush", "wait for flush completion")
	}
}

// Stats returns a snapshot of the batcher's counters.
func (b *Batcher) Stats() Stats {
	return Stats{
		Flushes:          atomic.LoadInt64(&b.flushes),
		BatchesDelivered: atomic.LoadInt64(&b.batchesDelivered),
		BatchesFailed:    atomic.LoadInt64(&b.batchesFailed),
		EventsDelivered:  atomic.LoadInt64(&b.eventsDelivered),
		EventsFailed:     atomic.LoadInt64(&b.eventsFailed),
	}
}

// worker is the single drain loop. Ceiling flushes run on Notify,
// idle flushes on the ticker, full drains on Flush requests. The ticker
// resets after every flush so idle flushes only fire after a quiet
// interval.
func (b *Batcher) worker(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.shutdown:
			return
		case <-b.notify:
			// One nudge may stand for many enqueues. Keep flushing
			// until the queue is back under both ceilings.
			for ctx.Err() == nil && !b.stopping() {
				trigger, reached := b.pendingTrigger()
				if !reached {
					break
				}
				b.flushOnce(ctx, trigger)
				ticker.Reset(b.cfg.FlushInterval)
			}
		case req := <-b.flushCh:
			b.drainAll(ctx)
			close(req.done)
			ticker.Reset(b.cfg.FlushInterval)
		case <-ticker.C:
			if !b.queue.IsEmpty() {
				b.flushOnce(ctx, TriggerInterval)
			}
		}
	}
}

func (b *Batcher) stopping() bool {
	select {
	case <-b.shutdown:
		return true
	default:
		return false
	}
}

// pendingTrigger reports whether the queue has reached a batch ceiling
// and which one.
func (b *Batcher) pendingTrigger() (string, bool) {
	if b.queue.Len() >= b.cfg.MaxBatchCount {
		return TriggerCount, true
	}
	if b.queue.Bytes() >= b.cfg.MaxBatchBytes {
		return TriggerSize, true
	}
	return "", false
}

// drainAll flushes until the queue is empty or the worker is told to
// stop.
func (b *Batcher) drainAll(ctx context.Context) {
	for !b.queue.IsEmpty() && ctx.Err() == nil && !b.stopping() {
		b.flushOnce(ctx, TriggerManual)
	}
}

// flushOnce drains one batch worth of events and delivers it. Drained
// events never return to the queue; the deliverer accounts for any it
// has to abandon.
func (b *Batcher) flushOnce(ctx context.Context, trigger string) {
	events := b.queue.Drain(b.cfg.MaxBatchCount, b.cfg.MaxBatchBytes)
	if len(events) == 0 {
		return
	}

	atomic.AddInt64(&b.flushes, 1)
	if b.opts.metrics != nil {
		b.opts.metrics.RecordFlush(b.opts.handler, trigger)
	}

	batch := b.assemble(events)
	if batch.IsEmpty() {
		return
	}

	_, err := b.deliverer.Deliver(ctx, b.dest, batch)
	if err != nil {
		atomic.AddInt64(&b.batchesFailed, 1)
		atomic.AddInt64(&b.eventsFailed, int64(batch.Len()))
		return
	}
	atomic.AddInt64(&b.batchesDelivered, 1)
	atomic.AddInt64(&b.eventsDelivered, int64(batch.Len()))
}

// assemble builds a batch from drained events. Arrival order already
// carries clamped timestamps; re-clamping here keeps one stray
// regression from poisoning the whole batch.
func (b *Batcher) assemble(events []event.Event) *event.Batch {
	batch := event.NewBatch(b.cfg.MaxBatchCount, b.cfg.MaxBatchBytes)
	last := int64(0)
	for _, ev := range events {
		ev.Time = timestamp.Max(ev.Time, last)
		last = ev.Time
		if err := batch.Append(ev); err != nil {
			b.dropEvent(ev, err)
		}
	}
	return batch
}

func (b *Batcher) dropEvent(ev event.Event, err error) {
	b.opts.logger.Error("Dropping unbatchable event",
		"destination", b.dest.String(),
		"event_bytes", ev.Size(),
		"error", err)
	if b.opts.metrics != nil {
		b.opts.metrics.RecordEventsDropped(b.opts.handler, ReasonUnbatchable, 1)
	}
	if b.opts.dropCallback != nil {
		b.opts.dropCallback(ev, ReasonUnbatchable)
	}
}
