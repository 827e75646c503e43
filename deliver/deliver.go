package deliver

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/c360/logship/errors"
	"github.com/c360/logship/event"
	"github.com/c360/logship/pkg/retry"
	"github.com/c360/logship/pkg/timestamp"
	"github.com/c360/logship/sink"
	"github.com/c360/logship/stream"
)

// Drop reasons reported to metrics and the drop callback when a batch is
// abandoned.
const (
	// ReasonExhausted marks events whose batch ran out of retry budget.
	ReasonExhausted = "retry_exhausted"

	// ReasonRejected marks events whose batch the service refused outright.
	ReasonRejected = "rejected"

	// ReasonFatal marks events abandoned on an unrecoverable failure.
	ReasonFatal = "fatal"
)

// Config holds configuration for the delivery controller
type Config struct {
	// Retry bounds append attempts per batch. The zero value retries
	// three times with exponential backoff and jitter.
	Retry retry.Config
}

// DefaultConfig returns default configuration for the delivery controller
func DefaultConfig() Config {
	return Config{
		Retry: retry.DefaultConfig(),
	}
}

// Outcome describes how delivery of one batch ended.
type Outcome struct {
	// Delivered is true when the full batch was confirmed by the service.
	Delivered bool

	// Attempts is the number of delivery attempts the controller made.
	Attempts int

	// Cursor is the write position after a successful append.
	Cursor stream.Cursor
}

// Deliverer drives one batch at a time through resolve, append, and bounded
// retry. Failures never escape to log producers: an abandoned batch is
// counted, reported through the drop callback, and released.
//
// Deliveries to the same destination are serialized through the registry's
// in-flight lock, so cursors never race. Different destinations may deliver
// concurrently.
type Deliverer struct {
	sink     sink.Sink
	registry *stream.Registry
	cfg      Config
	opts     delivererOptions
}

// New creates a delivery controller over a sink and its cursor registry.
func New(s sink.Sink, registry *stream.Registry, cfg Config, options ...Option) (*Deliverer, error) {
	if s == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Deliverer", "New", "sink required")
	}
	if registry == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Deliverer", "New", "registry required")
	}

	return &Deliverer{
		sink:     s,
		registry: registry,
		cfg:      cfg,
		opts:     applyOptions(options...),
	}, nil
}

// Deliver attempts to append the batch to its destination, retrying
// transient failures within the configured budget.
//
// Appends always carry the registry's current cursor. A cursor conflict
// counts as a failed attempt, refreshes the cursor, and is retried; a
// missing stream forces re-creation on the next attempt. Invalid and fatal
// failures stop retrying immediately. When the budget is spent or the
// failure is terminal, the batch is abandoned: its events are counted as
// dropped, the drop callback sees each one, and the classified error is
// returned alongside the outcome.
func (d *Deliverer) Deliver(ctx context.Context, dest stream.Destination, batch *event.Batch) (Outcome, error) {
	if batch == nil || batch.IsEmpty() {
		return Outcome{}, errors.WrapInvalid(errors.ErrEmptyBatch, "Deliverer", "Deliver", "reject empty batch")
	}

	release := d.registry.Acquire(dest)
	defer release()

	var outcome Outcome

	err := retry.Do(ctx, d.cfg.Retry, func() error {
		outcome.Attempts++

		resolveStart := time.Now()
		cursor, err := d.registry.Resolve(ctx, dest)
		d.recordDuration("resolve", time.Since(resolveStart))
		if err != nil {
			return d.resolveError(dest, err)
		}

		appendStart := time.Now()
		next, err := d.sink.Append(ctx, dest, cursor, batch.Events())
		d.recordDuration("append", time.Since(appendStart))
		if err != nil {
			return d.appendError(dest, err)
		}

		d.registry.Advance(dest, next)
		outcome.Cursor = next
		d.recordAttempt("success")
		return nil
	})
	if err != nil {
		d.abandon(dest, batch, outcome.Attempts, err)
		return outcome, errors.Wrap(err, "Deliverer", "Deliver", "deliver batch "+batch.ID())
	}

	outcome.Delivered = true
	d.recordDelivered(dest, batch, outcome)
	return outcome, nil
}

// resolveError converts a cursor resolution failure into a retry decision.
// The registry already retried internally, so a terminal classification here
// ends the batch, except for a stream that vanished between creation and
// cursor fetch, which the next attempt re-creates.
func (d *Deliverer) resolveError(dest stream.Destination, err error) error {
	if stderrors.Is(err, errors.ErrStreamNotFound) {
		d.recordAttempt("stream_missing")
		d.registry.Forget(dest)
		return err
	}

	switch errors.Classify(err) {
	case errors.ErrorInvalid:
		d.recordAttempt("invalid")
		return retry.NonRetryable(err)
	case errors.ErrorFatal:
		d.recordAttempt("fatal")
		return retry.NonRetryable(err)
	default:
		d.recordAttempt("transient")
		return err
	}
}

// appendError converts an append failure into a retry decision, repairing
// registry state where the failure calls for it.
func (d *Deliverer) appendError(dest stream.Destination, err error) error {
	if conflict, ok := sink.IsCursorConflict(err); ok {
		d.recordAttempt("conflict")
		d.recordConflict(dest)
		if conflict.Expected != stream.NoCursor {
			// The service told us where the stream really is.
			d.registry.Advance(dest, conflict.Expected)
		} else {
			d.registry.Invalidate(dest)
		}
		d.logWarn("cursor conflict, cursor refreshed",
			"destination", dest.String(),
			"supplied", string(conflict.Supplied),
			"expected", string(conflict.Expected))
		return err
	}

	if stderrors.Is(err, errors.ErrStreamNotFound) {
		// The stream vanished underneath us. Forget it so the next
		// attempt re-creates before appending.
		d.recordAttempt("stream_missing")
		d.registry.Forget(dest)
		d.logWarn("stream missing, will re-create",
			"destination", dest.String())
		return err
	}

	switch errors.Classify(err) {
	case errors.ErrorInvalid:
		d.recordAttempt("invalid")
		return retry.NonRetryable(err)
	case errors.ErrorFatal:
		d.recordAttempt("fatal")
		return retry.NonRetryable(err)
	default:
		d.recordAttempt("transient")
		return err
	}
}

// abandon accounts for a batch that will never be delivered.
func (d *Deliverer) abandon(dest stream.Destination, batch *event.Batch, attempts int, err error) {
	class := errors.Classify(err)

	reason := ReasonExhausted
	switch class {
	case errors.ErrorInvalid:
		reason = ReasonRejected
	case errors.ErrorFatal:
		reason = ReasonFatal
	}

	if d.opts.metrics != nil {
		d.opts.metrics.RecordBatchFailed(d.opts.handler, dest.Stream, class.String())
		d.opts.metrics.RecordEventsDropped(d.opts.handler, reason, batch.Len())
	}

	if d.opts.dropCallback != nil {
		for _, ev := range batch.Events() {
			d.opts.dropCallback(ev, reason)
		}
	}

	d.opts.logger.Warn("batch abandoned",
		"destination", dest.String(),
		"batch", batch.ID(),
		"events", batch.Len(),
		"attempts", attempts,
		"class", class.String(),
		"error", err)
}

// recordDelivered accounts for a confirmed batch.
func (d *Deliverer) recordDelivered(dest stream.Destination, batch *event.Batch, outcome Outcome) {
	if d.opts.metrics != nil {
		d.opts.metrics.RecordBatchDelivered(d.opts.handler, dest.Stream)
		d.opts.metrics.RecordEventAge(d.opts.handler, timestamp.Since(batch.First().Time))
	}

	d.opts.logger.Debug("batch delivered",
		"destination", dest.String(),
		"batch", batch.ID(),
		"events", batch.Len(),
		"attempts", outcome.Attempts,
		"cursor", string(outcome.Cursor))
}

func (d *Deliverer) recordAttempt(status string) {
	if d.opts.metrics != nil {
		d.opts.metrics.RecordDeliveryAttempt(d.opts.handler, status)
	}
}

func (d *Deliverer) recordDuration(operation string, elapsed time.Duration) {
	if d.opts.metrics != nil {
		d.opts.metrics.RecordDeliveryDuration(d.opts.handler, operation, elapsed)
	}
}

func (d *Deliverer) recordConflict(dest stream.Destination) {
	if d.opts.metrics != nil {
		d.opts.metrics.RecordCursorConflict(d.opts.handler, dest.Stream)
	}
}

func (d *Deliverer) logWarn(msg string, args ...any) {
	d.opts.logger.Warn(msg, args...)
}
