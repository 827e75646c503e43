package queue

import (
	"github.com/c360/logship/event"
	"github.com/c360/logship/metric"
)

// Drop reasons passed to DropCallback and used as metric label values.
const (
	// ReasonFull marks an event shed because the queue was at capacity.
	ReasonFull = "queue_full"

	// ReasonShutdown marks an event discarded because the queue closed
	// before the event was drained.
	ReasonShutdown = "shutdown"
)

// DropCallback is called with each event the queue discards and the
// reason it was discarded. The callback runs outside the queue lock.
type DropCallback func(ev event.Event, reason string)

// Option configures queue behavior using the functional options pattern.
type Option func(*queueOptions)

// queueOptions holds internal configuration for queue instances.
// Stats are ALWAYS collected - they are not optional.
type queueOptions struct {
	dropCallback DropCallback

	// metrics is optional - if provided, depth, byte size, and drop
	// counts are mirrored into the shared metric set
	metrics *metric.Metrics

	// handler is used as the handler label for mirrored metrics
	handler string
}

// WithMetrics mirrors queue depth, byte size, and drop counts into the
// shared metric set under the given handler label.
// If metrics is nil or handler is empty, this option is ignored.
func WithMetrics(metrics *metric.Metrics, handler string) Option {
	return func(opts *queueOptions) {
		if metrics != nil && handler != "" {
			opts.metrics = metrics
			opts.handler = handler
		}
	}
}

// WithDropCallback sets a callback function that is called when events
// are dropped. The callback receives the event and the drop reason.
func WithDropCallback(callback DropCallback) Option {
	return func(opts *queueOptions) {
		opts.dropCallback = callback
	}
}

// applyOptions applies functional options to create final queue configuration.
// This is an internal helper used by the queue constructor.
func applyOptions(options ...Option) queueOptions {
	var opts queueOptions

	for _, opt := range options {
		if opt != nil {
			opt(&opts)
		}
	}

	return opts
}
