package batcher

import (
	"io"
	"log/slog"

	"github.com/c360/logship/event"
	"github.com/c360/logship/metric"
)

// DropCallback is called with each event the batcher discards and the
// reason it was discarded.
type DropCallback func(ev event.Event, reason string)

// Option configures batcher behavior using the functional options pattern.
type Option func(*batcherOptions)

type batcherOptions struct {
	metrics      *metric.Metrics
	handler      string
	logger       *slog.Logger
	dropCallback DropCallback
}

// WithMetrics mirrors flush and drop counts into the shared metric set
// under the given handler label. If metrics is nil or handler is empty,
// this option is ignored.
func WithMetrics(metrics *metric.Metrics, handler string) Option {
	return func(opts *batcherOptions) {
		if metrics != nil && handler != "" {
			opts.metrics = metrics
			opts.handler = handler
		}
	}
}

// WithLogger sets the diagnostic logger. Without it diagnostics are
// discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *batcherOptions) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// WithDropCallback sets a callback function that is called when the
// batcher discards an event it cannot place in a batch.
func WithDropCallback(callback DropCallback) Option {
	return func(opts *batcherOptions) {
		opts.dropCallback = callback
	}
}

func applyOptions(options ...Option) batcherOptions {
	opts := batcherOptions{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range options {
		if opt != nil {
			opt(&opts)
		}
	}

	return opts
}
