package deliver

import (
	"io"
	"log/slog"

	"github.com/c360/logship/event"
	"github.com/c360/logship/metric"
)

// DropCallback is invoked once per event when a batch is abandoned.
// Callbacks must be fast and must not log through the shipping handler.
type DropCallback func(ev event.Event, reason string)

// Option is a functional option for configuring the Deliverer
type Option func(*delivererOptions)

type delivererOptions struct {
	metrics      *metric.Metrics
	handler      string
	logger       *slog.Logger
	dropCallback DropCallback
}

// WithMetrics attaches delivery metrics, labeled with the handler name.
func WithMetrics(metrics *metric.Metrics, handler string) Option {
	return func(o *delivererOptions) {
		if metrics == nil || handler == "" {
			return
		}
		o.metrics = metrics
		o.handler = handler
	}
}

// WithLogger sets the diagnostic logger. Diagnostics must go to a different
// channel than the one being shipped, or failures would feed themselves.
func WithLogger(logger *slog.Logger) Option {
	return func(o *delivererOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDropCallback registers a callback for abandoned events.
func WithDropCallback(callback DropCallback) Option {
	return func(o *delivererOptions) {
		o.dropCallback = callback
	}
}

func applyOptions(options ...Option) delivererOptions {
	opts := delivererOptions{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range options {
		opt(&opts)
	}
	return opts
}
