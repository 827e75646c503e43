package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all shipper-level metrics (not application-specific)
type Metrics struct {
	// Handler metrics
	HandlerStatus   *prometheus.GaugeVec
	EventsEmitted   *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	EventsTruncated *prometheus.CounterVec

	// Queue metrics
	QueueDepth *prometheus.GaugeVec
	QueueBytes *prometheus.GaugeVec

	// Delivery metrics
	BatchesDelivered *prometheus.CounterVec
	BatchesFailed    *prometheus.CounterVec
	DeliveryAttempts *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
	EventAge         *prometheus.HistogramVec
	CursorConflicts  *prometheus.CounterVec
	FlushesTotal     *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all shipper metrics
func NewMetrics() *Metrics {
	return &Metrics{
		HandlerStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "logship",
				Subsystem: "handler",
				Name:      "status",
				Help:      "Handler status (0=stopped, 1=starting, 2=running, 3=stopping)",
			},
			[]string{"handler"},
		),

		EventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "logship",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Total number of log events accepted into the queue",
			},
			[]string{"handler"},
		),

		EventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "logship",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Total number of log events dropped, by reason",
			},
			[]string{"handler", "reason"},
		),

		EventsTruncated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "logship",
				Subsystem: "events",
				Name:      "truncated_total",
				Help:      "Total number of log messages truncated to fit the event size cap",
			},
			[]string{"handler"},
		),

		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "logship",
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Current number of events waiting in the queue",
			},
			[]string{"handler"},
		),

		QueueBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "logship",
				Subsystem: "queue",
				Name:      "bytes",
				Help:      "Current serialized size of events waiting in the queue",
			},
			[]string{"handler"},
		),

		BatchesDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "logship",
				Subsystem: "batches",
				Name:      "delivered_total",
				Help:      "Total number of batches confirmed by the remote service",
			},
			[]string{"handler", "stream"},
		),

		BatchesFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "logship",
				Subsystem: "batches",
				Name:      "failed_total",
				Help:      "Total number of batches abandoned after delivery failed, by error class",
			},
			[]string{"handler", "stream", "class"},
		),

		DeliveryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "logship",
				Subsystem: "delivery",
				Name:      "attempts_total",
				Help:      "Total number of append attempts, by outcome",
			},
			[]string{"handler", "status"},
		),

		DeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "logship",
				Subsystem: "delivery",
				Name:      "duration_seconds",
				Help:      "Remote operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"handler", "operation"},
		),

		EventAge: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "logship",
				Subsystem: "delivery",
				Name:      "event_age_seconds",
				Help:      "Age of the oldest event in a batch at delivery time",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"handler"},
		),

		CursorConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "logship",
				Subsystem: "delivery",
				Name:      "cursor_conflicts_total",
				Help:      "Total number of append attempts rejected for a stale cursor",
			},
			[]string{"handler", "stream"},
		),

		FlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "logship",
				Subsystem: "batcher",
				Name:      "flushes_total",
				Help:      "Total number of batch flushes, by trigger",
			},
			[]string{"handler", "trigger"},
		),
	}
}

// RecordHandlerStatus updates handler status metric
func (c *Metrics) RecordHandlerStatus(handler string, status int) {
	c.HandlerStatus.WithLabelValues(handler).Set(float64(status))
}

// RecordEventEmitted increments the accepted event counter
func (c *Metrics) RecordEventEmitted(handler string) {
	c.EventsEmitted.WithLabelValues(handler).Inc()
}

// RecordEventsDropped adds to the dropped event counter
func (c *Metrics) RecordEventsDropped(handler, reason string, count int) {
	c.EventsDropped.WithLabelValues(handler, reason).Add(float64(count))
}

// RecordEventTruncated increments the truncation counter
func (c *Metrics) RecordEventTruncated(handler string) {
	c.EventsTruncated.WithLabelValues(handler).Inc()
}

// RecordQueueDepth updates the queue depth gauge
func (c *Metrics) RecordQueueDepth(handler string, depth int) {
	c.QueueDepth.WithLabelValues(handler).Set(float64(depth))
}

// RecordQueueBytes updates the queue byte size gauge
func (c *Metrics) RecordQueueBytes(handler string, bytes int) {
	c.QueueBytes.WithLabelValues(handler).Set(float64(bytes))
}

// RecordBatchDelivered increments the delivered batch counter
func (c *Metrics) RecordBatchDelivered(handler, stream string) {
	c.BatchesDelivered.WithLabelValues(handler, stream).Inc()
}

// RecordBatchFailed increments the abandoned batch counter
func (c *Metrics) RecordBatchFailed(handler, stream, class string) {
	c.BatchesFailed.WithLabelValues(handler, stream, class).Inc()
}

// RecordDeliveryAttempt increments the attempt counter
func (c *Metrics) RecordDeliveryAttempt(handler, status string) {
	c.DeliveryAttempts.WithLabelValues(handler, status).Inc()
}

// RecordDeliveryDuration records remote operation time
func (c *Metrics) RecordDeliveryDuration(handler, operation string, duration time.Duration) {
	c.DeliveryDuration.WithLabelValues(handler, operation).Observe(duration.Seconds())
}

// RecordEventAge records how stale a batch was when it landed
func (c *Metrics) RecordEventAge(handler string, age time.Duration) {
	c.EventAge.WithLabelValues(handler).Observe(age.Seconds())
}

// RecordCursorConflict increments the stale cursor counter
func (c *Metrics) RecordCursorConflict(handler, stream string) {
	c.CursorConflicts.WithLabelValues(handler, stream).Inc()
}

// RecordFlush increments the flush counter for a trigger (count, size, interval, manual)
func (c *Metrics) RecordFlush(handler, trigger string) {
	c.FlushesTotal.WithLabelValues(handler, trigger).Inc()
}
