package handler

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/c360/logship/batcher"
	"github.com/c360/logship/deliver"
	"github.com/c360/logship/errors"
	"github.com/c360/logship/event"
	"github.com/c360/logship/metric"
	"github.com/c360/logship/pkg/retry"
	"github.com/c360/logship/pkg/timestamp"
	"github.com/c360/logship/queue"
	"github.com/c360/logship/sink"
	"github.com/c360/logship/stream"
)

// Handler status values published through the status gauge.
const (
	statusStopped  = 0
	statusStarting = 1
	statusRunning  = 2
	statusStopping = 3
)

// DefaultStopTimeout bounds the worker shutdown wait when Close runs
// with a context that has no deadline.
const DefaultStopTimeout = 5 * time.Second

// Config holds everything a handler needs at construction. There is no
// dynamic reconfiguration.
type Config struct {
	// Sink delivers batches to the remote service. Required.
	Sink sink.Sink `json:"-"`

	// Group names the remote log group. Required.
	Group string `json:"group"`

	// Stream names the stream inside the group. Empty uses today's UTC
	// date, so each day of a fresh process gets its own stream.
	Stream string `json:"stream"`

	// Name labels this handler in metrics and diagnostics. Defaults to
	// the group/stream pair.
	Name string `json:"name"`

	// MaxBatchCount and MaxBatchBytes cap assembled batches. Zero means
	// the service ceilings.
	MaxBatchCount int `json:"max_batch_count"`
	MaxBatchBytes int `json:"max_batch_bytes"`

	// FlushInterval bounds how long queued events wait before an idle
	// flush. Zero means one second.
	FlushInterval time.Duration `json:"flush_interval"`

	// QueueCapacity bounds the pending event queue. When producers
	// outpace delivery the oldest events are shed. Zero means 8192.
	QueueCapacity int `json:"queue_capacity"`

	// RetentionDays asks the service to expire events after this many
	// days when a stream is created. Zero keeps the service default.
	RetentionDays int `json:"retention_days"`

	// Retry bounds delivery attempts per batch.
	Retry retry.Config `json:"retry"`

	// Level is the minimum record level Handle accepts. Nil means Info.
	Level slog.Leveler `json:"-"`

	// Formatter renders records into event messages. Nil means
	// TextFormatter.
	Formatter Formatter `json:"-"`

	// DiagnosticLogger receives the handler's own diagnostics. It must
	// not log through this handler. Nil discards diagnostics.
	DiagnosticLogger *slog.Logger `json:"-"`

	// Metrics, when set, receives handler metrics under the Name label.
	Metrics *metric.Metrics `json:"-"`

	// OnDrop is called with each event the pipeline discards and the
	// reason it was discarded.
	OnDrop func(ev event.Event, reason string) `json:"-"`
}

// DefaultConfig returns handler settings with service-ceiling batches,
// a one second idle flush, and the default retry budget. Sink and Group
// still have to be set.
func DefaultConfig() Config {
	return Config{
		MaxBatchCount: event.MaxBatchCount,
		MaxBatchBytes: event.MaxBatchBytes,
		FlushInterval: time.Second,
		QueueCapacity: queue.DefaultCapacity,
		Retry:         retry.DefaultConfig(),
	}
}

// Validate checks required fields. Range checks on the batch settings
// happen when the batcher is built.
func (c Config) Validate() error {
	if c.Sink == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"provide a sink")
	}
	if c.Group == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"provide a log group name")
	}
	if c.QueueCapacity < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"queue capacity must not be negative")
	}
	if c.RetentionDays < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"retention days must not be negative")
	}
	return nil
}

// core is the pipeline shared by a handler and all its WithAttrs and
// WithGroup clones.
type core struct {
	dest      stream.Destination
	name      string
	formatter Formatter
	leveler   slog.Leveler
	logger    *slog.Logger
	metrics   *metric.Metrics
	onDrop    func(event.Event, string)

	queue   *queue.Queue
	batcher *batcher.Batcher

	// mu orders timestamp clamping, sequence assignment, and the
	// enqueue itself, so queue arrival order is chronological.
	mu       sync.Mutex
	seq      uint64
	lastTime int64

	lifecycleMu sync.Mutex
	started     bool
	closed      bool
}

// Handler is a slog.Handler that forwards records to a remote
// log-aggregation service. Handle never blocks beyond a bounded queue
// insert and never returns an error to the producer; delivery runs on a
// background worker started with Start.
//
// WithAttrs and WithGroup return views sharing one pipeline, so closing
// any of them closes all of them.
type Handler struct {
	core   *core
	attrs  []slog.Attr
	groups []string
}

// New assembles the pipeline: queue, stream registry, deliverer, and
// batcher, wired to the configured sink. The handler does not touch the
// network until Start.
func New(cfg Config) (*Handler, error) {
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
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = defaults.QueueCapacity
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = defaults.Retry
	}
	if cfg.Level == nil {
		cfg.Level = slog.LevelInfo
	}
	if cfg.Formatter == nil {
		cfg.Formatter = TextFormatter{}
	}
	if cfg.DiagnosticLogger == nil {
		cfg.DiagnosticLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dest := stream.NewDestination(cfg.Group, cfg.Stream)
	name := cfg.Name
	if name == "" {
		name = dest.String()
	}

	q := queue.New(cfg.QueueCapacity,
		queue.WithMetrics(cfg.Metrics, name),
		queue.WithDropCallback(cfg.OnDrop))

	registry, err := stream.NewRegistry(cfg.Sink, stream.Config{
		Create: stream.CreateOptions{RetentionDays: cfg.RetentionDays},
		Retry:  retry.Quick(),
	})
	if err != nil {
		return nil, err
	}

	deliverer, err := deliver.New(cfg.Sink, registry, deliver.Config{Retry: cfg.Retry},
		deliver.WithMetrics(cfg.Metrics, name),
		deliver.WithLogger(cfg.DiagnosticLogger),
		deliver.WithDropCallback(cfg.OnDrop))
	if err != nil {
		return nil, err
	}

	b, err := batcher.New(q, deliverer, dest, batcher.Config{
		MaxBatchCount: cfg.MaxBatchCount,
		MaxBatchBytes: cfg.MaxBatchBytes,
		FlushInterval: cfg.FlushInterval,
	},
		batcher.WithMetrics(cfg.Metrics, name),
		batcher.WithLogger(cfg.DiagnosticLogger),
		batcher.WithDropCallback(cfg.OnDrop))
	if err != nil {
		return nil, err
	}

	return &Handler{
		core: &core{
			dest:      dest,
			name:      name,
			formatter: cfg.Formatter,
			leveler:   cfg.Level,
			logger:    cfg.DiagnosticLogger,
			metrics:   cfg.Metrics,
			onDrop:    cfg.OnDrop,
			queue:     q,
			batcher:   b,
		},
	}, nil
}

// Start launches the delivery worker. The context bounds the worker's
// lifetime: cancelling it stops deliveries mid-flight, so long-lived
// processes normally pass context.Background.
func (h *Handler) Start(ctx context.Context) error {
	c := h.core
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.closed {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Handler", "Start",
			"handler closed")
	}
	if c.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Handler", "Start",
			"handler already running")
	}

	c.recordStatus(statusStarting)
	if err := c.batcher.Start(ctx); err != nil {
		c.recordStatus(statusStopped)
		return err
	}
	c.started = true
	c.recordStatus(statusRunning)

	c.logger.Info("Log handler started",
		"handler", c.name,
		"destination", c.dest.String())
	return nil
}

// Enabled gates records below the configured minimum level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.core.leveler.Level()
}

// Handle formats the record and queues it for delivery. It always
// returns nil: a broken delivery pipe must never surface in the
// application being logged.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	c := h.core

	msg, err := c.formatter.Format(r, h.attrs, h.groups)
	if err != nil {
		c.logger.Warn("Formatter failed, using raw message",
			"handler", c.name,
			"error", err)
		msg = r.Message
	}

	c.emit(timestamp.ToUnixMs(r.Time), msg)
	return nil
}

// WithAttrs returns a handler that adds the attributes to every record.
// The attributes are resolved and qualified with the open groups now,
// so Handle does no per-record work for them.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	prefix := strings.Join(h.groups, ".")

	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		a.Value = a.Value.Resolve()
		if prefix != "" && a.Key != "" {
			a.Key = prefix + "." + a.Key
		}
		merged = append(merged, a)
	}

	return &Handler{core: h.core, attrs: merged, groups: h.groups}
}

// WithGroup returns a handler that nests subsequent attributes under
// the group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)

	return &Handler{core: h.core, attrs: h.attrs, groups: groups}
}

// Log queues a bare message, bypassing the formatter and the level
// gate. Producers outside log/slog integrate through it. A zero time
// stamps the event now.
func (h *Handler) Log(at time.Time, msg string) {
	h.core.emit(timestamp.ToUnixMs(at), msg)
}

// Flush drains everything queued at call time and returns once each
// drained batch reached a terminal outcome, or when the context
// expires. Expiry means partial success: delivered batches stay
// delivered.
func (h *Handler) Flush(ctx context.Context) error {
	return h.core.batcher.Flush(ctx)
}

// Close flushes, stops the worker, and closes the queue. The context
// bounds both the flush and the wait for an in-flight batch. Close is
// idempotent; after it the handler drops everything immediately.
func (h *Handler) Close(ctx context.Context) error {
	c := h.core
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.closed {
		return nil
	}

	if !c.started {
		c.closed = true
		c.recordStatus(statusStopped)
		return c.queue.Close()
	}

	c.recordStatus(statusStopping)
	flushErr := c.batcher.Flush(ctx)
	stopErr := c.batcher.Stop(stopTimeout(ctx))
	closeErr := c.queue.Close()

	c.started = false
	c.closed = true
	c.recordStatus(statusStopped)
	c.logger.Info("Log handler closed", "handler", c.name)

	if flushErr != nil {
		return flushErr
	}
	if stopErr != nil {
		return stopErr
	}
	return closeErr
}

// Stats returns a point-in-time snapshot of the pipeline.
func (h *Handler) Stats() Stats {
	c := h.core
	qs := c.queue.Stats()
	bs := c.batcher.Stats()

	c.lifecycleMu.Lock()
	running := c.started
	c.lifecycleMu.Unlock()

	return Stats{
		Handler:          c.name,
		Running:          running,
		QueueDepth:       qs.CurrentDepth(),
		QueueBytes:       qs.CurrentBytes(),
		EventsQueued:     qs.Writes(),
		EventsDropped:    qs.Drops(),
		Flushes:          bs.Flushes,
		BatchesDelivered: bs.BatchesDelivered,
		BatchesFailed:    bs.BatchesFailed,
		EventsDelivered:  bs.EventsDelivered,
		EventsFailed:     bs.EventsFailed,
	}
}

// Stats is a snapshot of handler state. EventsDropped counts queue-side
// drops (shedding and shutdown); EventsFailed counts events in batches
// the deliverer had to abandon.
type Stats struct {
	Handler          string `json:"handler"`
	Running          bool   `json:"running"`
	QueueDepth       int64  `json:"queue_depth"`
	QueueBytes       int64  `json:"queue_bytes"`
	EventsQueued     int64  `json:"events_queued"`
	EventsDropped    int64  `json:"events_dropped"`
	Flushes          int64  `json:"flushes"`
	BatchesDelivered int64  `json:"batches_delivered"`
	BatchesFailed    int64  `json:"batches_failed"`
	EventsDelivered  int64  `json:"events_delivered"`
	EventsFailed     int64  `json:"events_failed"`
}

// emit truncates, stamps, and queues one event. Timestamps are clamped
// monotonic under the lock so arrival order in the queue is
// chronological even with concurrent producers.
func (c *core) emit(at int64, msg string) {
	text, truncated := event.Truncate(msg, event.MaxMessageBytes)
	if truncated {
		if c.metrics != nil {
			c.metrics.RecordEventTruncated(c.name)
		}
		c.logger.Debug("Truncated oversized message",
			"handler", c.name,
			"limit", event.MaxMessageBytes)
	}
	if at == 0 {
		at = timestamp.Now()
	}

	c.mu.Lock()
	at = timestamp.Max(at, c.lastTime)
	c.lastTime = at
	c.seq++
	ev := event.Event{Time: at, Message: text, Seq: c.seq}
	err := c.queue.Write(ev)
	c.mu.Unlock()

	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordEventsDropped(c.name, queue.ReasonShutdown, 1)
		}
		if c.onDrop != nil {
			c.onDrop(ev, queue.ReasonShutdown)
		}
		c.logger.Debug("Dropping event, handler closed", "handler", c.name)
		return
	}

	if c.metrics != nil {
		c.metrics.RecordEventEmitted(c.name)
	}
	c.batcher.Notify()
}

func (c *core) recordStatus(status int) {
	if c.metrics != nil {
		c.metrics.RecordHandlerStatus(c.name, status)
	}
}

func stopTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			return remaining
		}
		return time.Millisecond
	}
	return DefaultStopTimeout
}
