package natstream

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/logship/errors"
	"github.com/c360/logship/event"
	"github.com/c360/logship/sink"
	"github.com/c360/logship/stream"
)

const component = "NATS"

// Sink stores log batches in NATS JetStream. Each destination maps to its
// own JetStream stream, each accepted batch to a single message, and the
// cursor to the stream's last sequence number. Publishing with an expected
// last sequence is what makes Append atomic and conflict-checked: the server
// rejects the whole message when another writer got there first.
type Sink struct {
	url      string
	conn     *nats.Conn
	js       jetstream.JetStream
	ownsConn bool

	// Connection settings, used by Dial only.
	clientName    string
	username      string
	password      string
	token         string
	timeout       time.Duration
	reconnectWait time.Duration

	// Stream settings.
	subjectPrefix string
	storage       jetstream.StorageType
	replicas      int
}

// Dial connects to a NATS server and returns a ready Sink. The connection
// reconnects indefinitely on its own; transient outages surface as transient
// append errors in the meantime. For TLS or key-based authentication, dial
// the connection yourself and use FromConn.
func Dial(ctx context.Context, url string, opts ...Option) (*Sink, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, component, "Dial", "server URL required")
	}

	s := newSink()
	s.url = url
	s.ownsConn = true
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.WrapInvalid(err, component, "Dial", "apply option")
		}
	}

	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(s.url, s.connectionOptions()...)
		if err != nil {
			connectDone <- err
			return
		}
		s.conn = conn
		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			return nil, errors.WrapTransient(err, component, "Dial", "establish connection")
		}
	case <-ctx.Done():
		return nil, errors.WrapTransient(ctx.Err(), component, "Dial", "connection cancelled")
	}

	js, err := jetstream.New(s.conn)
	if err != nil {
		s.conn.Close()
		return nil, errors.WrapFatal(err, component, "Dial", "initialize JetStream context")
	}
	s.js = js

	return s, nil
}

// FromConn wraps an existing NATS connection. The caller keeps ownership:
// Close on the returned Sink never closes the connection.
func FromConn(conn *nats.Conn, opts ...Option) (*Sink, error) {
	if conn == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, component, "FromConn", "connection required")
	}

	s := newSink()
	s.conn = conn
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.WrapInvalid(err, component, "FromConn", "apply option")
		}
	}

	js, err := jetstream.New(conn)
	if err != nil {
		return nil, errors.WrapFatal(err, component, "FromConn", "initialize JetStream context")
	}
	s.js = js

	return s, nil
}

func newSink() *Sink {
	return &Sink{
		clientName:    "logship",
		timeout:       5 * time.Second,
		reconnectWait: 2 * time.Second,
		subjectPrefix: "logship",
		storage:       jetstream.FileStorage,
		replicas:      1,
	}
}

// connectionOptions builds NATS connection options from sink configuration.
func (s *Sink) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(s.reconnectWait),
		nats.Timeout(s.timeout),
		nats.Name(s.clientName),
	}

	if s.username != "" && s.password != "" {
		opts = append(opts, nats.UserInfo(s.username, s.password))
	}
	if s.token != "" {
		opts = append(opts, nats.Token(s.token))
	}

	return opts
}

// CreateStream ensures the JetStream stream for dest exists. An existing
// stream is left untouched whatever its configuration, so concurrent and
// repeated creation are both safe.
func (s *Sink) CreateStream(ctx context.Context, dest stream.Destination, opts stream.CreateOptions) error {
	if err := dest.Validate(); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	name := streamName(dest)
	cfg := jetstream.StreamConfig{
		Name:        name,
		Description: "log events for " + dest.String(),
		Subjects:    []string{s.subject(dest)},
		Storage:     s.storage,
		Replicas:    s.replicas,
	}
	if opts.RetentionDays > 0 {
		cfg.MaxAge = time.Duration(opts.RetentionDays) * 24 * time.Hour
	}

	if _, err := s.js.CreateStream(ctx, cfg); err != nil {
		if stderrors.Is(err, jetstream.ErrStreamNameAlreadyInUse) || isAlreadyExistsError(err) {
			return nil
		}
		return s.classify(err, "CreateStream", "create stream "+name)
	}

	return nil
}

// Append publishes events as a single JetStream message, expecting cursor to
// match the stream's last sequence. On success it returns the new last
// sequence as the next cursor. A sequence mismatch returns a
// *sink.CursorConflictError carrying the server's actual sequence, and
// nothing is stored. NoCursor skips the sequence check entirely, which is
// only safe with a single writer.
func (s *Sink) Append(ctx context.Context, dest stream.Destination, cursor stream.Cursor, events []event.Event) (stream.Cursor, error) {
	if err := dest.Validate(); err != nil {
		return stream.NoCursor, err
	}
	if len(events) == 0 {
		return stream.NoCursor, errors.WrapInvalid(errors.ErrEmptyBatch, component, "Append", "reject empty batch")
	}

	payload, err := json.Marshal(events)
	if err != nil {
		return stream.NoCursor, errors.WrapInvalid(err, component, "Append", "encode events")
	}

	pubOpts := []jetstream.PublishOpt{jetstream.WithExpectStream(streamName(dest))}
	if cursor != stream.NoCursor {
		seq, perr := strconv.ParseUint(string(cursor), 10, 64)
		if perr != nil {
			return stream.NoCursor, errors.WrapInvalid(perr, component, "Append", "parse cursor "+string(cursor))
		}
		pubOpts = append(pubOpts, jetstream.WithExpectLastSequence(seq))
	}

	ack, err := s.js.Publish(ctx, s.subject(dest), payload, pubOpts...)
	if err != nil {
		if expected, ok := wrongLastSequence(err); ok {
			return stream.NoCursor, &sink.CursorConflictError{Dest: dest, Supplied: cursor, Expected: expected}
		}
		return stream.NoCursor, s.classify(err, "Append", "publish batch to "+streamName(dest))
	}

	return stream.Cursor(strconv.FormatUint(ack.Sequence, 10)), nil
}

// Cursor returns the stream's last sequence number as a cursor.
func (s *Sink) Cursor(ctx context.Context, dest stream.Destination) (stream.Cursor, error) {
	if err := dest.Validate(); err != nil {
		return stream.NoCursor, err
	}

	name := streamName(dest)
	str, err := s.js.Stream(ctx, name)
	if err != nil {
		return stream.NoCursor, s.classify(err, "Cursor", "look up stream "+name)
	}

	// Stream handles fetch their info on creation, no second round trip.
	info := str.CachedInfo()
	return stream.Cursor(strconv.FormatUint(info.State.LastSeq, 10)), nil
}

// Close drains and closes the connection when the sink owns it. Sinks built
// with FromConn leave the connection alone.
func (s *Sink) Close(ctx context.Context) error {
	if !s.ownsConn || s.conn == nil {
		return nil
	}

	drainDone := make(chan error, 1)
	go func() {
		drainDone <- s.conn.Drain()
	}()

	select {
	case err := <-drainDone:
		if err != nil {
			s.conn.Close()
			return errors.Wrap(err, component, "Close", "drain connection")
		}
	case <-ctx.Done():
		s.conn.Close()
		return errors.WrapTransient(ctx.Err(), component, "Close", "context cancelled during drain")
	}

	return nil
}

// classify maps NATS and JetStream errors onto the shared error classes. A
// publish that no stream acknowledges means the stream is gone, so it
// surfaces as ErrStreamNotFound and callers can re-create.
func (s *Sink) classify(err error, operation, action string) error {
	switch {
	case stderrors.Is(err, jetstream.ErrStreamNotFound),
		stderrors.Is(err, jetstream.ErrNoStreamResponse):
		return errors.WrapInvalid(errors.ErrStreamNotFound, component, operation, action)
	case stderrors.Is(err, jetstream.ErrJetStreamNotEnabled),
		stderrors.Is(err, jetstream.ErrJetStreamNotEnabledForAccount):
		return errors.WrapFatal(err, component, operation, action)
	case stderrors.Is(err, nats.ErrConnectionClosed),
		stderrors.Is(err, nats.ErrNoServers),
		stderrors.Is(err, nats.ErrTimeout),
		stderrors.Is(err, context.DeadlineExceeded),
		stderrors.Is(err, context.Canceled):
		return errors.WrapTransient(err, component, operation, action)
	default:
		return errors.Wrap(err, component, operation, action)
	}
}

// wrongLastSequence reports whether err is the server rejecting a publish
// over a sequence mismatch, and extracts the actual last sequence from the
// error description when present.
func wrongLastSequence(err error) (stream.Cursor, bool) {
	var apiErr *jetstream.APIError
	if !stderrors.As(err, &apiErr) {
		return stream.NoCursor, false
	}
	if apiErr.ErrorCode != jetstream.JSErrCodeStreamWrongLastSequence {
		return stream.NoCursor, false
	}

	// The description reads "wrong last sequence: 42".
	if i := strings.LastIndexByte(apiErr.Description, ':'); i >= 0 {
		if seq, perr := strconv.ParseUint(strings.TrimSpace(apiErr.Description[i+1:]), 10, 64); perr == nil {
			return stream.Cursor(strconv.FormatUint(seq, 10)), true
		}
	}
	return stream.NoCursor, true
}

// isAlreadyExistsError checks if an error indicates the stream already exists.
// Guards against server versions that report the race as a plain API error.
func isAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "stream name already in use") ||
		strings.Contains(errStr, "already exists")
}

// streamName derives the JetStream stream name for a destination. Group and
// stream are sanitized separately and joined with an underscore, which the
// sanitizer never emits, so distinct destinations never collide.
func streamName(dest stream.Destination) string {
	return sanitizePart(dest.Group) + "_" + sanitizePart(dest.Stream)
}

// subject derives the publish subject for a destination.
func (s *Sink) subject(dest stream.Destination) string {
	return s.subjectPrefix + "." + sanitizePart(dest.Group) + "." + sanitizePart(dest.Stream)
}

// sanitizePart replaces everything outside [A-Za-z0-9-] with a dash, keeping
// the result legal in both stream names and subject tokens.
func sanitizePart(part string) string {
	var b strings.Builder
	b.Grow(len(part))
	for _, r := range part {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
