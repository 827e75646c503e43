package sink

import (
	"context"
	"strconv"
	"sync"

	"github.com/c360/logship/errors"
	"github.com/c360/logship/event"
	"github.com/c360/logship/stream"
)

// memoryStream holds one stream's events and its append position.
type memoryStream struct {
	events        []event.Event
	retentionDays int
	seq           uint64
}

func (s *memoryStream) cursor() stream.Cursor {
	return stream.Cursor(strconv.FormatUint(s.seq, 10))
}

// Memory is an in-process Sink with the same strictness as a real log
// service: appends must carry the stream's current cursor, events must
// be in chronological order, and batches must respect the count and
// byte ceilings. It backs tests and local development.
type Memory struct {
	mu      sync.Mutex
	streams map[string]*memoryStream
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{
		streams: make(map[string]*memoryStream),
	}
}

// CreateStream creates the stream if it does not exist. Creating an
// existing stream succeeds and leaves its events and cursor alone.
func (m *Memory) CreateStream(_ context.Context, dest stream.Destination,
	opts stream.CreateOptions) error {
	if err := dest.Validate(); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.streams[dest.String()]; ok {
		return nil
	}

	m.streams[dest.String()] = &memoryStream{
		retentionDays: opts.RetentionDays,
	}
	return nil
}

// Append writes a batch at the given cursor position. The write is
// atomic: a rejected batch changes nothing.
func (m *Memory) Append(_ context.Context, dest stream.Destination, cursor stream.Cursor,
	events []event.Event) (stream.Cursor, error) {
	if len(events) == 0 {
		return stream.NoCursor, errors.WrapInvalid(errors.ErrEmptyBatch,
			"Memory", "Append", "reject empty batch")
	}
	if len(events) > event.MaxBatchCount {
		return stream.NoCursor, errors.WrapInvalid(errors.ErrBatchFull,
			"Memory", "Append", "batch exceeds event count limit")
	}

	total := 0
	last := events[0].Time
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return stream.NoCursor, err
		}
		if ev.Time < last {
			return stream.NoCursor, errors.WrapInvalid(errors.ErrInvalidData,
				"Memory", "Append", "reject out-of-order events")
		}
		last = ev.Time
		total += ev.Size()
	}
	if total > event.MaxBatchBytes {
		return stream.NoCursor, errors.WrapInvalid(errors.ErrBatchFull,
			"Memory", "Append", "batch exceeds byte limit")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[dest.String()]
	if !ok {
		return stream.NoCursor, errors.WrapInvalid(errors.ErrStreamNotFound,
			"Memory", "Append", "unknown stream "+dest.String())
	}

	if cursor != s.cursor() {
		return stream.NoCursor, &CursorConflictError{
			Dest:     dest,
			Supplied: cursor,
			Expected: s.cursor(),
		}
	}

	s.events = append(s.events, events...)
	s.seq += uint64(len(events))
	return s.cursor(), nil
}

// Cursor returns the stream's current append position.
func (m *Memory) Cursor(_ context.Context, dest stream.Destination) (stream.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[dest.String()]
	if !ok {
		return stream.NoCursor, errors.WrapInvalid(errors.ErrStreamNotFound,
			"Memory", "Cursor", "unknown stream "+dest.String())
	}
	return s.cursor(), nil
}

// Events returns a copy of everything appended to a destination, in
// append order.
func (m *Memory) Events(dest stream.Destination) []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[dest.String()]
	if !ok {
		return nil
	}
	out := make([]event.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Streams returns the names of all created streams.
func (m *Memory) Streams() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.streams))
	for name := range m.streams {
		names = append(names, name)
	}
	return names
}

// RetentionDays returns the retention recorded when a stream was
// created, and whether the stream exists.
func (m *Memory) RetentionDays(dest stream.Destination) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[dest.String()]
	if !ok {
		return 0, false
	}
	return s.retentionDays, true
}
