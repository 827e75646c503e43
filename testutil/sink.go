package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/logship/event"
	"github.com/c360/logship/sink"
	"github.com/c360/logship/stream"
)

// MockSink is a scripted Sink for testing delivery paths. By default
// every call lands in the embedded Memory sink, which enforces the same
// cursor and ordering rules as a real service. Tests override single
// operations through the Func fields; overrides see exactly the
// arguments the caller passed. Set Func fields before handing the mock
// to other goroutines.
type MockSink struct {
	// Memory backs all calls that are not overridden.
	Memory *sink.Memory

	// CreateStreamFunc, when set, replaces CreateStream.
	CreateStreamFunc func(ctx context.Context, dest stream.Destination, opts stream.CreateOptions) error

	// CursorFunc, when set, replaces Cursor.
	CursorFunc func(ctx context.Context, dest stream.Destination) (stream.Cursor, error)

	// AppendFunc, when set, replaces Append.
	AppendFunc func(ctx context.Context, dest stream.Destination, cursor stream.Cursor, events []event.Event) (stream.Cursor, error)

	// AppendDelay makes every Append sleep first, widening the window
	// for overlap detection.
	AppendDelay time.Duration

	mu           sync.Mutex
	createCalls  int
	cursorCalls  int
	appendCalls  int
	supplied     []stream.Cursor
	appendedDest []stream.Destination

	inFlight   atomic.Int32
	overlapped atomic.Bool
}

var _ sink.Sink = (*MockSink)(nil)

// NewMockSink creates a mock backed by an empty in-memory sink.
func NewMockSink() *MockSink {
	return &MockSink{
		Memory: sink.NewMemory(),
	}
}

// CreateStream counts the call and runs the override or the memory sink.
func (m *MockSink) CreateStream(ctx context.Context, dest stream.Destination, opts stream.CreateOptions) error {
	m.mu.Lock()
	m.createCalls++
	fn := m.CreateStreamFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, dest, opts)
	}
	return m.Memory.CreateStream(ctx, dest, opts)
}

// Cursor counts the call and runs the override or the memory sink.
func (m *MockSink) Cursor(ctx context.Context, dest stream.Destination) (stream.Cursor, error) {
	m.mu.Lock()
	m.cursorCalls++
	fn := m.CursorFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, dest)
	}
	return m.Memory.Cursor(ctx, dest)
}

// Append counts the call, records the supplied cursor, flags any
// concurrent overlap, and runs the override or the memory sink.
func (m *MockSink) Append(ctx context.Context, dest stream.Destination, cursor stream.Cursor, events []event.Event) (stream.Cursor, error) {
	if m.inFlight.Add(1) > 1 {
		m.overlapped.Store(true)
	}
	defer m.inFlight.Add(-1)

	if m.AppendDelay > 0 {
		time.Sleep(m.AppendDelay)
	}

	m.mu.Lock()
	m.appendCalls++
	m.supplied = append(m.supplied, cursor)
	m.appendedDest = append(m.appendedDest, dest)
	fn := m.AppendFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, dest, cursor, events)
	}
	return m.Memory.Append(ctx, dest, cursor, events)
}

// CreateCalls returns how many times CreateStream ran.
func (m *MockSink) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

// CursorCalls returns how many times Cursor ran.
func (m *MockSink) CursorCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursorCalls
}

// AppendCalls returns how many times Append ran.
func (m *MockSink) AppendCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendCalls
}

// SuppliedCursors returns the cursor each Append carried, in call order.
func (m *MockSink) SuppliedCursors() []stream.Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]stream.Cursor, len(m.supplied))
	copy(out, m.supplied)
	return out
}

// AppendedDestinations returns the destination of each Append, in call
// order.
func (m *MockSink) AppendedDestinations() []stream.Destination {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]stream.Destination, len(m.appendedDest))
	copy(out, m.appendedDest)
	return out
}

// Overlapped reports whether two Appends ever ran at the same time.
func (m *MockSink) Overlapped() bool {
	return m.overlapped.Load()
}

// Events returns everything stored for a destination, in append order.
func (m *MockSink) Events(dest stream.Destination) []event.Event {
	return m.Memory.Events(dest)
}
