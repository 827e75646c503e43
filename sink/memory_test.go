package sink

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/logship/errors"
	"github.com/c360/logship/event"
	"github.com/c360/logship/stream"
)

// Memory must satisfy both the delivery seam and the registry's view of it.
var (
	_ Sink            = (*Memory)(nil)
	_ stream.Resolver = (*Memory)(nil)
)

func testDest() stream.Destination {
	return stream.NewDestination("api", "worker-1")
}

func mkEvents(times ...int64) []event.Event {
	out := make([]event.Event, len(times))
	for i, ts := range times {
		out[i] = event.Event{Time: ts, Message: "m"}
	}
	return out
}

func TestMemoryCreateStreamIdempotent(t *testing.T) {
	m := NewMemory()
	dest := testDest()
	ctx := context.Background()

	require.NoError(t, m.CreateStream(ctx, dest, stream.CreateOptions{RetentionDays: 14}))

	cur, err := m.Cursor(ctx, dest)
	require.NoError(t, err)
	_, err = m.Append(ctx, dest, cur, mkEvents(1, 2))
	require.NoError(t, err)

	// Re-creating must not reset events or retention.
	require.NoError(t, m.CreateStream(ctx, dest, stream.CreateOptions{RetentionDays: 99}))

	assert.Len(t, m.Events(dest), 2)
	days, ok := m.RetentionDays(dest)
	require.True(t, ok)
	assert.Equal(t, 14, days)
}

func TestMemoryAppendAdvancesCursor(t *testing.T) {
	m := NewMemory()
	dest := testDest()
	ctx := context.Background()

	require.NoError(t, m.CreateStream(ctx, dest, stream.CreateOptions{}))

	cur, err := m.Cursor(ctx, dest)
	require.NoError(t, err)
	assert.Equal(t, stream.Cursor("0"), cur)

	cur, err = m.Append(ctx, dest, cur, mkEvents(10, 20, 30))
	require.NoError(t, err)
	assert.Equal(t, stream.Cursor("3"), cur)

	cur, err = m.Append(ctx, dest, cur, mkEvents(40))
	require.NoError(t, err)
	assert.Equal(t, stream.Cursor("4"), cur)

	events := m.Events(dest)
	require.Len(t, events, 4)
	assert.Equal(t, int64(10), events[0].Time)
	assert.Equal(t, int64(40), events[3].Time)
}

func TestMemoryAppendStaleCursorConflicts(t *testing.T) {
	m := NewMemory()
	dest := testDest()
	ctx := context.Background()

	require.NoError(t, m.CreateStream(ctx, dest, stream.CreateOptions{}))
	_, err := m.Append(ctx, dest, stream.Cursor("0"), mkEvents(1))
	require.NoError(t, err)

	_, err = m.Append(ctx, dest, stream.Cursor("0"), mkEvents(2))
	require.Error(t, err)

	conflict, ok := IsCursorConflict(err)
	require.True(t, ok, "expected cursor conflict, got %v", err)
	assert.Equal(t, stream.Cursor("0"), conflict.Supplied)
	assert.Equal(t, stream.Cursor("1"), conflict.Expected)

	// Nothing landed from the rejected batch.
	assert.Len(t, m.Events(dest), 1)
}

// Two writers interleaving on one stream: the loser refetches the
// position from the conflict and its retry lands.
func TestMemoryAppendConflictRecovery(t *testing.T) {
	m := NewMemory()
	dest := testDest()
	ctx := context.Background()

	require.NoError(t, m.CreateStream(ctx, dest, stream.CreateOptions{}))

	curA, err := m.Cursor(ctx, dest)
	require.NoError(t, err)

	// Writer B slips in first.
	_, err = m.Append(ctx, dest, curA, mkEvents(5))
	require.NoError(t, err)

	// Writer A's append is stale now.
	_, err = m.Append(ctx, dest, curA, mkEvents(6))
	conflict, ok := IsCursorConflict(err)
	require.True(t, ok)

	// Retrying at the expected position succeeds.
	cur, err := m.Append(ctx, dest, conflict.Expected, mkEvents(6))
	require.NoError(t, err)
	assert.Equal(t, stream.Cursor("2"), cur)
	assert.Len(t, m.Events(dest), 2)
}

func TestMemoryAppendRejections(t *testing.T) {
	m := NewMemory()
	dest := testDest()
	ctx := context.Background()
	require.NoError(t, m.CreateStream(ctx, dest, stream.CreateOptions{}))

	t.Run("empty batch", func(t *testing.T) {
		_, err := m.Append(ctx, dest, stream.Cursor("0"), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrEmptyBatch)
	})

	t.Run("out of order", func(t *testing.T) {
		_, err := m.Append(ctx, dest, stream.Cursor("0"), mkEvents(10, 5))
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidData)
		assert.True(t, errors.IsInvalid(err))
	})

	t.Run("zero timestamp", func(t *testing.T) {
		_, err := m.Append(ctx, dest, stream.Cursor("0"),
			[]event.Event{{Time: 0, Message: "no time"}})
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	})

	t.Run("too many events", func(t *testing.T) {
		times := make([]int64, event.MaxBatchCount+1)
		for i := range times {
			times[i] = int64(i + 1)
		}
		_, err := m.Append(ctx, dest, stream.Cursor("0"), mkEvents(times...))
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrBatchFull)
	})

	t.Run("too many bytes", func(t *testing.T) {
		huge := event.Event{Time: 1, Message: strings.Repeat("x", event.MaxBatchBytes)}
		_, err := m.Append(ctx, dest, stream.Cursor("0"), []event.Event{huge})
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrBatchFull)
	})

	// A rejected stream is untouched.
	assert.Empty(t, m.Events(dest))
}

func TestMemoryUnknownStream(t *testing.T) {
	m := NewMemory()
	dest := testDest()
	ctx := context.Background()

	_, err := m.Append(ctx, dest, stream.Cursor("0"), mkEvents(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStreamNotFound)

	_, err = m.Cursor(ctx, dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStreamNotFound)
}

func TestMemoryStreams(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateStream(ctx, stream.NewDestination("api", "a"), stream.CreateOptions{}))
	require.NoError(t, m.CreateStream(ctx, stream.NewDestination("api", "b"), stream.CreateOptions{}))

	assert.ElementsMatch(t, []string{"api/a", "api/b"}, m.Streams())
}

func TestIsCursorConflictSeesThroughWrapping(t *testing.T) {
	conflict := &CursorConflictError{
		Dest:     testDest(),
		Supplied: stream.Cursor("1"),
		Expected: stream.Cursor("4"),
	}

	wrapped := errors.Wrap(conflict, "Controller", "Deliver", "append batch")
	got, ok := IsCursorConflict(wrapped)
	require.True(t, ok)
	assert.Equal(t, stream.Cursor("4"), got.Expected)

	_, ok = IsCursorConflict(nil)
	assert.False(t, ok)
}
