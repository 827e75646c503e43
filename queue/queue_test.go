package queue

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	cerrors "github.com/c360/logship/errors"
	"github.com/c360/logship/event"
	"github.com/c360/logship/metric"
)

func testEvent(ts int64, msg string) event.Event {
	return event.Event{Time: ts, Message: msg}
}

func TestQueueBasicOperations(t *testing.T) {
	q := New(3)
	defer q.Close()

	// Initial state
	if q.Len() != 0 {
		t.Errorf("Expected initial length 0, got %d", q.Len())
	}
	if q.Bytes() != 0 {
		t.Errorf("Expected initial bytes 0, got %d", q.Bytes())
	}
	if q.Capacity() != 3 {
		t.Errorf("Expected capacity 3, got %d", q.Capacity())
	}
	if !q.IsEmpty() {
		t.Error("Expected queue to be empty initially")
	}
	if q.IsFull() {
		t.Error("Expected queue not to be full initially")
	}

	// Write and verify accounting
	first := testEvent(1, "first")
	if err := q.Write(first); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("Expected length 1, got %d", q.Len())
	}
	if q.Bytes() != first.Size() {
		t.Errorf("Expected bytes %d, got %d", first.Size(), q.Bytes())
	}

	second := testEvent(2, "second")
	third := testEvent(3, "third")
	_ = q.Write(second)
	_ = q.Write(third)

	if !q.IsFull() {
		t.Error("Expected queue to be full")
	}
	wantBytes := first.Size() + second.Size() + third.Size()
	if q.Bytes() != wantBytes {
		t.Errorf("Expected bytes %d, got %d", wantBytes, q.Bytes())
	}

	// Drain returns arrival order and updates accounting
	events := q.Drain(10, 0)
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	for i, want := range []string{"first", "second", "third"} {
		if events[i].Message != want {
			t.Errorf("Position %d: expected %q, got %q", i, want, events[i].Message)
		}
	}
	if q.Len() != 0 || q.Bytes() != 0 {
		t.Errorf("Expected empty queue after drain, got len=%d bytes=%d", q.Len(), q.Bytes())
	}
}

func TestQueueShedsOldestWhenFull(t *testing.T) {
	q := New(3)
	defer q.Close()

	for i := 1; i <= 5; i++ {
		if err := q.Write(testEvent(int64(i), fmt.Sprintf("msg-%d", i))); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	events := q.Drain(10, 0)
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}

	// The two oldest were shed, the newest three remain in order
	for i, want := range []int64{3, 4, 5} {
		if events[i].Time != want {
			t.Errorf("Position %d: expected timestamp %d, got %d", i, want, events[i].Time)
		}
	}

	if q.Stats().Drops() != 2 {
		t.Errorf("Expected 2 drops, got %d", q.Stats().Drops())
	}
}

// TestQueueShedKeepsContiguousSuffix verifies that under sustained
// overload the surviving events are exactly the newest ones, with no
// gaps and no reordering.
func TestQueueShedKeepsContiguousSuffix(t *testing.T) {
	const capacity = 64
	const total = 200

	q := New(capacity)
	defer q.Close()

	for i := 0; i < total; i++ {
		ev := testEvent(int64(i), fmt.Sprintf("event-%d", i))
		ev.Seq = uint64(i)
		require.NoError(t, q.Write(ev))
	}

	events := q.Drain(total, 0)
	require.Len(t, events, capacity)

	// Survivors must be the final `capacity` events in arrival order.
	for i, ev := range events {
		want := uint64(total - capacity + i)
		if ev.Seq != want {
			t.Fatalf("Position %d: expected seq %d, got %d", i, want, ev.Seq)
		}
	}

	if got := q.Stats().Drops(); got != total-capacity {
		t.Errorf("Expected %d drops, got %d", total-capacity, got)
	}
}

func TestQueueDrainCountLimit(t *testing.T) {
	q := New(20)
	defer q.Close()

	for i := 1; i <= 10; i++ {
		_ = q.Write(testEvent(int64(i), "x"))
	}

	events := q.Drain(4, 0)
	if len(events) != 4 {
		t.Errorf("Expected 4 events, got %d", len(events))
	}
	if q.Len() != 6 {
		t.Errorf("Expected 6 events remaining, got %d", q.Len())
	}
	if events[0].Time != 1 || events[3].Time != 4 {
		t.Errorf("Expected timestamps 1..4, got %d..%d", events[0].Time, events[3].Time)
	}
}

func TestQueueDrainByteLimit(t *testing.T) {
	q := New(20)
	defer q.Close()

	// Each event is 10 payload bytes + 26 overhead = 36 bytes.
	for i := 1; i <= 5; i++ {
		_ = q.Write(testEvent(int64(i), strings.Repeat("a", 10)))
	}

	// Limit of 80 bytes fits two events (72) but not three (108).
	events := q.Drain(10, 80)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events under byte limit, got %d", len(events))
	}
	if q.Len() != 3 {
		t.Errorf("Expected 3 events remaining, got %d", q.Len())
	}

	// Remaining events are still in order.
	rest := q.Drain(10, 0)
	if len(rest) != 3 || rest[0].Time != 3 {
		t.Errorf("Expected remaining events starting at timestamp 3, got %+v", rest)
	}
}

func TestQueueDrainOversizedEventReturnedAlone(t *testing.T) {
	q := New(10)
	defer q.Close()

	big := testEvent(1, strings.Repeat("b", 500))
	_ = q.Write(big)
	_ = q.Write(testEvent(2, "small"))

	// The byte limit is far below the first event's size. It must still
	// come back, alone, so the queue cannot wedge.
	events := q.Drain(10, 100)
	require.Len(t, events, 1)
	require.Equal(t, int64(1), events[0].Time)

	events = q.Drain(10, 100)
	require.Len(t, events, 1)
	require.Equal(t, int64(2), events[0].Time)
}

func TestQueueDrainEmpty(t *testing.T) {
	q := New(5)
	defer q.Close()

	if events := q.Drain(10, 0); len(events) != 0 {
		t.Errorf("Drain on empty queue should return nothing, got %v", events)
	}
	if events := q.Drain(0, 0); events != nil {
		t.Errorf("Drain with zero count should return nil, got %v", events)
	}
}

func TestQueueWriteAfterClose(t *testing.T) {
	q := New(5)
	require.NoError(t, q.Close())

	err := q.Write(testEvent(1, "late"))
	if err == nil {
		t.Fatal("Expected error when writing to closed queue")
	}

	// Verify it's a classified error
	var classifiedErr *cerrors.ClassifiedError
	if !errors.As(err, &classifiedErr) {
		t.Error("Expected error to be classified")
	} else {
		if classifiedErr.Class != cerrors.ErrorInvalid {
			t.Errorf("Expected ErrorInvalid class, got %v", classifiedErr.Class)
		}
		if classifiedErr.Component != "Queue" {
			t.Errorf("Expected component 'Queue', got %s", classifiedErr.Component)
		}
	}

	if !errors.Is(err, cerrors.ErrAlreadyStopped) {
		t.Error("Expected error to wrap ErrAlreadyStopped")
	}
}

func TestQueueCloseDropsRemaining(t *testing.T) {
	var mu sync.Mutex
	var dropped []string
	var reasons []string

	q := New(5, WithDropCallback(func(ev event.Event, reason string) {
		mu.Lock()
		dropped = append(dropped, ev.Message)
		reasons = append(reasons, reason)
		mu.Unlock()
	}))

	_ = q.Write(testEvent(1, "a"))
	_ = q.Write(testEvent(2, "b"))
	_ = q.Write(testEvent(3, "c"))

	require.NoError(t, q.Close())

	mu.Lock()
	require.Equal(t, []string{"a", "b", "c"}, dropped)
	for _, reason := range reasons {
		require.Equal(t, ReasonShutdown, reason)
	}
	mu.Unlock()

	if q.Stats().Drops() != 3 {
		t.Errorf("Expected 3 drops, got %d", q.Stats().Drops())
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty queue after close, got %d", q.Len())
	}

	// Second close must not re-fire callbacks.
	require.NoError(t, q.Close())
	mu.Lock()
	require.Len(t, dropped, 3)
	mu.Unlock()
}

func TestQueueDropCallbackOnShed(t *testing.T) {
	var mu sync.Mutex
	var dropped []int64

	q := New(2, WithDropCallback(func(ev event.Event, reason string) {
		mu.Lock()
		defer mu.Unlock()
		if reason != ReasonFull {
			t.Errorf("Expected reason %q, got %q", ReasonFull, reason)
		}
		dropped = append(dropped, ev.Time)
	}))
	defer q.Close()

	_ = q.Write(testEvent(1, "a"))
	_ = q.Write(testEvent(2, "b"))
	_ = q.Write(testEvent(3, "c")) // Sheds 1
	_ = q.Write(testEvent(4, "d")) // Sheds 2

	mu.Lock()
	if len(dropped) != 2 {
		t.Errorf("Expected 2 dropped events, got %d", len(dropped))
	}
	if len(dropped) >= 2 && (dropped[0] != 1 || dropped[1] != 2) {
		t.Errorf("Expected dropped timestamps [1, 2], got %v", dropped)
	}
	mu.Unlock()
}

// The drop callback runs outside the queue lock, so it may call back
// into the queue without deadlocking.
func TestQueueDropCallbackMayReenter(t *testing.T) {
	var q *Queue
	q = New(1, WithDropCallback(func(ev event.Event, reason string) {
		_ = q.Len()
	}))
	defer q.Close()

	_ = q.Write(testEvent(1, "a"))
	_ = q.Write(testEvent(2, "b")) // Sheds 1, callback touches the queue
	if q.Len() != 1 {
		t.Errorf("Expected length 1, got %d", q.Len())
	}
}

func TestQueueThreadSafety(t *testing.T) {
	q := New(1000)
	defer q.Close()

	var wg sync.WaitGroup
	numWorkers := 10
	eventsPerWorker := 100

	// Writers
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < eventsPerWorker; i++ {
				_ = q.Write(testEvent(int64(worker*eventsPerWorker+i), "payload"))
			}
		}(w)
	}

	// Drainers
	var drainMu sync.Mutex
	drainedCount := 0
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < eventsPerWorker/10; i++ {
				events := q.Drain(10, 0)
				drainMu.Lock()
				drainedCount += len(events)
				drainMu.Unlock()
			}
		}()
	}

	wg.Wait()

	// Every written event was either drained, shed, or is still queued.
	drainMu.Lock()
	totalDrained := drainedCount
	drainMu.Unlock()

	totalWritten := numWorkers * eventsPerWorker
	remaining := q.Len()
	shed := int(q.Stats().Drops())

	if totalDrained+remaining+shed != totalWritten {
		t.Errorf("Accounting mismatch: written=%d, drained=%d, remaining=%d, shed=%d",
			totalWritten, totalDrained, remaining, shed)
	}
}

func TestQueueStatistics(t *testing.T) {
	q := New(2)
	defer q.Close()

	stats := q.Stats()
	if stats == nil {
		t.Fatal("Expected stats to be available")
	}

	ev := testEvent(1, "aa")
	_ = q.Write(ev)
	_ = q.Write(testEvent(2, "bb"))
	_ = q.Write(testEvent(3, "cc")) // Sheds 1

	if stats.Writes() != 3 {
		t.Errorf("Expected 3 writes, got %d", stats.Writes())
	}
	if stats.Drops() != 1 {
		t.Errorf("Expected 1 drop, got %d", stats.Drops())
	}
	if stats.CurrentDepth() != 2 {
		t.Errorf("Expected depth 2, got %d", stats.CurrentDepth())
	}
	if stats.PeakDepth() != 2 {
		t.Errorf("Expected peak depth 2, got %d", stats.PeakDepth())
	}
	if stats.CurrentBytes() != int64(2*ev.Size()) {
		t.Errorf("Expected %d bytes, got %d", 2*ev.Size(), stats.CurrentBytes())
	}

	q.Drain(10, 0)
	if stats.Drained() != 2 {
		t.Errorf("Expected 2 drained, got %d", stats.Drained())
	}
	if stats.CurrentDepth() != 0 {
		t.Errorf("Expected depth 0 after drain, got %d", stats.CurrentDepth())
	}

	if rate := stats.DropRate(); rate < 0.33 || rate > 0.34 {
		t.Errorf("Expected drop rate ~0.333, got %f", rate)
	}

	summary := stats.Summary()
	if summary.Writes != 3 || summary.Drained != 2 || summary.Drops != 1 {
		t.Errorf("Summary mismatch: %+v", summary)
	}

	stats.Reset()
	if stats.Writes() != 0 || stats.PeakDepth() != 0 {
		t.Error("Expected zeroed statistics after reset")
	}
}

func TestQueueMetricsMirroring(t *testing.T) {
	metrics := metric.NewMetrics()

	q := New(2, WithMetrics(metrics, "test-handler"))
	defer q.Close()

	_ = q.Write(testEvent(1, "aa"))
	_ = q.Write(testEvent(2, "bb"))
	_ = q.Write(testEvent(3, "cc")) // Sheds 1

	var depth dto.Metric
	require.NoError(t, metrics.QueueDepth.WithLabelValues("test-handler").Write(&depth))
	require.Equal(t, float64(2), depth.GetGauge().GetValue())

	var dropped dto.Metric
	require.NoError(t,
		metrics.EventsDropped.WithLabelValues("test-handler", ReasonFull).Write(&dropped))
	require.Equal(t, float64(1), dropped.GetCounter().GetValue())

	q.Drain(10, 0)

	var bytes dto.Metric
	require.NoError(t, metrics.QueueBytes.WithLabelValues("test-handler").Write(&bytes))
	require.Equal(t, float64(0), bytes.GetGauge().GetValue())
}

func TestQueueDefaultCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{"zero falls back to default", 0, DefaultCapacity},
		{"negative falls back to default", -5, DefaultCapacity},
		{"explicit capacity kept", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(tt.capacity)
			defer q.Close()
			if q.Capacity() != tt.want {
				t.Errorf("Expected capacity %d, got %d", tt.want, q.Capacity())
			}
		})
	}
}

func TestQueueWrapAround(t *testing.T) {
	q := New(4)
	defer q.Close()

	// Cycle the ring several times past its capacity.
	for round := 0; round < 5; round++ {
		for i := 0; i < 3; i++ {
			ts := int64(round*3 + i)
			require.NoError(t, q.Write(testEvent(ts, "x")))
		}
		events := q.Drain(3, 0)
		require.Len(t, events, 3)
		for i, ev := range events {
			want := int64(round*3 + i)
			require.Equal(t, want, ev.Time, "round %d position %d", round, i)
		}
	}

	if q.Stats().Drops() != 0 {
		t.Errorf("Expected no drops, got %d", q.Stats().Drops())
	}
}
