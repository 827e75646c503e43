package event

import (
	"github.com/google/uuid"

	"github.com/c360/logship/errors"
)

// Batch is an ordered group of events bounded by count and byte ceilings.
//
// Events are appended in arrival order and must carry non-decreasing
// timestamps. A batch accepts one event regardless of size when empty, so
// an event at the byte ceiling still ships alone rather than being lost.
// Batch is not safe for concurrent use; the batcher owns each instance
// until it is handed to delivery.
type Batch struct {
	id       string
	events   []Event
	bytes    int
	maxCount int
	maxBytes int
}

// NewBatch creates an empty batch with the given ceilings. Non-positive
// or excessive ceilings are clamped to the hard caps.
func NewBatch(maxCount, maxBytes int) *Batch {
	if maxCount <= 0 || maxCount > MaxBatchCount {
		maxCount = MaxBatchCount
	}
	if maxBytes <= 0 || maxBytes > MaxBatchBytes {
		maxBytes = MaxBatchBytes
	}
	return &Batch{
		id:       uuid.NewString(),
		maxCount: maxCount,
		maxBytes: maxBytes,
	}
}

// Append adds an event to the batch.
//
// Returns ErrBatchFull when the event does not fit the count or byte
// ceiling, and ErrInvalidData when the event's timestamp would break the
// batch's chronological order. A full batch keeps its current contents;
// the caller flushes and retries on a fresh batch.
func (b *Batch) Append(ev Event) error {
	if len(b.events) >= b.maxCount {
		return errors.ErrBatchFull
	}
	if len(b.events) > 0 {
		if b.bytes+ev.Size() > b.maxBytes {
			return errors.ErrBatchFull
		}
		if ev.Time < b.events[len(b.events)-1].Time {
			return errors.WrapInvalid(errors.ErrInvalidData, "Batch", "Append",
				"keep chronological order")
		}
	}

	b.events = append(b.events, ev)
	b.bytes += ev.Size()
	return nil
}

// ID returns the batch's identifier, used in diagnostics.
func (b *Batch) ID() string {
	return b.id
}

// Events returns the events in append order. The slice is shared; callers
// must not modify it.
func (b *Batch) Events() []Event {
	return b.events
}

// Len returns the number of events in the batch.
func (b *Batch) Len() int {
	return len(b.events)
}

// Bytes returns the serialized size of the batch.
func (b *Batch) Bytes() int {
	return b.bytes
}

// IsEmpty reports whether the batch holds no events.
func (b *Batch) IsEmpty() bool {
	return len(b.events) == 0
}

// First returns the oldest event. The batch must not be empty.
func (b *Batch) First() Event {
	return b.events[0]
}

// Last returns the newest event. The batch must not be empty.
func (b *Batch) Last() Event {
	return b.events[len(b.events)-1]
}
