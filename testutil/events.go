package testutil

import (
	"fmt"
	"strings"

	"github.com/c360/logship/event"
)

// MakeEvents returns n events with consecutive millisecond timestamps
// starting at start.
func MakeEvents(n int, start int64) []event.Event {
	events := make([]event.Event, n)
	for i := range events {
		events[i] = event.Event{
			Time:    start + int64(i),
			Message: fmt.Sprintf("event %d", i),
			Seq:     uint64(i),
		}
	}
	return events
}

// EventOfSize returns an event at the given time whose serialized size
// is exactly total bytes. Totals at or below the per-event overhead are
// raised to the smallest representable size.
func EventOfSize(total int, at int64) event.Event {
	if total <= event.Overhead {
		total = event.Overhead + 1
	}
	return event.Event{
		Time:    at,
		Message: strings.Repeat("x", total-event.Overhead),
	}
}
