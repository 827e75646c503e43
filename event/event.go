// Package event defines the log event and batch data model.
//
// Events are immutable value types carrying a millisecond timestamp, a
// formatted message, and a process-local sequence number that breaks
// timestamp ties. Batches group events for delivery under count and byte
// ceilings; the serialized size of an event is its message length plus a
// fixed per-event overhead, matching the accounting used by remote
// log-aggregation services.
package event

import (
	"unicode/utf8"

	"github.com/c360/logship/errors"
	"github.com/c360/logship/pkg/timestamp"
)

const (
	// Overhead is the accounting overhead in bytes added to each event's
	// message length when computing serialized sizes.
	Overhead = 26

	// MaxBatchBytes is the hard ceiling on the serialized size of a batch.
	MaxBatchBytes = 1048576

	// MaxBatchCount is the hard ceiling on the number of events in a batch.
	MaxBatchCount = 10000

	// MaxMessageBytes is the largest message that fits a single event
	// within MaxBatchBytes.
	MaxMessageBytes = MaxBatchBytes - Overhead

	// TruncationSuffix marks messages cut down to fit a size limit.
	TruncationSuffix = " ..."
)

// Event is a single log record ready for delivery.
type Event struct {
	// Time is the event timestamp in Unix milliseconds.
	Time int64 `json:"timestamp"`
	// Message is the formatted log line.
	Message string `json:"message"`
	// Seq orders events created at the same millisecond. It is assigned
	// by the producing handler and never leaves the process.
	Seq uint64 `json:"-"`
}

// Size returns the serialized size of the event in bytes.
func (e Event) Size() int {
	return len(e.Message) + Overhead
}

// Validate checks that the event can be delivered.
func (e Event) Validate() error {
	if err := timestamp.Validate(e.Time); err != nil {
		return errors.WrapInvalid(err, "Event", "Validate", "check timestamp")
	}
	if timestamp.IsZero(e.Time) {
		return errors.WrapInvalid(errors.ErrInvalidData, "Event", "Validate", "check timestamp")
	}
	return nil
}

// Truncate cuts msg so its byte length does not exceed limit, appending
// TruncationSuffix when a cut was made. The cut lands on a rune boundary
// so the result stays valid UTF-8. Returns the message and whether it was
// truncated. Limits smaller than the suffix yield just the clipped message.
func Truncate(msg string, limit int) (string, bool) {
	if limit < 0 {
		limit = 0
	}
	if len(msg) <= limit {
		return msg, false
	}

	cut := limit - len(TruncationSuffix)
	if cut <= 0 {
		return clipRune(msg, limit), true
	}
	return clipRune(msg, cut) + TruncationSuffix, true
}

// clipRune returns the longest prefix of s within n bytes that ends on a
// rune boundary.
func clipRune(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
