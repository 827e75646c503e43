package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/c360/logship/event"
	"github.com/c360/logship/stream"
)

// Sink delivers event batches to a log service. Implementations must
// classify returned errors with the errors package so callers can tell
// transient outages apart from rejected input, and must return a
// *CursorConflictError when the service rejects an append position.
//
// A Sink satisfies stream.Resolver, so a stream.Registry can manage
// stream lifecycle over it directly.
type Sink interface {
	// CreateStream ensures the destination's group and stream exist,
	// applying opts when the stream is new. Creating a stream that
	// already exists must succeed and must not alter it.
	CreateStream(ctx context.Context, dest stream.Destination, opts stream.CreateOptions) error

	// Append writes events to the stream at the given cursor position
	// and returns the cursor for the next append. A batch is written
	// atomically: either every event lands or none do.
	Append(ctx context.Context, dest stream.Destination, cursor stream.Cursor,
		events []event.Event) (stream.Cursor, error)

	// Cursor returns the stream's current append position.
	Cursor(ctx context.Context, dest stream.Destination) (stream.Cursor, error)
}

// CursorConflictError reports an append rejected because the supplied
// cursor did not match the stream's actual position. Expected carries
// the position the service reported, when it reports one.
type CursorConflictError struct {
	Dest     stream.Destination
	Supplied stream.Cursor
	Expected stream.Cursor
}

// Error implements the error interface.
func (e *CursorConflictError) Error() string {
	return fmt.Sprintf("cursor conflict on %s: supplied %q, expected %q",
		e.Dest, e.Supplied, e.Expected)
}

// IsCursorConflict reports whether err is (or wraps) a cursor conflict
// and returns the conflict when it is.
func IsCursorConflict(err error) (*CursorConflictError, bool) {
	if err == nil {
		return nil, false
	}
	var conflict *CursorConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
