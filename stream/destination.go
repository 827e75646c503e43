package stream

import (
	"fmt"

	"github.com/c360/logship/errors"
	"github.com/c360/logship/pkg/timestamp"
)

// Destination identifies a log stream within a group on the remote
// service. Group names a long-lived container (an application or an
// environment); Stream names one ordered sequence inside it (an
// instance, a host, a date).
type Destination struct {
	Group  string
	Stream string
}

// NewDestination builds a destination, filling an empty stream name
// with today's UTC date (YYYY-MM-DD). The name is fixed at
// construction; a long-lived process keeps writing to the stream it
// started with.
func NewDestination(group, stream string) Destination {
	if stream == "" {
		stream = timestamp.DateUTC(timestamp.Now())
	}
	return Destination{Group: group, Stream: stream}
}

// Validate checks that both parts of the destination are present.
func (d Destination) Validate() error {
	if d.Group == "" {
		return errors.WrapInvalid(errors.ErrInvalidDestination, "Destination", "Validate",
			"group name required")
	}
	if d.Stream == "" {
		return errors.WrapInvalid(errors.ErrInvalidDestination, "Destination", "Validate",
			"stream name required")
	}
	return nil
}

// String returns the destination in group/stream form.
func (d Destination) String() string {
	return fmt.Sprintf("%s/%s", d.Group, d.Stream)
}

// Cursor is the opaque append position a stream hands back after each
// write. The remote service rejects appends whose cursor does not match
// its own; the empty cursor means the position is unknown or the stream
// accepts cursorless appends.
type Cursor string

// NoCursor is the zero cursor.
const NoCursor Cursor = ""

// IsZero reports whether the cursor carries no position.
func (c Cursor) IsZero() bool {
	return c == NoCursor
}

// CreateOptions carries stream creation parameters.
type CreateOptions struct {
	// RetentionDays asks the service to expire events older than this
	// many days. Zero keeps events until the service's own limits apply.
	RetentionDays int
}

// Validate checks creation options.
func (o CreateOptions) Validate() error {
	if o.RetentionDays < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "CreateOptions", "Validate",
			"retention days must not be negative")
	}
	return nil
}
