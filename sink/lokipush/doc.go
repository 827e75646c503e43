// Package lokipush pushes log batches to a Grafana Loki instance.
//
// Batches go to the push API as a single labeled stream per request, with
// the destination carried in the group and stream labels next to a fixed
// job label and any static labels from configuration. Timestamps convert
// from milliseconds to the nanosecond strings Loki expects.
//
// Loki keeps no client-visible write position, so the sink is cursorless:
// Cursor always returns NoCursor, Append never checks ordering against
// other writers, and the registry skips conflict handling entirely. Use
// this sink when a single shipper owns each destination.
//
//	s, err := lokipush.New(lokipush.Config{
//		URL:      "http://loki:3100",
//		TenantID: "team-a",
//		Labels:   map[string]string{"env": "production"},
//	})
//
// Rate limiting (429) and server errors are reported transient, failed
// authentication fatal, and any other rejection invalid so the batch is
// abandoned rather than retried.
package lokipush
