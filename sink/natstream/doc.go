// Package natstream stores log batches in NATS JetStream.
//
// Each destination gets its own JetStream stream, named from the sanitized
// group and stream joined by an underscore, with retention enforced through
// the stream's MaxAge. A batch is published as one message carrying the
// events as a JSON array, so a batch is stored completely or not at all.
//
// The cursor is the stream's last sequence number in decimal. Appends
// publish with an expected last sequence; when another writer advanced the
// stream first, the server rejects the message and Append returns a
// *sink.CursorConflictError carrying the sequence the server actually holds.
//
// # Quick Start
//
//	s, err := natstream.Dial(ctx, "nats://localhost:4222")
//	if err != nil {
//		return err
//	}
//	defer s.Close(ctx)
//
//	dest := stream.NewDestination("payments", "")
//	if err := s.CreateStream(ctx, dest, stream.CreateOptions{RetentionDays: 14}); err != nil {
//		return err
//	}
//	cursor, err := s.Cursor(ctx, dest)
//	if err != nil {
//		return err
//	}
//	cursor, err = s.Append(ctx, dest, cursor, events)
//
// Applications that already hold a NATS connection can wrap it with FromConn
// instead; the sink then never closes the connection. That is also the path
// for TLS and key-based authentication.
//
// Batches near the byte ceiling can exceed the server's default 1 MiB
// message limit once JSON escaping inflates the payload. Configure a smaller
// batch byte limit when log lines are escape-heavy.
package natstream
