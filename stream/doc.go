// Package stream models remote log stream addressing and tracks stream
// lifecycle state on the client side.
//
// A Destination names a stream inside a group. A Cursor is the opaque
// append position the service returns after each write; the service
// rejects appends carrying a stale cursor, which is how concurrent
// writers to one stream are detected.
//
// The Registry is the client-side cache over both. Resolve ensures the
// stream exists (creation is idempotent and retried briefly on
// transient failures) and returns its cursor, hitting the network only
// on first use. After a successful append the caller records the new
// position with Advance; after a cursor conflict Invalidate forces a
// refetch; after a stream has possibly been deleted Forget forces full
// re-creation. Acquire hands out a per-destination in-flight lock so a
// registry shared between handlers never has two deliveries racing to
// the same stream.
package stream
