package stream

import (
	"context"
	"sync"

	"github.com/c360/logship/errors"
	"github.com/c360/logship/pkg/retry"
)

// Resolver ensures remote streams exist and reports their append
// positions. Sink implementations satisfy this interface.
type Resolver interface {
	// CreateStream creates the stream and its group if they do not
	// exist. It must succeed when they already do.
	CreateStream(ctx context.Context, dest Destination, opts CreateOptions) error

	// Cursor returns the current append position of the stream.
	Cursor(ctx context.Context, dest Destination) (Cursor, error)
}

// Config holds registry configuration.
type Config struct {
	// Create is applied when a stream has to be created.
	Create CreateOptions

	// Retry bounds the ensure-and-fetch sequence for a destination.
	Retry retry.Config
}

// DefaultConfig returns registry configuration with a short creation
// retry budget.
func DefaultConfig() Config {
	return Config{
		Retry: retry.Quick(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return c.Create.Validate()
}

// entry tracks per-destination state. The pointer is stable for the
// registry's lifetime once created.
type entry struct {
	inflight sync.Mutex // serializes deliveries to this destination
	ensureMu sync.Mutex // serializes the create-and-fetch slow path

	// Guarded by Registry.mu
	cursor     Cursor
	haveCursor bool
	created    bool
}

// Registry caches which streams are known to exist and where their
// cursors stand, so steady-state delivery costs no extra round trips.
// A registry may be shared by any number of handlers; per-destination
// locks keep concurrent users from racing stream creation or
// interleaving appends.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	resolver Resolver
	cfg      Config
}

// NewRegistry creates a registry over the given resolver.
func NewRegistry(resolver Resolver, cfg Config) (*Registry, error) {
	if resolver == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Registry", "NewRegistry",
			"resolver required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Registry", "NewRegistry", "validate config")
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.Quick()
	}

	return &Registry{
		entries:  make(map[string]*entry),
		resolver: resolver,
		cfg:      cfg,
	}, nil
}

// Resolve returns the cursor for a destination, creating the stream and
// fetching its position on first use. Creation is idempotent and
// retried on transient failures with the registry's retry budget.
// Concurrent resolves of the same destination perform the remote
// sequence once.
func (r *Registry) Resolve(ctx context.Context, dest Destination) (Cursor, error) {
	if err := dest.Validate(); err != nil {
		return NoCursor, err
	}

	e := r.entry(dest)

	// Fast path: cursor already known.
	r.mu.RLock()
	if e.haveCursor {
		cur := e.cursor
		r.mu.RUnlock()
		return cur, nil
	}
	r.mu.RUnlock()

	e.ensureMu.Lock()
	defer e.ensureMu.Unlock()

	// Another resolver may have finished while we waited.
	r.mu.RLock()
	if e.haveCursor {
		cur := e.cursor
		r.mu.RUnlock()
		return cur, nil
	}
	created := e.created
	r.mu.RUnlock()

	if !created {
		err := retry.Do(ctx, r.cfg.Retry, func() error {
			if err := r.resolver.CreateStream(ctx, dest, r.cfg.Create); err != nil {
				return terminalAware(err)
			}
			return nil
		})
		if err != nil {
			return NoCursor, errors.Wrap(err, "Registry", "Resolve",
				"create stream "+dest.String())
		}

		r.mu.Lock()
		e.created = true
		r.mu.Unlock()
	}

	var cur Cursor
	err := retry.Do(ctx, r.cfg.Retry, func() error {
		var ferr error
		cur, ferr = r.resolver.Cursor(ctx, dest)
		if ferr != nil {
			return terminalAware(ferr)
		}
		return nil
	})
	if err != nil {
		return NoCursor, errors.Wrap(err, "Registry", "Resolve",
			"fetch cursor for "+dest.String())
	}

	r.mu.Lock()
	e.cursor = cur
	e.haveCursor = true
	r.mu.Unlock()

	return cur, nil
}

// Advance records the cursor returned by a successful append so the
// next Resolve is a cache hit.
func (r *Registry) Advance(dest Destination, cursor Cursor) {
	e := r.entry(dest)

	r.mu.Lock()
	e.cursor = cursor
	e.haveCursor = true
	e.created = true
	r.mu.Unlock()
}

// Invalidate drops the cached cursor for a destination. The next
// Resolve refetches the position from the service. The stream itself is
// still considered created; use Forget when the stream may be gone.
func (r *Registry) Invalidate(dest Destination) {
	e := r.entry(dest)

	r.mu.Lock()
	e.cursor = NoCursor
	e.haveCursor = false
	r.mu.Unlock()
}

// Forget drops everything known about a destination. The next Resolve
// re-runs stream creation before fetching a cursor.
func (r *Registry) Forget(dest Destination) {
	e := r.entry(dest)

	r.mu.Lock()
	e.cursor = NoCursor
	e.haveCursor = false
	e.created = false
	r.mu.Unlock()
}

// Acquire takes the in-flight lock for a destination and returns its
// release function. While held, no other Acquire for the same
// destination returns, which keeps a shared registry down to one
// delivery per destination at a time.
func (r *Registry) Acquire(dest Destination) func() {
	e := r.entry(dest)
	e.inflight.Lock()
	return e.inflight.Unlock
}

// entry returns the stable per-destination entry, creating it if needed.
func (r *Registry) entry(dest Destination) *entry {
	key := dest.String()

	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.entries[key]; ok {
		return e
	}
	e = &entry{}
	r.entries[key] = e
	return e
}

// terminalAware marks invalid and fatal errors as non-retryable so the
// retry loop stops on them immediately.
func terminalAware(err error) error {
	if errors.IsInvalid(err) || errors.IsFatal(err) {
		return retry.NonRetryable(err)
	}
	return err
}
