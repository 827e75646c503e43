package stream

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cerrors "github.com/c360/logship/errors"
	"github.com/c360/logship/pkg/retry"
)

// fakeResolver scripts CreateStream and Cursor responses per call.
type fakeResolver struct {
	mu          sync.Mutex
	createCalls int
	cursorCalls int
	createErr   func(call int) error
	cursorErr   func(call int) error
	cursor      Cursor
	lastOpts    CreateOptions
}

func (f *fakeResolver) CreateStream(_ context.Context, _ Destination, opts CreateOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastOpts = opts
	if f.createErr != nil {
		return f.createErr(f.createCalls)
	}
	return nil
}

func (f *fakeResolver) Cursor(_ context.Context, _ Destination) (Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursorCalls++
	if f.cursorErr != nil {
		if err := f.cursorErr(f.cursorCalls); err != nil {
			return NoCursor, err
		}
	}
	return f.cursor, nil
}

func (f *fakeResolver) calls() (create, cursor int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.cursorCalls
}

// fastRetry keeps registry tests quick.
func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func newTestRegistry(t *testing.T, resolver Resolver) *Registry {
	t.Helper()
	reg, err := NewRegistry(resolver, Config{
		Create: CreateOptions{RetentionDays: 7},
		Retry:  fastRetry(),
	})
	require.NoError(t, err)
	return reg
}

func TestNewRegistryRequiresResolver(t *testing.T) {
	_, err := NewRegistry(nil, DefaultConfig())
	require.Error(t, err)
	require.ErrorIs(t, err, cerrors.ErrMissingConfig)
}

func TestNewRegistryRejectsBadConfig(t *testing.T) {
	_, err := NewRegistry(&fakeResolver{}, Config{
		Create: CreateOptions{RetentionDays: -3},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, cerrors.ErrInvalidConfig)
}

func TestRegistryResolveCreatesOnce(t *testing.T) {
	resolver := &fakeResolver{cursor: Cursor("17")}
	reg := newTestRegistry(t, resolver)
	dest := NewDestination("api", "worker-1")

	cur, err := reg.Resolve(context.Background(), dest)
	require.NoError(t, err)
	require.Equal(t, Cursor("17"), cur)

	// Second resolve is a cache hit.
	cur, err = reg.Resolve(context.Background(), dest)
	require.NoError(t, err)
	require.Equal(t, Cursor("17"), cur)

	create, cursor := resolver.calls()
	require.Equal(t, 1, create, "stream created once")
	require.Equal(t, 1, cursor, "cursor fetched once")
	require.Equal(t, 7, resolver.lastOpts.RetentionDays)
}

func TestRegistryResolveRejectsInvalidDestination(t *testing.T) {
	resolver := &fakeResolver{}
	reg := newTestRegistry(t, resolver)

	_, err := reg.Resolve(context.Background(), Destination{Stream: "s"})
	require.Error(t, err)
	require.ErrorIs(t, err, cerrors.ErrInvalidDestination)

	create, _ := resolver.calls()
	require.Zero(t, create, "invalid destinations must not reach the resolver")
}

func TestRegistryConcurrentResolveCreatesOnce(t *testing.T) {
	resolver := &fakeResolver{cursor: Cursor("3")}
	reg := newTestRegistry(t, resolver)
	dest := NewDestination("api", "shared")

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.Resolve(context.Background(), dest)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "goroutine %d", i)
	}

	create, cursor := resolver.calls()
	require.Equal(t, 1, create, "concurrent resolves must share one creation")
	require.Equal(t, 1, cursor)
}

func TestRegistryResolveRetriesTransientCreation(t *testing.T) {
	resolver := &fakeResolver{
		cursor: Cursor("0"),
		createErr: func(call int) error {
			if call <= 2 {
				return cerrors.WrapTransient(fmt.Errorf("connection refused"),
					"Sink", "CreateStream", "dial")
			}
			return nil
		},
	}
	reg := newTestRegistry(t, resolver)

	_, err := reg.Resolve(context.Background(), NewDestination("api", "flaky"))
	require.NoError(t, err)

	create, _ := resolver.calls()
	require.Equal(t, 3, create, "two transient failures then success")
}

func TestRegistryResolveExhaustsCreationBudget(t *testing.T) {
	resolver := &fakeResolver{
		createErr: func(int) error {
			return cerrors.WrapTransient(fmt.Errorf("connection refused"),
				"Sink", "CreateStream", "dial")
		},
	}
	reg := newTestRegistry(t, resolver)

	_, err := reg.Resolve(context.Background(), NewDestination("api", "down"))
	require.Error(t, err)

	create, cursor := resolver.calls()
	require.Equal(t, 3, create, "retry budget is MaxAttempts")
	require.Zero(t, cursor, "no cursor fetch after failed creation")
}

func TestRegistryResolveStopsOnFatalCreation(t *testing.T) {
	resolver := &fakeResolver{
		createErr: func(int) error {
			return cerrors.WrapFatal(fmt.Errorf("access denied"),
				"Sink", "CreateStream", "authorize")
		},
	}
	reg := newTestRegistry(t, resolver)

	_, err := reg.Resolve(context.Background(), NewDestination("api", "denied"))
	require.Error(t, err)

	create, _ := resolver.calls()
	require.Equal(t, 1, create, "fatal errors must not be retried")
}

func TestRegistryAdvanceSkipsResolverEntirely(t *testing.T) {
	resolver := &fakeResolver{cursor: Cursor("1")}
	reg := newTestRegistry(t, resolver)
	dest := NewDestination("api", "fed")

	reg.Advance(dest, Cursor("42"))

	cur, err := reg.Resolve(context.Background(), dest)
	require.NoError(t, err)
	require.Equal(t, Cursor("42"), cur)

	create, cursor := resolver.calls()
	require.Zero(t, create, "advanced destination needs no creation")
	require.Zero(t, cursor)
}

func TestRegistryInvalidateRefetchesCursorOnly(t *testing.T) {
	resolver := &fakeResolver{cursor: Cursor("5")}
	reg := newTestRegistry(t, resolver)
	dest := NewDestination("api", "conflicted")

	_, err := reg.Resolve(context.Background(), dest)
	require.NoError(t, err)

	resolver.mu.Lock()
	resolver.cursor = Cursor("9")
	resolver.mu.Unlock()

	reg.Invalidate(dest)

	cur, err := reg.Resolve(context.Background(), dest)
	require.NoError(t, err)
	require.Equal(t, Cursor("9"), cur, "resolve after invalidate refetches")

	create, cursor := resolver.calls()
	require.Equal(t, 1, create, "invalidate must not force re-creation")
	require.Equal(t, 2, cursor)
}

func TestRegistryForgetForcesRecreation(t *testing.T) {
	resolver := &fakeResolver{cursor: Cursor("5")}
	reg := newTestRegistry(t, resolver)
	dest := NewDestination("api", "deleted")

	_, err := reg.Resolve(context.Background(), dest)
	require.NoError(t, err)

	reg.Forget(dest)

	_, err = reg.Resolve(context.Background(), dest)
	require.NoError(t, err)

	create, cursor := resolver.calls()
	require.Equal(t, 2, create, "forget forces re-creation")
	require.Equal(t, 2, cursor)
}

func TestRegistryAcquireSerializesDeliveries(t *testing.T) {
	reg := newTestRegistry(t, &fakeResolver{})
	dest := NewDestination("api", "busy")

	release := reg.Acquire(dest)

	acquired := make(chan struct{})
	go func() {
		second := reg.Acquire(dest)
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("Second acquire must block while the first holds the lock")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Second acquire should proceed after release")
	}
}

func TestRegistryAcquireIndependentDestinations(t *testing.T) {
	reg := newTestRegistry(t, &fakeResolver{})

	release := reg.Acquire(NewDestination("api", "a"))
	defer release()

	done := make(chan struct{})
	go func() {
		other := reg.Acquire(NewDestination("api", "b"))
		other()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Different destinations must not share the in-flight lock")
	}
}
