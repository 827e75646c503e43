// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Overview
//
// This package offers a minimal retry mechanism with exponential backoff, designed to
// handle transient failures in network delivery, stream creation, and cursor fetches.
//
// # Core Functions
//
//   - Do: Execute function with retry and exponential backoff
//   - DoWithResult: Execute function with retry, returns both result and error
//   - Delay: The backoff schedule itself, exposed as a pure function
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Quick(): 10 attempts, 50ms-1s delay (stream creation, startup)
//   - Persistent(): 30 attempts, 200ms-10s delay (critical resources)
//
// # Usage Examples
//
// Basic retry with defaults:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return snk.CreateStream(ctx, dest, opts)
//	})
//
// Retry with result:
//
//	cursor, err := retry.DoWithResult(ctx, retry.Quick(), func() (stream.Cursor, error) {
//	    return snk.Cursor(ctx, dest)
//	})
//
// Inspecting the schedule (e.g. in tests, with a seeded source):
//
//	rng := rand.New(rand.NewSource(42))
//	d := retry.Delay(cfg, 2, rng) // backoff after the second failed attempt
//
// # Design Philosophy
//
// This package is intentionally minimal:
//
//   - No circuit breakers (use a separate layer if needed)
//   - No metrics collection (use instrumentation at call site)
//   - No complex error classification (caller decides what to retry)
//   - Just exponential backoff with jitter
//
// Errors the caller knows are hopeless are wrapped with NonRetryable to
// stop the loop immediately.
//
// # Context Cancellation
//
// All retry operations respect context cancellation and will immediately stop retrying
// when the context is cancelled, either during operation execution or during backoff delay.
//
// # Thread Safety
//
// All functions are safe for concurrent use. The jitter mechanism uses a thread-safe
// random source to avoid contention.
package retry
