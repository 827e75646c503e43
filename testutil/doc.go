// Package testutil provides test doubles and data builders shared by
// the package tests.
//
// MockSink wraps the in-memory sink with call recording, overlap
// detection, and per-operation overrides, so delivery tests can script
// failures while keeping realistic cursor behavior underneath. The
// event builders produce deterministic batches of known size and
// timing.
package testutil
