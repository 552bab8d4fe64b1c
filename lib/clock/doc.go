// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The reading store assigns ingestion timestamps from a Clock, and the
// listener and service loops use it for retry backoff and periodic
// stats. Tests construct a [FakeClock] so timestamps are exact and
// waits fire only when the test calls Advance:
//
//	fake := clock.Fake(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC))
//	store := openStore(fake)
//	fake.Advance(time.Second)
//
// Use WaitForTimers before Advance when another goroutine must
// register a wait first; it removes the race between registration and
// advancement.
package clock
