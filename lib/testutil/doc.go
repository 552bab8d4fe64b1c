// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Plantwatch
// packages.
//
// [RequireReceive] and [RequireClosed] wrap the
// select-with-timeout pattern so individual tests do not call
// time.After directly. [Eventually] polls a condition that another
// goroutine will make true, such as a counter updated after a
// connection closes.
//
// [SocketDir] creates a short temporary directory for Unix domain
// sockets, whose paths are limited to 108 bytes (sun_path). t.TempDir
// can exceed that under deeply nested TMPDIRs.
//
// [UniqueID] generates distinct machine identifiers for tests that
// share a store.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
