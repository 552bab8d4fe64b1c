// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest accepts telemetry from machines on a TCP port.
//
// The protocol is one message per connection with no framing and no
// reply: a machine connects, writes a single JSON object (or CBOR map)
// and disconnects. [Listener.Serve] accepts connections and runs one
// session per connection. A session makes a single read of up to
// BufferSize bytes, decodes and validates the bytes as a reading,
// appends it to the store, and on success replaces the machine's
// entry in the latest-state cache and offers the stored reading to the
// feed. The connection is always closed, and nothing is sent back.
//
// A message that fails to decode or validate produces no store write
// and no cache update. Store failures are logged and counted, never
// retried. No failure in one session affects any other session or the
// accept loop.
//
// Concurrency is bounded by MaxSessions: once that many sessions are
// running, the accept loop waits for one to finish before accepting
// again, leaving further connections in the kernel backlog. Zero
// leaves concurrency unbounded. Each session's read is bounded by
// ReadTimeout unless it is zero.
//
// Outcomes are counted twice: in [Stats], read by the query socket's
// status action, and in Prometheus metrics when [Metrics] are
// configured.
package ingest
