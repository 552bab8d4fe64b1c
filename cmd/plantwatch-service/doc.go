// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Plantwatch-service ingests telemetry readings from plant machines.
//
// Machines open a TCP connection to ingest.listen, write one JSON (or
// CBOR) reading, and close. Each valid reading is stamped with the
// ingestion time, appended to the SQLite store, recorded as its
// machine's latest state, and optionally published to Kafka. Invalid
// messages are logged with a payload digest and dropped; the sender
// gets no acknowledgement either way.
//
// # Query surfaces
//
// The query socket (query.socket_path) speaks the CBOR request/response
// protocol used by the plantwatch CLI, with actions:
//
//   - status: ingestion counters, active sessions, uptime
//   - latest: the cached latest reading of one machine
//   - recent: the newest stored readings of one machine
//   - range: stored readings since a time, filtered by name prefix
//   - machines: known machines, filtered by name prefix
//
// The HTTP API (api.listen) serves the same queries as JSON plus
// Prometheus metrics on /metrics.
//
// # Shutdown
//
// SIGINT or SIGTERM stops accepting connections. Sessions that already
// hold a message finish storing it, the feed delivers what was queued,
// and the store is closed last.
package main
