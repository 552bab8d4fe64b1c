// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpapi serves the reading store and latest-state cache as a
// read-only JSON API for dashboards and report generators.
//
// Routes:
//
//	GET /health                        liveness
//	GET /machines?prefix=              distinct machines, optional name prefix
//	GET /latest                        every cached latest reading, by machine_id
//	GET /machines/{id}/latest          cached latest reading, 404 if none
//	GET /machines/{id}/readings?limit= newest first, default 100
//	GET /readings?since=&prefix=       oldest first, default since midnight a week ago
//	GET /metrics                       Prometheus exposition
//
// The since parameter accepts RFC 3339 or a bare date (2006-01-02),
// which is read as midnight in the store's zone. Responses are gzip
// compressed when the client accepts it. Every request is logged at
// debug level and counted by route and status.
package httpapi
