// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import "time"

// LatestRequest is the query socket request for the "latest" action:
// the cached most recent reading of one machine.
type LatestRequest struct {
	MachineID string `cbor:"machine_id"`
}

// LatestResponse is the response for "latest". Found is false when the
// machine has sent nothing since the service started.
type LatestResponse struct {
	Found   bool    `cbor:"found"`
	Reading Reading `cbor:"reading,omitempty"`
}

// RecentRequest is the request for the "recent" action.
type RecentRequest struct {
	MachineID string `cbor:"machine_id"`

	// Limit is the maximum number of readings. Default 100.
	Limit int `cbor:"limit,omitempty"`
}

// RangeRequest is the request for the "range" action.
type RangeRequest struct {
	// Since is the inclusive lower bound on ingestion time. Zero
	// means one week before the request is served.
	Since time.Time `cbor:"since,omitempty"`

	// NamePrefix restricts results to machine names starting with it,
	// e.g. a plant identifier.
	NamePrefix string `cbor:"name_prefix,omitempty"`
}

// ReadingsResponse is the response for "recent" and "range".
type ReadingsResponse struct {
	Readings []Reading `cbor:"readings"`
}

// MachinesRequest is the request for the "machines" action.
type MachinesRequest struct {
	NamePrefix string `cbor:"name_prefix,omitempty"`
}

// MachinesResponse is the response for "machines".
type MachinesResponse struct {
	Machines []Machine `cbor:"machines"`
}

// StatusResponse is the response for the "status" action.
type StatusResponse struct {
	ReadingsAccepted  uint64  `cbor:"readings_accepted"`
	DecodeFailures    uint64  `cbor:"decode_failures"`
	ValidationErrors  uint64  `cbor:"validation_errors"`
	PersistenceErrors uint64  `cbor:"persistence_errors"`
	NetworkErrors     uint64  `cbor:"network_errors"`
	ActiveSessions    int64   `cbor:"active_sessions"`
	CachedMachines    int     `cbor:"cached_machines"`
	UptimeSeconds     float64 `cbor:"uptime_seconds"`
}
