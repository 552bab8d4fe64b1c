// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/plantwatch/plantwatch/lib/clock"
	"github.com/plantwatch/plantwatch/lib/codec"
	"github.com/plantwatch/plantwatch/lib/ingest"
	"github.com/plantwatch/plantwatch/lib/lateststate"
	"github.com/plantwatch/plantwatch/lib/readingstore"
	"github.com/plantwatch/plantwatch/lib/schema/telemetry"
	"github.com/plantwatch/plantwatch/lib/service"
)

const (
	defaultRecentLimit = 100
	maxRecentLimit     = 10000
)

// queryService answers query socket actions from the store, the
// latest-state cache, and the listener's counters.
type queryService struct {
	store     *readingstore.Store
	cache     *lateststate.Cache
	stats     *ingest.Stats
	location  *time.Location
	clock     clock.Clock
	startedAt time.Time
}

// registerActions registers the query actions on the socket server.
func (s *queryService) registerActions(server *service.SocketServer) {
	server.Handle("status", s.handleStatus)
	server.Handle("latest", s.handleLatest)
	server.Handle("recent", s.handleRecent)
	server.Handle("range", s.handleRange)
	server.Handle("machines", s.handleMachines)
}

func (s *queryService) handleStatus(_ context.Context, _ []byte) (any, error) {
	return telemetry.StatusResponse{
		ReadingsAccepted:  s.stats.Accepted.Load(),
		DecodeFailures:    s.stats.DecodeFailures.Load(),
		ValidationErrors:  s.stats.ValidationErrors.Load(),
		PersistenceErrors: s.stats.PersistenceErrors.Load(),
		NetworkErrors:     s.stats.NetworkErrors.Load(),
		ActiveSessions:    s.stats.ActiveSessions.Load(),
		CachedMachines:    s.cache.Len(),
		UptimeSeconds:     s.clock.Now().Sub(s.startedAt).Seconds(),
	}, nil
}

func (s *queryService) handleLatest(_ context.Context, raw []byte) (any, error) {
	var request telemetry.LatestRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding latest request: %w", err)
	}
	if request.MachineID == "" {
		return nil, fmt.Errorf("machine_id is required")
	}

	reading, found := s.cache.Get(request.MachineID)
	return telemetry.LatestResponse{Found: found, Reading: reading}, nil
}

func (s *queryService) handleRecent(ctx context.Context, raw []byte) (any, error) {
	var request telemetry.RecentRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding recent request: %w", err)
	}
	if request.MachineID == "" {
		return nil, fmt.Errorf("machine_id is required")
	}

	// An omitted limit decodes as zero.
	limit := request.Limit
	switch {
	case limit < 0:
		return nil, fmt.Errorf("limit must not be negative, got %d", limit)
	case limit == 0:
		limit = defaultRecentLimit
	case limit > maxRecentLimit:
		limit = maxRecentLimit
	}

	readings, err := s.store.QueryRecent(ctx, request.MachineID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent readings: %w", err)
	}
	if readings == nil {
		readings = []telemetry.Reading{}
	}
	return telemetry.ReadingsResponse{Readings: readings}, nil
}

func (s *queryService) handleRange(ctx context.Context, raw []byte) (any, error) {
	var request telemetry.RangeRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding range request: %w", err)
	}

	since := request.Since
	if since.IsZero() {
		since = telemetry.ReportWindowStart(s.clock.Now(), s.location)
	}

	readings, err := s.store.QueryRange(ctx, since, request.NamePrefix)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	if readings == nil {
		readings = []telemetry.Reading{}
	}
	return telemetry.ReadingsResponse{Readings: readings}, nil
}

func (s *queryService) handleMachines(ctx context.Context, raw []byte) (any, error) {
	var request telemetry.MachinesRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding machines request: %w", err)
	}

	machines, err := s.store.ListMachines(ctx, request.NamePrefix)
	if err != nil {
		return nil, fmt.Errorf("listing machines: %w", err)
	}
	if machines == nil {
		machines = []telemetry.Machine{}
	}
	return telemetry.MachinesResponse{Machines: machines}, nil
}
