// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package lateststate holds the most recent Reading of every machine
// that has reported since the process started. It is a volatile view
// for dashboards and alerting; the reading store is the record.
package lateststate

import (
	"sort"
	"sync"

	"github.com/plantwatch/plantwatch/lib/schema/telemetry"
)

// Cache maps machine_id to that machine's latest Reading. One mutex
// guards the whole map, so readers never observe a partially replaced
// entry. The zero value is not usable; call New.
type Cache struct {
	mu       sync.RWMutex
	readings map[string]telemetry.Reading
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{readings: make(map[string]telemetry.Reading)}
}

// Update replaces the entry for reading.MachineID. Concurrent updates
// for one machine are last-writer-wins.
func (c *Cache) Update(reading telemetry.Reading) {
	c.mu.Lock()
	c.readings[reading.MachineID] = reading
	c.mu.Unlock()
}

// Get returns the latest Reading for machineID, or false if the
// machine has not reported.
func (c *Cache) Get(machineID string) (telemetry.Reading, bool) {
	c.mu.RLock()
	reading, ok := c.readings[machineID]
	c.mu.RUnlock()
	return reading, ok
}

// Snapshot returns a copy of every entry, sorted by machine_id.
func (c *Cache) Snapshot() []telemetry.Reading {
	c.mu.RLock()
	readings := make([]telemetry.Reading, 0, len(c.readings))
	for _, reading := range c.readings {
		readings = append(readings, reading)
	}
	c.mu.RUnlock()

	sort.Slice(readings, func(i, j int) bool {
		return readings[i].MachineID < readings[j].MachineID
	})
	return readings
}

// Len returns the number of machines in the cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.readings)
}
