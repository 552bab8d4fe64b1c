// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import "time"

// TimestampLayout is the persisted form of an ingestion timestamp:
// local time in the store's configured zone, second resolution, no
// offset. Within one zone the layout sorts lexicographically in
// chronological order.
const TimestampLayout = "2006-01-02 15:04:05"

// Message field names, shared by the JSON and CBOR wire encodings.
const (
	FieldMachineID   = "machine_id"
	FieldMachineName = "machine_name"
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldCurrentR    = "current_r"
	FieldCurrentY    = "current_y"
	FieldCurrentB    = "current_b"
	FieldPowerFactor = "power_factor"
)

// MeasurementFields lists the numeric fields in persisted column order.
var MeasurementFields = []string{
	FieldTemperature,
	FieldHumidity,
	FieldCurrentR,
	FieldCurrentY,
	FieldCurrentB,
	FieldPowerFactor,
}

// Reading is one telemetry sample from one machine. It is a value type;
// copies are independent and nothing mutates a Reading once the store
// has stamped it.
type Reading struct {
	MachineID   string `json:"machine_id"`
	MachineName string `json:"machine_name"`

	// Timestamp is the ingestion time assigned by the store, truncated
	// to the second, in the store's zone. Zero until the reading has
	// been appended.
	Timestamp time.Time `json:"ingestion_timestamp"`

	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	CurrentR    float64 `json:"current_r"`
	CurrentY    float64 `json:"current_y"`
	CurrentB    float64 `json:"current_b"`
	PowerFactor float64 `json:"power_factor"`
}

// ReportWindowStart returns the default lower bound of a range query:
// midnight, in location, of the calendar day one week before now. A
// weekly report therefore covers whole days.
func ReportWindowStart(now time.Time, location *time.Location) time.Time {
	day := now.In(location).AddDate(0, 0, -7)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, location)
}

// Machine is a distinct (machine_id, machine_name) pair seen by the
// store.
type Machine struct {
	MachineID   string `json:"machine_id"`
	MachineName string `json:"machine_name"`
}
