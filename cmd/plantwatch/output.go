// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/plantwatch/plantwatch/lib/schema/telemetry"
)

// Highlight thresholds for table output.
const (
	temperatureLimit = 45
	humidityLimit    = 75
	currentLimit     = 6
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle      = lipgloss.NewStyle().Padding(0, 1)
	highlightStyle = cellStyle.Foreground(lipgloss.Color("9")).Bold(true)
)

type output struct {
	writer io.Writer
	conn   *connection
}

// jsonMode reports whether results are written as JSON: when asked for,
// or when stdout is not a terminal.
func (o *output) jsonMode() bool {
	if o.conn.OutputJSON {
		return true
	}
	file, ok := o.writer.(*os.File)
	return !ok || !term.IsTerminal(int(file.Fd()))
}

func (o *output) writeJSON(value any) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func (o *output) println(text string) {
	fmt.Fprintln(o.writer, text)
}

var readingHeaders = []string{
	"TIMESTAMP", "MACHINE", "NAME", "TEMP", "HUMIDITY",
	"I_R", "I_Y", "I_B", "PF",
}

// readingTable renders readings as a bordered table, highlighting
// values over the plant's alarm thresholds.
func readingTable(readings []telemetry.Reading) string {
	rows := make([][]string, len(readings))
	for i, reading := range readings {
		rows[i] = []string{
			reading.Timestamp.Format(telemetry.TimestampLayout),
			reading.MachineID,
			reading.MachineName,
			formatValue(reading.Temperature),
			formatValue(reading.Humidity),
			formatValue(reading.CurrentR),
			formatValue(reading.CurrentY),
			formatValue(reading.CurrentB),
			formatValue(reading.PowerFactor),
		}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(readingHeaders...).
		Rows(rows...).
		StyleFunc(func(row, column int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(readings) && overLimit(readings[row], column) {
				return highlightStyle
			}
			return cellStyle
		}).
		String()
}

// overLimit reports whether the value in column of reading is above
// its alarm threshold.
func overLimit(reading telemetry.Reading, column int) bool {
	switch readingHeaders[column] {
	case "TEMP":
		return reading.Temperature > temperatureLimit
	case "HUMIDITY":
		return reading.Humidity > humidityLimit
	case "I_R":
		return reading.CurrentR > currentLimit
	case "I_Y":
		return reading.CurrentY > currentLimit
	case "I_B":
		return reading.CurrentB > currentLimit
	}
	return false
}

func machineTable(machines []telemetry.Machine) string {
	rows := make([][]string, len(machines))
	for i, machine := range machines {
		rows[i] = []string{machine.MachineID, machine.MachineName}
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("MACHINE", "NAME").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func formatValue(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

// formatUptime formats seconds as a human-readable uptime string.
func formatUptime(seconds float64) string {
	duration := time.Duration(seconds * float64(time.Second))
	days := int(duration / (24 * time.Hour))
	hours := int((duration % (24 * time.Hour)) / time.Hour)
	minutes := int((duration % time.Hour) / time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// parseTimeFlag parses a --since value. Accepts Go durations ("1h",
// "30m") and day suffixes ("7d"), both meaning that long before now,
// RFC 3339 timestamps, and dates ("2026-03-01", local midnight).
func parseTimeFlag(value string, now time.Time) (time.Time, error) {
	if strings.HasSuffix(value, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
		if err == nil && days > 0 {
			return now.Add(-time.Duration(days) * 24 * time.Hour), nil
		}
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return now.Add(-duration), nil
	}

	if timestamp, err := time.Parse(time.RFC3339, value); err == nil {
		return timestamp, nil
	}

	if date, err := time.ParseInLocation(time.DateOnly, value, now.Location()); err == nil {
		return date, nil
	}

	return time.Time{}, fmt.Errorf("invalid time %q: expected duration (1h, 7d), RFC3339 timestamp, or date (2006-01-02)", value)
}
