// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/plantwatch/plantwatch/lib/schema/telemetry"
)

// statusResult is the JSON output of the status command.
type statusResult struct {
	UptimeSeconds     float64 `json:"uptime_seconds"`
	ReadingsAccepted  uint64  `json:"readings_accepted"`
	DecodeFailures    uint64  `json:"decode_failures"`
	ValidationErrors  uint64  `json:"validation_errors"`
	PersistenceErrors uint64  `json:"persistence_errors"`
	NetworkErrors     uint64  `json:"network_errors"`
	ActiveSessions    int64   `json:"active_sessions"`
	CachedMachines    int     `json:"cached_machines"`
}

func statusCommand() *command {
	return &command{
		Name:    "status",
		Summary: "Show ingestion counters and service uptime",
		Usage:   "plantwatch status [flags]",
		Run: func(ctx context.Context, flagSet *pflag.FlagSet, args []string, out *output) error {
			if err := parseArgs(flagSet, args, 0); err != nil {
				return err
			}

			ctx, cancel := out.conn.callContext(ctx)
			defer cancel()

			var status telemetry.StatusResponse
			if err := out.conn.connect().Call(ctx, "status", nil, &status); err != nil {
				return err
			}

			if out.jsonMode() {
				return out.writeJSON(statusResult{
					UptimeSeconds:     status.UptimeSeconds,
					ReadingsAccepted:  status.ReadingsAccepted,
					DecodeFailures:    status.DecodeFailures,
					ValidationErrors:  status.ValidationErrors,
					PersistenceErrors: status.PersistenceErrors,
					NetworkErrors:     status.NetworkErrors,
					ActiveSessions:    status.ActiveSessions,
					CachedMachines:    status.CachedMachines,
				})
			}

			out.println(fmt.Sprintf("Uptime:             %s", formatUptime(status.UptimeSeconds)))
			out.println(fmt.Sprintf("Readings accepted:  %d", status.ReadingsAccepted))
			out.println(fmt.Sprintf("Decode failures:    %d", status.DecodeFailures))
			out.println(fmt.Sprintf("Validation errors:  %d", status.ValidationErrors))
			out.println(fmt.Sprintf("Store failures:     %d", status.PersistenceErrors))
			out.println(fmt.Sprintf("Network errors:     %d", status.NetworkErrors))
			out.println(fmt.Sprintf("Active sessions:    %d", status.ActiveSessions))
			out.println(fmt.Sprintf("Machines reporting: %d", status.CachedMachines))
			return nil
		},
	}
}

func latestCommand() *command {
	return &command{
		Name:    "latest",
		Summary: "Show a machine's latest reading since the service started",
		Usage:   "plantwatch latest <machine-id> [flags]",
		Run: func(ctx context.Context, flagSet *pflag.FlagSet, args []string, out *output) error {
			if err := parseArgs(flagSet, args, 1); err != nil {
				return err
			}
			machineID := flagSet.Arg(0)

			ctx, cancel := out.conn.callContext(ctx)
			defer cancel()

			var response telemetry.LatestResponse
			fields := map[string]any{"machine_id": machineID}
			if err := out.conn.connect().Call(ctx, "latest", fields, &response); err != nil {
				return err
			}
			if !response.Found {
				return fmt.Errorf("no reading from machine %q since the service started", machineID)
			}

			if out.jsonMode() {
				return out.writeJSON(response.Reading)
			}
			out.println(readingTable([]telemetry.Reading{response.Reading}))
			return nil
		},
	}
}

func recentCommand() *command {
	var limit int
	return &command{
		Name:    "recent",
		Summary: "Show a machine's most recent stored readings, newest first",
		Usage:   "plantwatch recent <machine-id> [--limit N] [flags]",
		Run: func(ctx context.Context, flagSet *pflag.FlagSet, args []string, out *output) error {
			flagSet.IntVar(&limit, "limit", 100, "maximum number of readings")
			if err := parseArgs(flagSet, args, 1); err != nil {
				return err
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			ctx, cancel := out.conn.callContext(ctx)
			defer cancel()

			var response telemetry.ReadingsResponse
			fields := map[string]any{"machine_id": flagSet.Arg(0), "limit": limit}
			if err := out.conn.connect().Call(ctx, "recent", fields, &response); err != nil {
				return err
			}
			return out.readings(response.Readings)
		},
	}
}

func rangeCommand() *command {
	var since, prefix string
	return &command{
		Name:    "range",
		Summary: "Show stored readings since a time, oldest first",
		Usage:   "plantwatch range [--since 2026-03-01] [--prefix K2] [flags]",
		Run: func(ctx context.Context, flagSet *pflag.FlagSet, args []string, out *output) error {
			flagSet.StringVar(&since, "since", "", "lower bound: duration (1h, 7d), RFC3339 timestamp, or date (default: midnight a week ago)")
			flagSet.StringVar(&prefix, "prefix", "", "only machines whose name starts with this")
			if err := parseArgs(flagSet, args, 0); err != nil {
				return err
			}

			fields := map[string]any{}
			if since != "" {
				sinceTime, err := parseTimeFlag(since, time.Now())
				if err != nil {
					return err
				}
				fields["since"] = sinceTime
			}

			ctx, cancel := out.conn.callContext(ctx)
			defer cancel()

			var response telemetry.ReadingsResponse
			if prefix != "" {
				fields["name_prefix"] = prefix
			}
			if err := out.conn.connect().Call(ctx, "range", fields, &response); err != nil {
				return err
			}
			return out.readings(response.Readings)
		},
	}
}

func machinesCommand() *command {
	var prefix string
	return &command{
		Name:    "machines",
		Summary: "List machines that have stored readings",
		Usage:   "plantwatch machines [--prefix K2] [flags]",
		Run: func(ctx context.Context, flagSet *pflag.FlagSet, args []string, out *output) error {
			flagSet.StringVar(&prefix, "prefix", "", "only machines whose name starts with this")
			if err := parseArgs(flagSet, args, 0); err != nil {
				return err
			}

			ctx, cancel := out.conn.callContext(ctx)
			defer cancel()

			var response telemetry.MachinesResponse
			var fields map[string]any
			if prefix != "" {
				fields = map[string]any{"name_prefix": prefix}
			}
			if err := out.conn.connect().Call(ctx, "machines", fields, &response); err != nil {
				return err
			}

			if out.jsonMode() {
				if response.Machines == nil {
					response.Machines = []telemetry.Machine{}
				}
				return out.writeJSON(response.Machines)
			}
			if len(response.Machines) == 0 {
				out.println("no machines")
				return nil
			}
			out.println(machineTable(response.Machines))
			return nil
		},
	}
}

func (o *output) readings(readings []telemetry.Reading) error {
	if o.jsonMode() {
		if readings == nil {
			readings = []telemetry.Reading{}
		}
		return o.writeJSON(readings)
	}
	if len(readings) == 0 {
		o.println("no readings")
		return nil
	}
	o.println(readingTable(readings))
	return nil
}

// parseArgs parses flags and checks the positional argument count.
func parseArgs(flagSet *pflag.FlagSet, args []string, positional int) error {
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != positional {
		flagSet.Usage()
		return fmt.Errorf("%s: expected %d argument(s), got %d", flagSet.Name(), positional, flagSet.NArg())
	}
	return nil
}
