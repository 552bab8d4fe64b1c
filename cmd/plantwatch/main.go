// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/plantwatch/plantwatch/lib/process"
	"github.com/plantwatch/plantwatch/lib/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

// command is one plantwatch subcommand.
type command struct {
	Name    string
	Summary string
	Usage   string

	// Run parses args with flagSet (already holding the connection
	// flags) and executes the command.
	Run func(ctx context.Context, flagSet *pflag.FlagSet, args []string, out *output) error
}

func commands() map[string]*command {
	list := []*command{
		statusCommand(),
		latestCommand(),
		recentCommand(),
		rangeCommand(),
		machinesCommand(),
	}
	byName := make(map[string]*command, len(list))
	for _, c := range list {
		byName[c.Name] = c
	}
	return byName
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		printUsage(stderr)
		return nil
	}
	if args[0] == "--version" {
		version.Fprint(stdout, "plantwatch")
		return nil
	}

	cmd, ok := commands()[args[0]]
	if !ok {
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	flagSet := pflag.NewFlagSet("plantwatch "+cmd.Name, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "%s\n\nUsage:\n  %s\n\nFlags:\n%s", cmd.Summary, cmd.Usage, flagSet.FlagUsages())
	}

	var conn connection
	conn.AddFlags(flagSet)
	out := &output{writer: stdout, conn: &conn}

	err := cmd.Run(ctx, flagSet, args[1:], out)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "plantwatch queries the Plantwatch ingestion service.\n\nCommands:\n")
	byName := commands()
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, byName[name].Summary)
	}
	fmt.Fprintf(w, "\nRun 'plantwatch <command> --help' for command flags.\n")
}
