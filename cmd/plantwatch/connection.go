// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/plantwatch/plantwatch/lib/service"
)

// connection holds the flags every command shares.
type connection struct {
	SocketPath string
	Timeout    time.Duration
	OutputJSON bool
}

// defaultSocketPath mirrors the service's query.socket_path default.
func defaultSocketPath() string {
	if path := os.Getenv("PLANTWATCH_SOCKET"); path != "" {
		return path
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = "/tmp"
	}
	return filepath.Join(runtimeDir, "plantwatch", "query.sock")
}

// AddFlags registers the connection and output flags.
func (c *connection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.SocketPath, "socket", defaultSocketPath(), "query socket of the plantwatch service (env: PLANTWATCH_SOCKET)")
	flagSet.DurationVar(&c.Timeout, "timeout", 30*time.Second, "timeout for the query")
	flagSet.BoolVar(&c.OutputJSON, "json", false, "output as JSON even on a terminal")
}

func (c *connection) connect() *service.ServiceClient {
	return service.NewServiceClient(c.SocketPath)
}

func (c *connection) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.Timeout)
}
