// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"context"
	"fmt"
	"net"
	"syscall"
)

// ListenOptions are the socket options applied by Listen.
type ListenOptions struct {
	// ReusePort sets SO_REUSEPORT so several service processes can
	// bind the same ingest address and let the kernel spread
	// connections across them.
	ReusePort bool
}

// Listen opens a TCP listener on address with the given options.
func Listen(ctx context.Context, address string, options ListenOptions) (net.Listener, error) {
	listenConfig := net.ListenConfig{
		Control: func(network, address string, rawConn syscall.RawConn) error {
			if !options.ReusePort {
				return nil
			}
			var sockoptErr error
			err := rawConn.Control(func(fd uintptr) {
				sockoptErr = setReusePort(fd)
			})
			if err != nil {
				return err
			}
			return sockoptErr
		},
	}
	listener, err := listenConfig.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("netutil: listening on %s: %w", address, err)
	}
	return listener, nil
}
