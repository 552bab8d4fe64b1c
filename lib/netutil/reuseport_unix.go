// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package netutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func setReusePort(fd uintptr) error {
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		return fmt.Errorf("setting SO_REUSEPORT: %w", err)
	}
	return nil
}
