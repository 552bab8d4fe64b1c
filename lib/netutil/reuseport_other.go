// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package netutil

import "errors"

func setReusePort(uintptr) error {
	return errors.New("SO_REUSEPORT is not supported on this platform")
}
