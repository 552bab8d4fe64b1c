// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import "fmt"

// NetworkError reports a failed accept or read.
type NetworkError struct {
	// Op is "accept" or "read".
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ingest: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
