// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package readingstore

import "fmt"

// PersistenceError reports a failed store operation.
type PersistenceError struct {
	// Op is the store operation: "open", "append", "query recent",
	// "query range", "list machines", "latest per machine" or "count".
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("readingstore: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
