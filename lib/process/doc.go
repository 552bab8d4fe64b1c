// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for Plantwatch
// binaries. It holds the one legitimate raw write a service binary
// makes outside its structured logger: reporting the error that ended
// run() when the logger may not exist yet.
package process
