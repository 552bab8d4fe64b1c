// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides network helpers shared by the ingest
// listener, the query socket, and the HTTP API.
//
// Listen opens the ingest TCP listener with the socket options the
// service exposes in configuration. IsExpectedCloseError classifies
// errors produced by a peer hanging up, which sessions log at debug
// level rather than as failures. The HTTP response helpers bound body
// reads at MaxResponseSize.
package netutil
