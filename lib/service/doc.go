// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the server scaffolding shared by the
// Plantwatch binaries:
//
//   - SocketServer: a CBOR request/response server on a Unix socket
//     with action dispatch, connection timeouts, and graceful
//     shutdown. The plantwatch-service binary serves its query
//     actions (status, latest, recent, range, machines) on one.
//   - ServiceClient: the matching client, one connection per call.
//   - HTTPServer: TCP HTTP listener lifecycle with a readiness signal
//     and graceful shutdown, used for the JSON query API.
//
// Binaries compose these in their own main function. The package
// provides building blocks, not a runtime.
//
// # Access control
//
// The query socket has no caller authentication. Access is controlled
// by the socket file's permissions, which SocketServer sets to 0660 so
// only the service user and its group can connect.
package service
