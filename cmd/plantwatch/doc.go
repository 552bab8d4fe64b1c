// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Plantwatch queries a running plantwatch-service over its query
// socket.
//
//	plantwatch status
//	plantwatch latest M1
//	plantwatch recent M1 --limit 20
//	plantwatch range --since 7d --prefix K2
//	plantwatch machines --prefix K2
//
// Output is a table when stdout is a terminal and JSON otherwise;
// --json forces JSON. In tables, temperatures above 45, humidity above
// 75, and phase currents above 6 are highlighted.
//
// The socket path comes from --socket, then PLANTWATCH_SOCKET, then
// the service's default location.
package main
