// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Plantwatch-sender plays the part of a plant machine: it connects to
// the ingestion listener, writes one reading, and closes the
// connection, exactly as the field units do.
//
// The reading comes from flags:
//
//	plantwatch-sender --machine-id M1 --machine-name K2-M1 \
//	    --temperature 50 --humidity 80 --current-r 7 --current-y 3 \
//	    --current-b 2 --power-factor 0.9
//
// or from a file holding the JSON message (--file, "-" for stdin),
// which is sent byte for byte so malformed messages can be replayed.
// --cbor re-encodes the message as CBOR. --count and --interval repeat
// the send, one connection per message.
package main
