// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Plantwatch's standard CBOR configuration.
//
// JSON is the encoding machines use on the ingest port and the encoding
// of the HTTP API. CBOR is used for the local query socket and is
// accepted on the ingest port as an alternative to JSON. Every package
// that touches CBOR goes through this package so encoding is identical
// everywhere.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct Tags
//
// Types that only travel over the query socket carry `cbor` tags.
// Types that are also rendered as JSON (Reading, the HTTP responses)
// carry `json` tags only; fxamacker/cbor falls back to `json` tags when
// `cbor` tags are absent. Never put both on one field.
package codec
