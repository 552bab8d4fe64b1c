// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry defines the Reading data model, the decoder and
// validator that turn one received message into a Reading, and the
// request and response types of the query socket.
//
// A machine sends one message per connection: a JSON object (or a CBOR
// map) carrying machine_id, machine_name and six measurements. [Decode]
// parses the bytes into a [Message] and [Validate] checks it, returning
// a [Reading] with a zero Timestamp. The store assigns the timestamp at
// commit.
//
// Errors are typed so the ingest session can count rejections by
// cause: [DecodeError] for bytes that are not a structured object, and
// [ValidationError] for a missing or mistyped field. ValidationError
// matches [ErrMissingField] or [ErrTypeMismatch] with errors.Is.
//
// This package has no I/O and depends only on lib/codec.
package telemetry
