// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/plantwatch/plantwatch/lib/codec"
)

// Message is a decoded but unvalidated wire message.
type Message map[string]any

// DecodeError reports bytes that do not parse as one structured
// object.
type DecodeError struct {
	// Encoding is "json" or "cbor", whichever decoder was chosen.
	Encoding string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Encoding == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Encoding, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	errEmptyMessage = errors.New("empty message")
	errNotAnObject  = errors.New("message is not an object")
)

// Decode parses raw as a single message. A leading CBOR map header
// selects the CBOR decoder; anything else is parsed as JSON. The whole
// buffer must be exactly one object: trailing data, a truncated object,
// or a non-object top-level value are all DecodeErrors.
func Decode(raw []byte) (Message, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, &DecodeError{Err: errEmptyMessage}
	}

	var message Message
	if codec.IsMapHeader(trimmed[0]) {
		if err := codec.Unmarshal(trimmed, &message); err != nil {
			return nil, &DecodeError{Encoding: "cbor", Err: err}
		}
		return message, nil
	}

	if err := json.Unmarshal(trimmed, &message); err != nil {
		return nil, &DecodeError{Encoding: "json", Err: err}
	}
	// A JSON null unmarshals into a nil map without error.
	if message == nil {
		return nil, &DecodeError{Encoding: "json", Err: errNotAnObject}
	}
	return message, nil
}
