// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"errors"
	"fmt"
	"math"
)

// ValidationKind distinguishes the two ways a field can be invalid.
type ValidationKind int

const (
	// MissingField: the field is absent, null, or (for machine_id)
	// empty.
	MissingField ValidationKind = iota + 1

	// TypeMismatch: the field is present with the wrong type, or is a
	// non-finite number.
	TypeMismatch
)

func (k ValidationKind) String() string {
	switch k {
	case MissingField:
		return "missing field"
	case TypeMismatch:
		return "type mismatch"
	default:
		return fmt.Sprintf("ValidationKind(%d)", int(k))
	}
}

// Sentinels for errors.Is matching against a *ValidationError.
var (
	ErrMissingField = errors.New("missing field")
	ErrTypeMismatch = errors.New("type mismatch")
)

// ValidationError names the first offending field of a message.
type ValidationError struct {
	Field string
	Kind  ValidationKind
	// Got describes the received value's type for TypeMismatch.
	Got string
}

func (e *ValidationError) Error() string {
	if e.Kind == TypeMismatch && e.Got != "" {
		return fmt.Sprintf("%s: %q (got %s)", e.Kind, e.Field, e.Got)
	}
	return fmt.Sprintf("%s: %q", e.Kind, e.Field)
}

// Is lets errors.Is(err, ErrMissingField) and errors.Is(err,
// ErrTypeMismatch) match by kind.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrMissingField:
		return e.Kind == MissingField
	case ErrTypeMismatch:
		return e.Kind == TypeMismatch
	}
	return false
}

// Validate checks that message carries both identifier fields and all
// six measurements, and builds a Reading from them. Fields are checked
// in a fixed order (identifiers, then MeasurementFields) so the
// reported field is deterministic. Unknown fields are ignored. The
// returned Reading has a zero Timestamp.
func Validate(message Message) (Reading, error) {
	machineID, err := stringField(message, FieldMachineID)
	if err != nil {
		return Reading{}, err
	}
	if machineID == "" {
		return Reading{}, &ValidationError{Field: FieldMachineID, Kind: MissingField}
	}

	machineName, err := stringField(message, FieldMachineName)
	if err != nil {
		return Reading{}, err
	}

	var values [6]float64
	for i, field := range MeasurementFields {
		value, err := numberField(message, field)
		if err != nil {
			return Reading{}, err
		}
		values[i] = value
	}

	return Reading{
		MachineID:   machineID,
		MachineName: machineName,
		Temperature: values[0],
		Humidity:    values[1],
		CurrentR:    values[2],
		CurrentY:    values[3],
		CurrentB:    values[4],
		PowerFactor: values[5],
	}, nil
}

func stringField(message Message, field string) (string, error) {
	raw, present := message[field]
	if !present || raw == nil {
		return "", &ValidationError{Field: field, Kind: MissingField}
	}
	value, ok := raw.(string)
	if !ok {
		return "", &ValidationError{Field: field, Kind: TypeMismatch, Got: typeName(raw)}
	}
	return value, nil
}

// numberField accepts every numeric type the JSON and CBOR decoders
// produce for an any-typed target. NaN and infinities are rejected:
// SQLite stores NaN as NULL, which would not read back as a number.
func numberField(message Message, field string) (float64, error) {
	raw, present := message[field]
	if !present || raw == nil {
		return 0, &ValidationError{Field: field, Kind: MissingField}
	}

	var value float64
	switch typed := raw.(type) {
	case float64:
		value = typed
	case float32:
		value = float64(typed)
	case int64:
		value = float64(typed)
	case uint64:
		value = float64(typed)
	case int:
		value = float64(typed)
	default:
		return 0, &ValidationError{Field: field, Kind: TypeMismatch, Got: typeName(raw)}
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &ValidationError{Field: field, Kind: TypeMismatch, Got: "non-finite number"}
	}
	return value, nil
}

func typeName(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case float64, float32, int64, uint64, int:
		return "number"
	default:
		return fmt.Sprintf("%T", value)
	}
}
