// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package catalog

import (
	"errors"
	"fmt"
)

// Extraction errors
var (
	ErrUnsupportedType = errors.New("unsupported data type")
	ErrOutOfRange      = errors.New("field out of range")
)

// FieldValue is one decoded, scaled field
type FieldValue struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// Extract decodes a single field from payload and applies its factor. A
// factor of exactly 1.0 keeps the raw integer.
func Extract(f Field, payload []byte) (Value, error) {
	dt, ok := LookupType(f.DataType)
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrUnsupportedType, f.DataType)
	}
	if f.Offset < 0 || f.Offset > len(payload)-dt.Size {
		return Value{}, fmt.Errorf("%w: %s at offset %d needs %d bytes, payload has %d",
			ErrOutOfRange, dt.Name, f.Offset, dt.Size, len(payload))
	}

	raw, err := dt.Decode(payload[f.Offset : f.Offset+dt.Size])
	if err != nil {
		return Value{}, err
	}

	factor := f.Scale()
	if factor == 1.0 {
		return raw, nil
	}
	return FloatValue(raw.Float64() * factor), nil
}
