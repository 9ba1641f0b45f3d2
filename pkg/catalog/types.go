// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package catalog

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a decoded field value: an integer, or a float once scaled
type Value struct {
	Int     int64
	Float   float64
	IsFloat bool
}

// IntValue returns an integer value
func IntValue(v int64) Value { return Value{Int: v} }

// FloatValue returns a floating-point value
func FloatValue(v float64) Value { return Value{Float: v, IsFloat: true} }

// Float64 returns the value as float64
func (v Value) Float64() float64 {
	if v.IsFloat {
		return v.Float
	}
	return float64(v.Int)
}

// Interface returns the value as int64 or float64
func (v Value) Interface() any {
	if v.IsFloat {
		return v.Float
	}
	return v.Int
}

// String formats the value
func (v Value) String() string {
	if v.IsFloat {
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	}
	return strconv.FormatInt(v.Int, 10)
}

// MarshalJSON encodes the value as a JSON number. NaN and infinities have no
// JSON form and are an error.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsFloat && (math.IsNaN(v.Float) || math.IsInf(v.Float, 0)) {
		return nil, fmt.Errorf("value %s has no JSON encoding", v)
	}
	return []byte(v.String()), nil
}

// UnmarshalJSON decodes a JSON number. Numbers without a fraction or
// exponent decode as integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			*v = IntValue(i)
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid value %s: %w", s, err)
	}
	*v = FloatValue(f)
	return nil
}

// DataType reads a raw value from the start of a byte slice
type DataType struct {
	Name   string
	Size   int
	Decode func(b []byte) (Value, error)
}

var dataTypes = map[string]DataType{}

func register(dt DataType, aliases ...string) {
	dataTypes[dt.Name] = dt
	for _, a := range aliases {
		dataTypes[a] = dt
	}
}

func init() {
	register(DataType{Name: "u8", Size: 1, Decode: func(b []byte) (Value, error) {
		return IntValue(int64(b[0])), nil
	}}, "uint8", "uchar")
	register(DataType{Name: "s8", Size: 1, Decode: func(b []byte) (Value, error) {
		return IntValue(int64(int8(b[0]))), nil
	}}, "int8", "data1b")
	register(DataType{Name: "u16le", Size: 2, Decode: func(b []byte) (Value, error) {
		return IntValue(int64(binary.LittleEndian.Uint16(b))), nil
	}}, "uint16le", "uint")
	register(DataType{Name: "u16be", Size: 2, Decode: func(b []byte) (Value, error) {
		return IntValue(int64(binary.BigEndian.Uint16(b))), nil
	}}, "uint16be")
	register(DataType{Name: "s16le", Size: 2, Decode: func(b []byte) (Value, error) {
		return IntValue(int64(int16(binary.LittleEndian.Uint16(b)))), nil
	}}, "int16le", "sint")
	register(DataType{Name: "s16be", Size: 2, Decode: func(b []byte) (Value, error) {
		return IntValue(int64(int16(binary.BigEndian.Uint16(b)))), nil
	}}, "int16be")
	register(DataType{Name: "u32le", Size: 4, Decode: func(b []byte) (Value, error) {
		return IntValue(int64(binary.LittleEndian.Uint32(b))), nil
	}}, "uint32le", "ulong")
	register(DataType{Name: "u32be", Size: 4, Decode: func(b []byte) (Value, error) {
		return IntValue(int64(binary.BigEndian.Uint32(b))), nil
	}}, "uint32be")
	register(DataType{Name: "s32le", Size: 4, Decode: func(b []byte) (Value, error) {
		return IntValue(int64(int32(binary.LittleEndian.Uint32(b)))), nil
	}}, "int32le", "slong")
	register(DataType{Name: "s32be", Size: 4, Decode: func(b []byte) (Value, error) {
		return IntValue(int64(int32(binary.BigEndian.Uint32(b)))), nil
	}}, "int32be")
	register(DataType{Name: "bcd", Size: 1, Decode: decodeBCD})

	// eBUS standard fractional types
	register(DataType{Name: "data1c", Size: 1, Decode: func(b []byte) (Value, error) {
		return FloatValue(float64(b[0]) / 2), nil
	}})
	register(DataType{Name: "data2b", Size: 2, Decode: func(b []byte) (Value, error) {
		return FloatValue(float64(int16(binary.LittleEndian.Uint16(b))) / 256), nil
	}})
	register(DataType{Name: "data2c", Size: 2, Decode: func(b []byte) (Value, error) {
		return FloatValue(float64(int16(binary.LittleEndian.Uint16(b))) / 16), nil
	}})
}

func decodeBCD(b []byte) (Value, error) {
	hi, lo := b[0]>>4, b[0]&0x0F
	if hi > 9 || lo > 9 {
		return Value{}, fmt.Errorf("invalid BCD byte 0x%02X", b[0])
	}
	return IntValue(int64(hi)*10 + int64(lo)), nil
}

// LookupType returns the data type registered under name (case-insensitive)
func LookupType(name string) (DataType, bool) {
	dt, ok := dataTypes[strings.ToLower(strings.TrimSpace(name))]
	return dt, ok
}
