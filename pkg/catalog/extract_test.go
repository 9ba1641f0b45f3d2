// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package catalog

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func factor(f float64) *float64 { return &f }

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		payload []byte
		want    Value
	}{
		{"u8 scaled", Field{DataType: "u8", Factor: factor(0.5)}, []byte{0x64}, FloatValue(50.0)},
		{"u16le unscaled", Field{DataType: "u16le", Factor: factor(1.0)}, []byte{0x10, 0x00}, IntValue(16)},
		{"u16le default factor", Field{DataType: "u16le"}, []byte{0x34, 0x12}, IntValue(0x1234)},
		{"u16be", Field{DataType: "u16be"}, []byte{0x12, 0x34}, IntValue(0x1234)},
		{"uint8 alias", Field{DataType: "UINT8"}, []byte{0xFF}, IntValue(255)},
		{"offset", Field{Offset: 2, DataType: "u8"}, []byte{0x01, 0x02, 0x03}, IntValue(3)},
		{"s8 negative", Field{DataType: "s8"}, []byte{0xFE}, IntValue(-2)},
		{"s16le negative", Field{DataType: "s16le"}, []byte{0xFF, 0xFF}, IntValue(-1)},
		{"s16be", Field{DataType: "s16be"}, []byte{0xFF, 0x38}, IntValue(-200)},
		{"u32le", Field{DataType: "u32le"}, []byte{0x78, 0x56, 0x34, 0x12}, IntValue(0x12345678)},
		{"u32be", Field{DataType: "u32be"}, []byte{0x12, 0x34, 0x56, 0x78}, IntValue(0x12345678)},
		{"s32le", Field{DataType: "s32le"}, []byte{0xFE, 0xFF, 0xFF, 0xFF}, IntValue(-2)},
		{"s32be", Field{DataType: "s32be"}, []byte{0xFF, 0xFF, 0xFF, 0xFD}, IntValue(-3)},
		{"bcd", Field{DataType: "bcd"}, []byte{0x42}, IntValue(42)},
		{"data1c", Field{DataType: "data1c"}, []byte{0x51}, FloatValue(40.5)},
		{"data2b", Field{DataType: "data2b"}, []byte{0x80, 0x15}, FloatValue(21.5)},
		{"data2c", Field{DataType: "data2c"}, []byte{0x58, 0x01}, FloatValue(21.5)},
		{"negative factor", Field{DataType: "u8", Factor: factor(-1)}, []byte{0x02}, FloatValue(-2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.field, tt.payload)
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Extract = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		payload []byte
		want    error
	}{
		{"unknown type", Field{DataType: "float32"}, []byte{0, 0, 0, 0}, ErrUnsupportedType},
		{"empty type", Field{}, []byte{0}, ErrUnsupportedType},
		{"offset past end", Field{Offset: 1, DataType: "u8"}, []byte{0x01}, ErrOutOfRange},
		{"short u16", Field{DataType: "u16le"}, []byte{0x01}, ErrOutOfRange},
		{"empty payload", Field{DataType: "u8"}, nil, ErrOutOfRange},
		{"offset near max int", Field{Offset: math.MaxInt, DataType: "u16le"}, []byte{0x01, 0x02}, ErrOutOfRange},
		{"offset max int minus one", Field{Offset: math.MaxInt - 1, DataType: "u32le"}, []byte{0x01, 0x02}, ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.field, tt.payload)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Extract(Field{DataType: "bcd"}, []byte{0x1A}); err == nil {
		t.Error("invalid BCD accepted")
	}
}

func TestValue_JSON(t *testing.T) {
	fv := []FieldValue{
		{Name: "a", Value: IntValue(16)},
		{Name: "b", Value: FloatValue(50), Unit: "%"},
		{Name: "c", Value: FloatValue(0.25)},
	}
	out, err := json.Marshal(fv)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `[{"name":"a","value":16},{"name":"b","value":50,"unit":"%"},{"name":"c","value":0.25}]`
	if string(out) != want {
		t.Errorf("json = %s\nwant   %s", out, want)
	}

	if IntValue(3).Interface() != int64(3) {
		t.Error("int Interface")
	}
	if FloatValue(1.5).Interface() != 1.5 {
		t.Error("float Interface")
	}

	for _, f := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		if _, err := json.Marshal(FloatValue(f)); err == nil {
			t.Errorf("Marshal(%v) succeeded, want error", f)
		}
	}
}
