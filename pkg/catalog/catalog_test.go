// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testCatalog = `
appliance: vaillant
bus: ebus
circuits:
  - name: boiler
    messages:
      - comment: flow temperature
        request_match: {src: "*", dst: "08", pbsb: "B511", data: "^01"}
        response_map:
          - {field_name: flow_temp, field_offset: 0, data_type: data1c, unit: "°C"}
          - {field_name: return_temp, field_offset: 1, data_type: data1c, unit: "°C"}
      - comment: operational data
        request_match: {src: "10", dst: "FE", pbsb: "B516", data: "*"}
        request_map:
          - {field_name: outside_temp, field_offset: 2, data_type: data2b, unit: "°C"}
  - name: heating
    messages:
      - comment: status
        request_match: {pbsb: "^B5"}
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if c.Appliance != "vaillant" || c.Bus != "ebus" {
		t.Errorf("header = %q/%q", c.Appliance, c.Bus)
	}
	if len(c.Definitions) != 3 {
		t.Fatalf("definitions = %d, want 3", len(c.Definitions))
	}
	if c.Definitions[2].Circuit != "heating" {
		t.Errorf("definition 2 circuit = %q", c.Definitions[2].Circuit)
	}
	if c.FieldCount() != 3 {
		t.Errorf("FieldCount = %d, want 3", c.FieldCount())
	}
	if got := c.UnsupportedTypes(); len(got) != 0 {
		t.Errorf("UnsupportedTypes = %v", got)
	}

	f := c.Definitions[0].Message.ResponseMap[0]
	if f.Scale() != 1.0 {
		t.Errorf("default factor = %v, want 1.0", f.Scale())
	}
}

func TestParse_JSON(t *testing.T) {
	doc := `{"appliance": "a", "bus": "ebus", "circuits": [{"name": "c", "messages": [
		{"comment": "m", "request_match": {"src": "*", "dst": "*", "pbsb": "*", "data": "*"},
		 "request_map": [{"field_name": "x", "field_offset": 0, "data_type": "u8", "factor": 0.5, "unit": ""}]}]}]}`
	c, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := c.Definitions[0].Message.RequestMap[0].Scale(); got != 0.5 {
		t.Errorf("factor = %v, want 0.5", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"no circuits", "appliance: x\n"},
		{"unknown key", "circuits:\n  - name: a\n    colour: red\n"},
		{"missing circuit name", "circuits:\n  - messages: []\n"},
		{"bad pattern", "circuits:\n  - name: a\n    messages:\n      - request_match: {src: \"XY\"}\n"},
		{"bad prefix", "circuits:\n  - name: a\n    messages:\n      - request_match: {pbsb: \"^B*\"}\n"},
		{"missing field name", "circuits:\n  - name: a\n    messages:\n      - request_map: [{field_offset: 0, data_type: u8}]\n"},
		{"negative offset", "circuits:\n  - name: a\n    messages:\n      - request_map: [{field_name: x, field_offset: -1, data_type: u8}]\n"},
		{"offset past max length", "circuits:\n  - name: a\n    messages:\n      - request_map: [{field_name: x, field_offset: 16, data_type: u8}]\n"},
		{"offset max int", "circuits:\n  - name: a\n    messages:\n      - response_map: [{field_name: x, field_offset: 9223372036854775807, data_type: u16le}]\n"},
		{"infinite factor", "circuits:\n  - name: a\n    messages:\n      - request_map: [{field_name: x, field_offset: 0, data_type: u8, factor: .inf}]\n"},
		{"nan factor", "circuits:\n  - name: a\n    messages:\n      - request_map: [{field_name: x, field_offset: 0, data_type: u8, factor: .nan}]\n"},
		{"malformed yaml", "circuits: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Errorf("err = %v, want ErrInvalidCatalog", err)
			}
		})
	}
}

func TestUnsupportedTypes(t *testing.T) {
	doc := `
circuits:
  - name: a
    messages:
      - request_map:
          - {field_name: x, field_offset: 0, data_type: float32}
          - {field_name: y, field_offset: 0, data_type: u8}
          - {field_name: z, field_offset: 1, data_type: float32}
`
	c, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got := c.UnsupportedTypes()
	if len(got) != 1 || got[0] != "float32" {
		t.Errorf("UnsupportedTypes = %v, want [float32]", got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(c.Definitions) != 3 {
		t.Errorf("definitions = %d", len(c.Definitions))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_ExampleCatalog(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "examples", "vaillant.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(c.Definitions) != 4 {
		t.Errorf("definitions = %d, want 4", len(c.Definitions))
	}
	if u := c.UnsupportedTypes(); len(u) != 0 {
		t.Errorf("unsupported types = %v", u)
	}
}
