// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package catalog

import "testing"

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"*", "", true},
		{"*", "B511", true},
		{"", "08", true},
		{"^4B", "4B01", true},
		{"^4B", "3A01", false},
		{"^4B", "4", false},
		{"^", "ANY", true},
		{"4*01", "4F01", true},
		{"4*01", "4F02", false},
		{"4*01", "4F011", false},
		{"4*01", "401", false},
		{"B511", "B511", true},
		{"b511", "B511", true},
		{"08", "8", false},
		{"**", "FE", true},
		{"**", "FED", false},
		{"0*", "08", true},
		{"0*", "18", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.value, func(t *testing.T) {
			if got := MatchPattern(tt.pattern, tt.value); got != tt.want {
				t.Errorf("MatchPattern(%q, %q) = %v, want %v", tt.pattern, tt.value, got, tt.want)
			}
		})
	}
}

func TestCompilePattern(t *testing.T) {
	valid := map[string]string{
		"":      "*",
		" * ":   "*",
		"^4b":   "^4B",
		"4*01":  "4*01",
		"abCD":  "ABCD",
		"^":     "^",
		"0123":  "0123",
		"*9*F*": "*9*F*",
	}
	for in, want := range valid {
		p, err := CompilePattern(in)
		if err != nil {
			t.Errorf("CompilePattern(%q) failed: %v", in, err)
			continue
		}
		if p.String() != want {
			t.Errorf("CompilePattern(%q) = %q, want %q", in, p.String(), want)
		}
	}

	for _, in := range []string{"G1", "^4*", "0x08", "B5 11", "^^"} {
		if _, err := CompilePattern(in); err == nil {
			t.Errorf("CompilePattern(%q) accepted", in)
		}
	}

	if MatchPattern("ZZ", "ZZ") {
		t.Error("invalid pattern matched")
	}
}
