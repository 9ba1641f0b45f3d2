// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel accepted an unknown level")
	}
}

func TestNewWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	logger.Info().Msg("hidden")
	logger.Warn().Str("reason", "checksum_mismatch").Msg("telegram dropped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["reason"] != "checksum_mismatch" || entry["app"] != "ebustat" || entry["level"] != "warn" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, "info", "text")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	logger.Info().Msg("connected")
	if !strings.Contains(buf.String(), "connected") {
		t.Errorf("output = %q", buf.String())
	}
	if strings.HasPrefix(buf.String(), "{") {
		t.Error("text format produced JSON")
	}
}

func TestNewWriter_BadFormat(t *testing.T) {
	if _, err := NewWriter(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Error("NewWriter accepted an unknown format")
	}
}
