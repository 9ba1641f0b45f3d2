// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ebus

import "testing"

func TestChecksum_Empty(t *testing.T) {
	if crc := Checksum(); crc != 0 {
		t.Errorf("CRC of empty data should be 0, got 0x%02X", crc)
	}
}

func TestChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{"single byte is identity", []byte{0x42}, 0x42},
		{"ebusd identification request", []byte{0x10, 0x08, 0xB5, 0x11, 0x01, 0x01}, 0x89},
		{"empty 0700 request", []byte{0x03, 0x10, 0x07, 0x00, 0x00}, 0xD2},
		{"two byte response", []byte{0x02, 0x12, 0x34}, 0x87},
		{"nine byte response", []byte{0x09, 0x48, 0x7E, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00}, 0xB9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if crc := Checksum(tt.data...); crc != tt.expected {
				t.Errorf("CRC mismatch: expected 0x%02X, got 0x%02X", tt.expected, crc)
			}
		})
	}
}

func TestChecksum_Deterministic(t *testing.T) {
	data := []byte{0x10, 0xFE, 0x07, 0x00, 0x01, 0x55}
	if a, b := Checksum(data...), Checksum(data...); a != b {
		t.Errorf("CRC should be deterministic: 0x%02X != 0x%02X", a, b)
	}
}

func TestChecksum_SingleBitFlip(t *testing.T) {
	inputs := [][]byte{
		{0x03, 0x10, 0x07, 0x00, 0x00},
		{0x10, 0x08, 0xB5, 0x11, 0x01, 0x01},
		{0x02, 0x12, 0x34},
	}

	for _, data := range inputs {
		base := Checksum(data...)
		for i := range data {
			for bit := 0; bit < 8; bit++ {
				flipped := append([]byte(nil), data...)
				flipped[i] ^= 1 << bit
				if Checksum(flipped...) == base {
					t.Errorf("flipping bit %d of byte %d in % X did not change CRC", bit, i, data)
				}
			}
		}
	}
}

func TestCRC8_MatchesTable(t *testing.T) {
	// Each table entry is the polynomial division of the index by 0x9B
	for i := 0; i < 256; i++ {
		c := byte(i)
		for bit := 0; bit < 8; bit++ {
			if c&0x80 != 0 {
				c = c<<1 ^ 0x9B
			} else {
				c <<= 1
			}
		}
		if crcTable[i] != c {
			t.Fatalf("table[%d] = 0x%02X, want 0x%02X", i, crcTable[i], c)
		}
	}
}
