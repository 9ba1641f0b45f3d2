// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ebus

import (
	"strings"
	"testing"
	"time"
)

func TestFormatTelegram(t *testing.T) {
	req := Request{Src: 0x03, Dest: 0x15, Primary: 0x07, Second: 0x00, Length: 1, Data: []byte{0xAB}, CRC: 0x11,
		Received: time.Date(2025, 1, 1, 12, 30, 45, 0, time.UTC)}
	resp := &Response{Length: 2, Data: []byte{0x12, 0x34}, CRC: 0x87}

	out := FormatTelegram(&req, resp)

	for _, want := range []string{
		"[12:30:45.000]",
		"master-slave",
		"Req: [src: 03, dest: 15, pbsb: 0700, len: 01, data: [AB], crc: 11]",
		"`-:> Resp: [len: 02, data: [12, 34], crc: 87]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatTelegram_Kinds(t *testing.T) {
	tests := []struct {
		dest byte
		want string
	}{
		{Broadcast, "broadcast"},
		{0x10, "master-master"},
		{0x08, "master-slave"},
	}
	for _, tt := range tests {
		req := Request{Src: 0x03, Dest: tt.dest}
		if out := FormatTelegram(&req, nil); !strings.Contains(out, tt.want) {
			t.Errorf("dest %02X: output %q missing %q", tt.dest, out, tt.want)
		}
	}
}

func TestClassifyAddress(t *testing.T) {
	tests := []struct {
		addr byte
		want AddressKind
	}{
		{0x00, AddressMaster},
		{0x03, AddressMaster},
		{0x10, AddressMaster},
		{0xFF, AddressMaster},
		{0x77, AddressMaster},
		{0x08, AddressSlave},
		{0x15, AddressSlave},
		{0xFE, AddressBroadcast},
		{0xAA, AddressReserved},
		{0xA9, AddressReserved},
	}
	for _, tt := range tests {
		if got := ClassifyAddress(tt.addr); got != tt.want {
			t.Errorf("ClassifyAddress(%02X) = %s, want %s", tt.addr, got, tt.want)
		}
	}
}

func TestMasterCount(t *testing.T) {
	count := 0
	for a := 0; a < 256; a++ {
		if IsMaster(byte(a)) {
			count++
		}
	}
	if count != 25 {
		t.Errorf("found %d master addresses, want 25", count)
	}
}

func TestSlaveOf(t *testing.T) {
	if got := SlaveOf(0x10); got != 0x15 {
		t.Errorf("SlaveOf(10) = %02X, want 15", got)
	}
	if m, ok := MasterOf(0x08); !ok || m != 0x03 {
		t.Errorf("MasterOf(08) = %02X/%v, want 03/true", m, ok)
	}
	if _, ok := MasterOf(0x52); ok {
		t.Error("MasterOf(52) should have no master")
	}
}

func TestStatistics(t *testing.T) {
	s := NewStatistics()
	s.Telegram(&Request{Dest: 0x10}, nil)
	s.Telegram(&Request{Dest: 0x08}, &Response{})
	s.Telegram(&Request{Dest: Broadcast}, nil)
	s.Drop(DropChecksumMismatch)
	s.Drop(DropNACK)
	s.Adapter(AdapterEvent{Kind: AdapterBusError})
	s.Adapter(AdapterEvent{Kind: AdapterArbitrationStarted})

	if s.TotalTelegrams != 5 || s.ValidTelegrams != 3 {
		t.Errorf("total=%d valid=%d, want 5/3", s.TotalTelegrams, s.ValidTelegrams)
	}
	if s.WithResponse != 1 || s.BroadcastMessages != 1 {
		t.Errorf("response=%d broadcast=%d, want 1/1", s.WithResponse, s.BroadcastMessages)
	}
	if s.Errors() != 2 {
		t.Errorf("Errors() = %d, want 2 (NACK is not an error)", s.Errors())
	}
	if !strings.Contains(s.String(), "CRC Errors:") {
		t.Errorf("summary missing CRC errors:\n%s", s.String())
	}

	s.Reset()
	if s.TotalTelegrams != 0 || s.AdapterEvents != 0 {
		t.Error("Reset did not clear counters")
	}
}
