// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ebus

import (
	"fmt"
	"time"
)

// Statistics tracks telegram counts and error rates.
// It is not safe for concurrent use.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalTelegrams    uint64
	ValidTelegrams    uint64
	WithResponse      uint64
	BroadcastMessages uint64
	ChecksumErrors    uint64
	LengthErrors      uint64
	NACKs             uint64
	ProtocolErrors    uint64
	FramingErrors     uint64
	AdapterEvents     uint64
	AdapterErrors     uint64

	// Rates (calculated)
	TelegramRate float64 // telegrams/sec
	ErrorRate    float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Telegram counts a completed telegram
func (s *Statistics) Telegram(req *Request, resp *Response) {
	s.TotalTelegrams++
	s.ValidTelegrams++
	if resp != nil {
		s.WithResponse++
	}
	if req.IsBroadcast() {
		s.BroadcastMessages++
	}
	s.LastUpdateTime = time.Now()
}

// Drop counts a discarded telegram
func (s *Statistics) Drop(reason DropReason) {
	s.TotalTelegrams++
	switch reason {
	case DropChecksumMismatch:
		s.ChecksumErrors++
	case DropLengthViolation:
		s.LengthErrors++
	case DropNACK:
		s.NACKs++
	case DropProtocolError:
		s.ProtocolErrors++
	}
	s.LastUpdateTime = time.Now()
}

// Adapter counts an adapter status event
func (s *Statistics) Adapter(ev AdapterEvent) {
	s.AdapterEvents++
	switch ev.Kind {
	case AdapterBusError, AdapterHostError, AdapterUnknown:
		s.AdapterErrors++
	}
}

// Errors returns the number of error outcomes. NACKs are a normal bus outcome
// and are not counted.
func (s *Statistics) Errors() uint64 {
	return s.ChecksumErrors + s.LengthErrors + s.ProtocolErrors + s.FramingErrors + s.AdapterErrors
}

// CalculateRates calculates telegram and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.TelegramRate = float64(s.ValidTelegrams) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, checksumPercent float64
	if s.TotalTelegrams > 0 {
		validPercent = float64(s.ValidTelegrams) * 100.0 / float64(s.TotalTelegrams)
		checksumPercent = float64(s.ChecksumErrors) * 100.0 / float64(s.TotalTelegrams)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Telegrams: %8d\n", s.TotalTelegrams)
	result += fmt.Sprintf("Valid Telegrams: %8d (%.1f%%)\n", s.ValidTelegrams, validPercent)
	result += fmt.Sprintf("  With Response:  %7d\n", s.WithResponse)
	result += fmt.Sprintf("  Broadcast:      %7d\n", s.BroadcastMessages)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.ChecksumErrors, checksumPercent)
	}
	if s.LengthErrors > 0 {
		result += fmt.Sprintf("Length Errors:   %8d\n", s.LengthErrors)
	}
	if s.ProtocolErrors > 0 {
		result += fmt.Sprintf("Protocol Errors: %8d\n", s.ProtocolErrors)
	}
	if s.NACKs > 0 {
		result += fmt.Sprintf("NACKs:           %8d\n", s.NACKs)
	}
	if s.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d\n", s.FramingErrors)
	}
	if s.AdapterEvents > 0 {
		result += fmt.Sprintf("Adapter Events:  %8d (%d errors)\n", s.AdapterEvents, s.AdapterErrors)
	}

	result += fmt.Sprintf("Telegram Rate:   %8.1f tgm/sec\n", s.TelegramRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
