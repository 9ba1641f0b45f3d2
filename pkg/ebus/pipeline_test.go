// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ebus

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

// enhance encodes bus bytes the way an enhanced adapter forwards them: bytes
// below 0x80 plain, the rest as escaped pairs
func enhance(data []byte) []byte {
	var out []byte
	for _, b := range data {
		if b < 0x80 {
			out = append(out, b)
		} else {
			out = append(out, EscapeEnhanced([]byte{b})...)
		}
	}
	return out
}

// busSession is a mix of telegram kinds, errors and adapter events
func busSession() []byte {
	return concat(
		enhance(concat(syn, syn, EncodeRequest(0x03, 0x10, 0x0700, nil), ack, syn)),
		[]byte{0xC0, 0x80}, // adapter reset
		enhance(concat(syn, EncodeRequest(0x10, 0x08, 0xB511, []byte{0x01}), ack,
			EncodeResponse([]byte{0x48, 0x7E, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00}), ack)),
		[]byte{0xC6, 0x10}, // framing error, 0x10 lands in WaitSYN
		enhance(concat(syn, EncodeRequest(0x10, Broadcast, 0x0700, []byte{0x00, 0x80, 0x10, 0x23}), syn,
			EncodeRequest(0x03, 0x15, 0xB509, []byte{0x0D, 0x80}), nack, syn)),
		enhance(concat(syn, []byte{0x03, 0x10, 0x07, 0x00, 0x11}, syn,
			EncodeRequest(0xF1, Broadcast, 0xFE01, []byte{0xFF, 0xA0}), syn)),
	)
}

type collected struct {
	lines []string
}

func (c *collected) OnTelegram(req Request, resp *Response) {
	line := FormatRequest(&req)
	if resp != nil {
		line += " " + FormatResponse(resp)
	}
	c.lines = append(c.lines, line)
}

func runChunked(data []byte, chunk int, threshold int) []string {
	c := &collected{}
	p := NewPipeline(Options{Logger: zerolog.Nop(), Telegrams: c, ParseThreshold: threshold})
	if chunk <= 0 {
		chunk = len(data)
	}
	for i := 0; i < len(data); i += chunk {
		end := i + chunk
		if end > len(data) {
			end = len(data)
		}
		p.Feed(data[i:end])
	}
	p.Flush()
	return c.lines
}

func TestPipeline_SessionTelegrams(t *testing.T) {
	lines := runChunked(busSession(), 0, 0)

	// 0700 request-only, B511 with response, broadcast, FE01 broadcast.
	// The NACKed request and the length overflow never surface.
	if len(lines) != 4 {
		t.Fatalf("expected 4 telegrams, got %d:\n%v", len(lines), lines)
	}
}

func TestPipeline_ChunkingInvariance(t *testing.T) {
	data := busSession()
	want := runChunked(data, 0, 0)

	for _, chunk := range []int{1, 2, 3, 7, 64} {
		for _, threshold := range []int{1, 16, 64} {
			t.Run(fmt.Sprintf("chunk=%d threshold=%d", chunk, threshold), func(t *testing.T) {
				got := runChunked(data, chunk, threshold)
				if len(got) != len(want) {
					t.Fatalf("got %d telegrams, want %d", len(got), len(want))
				}
				for i := range want {
					if got[i] != want[i] {
						t.Errorf("telegram %d:\n got  %s\n want %s", i, got[i], want[i])
					}
				}
			})
		}
	}
}

func TestPipeline_ThresholdDefersParsing(t *testing.T) {
	c := &collected{}
	p := NewPipeline(Options{Logger: zerolog.Nop(), Telegrams: c, ParseThreshold: 64})

	p.Feed(enhance(concat(syn, EncodeRequest(0x03, 0x10, 0x0700, nil), ack, syn)))
	if len(c.lines) != 0 {
		t.Fatalf("expected parsing to be deferred, got %d telegrams", len(c.lines))
	}

	p.Flush()
	if len(c.lines) != 1 {
		t.Errorf("expected 1 telegram after Flush, got %d", len(c.lines))
	}
}

func TestPipeline_SplitEscapePair(t *testing.T) {
	c := &collected{}
	p := NewPipeline(Options{Logger: zerolog.Nop(), Telegrams: c})
	data := concat(EscapeEnhanced(syn), EscapeEnhanced(EncodeRequest(0x03, 0x10, 0x0700, nil)), EscapeEnhanced(ack), EscapeEnhanced(syn))

	// Split in the middle of the final SYN pair
	p.Feed(data[:len(data)-1])
	if len(c.lines) != 0 {
		t.Fatalf("telegram delivered before closing SYN arrived")
	}
	if p.Buffered() != 1 {
		t.Errorf("Buffered = %d, want 1", p.Buffered())
	}
	p.Feed(data[len(data)-1:])
	if len(c.lines) != 1 {
		t.Errorf("expected 1 telegram, got %d", len(c.lines))
	}
}

func TestPipeline_ObserversReceiveEvents(t *testing.T) {
	var events []AdapterEvent
	var drops []DropReason
	p := NewPipeline(Options{
		Logger:        zerolog.Nop(),
		Telegrams:     &collected{},
		Drops:         DropFunc(func(r DropReason, _ Request) { drops = append(drops, r) }),
		AdapterEvents: AdapterEventFunc(func(ev AdapterEvent) { events = append(events, ev) }),
	})

	p.Feed(busSession())

	if len(events) != 1 || events[0].Kind != AdapterReset {
		t.Errorf("events = %+v, want one RESET", events)
	}
	if len(drops) != 2 || drops[0] != DropNACK || drops[1] != DropLengthViolation {
		t.Errorf("drops = %v, want [nack length_violation]", drops)
	}
	if p.FramingErrors() != 1 {
		t.Errorf("FramingErrors = %d, want 1", p.FramingErrors())
	}
}

func TestPipeline_Reset(t *testing.T) {
	c := &collected{}
	p := NewPipeline(Options{Logger: zerolog.Nop(), Telegrams: c})

	p.Feed([]byte{SYN, 0x03, 0x10, 0xC4})
	p.Reset()
	if p.Buffered() != 0 || p.State() != StateWaitSYN {
		t.Fatalf("after Reset: buffered=%d state=%s", p.Buffered(), p.State())
	}

	p.Feed(enhance(concat(syn, EncodeRequest(0x03, 0x10, 0x0700, nil), ack, syn)))
	if len(c.lines) != 1 {
		t.Errorf("expected 1 telegram, got %d", len(c.lines))
	}
}
