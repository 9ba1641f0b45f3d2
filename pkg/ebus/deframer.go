// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ebus

import (
	"github.com/rs/zerolog"
)

// AdapterEvent is an adapter status notification carried in an escaped pair
type AdapterEvent struct {
	Kind    AdapterEventKind
	Command AdapterCommand
	Data    byte
}

// AdapterEventHandler observes adapter status events. Optional.
type AdapterEventHandler interface {
	OnAdapterEvent(ev AdapterEvent)
}

// AdapterEventFunc adapts a function to AdapterEventHandler
type AdapterEventFunc func(ev AdapterEvent)

// OnAdapterEvent calls f(ev)
func (f AdapterEventFunc) OnAdapterEvent(ev AdapterEvent) { f(ev) }

// Deframer undoes the enhanced adapter protocol escaping.
//
// Raw bytes are queued with Write and drained with Next. An escape prefix whose
// second byte has not arrived yet stays queued until the next Write.
type Deframer struct {
	queue   []byte
	head    int
	events  AdapterEventHandler
	logger  zerolog.Logger
	framing uint64
}

// NewDeframer creates a deframer. events may be nil.
func NewDeframer(logger zerolog.Logger, events AdapterEventHandler) *Deframer {
	return &Deframer{
		queue:  make([]byte, 0, 256),
		events: events,
		logger: logger,
	}
}

// Write queues raw adapter bytes
func (d *Deframer) Write(p []byte) {
	if d.head > 0 {
		n := copy(d.queue, d.queue[d.head:])
		d.queue = d.queue[:n]
		d.head = 0
	}
	d.queue = append(d.queue, p...)
}

// Buffered returns the number of raw bytes not yet consumed
func (d *Deframer) Buffered() int {
	return len(d.queue) - d.head
}

// FramingErrors returns the number of invalid escape pairs seen so far
func (d *Deframer) FramingErrors() uint64 {
	return d.framing
}

// Reset drops all queued bytes
func (d *Deframer) Reset() {
	d.queue = d.queue[:0]
	d.head = 0
}

// Next returns the next logical bus byte. ok is false when the queue holds no
// complete unit.
func (d *Deframer) Next() (b byte, ok bool) {
	for d.Buffered() > 0 {
		b1 := d.queue[d.head]
		if b1&escPrefixMask != escPrefixMask {
			d.consume(1)
			return b1, true
		}

		if d.Buffered() < 2 {
			return 0, false
		}

		b2 := d.queue[d.head+1]
		if b2&escDataMask == 0 {
			d.framing++
			d.logger.Warn().
				Uint8("b1", b1).
				Uint8("b2", b2).
				Msg("adapter framing error, resynchronizing")
			d.consume(1)
			continue
		}
		d.consume(2)

		cmd, data := decodeEnhanced(b1, b2)
		kind := adapterKind(cmd)
		if kind == AdapterDataReceived {
			return data, true
		}

		d.logger.Debug().
			Str("event", kind.String()).
			Uint8("command", uint8(cmd)).
			Uint8("data", data).
			Msg("adapter event")
		if d.events != nil {
			d.events.OnAdapterEvent(AdapterEvent{Kind: kind, Command: cmd, Data: data})
		}
	}
	return 0, false
}

func (d *Deframer) consume(n int) {
	d.head += n
	if d.head == len(d.queue) {
		d.queue = d.queue[:0]
		d.head = 0
	}
}

// decodeEnhanced splits an escaped pair into its command and data byte
func decodeEnhanced(b1, b2 byte) (AdapterCommand, byte) {
	data := (b1-0xC0)<<6 + (b2 - 0x80)
	cmd := (b1 - 0xC0) >> 2
	return AdapterCommand(cmd), data
}
