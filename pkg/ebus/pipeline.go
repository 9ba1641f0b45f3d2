// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ebus

import (
	"github.com/rs/zerolog"
)

// DefaultParseThreshold parses on every Feed call
const DefaultParseThreshold = 1

// Options configures a Pipeline
type Options struct {
	// Logger receives diagnostics. The zero value discards them.
	Logger zerolog.Logger

	// Telegrams receives every completed telegram. Required.
	Telegrams TelegramHandler

	// Drops and AdapterEvents are optional observers.
	Drops         DropHandler
	AdapterEvents AdapterEventHandler

	// ParseThreshold is the number of queued raw bytes that triggers a parse
	// pass. Values below 1 mean DefaultParseThreshold.
	ParseThreshold int
}

// Pipeline turns raw adapter bytes into telegrams: raw bytes go through the
// Deframer, logical bytes through the Parser.
//
// Feed and Flush run synchronously and invoke the handlers from the calling
// goroutine, in byte-arrival order. A Pipeline must not be fed concurrently.
type Pipeline struct {
	deframer  *Deframer
	parser    *Parser
	threshold int
	logger    zerolog.Logger
}

// NewPipeline creates a pipeline from opts
func NewPipeline(opts Options) *Pipeline {
	threshold := opts.ParseThreshold
	if threshold < 1 {
		threshold = DefaultParseThreshold
	}
	return &Pipeline{
		deframer:  NewDeframer(opts.Logger, opts.AdapterEvents),
		parser:    NewParser(opts.Logger, opts.Telegrams, opts.Drops),
		threshold: threshold,
		logger:    opts.Logger,
	}
}

// Feed queues a chunk of raw adapter bytes and parses once enough are queued
func (p *Pipeline) Feed(chunk []byte) {
	p.deframer.Write(chunk)
	if p.deframer.Buffered() >= p.threshold {
		p.Flush()
	}
}

// Flush parses every complete unit currently queued. An escape prefix whose
// second byte is still missing stays queued.
func (p *Pipeline) Flush() {
	for {
		b, ok := p.deframer.Next()
		if !ok {
			return
		}
		p.parser.PushByte(b)
	}
}

// Reset drops queued bytes and any in-progress telegram
func (p *Pipeline) Reset() {
	p.deframer.Reset()
	p.parser.Reset()
}

// State returns the telegram state machine state
func (p *Pipeline) State() State {
	return p.parser.State()
}

// Buffered returns the number of raw bytes waiting to be parsed
func (p *Pipeline) Buffered() int {
	return p.deframer.Buffered()
}

// FramingErrors returns the number of invalid adapter escape pairs seen
func (p *Pipeline) FramingErrors() uint64 {
	return p.deframer.FramingErrors()
}
