// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ebus

import (
	"time"

	"github.com/rs/zerolog"
)

// TelegramHandler receives completed, validated telegrams. resp is nil when the
// telegram carried no response. Both values are copies owned by the handler.
type TelegramHandler interface {
	OnTelegram(req Request, resp *Response)
}

// TelegramFunc adapts a function to TelegramHandler
type TelegramFunc func(req Request, resp *Response)

// OnTelegram calls f(req, resp)
func (f TelegramFunc) OnTelegram(req Request, resp *Response) { f(req, resp) }

// DropHandler observes telegrams discarded before completion. Optional.
type DropHandler interface {
	OnDrop(reason DropReason, req Request)
}

// DropFunc adapts a function to DropHandler
type DropFunc func(reason DropReason, req Request)

// OnDrop calls f(reason, req)
func (f DropFunc) OnDrop(reason DropReason, req Request) { f(reason, req) }

// Parser is the telegram state machine. It consumes logical bus bytes and
// assembles one request/response pair at a time.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	state     State
	request   Request
	response  Response
	remaining int

	gotResponse  bool
	ackReceived  bool
	gotBroadcast bool

	handler TelegramHandler
	drops   DropHandler
	logger  zerolog.Logger
	now     func() time.Time
}

// NewParser creates a state machine delivering telegrams to handler.
// drops may be nil.
func NewParser(logger zerolog.Logger, handler TelegramHandler, drops DropHandler) *Parser {
	return &Parser{
		state:    StateWaitSYN,
		request:  Request{Data: make([]byte, 0, MaxDataLength)},
		response: Response{Data: make([]byte, 0, MaxDataLength)},
		handler:  handler,
		drops:    drops,
		logger:   logger,
		now:      time.Now,
	}
}

// State returns the current state
func (p *Parser) State() State {
	return p.state
}

// Reset discards any in-progress telegram and waits for SYN
func (p *Parser) Reset() {
	p.clear()
	p.state = StateWaitSYN
}

func (p *Parser) clear() {
	p.request.clear()
	p.response.clear()
	p.remaining = 0
	p.gotResponse = false
	p.ackReceived = false
	p.gotBroadcast = false
}

// drop discards the in-progress telegram and returns to WaitSYN
func (p *Parser) drop(reason DropReason, b byte) {
	ev := p.logger.Debug()
	if reason == DropChecksumMismatch || reason == DropLengthViolation {
		ev = p.logger.Warn()
	}
	ev.Str("reason", reason.String()).
		Str("state", p.state.String()).
		Uint8("byte", b).
		Bool("response", p.gotResponse).
		Msg("telegram dropped")

	if p.drops != nil {
		p.drops.OnDrop(reason, p.request.Clone())
	}
	p.Reset()
}

// PushByte advances the state machine by one logical bus byte
func (p *Parser) PushByte(b byte) {
	switch p.state {
	case StateWaitSYN:
		if b == SYN {
			p.state = StateWaitSrc
		}

	case StateWaitSrc:
		if b != SYN {
			p.request.Src = b
			p.request.Received = p.now()
			p.state = StateWaitDest
		}

	case StateWaitDest:
		p.request.Dest = b
		if b == Broadcast {
			p.gotBroadcast = true
		}
		p.state = StateWaitCmdHi

	case StateWaitCmdHi:
		p.request.Primary = b
		p.state = StateWaitCmdLo

	case StateWaitCmdLo:
		p.request.Second = b
		p.state = StateWaitLen

	case StateWaitLen:
		p.startData(b)

	case StateWaitData:
		if p.gotResponse {
			p.response.Data = append(p.response.Data, b)
		} else {
			p.request.Data = append(p.request.Data, b)
		}
		p.remaining--
		if p.remaining <= 0 {
			p.state = StateWaitCRC
		}

	case StateWaitCRC:
		var expected byte
		if p.gotResponse {
			p.response.CRC = b
			expected = p.response.CalculateCRC()
		} else {
			p.request.CRC = b
			expected = p.request.CalculateCRC()
		}
		if expected != b {
			p.logger.Debug().
				Uint8("expected", expected).
				Uint8("received", b).
				Msg("checksum mismatch")
			p.drop(DropChecksumMismatch, b)
			return
		}
		p.state = StateWaitAck

	case StateWaitAck:
		switch b {
		case ACK:
			p.ackReceived = true
			if p.gotResponse {
				p.emit()
				p.state = StateWaitSYN
			} else {
				p.state = StateWaitResponse
			}
		case NACK:
			p.drop(DropNACK, b)
		case SYN:
			// SYN without ACK ends a broadcast. The SYN is consumed here, so the
			// next byte is already a source address.
			if p.gotBroadcast {
				p.emit()
			} else {
				p.logger.Debug().Msg("telegram ended by SYN without acknowledge")
				p.clear()
			}
			p.state = StateWaitSrc
		default:
			p.drop(DropProtocolError, b)
		}

	case StateWaitResponse:
		if b == SYN {
			p.emit()
			p.state = StateWaitSYN
			return
		}
		p.gotResponse = true
		p.startData(b)

	default:
		p.Reset()
	}
}

// startData handles a length byte for the request or the response
func (p *Parser) startData(b byte) {
	if b > MaxDataLength {
		p.drop(DropLengthViolation, b)
		return
	}
	if p.gotResponse {
		p.response.Length = b
	} else {
		p.request.Length = b
	}
	p.remaining = int(b)
	if b == 0 {
		p.state = StateWaitCRC
	} else {
		p.state = StateWaitData
	}
}

// emit hands the completed telegram to the handler and clears it
func (p *Parser) emit() {
	req := p.request.Clone()
	var resp *Response
	if p.gotResponse {
		resp = p.response.Clone()
	}

	p.logger.Debug().
		Str("src", req.SrcHex()).
		Str("dest", req.DestHex()).
		Str("pbsb", req.CommandHex()).
		Str("data", req.DataHex()).
		Bool("response", resp != nil).
		Msg("telegram complete")

	p.clear()
	if p.handler != nil {
		p.handler.OnTelegram(req, resp)
	}
}
