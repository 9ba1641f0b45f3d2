// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ebus decodes the eBUS two-wire heating bus protocol as seen through an
// enhanced-protocol adapter.
//
// The package is receive-only. Raw adapter bytes are deframed into logical bus
// bytes, assembled into telegrams by a state machine and validated with the
// eBUS CRC-8 before being handed to a TelegramHandler.
package ebus

// Bus symbols
const (
	SYN       = 0xAA
	ACK       = 0x00
	NACK      = 0xFF
	Broadcast = 0xFE
)

// MaxDataLength is the largest payload a request or response may declare.
const MaxDataLength = 16

// Enhanced adapter protocol framing
const (
	escPrefixMask = 0xC0
	escDataMask   = 0x80
)

// AdapterCommand is the command nibble carried in an escaped adapter pair.
type AdapterCommand uint8

// Adapter response commands
const (
	AdapterResetted  AdapterCommand = 0x00
	AdapterReceived  AdapterCommand = 0x01
	AdapterStarted   AdapterCommand = 0x02
	AdapterInfo      AdapterCommand = 0x03
	AdapterFailed    AdapterCommand = 0x0A
	AdapterErrorEbus AdapterCommand = 0x0B
	AdapterErrorHost AdapterCommand = 0x0C
)

// AdapterEventKind classifies an adapter command. Unmapped commands become
// AdapterUnknown rather than being trusted.
type AdapterEventKind int

// Adapter event kinds
const (
	AdapterUnknown AdapterEventKind = iota
	AdapterReset
	AdapterDataReceived
	AdapterArbitrationStarted
	AdapterInfoReceived
	AdapterArbitrationFailed
	AdapterBusError
	AdapterHostError
)

// adapterKind maps a raw command to its kind.
func adapterKind(cmd AdapterCommand) AdapterEventKind {
	switch cmd {
	case AdapterResetted:
		return AdapterReset
	case AdapterReceived:
		return AdapterDataReceived
	case AdapterStarted:
		return AdapterArbitrationStarted
	case AdapterInfo:
		return AdapterInfoReceived
	case AdapterFailed:
		return AdapterArbitrationFailed
	case AdapterErrorEbus:
		return AdapterBusError
	case AdapterErrorHost:
		return AdapterHostError
	default:
		return AdapterUnknown
	}
}

// String returns the name of the event kind
func (k AdapterEventKind) String() string {
	switch k {
	case AdapterReset:
		return "RESET"
	case AdapterDataReceived:
		return "RECEIVED"
	case AdapterArbitrationStarted:
		return "STARTED"
	case AdapterInfoReceived:
		return "INFO"
	case AdapterArbitrationFailed:
		return "FAILED"
	case AdapterBusError:
		return "ERROR_EBUS"
	case AdapterHostError:
		return "ERROR_HOST"
	default:
		return "UNKNOWN"
	}
}

// State is a telegram state machine state
type State int

// Parser states
const (
	StateWaitSYN State = iota
	StateWaitSrc
	StateWaitDest
	StateWaitCmdHi
	StateWaitCmdLo
	StateWaitLen
	StateWaitData
	StateWaitCRC
	StateWaitAck
	StateWaitResponse
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateWaitSYN:
		return "WAIT_SYN"
	case StateWaitSrc:
		return "WAIT_SRC"
	case StateWaitDest:
		return "WAIT_DEST"
	case StateWaitCmdHi:
		return "WAIT_PB"
	case StateWaitCmdLo:
		return "WAIT_SB"
	case StateWaitLen:
		return "WAIT_LEN"
	case StateWaitData:
		return "WAIT_DATA"
	case StateWaitCRC:
		return "WAIT_CRC"
	case StateWaitAck:
		return "WAIT_ACK"
	case StateWaitResponse:
		return "WAIT_RESPONSE"
	default:
		return "INVALID"
	}
}

// DropReason says why an in-progress telegram was discarded
type DropReason int

// Drop reasons
const (
	DropLengthViolation DropReason = iota
	DropChecksumMismatch
	DropNACK
	DropProtocolError
)

// String returns the drop reason name
func (r DropReason) String() string {
	switch r {
	case DropLengthViolation:
		return "length_violation"
	case DropChecksumMismatch:
		return "checksum_mismatch"
	case DropNACK:
		return "nack"
	case DropProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}
