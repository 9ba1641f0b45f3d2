// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ebus

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Request is the master part of a telegram
type Request struct {
	Src      byte
	Dest     byte
	Primary  byte
	Second   byte
	Length   byte
	Data     []byte
	CRC      byte
	Received time.Time
}

// Response is the slave part of a master/slave telegram
type Response struct {
	Length byte
	Data   []byte
	CRC    byte
}

// Command returns the primary/secondary command pair as one word
func (r *Request) Command() uint16 {
	return uint16(r.Primary)<<8 | uint16(r.Second)
}

// IsBroadcast reports whether the request is addressed to all participants
func (r *Request) IsBroadcast() bool {
	return r.Dest == Broadcast
}

// CalculateCRC computes the checksum the request should carry
func (r *Request) CalculateCRC() byte {
	crc := Checksum(r.Src, r.Dest, r.Primary, r.Second, r.Length)
	for _, b := range r.Data {
		crc = CRC8(crc, b)
	}
	return crc
}

// SrcHex returns the source address as two uppercase hex digits
func (r *Request) SrcHex() string { return fmt.Sprintf("%02X", r.Src) }

// DestHex returns the destination address as two uppercase hex digits
func (r *Request) DestHex() string { return fmt.Sprintf("%02X", r.Dest) }

// CommandHex returns the command pair as four uppercase hex digits
func (r *Request) CommandHex() string { return fmt.Sprintf("%04X", r.Command()) }

// DataHex returns the payload as uppercase hex
func (r *Request) DataHex() string { return strings.ToUpper(hex.EncodeToString(r.Data)) }

// Clone returns a deep copy of the request
func (r *Request) Clone() Request {
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	return c
}

func (r *Request) clear() {
	r.Src = 0
	r.Dest = 0
	r.Primary = 0
	r.Second = 0
	r.Length = 0
	r.Data = r.Data[:0]
	r.CRC = 0
	r.Received = time.Time{}
}

// CalculateCRC computes the checksum the response should carry
func (r *Response) CalculateCRC() byte {
	crc := Checksum(r.Length)
	for _, b := range r.Data {
		crc = CRC8(crc, b)
	}
	return crc
}

// DataHex returns the payload as uppercase hex
func (r *Response) DataHex() string { return strings.ToUpper(hex.EncodeToString(r.Data)) }

// Clone returns a deep copy of the response
func (r *Response) Clone() *Response {
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	return &c
}

func (r *Response) clear() {
	r.Length = 0
	r.Data = r.Data[:0]
	r.CRC = 0
}

// EncodeRequest returns the on-bus bytes of a request with a computed checksum.
// The decoder itself never transmits.
func EncodeRequest(src, dest byte, cmd uint16, data []byte) []byte {
	r := Request{Src: src, Dest: dest, Primary: byte(cmd >> 8), Second: byte(cmd), Length: byte(len(data)), Data: data}
	out := []byte{r.Src, r.Dest, r.Primary, r.Second, r.Length}
	out = append(out, data...)
	return append(out, r.CalculateCRC())
}

// EncodeResponse returns the on-bus bytes of a response with a computed checksum
func EncodeResponse(data []byte) []byte {
	r := Response{Length: byte(len(data)), Data: data}
	out := append([]byte{r.Length}, data...)
	return append(out, r.CalculateCRC())
}

// EscapeEnhanced wraps each bus byte as an adapter "received" pair, the form an
// enhanced-protocol adapter forwards bytes in.
func EscapeEnhanced(data []byte) []byte {
	out := make([]byte, 0, len(data)*2)
	for _, b := range data {
		out = append(out, 0xC0|byte(AdapterReceived)<<2|b>>6, 0x80|b&0x3F)
	}
	return out
}
