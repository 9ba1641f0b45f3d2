// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ebus

import (
	"fmt"
	"strings"
)

// FormatRequest formats a request on one line
func FormatRequest(r *Request) string {
	return fmt.Sprintf("Req: [src: %02X, dest: %02X, pbsb: %04X, len: %02X, data: %s, crc: %02X]",
		r.Src, r.Dest, r.Command(), r.Length, formatBytes(r.Data), r.CRC)
}

// FormatResponse formats a response on one line
func FormatResponse(r *Response) string {
	return fmt.Sprintf("Resp: [len: %02X, data: %s, crc: %02X]", r.Length, formatBytes(r.Data), r.CRC)
}

// FormatTelegram formats a telegram with a timestamp and the response, if any,
// on a second line
func FormatTelegram(req *Request, resp *Response) string {
	timestamp := req.Received.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s %s\n", timestamp, TelegramKind(req), FormatRequest(req))
	if resp != nil {
		result += fmt.Sprintf("  `-:> %s\n", FormatResponse(resp))
	}
	return result
}

// TelegramKind names the telegram type: broadcast, master-master or
// master-slave
func TelegramKind(req *Request) string {
	switch {
	case req.IsBroadcast():
		return "broadcast"
	case IsMaster(req.Dest):
		return "master-master"
	default:
		return "master-slave"
	}
}

// FormatAdapterEvent formats an adapter status event
func FormatAdapterEvent(ev AdapterEvent) string {
	return fmt.Sprintf("adapter %s (cmd=0x%02X data=0x%02X)", ev.Kind, uint8(ev.Command), ev.Data)
}

// FormatAddress formats an address with its kind
func FormatAddress(addr byte) string {
	return fmt.Sprintf("0x%02X (%s)", addr, ClassifyAddress(addr))
}

func formatBytes(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
