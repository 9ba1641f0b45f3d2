// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ebus

// masterNibbles are the nibble values a master address is built from
var masterNibbles = [5]byte{0x0, 0x1, 0x3, 0x7, 0xF}

// AddressKind classifies an eBUS address
type AddressKind int

// Address kinds
const (
	AddressSlave AddressKind = iota
	AddressMaster
	AddressBroadcast
	AddressReserved
)

// String returns the address kind name
func (k AddressKind) String() string {
	switch k {
	case AddressMaster:
		return "master"
	case AddressBroadcast:
		return "broadcast"
	case AddressReserved:
		return "reserved"
	default:
		return "slave"
	}
}

func isMasterNibble(n byte) bool {
	for _, m := range masterNibbles {
		if n == m {
			return true
		}
	}
	return false
}

// IsMaster reports whether addr is one of the 25 master addresses
func IsMaster(addr byte) bool {
	return isMasterNibble(addr>>4) && isMasterNibble(addr&0x0F)
}

// ClassifyAddress returns the kind of addr. SYN and the escape symbol 0xA9 are
// never valid addresses.
func ClassifyAddress(addr byte) AddressKind {
	switch {
	case addr == Broadcast:
		return AddressBroadcast
	case addr == SYN || addr == 0xA9:
		return AddressReserved
	case IsMaster(addr):
		return AddressMaster
	default:
		return AddressSlave
	}
}

// SlaveOf returns the slave address paired with a master address
func SlaveOf(master byte) byte {
	return master + 5
}

// MasterOf returns the master address paired with a slave address, if any
func MasterOf(slave byte) (byte, bool) {
	m := slave - 5
	if IsMaster(m) {
		return m, true
	}
	return 0, false
}
