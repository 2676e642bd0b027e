package usb

import (
	"encoding/binary"
	"math/bits"
)

// Byte-order helpers for register-level code that moves multi-byte wire
// fields through byte-wide FIFOs. The wire is little-endian; on a
// little-endian host HostToWire16 is the identity, and applying Swap16
// or Swap32 twice always is.

// Swap16 reverses the byte order of v.
func Swap16(v uint16) uint16 { return bits.ReverseBytes16(v) }

// Swap32 reverses the byte order of v.
func Swap32(v uint32) uint32 { return bits.ReverseBytes32(v) }

// HostLittleEndian reports whether the host stores integers
// little-endian, matching the wire order.
func HostLittleEndian() bool {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], 0x0102)
	return b[0] == 0x02
}

// HostToWire16 returns v arranged so a native 16-bit store writes the
// little-endian wire layout.
func HostToWire16(v uint16) uint16 {
	if HostLittleEndian() {
		return v
	}
	return Swap16(v)
}

// WireToHost16 decodes a value read back through a native 16-bit load
// of little-endian wire bytes.
func WireToHost16(v uint16) uint16 { return HostToWire16(v) }
