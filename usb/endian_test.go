package usb_test

import (
	"testing"

	"github.com/ress059/Mechanical-Keyboard-sub000/usb"
	"github.com/stretchr/testify/assert"
)

func TestSwapTwiceIsIdentity(t *testing.T) {
	for _, v := range []uint16{0x0000, 0x0102, 0xFF00, 0xABCD, 0xFFFF} {
		assert.Equal(t, v, usb.Swap16(usb.Swap16(v)))
	}
	for _, v := range []uint32{0x00000000, 0x01020304, 0xDEADBEEF, 0xFFFFFFFF} {
		assert.Equal(t, v, usb.Swap32(usb.Swap32(v)))
	}
}

func TestSwapReversesBytes(t *testing.T) {
	assert.Equal(t, uint16(0x0201), usb.Swap16(0x0102))
	assert.Equal(t, uint32(0x04030201), usb.Swap32(0x01020304))
}

func TestHostToWireIsIdentityOnLittleEndian(t *testing.T) {
	if !usb.HostLittleEndian() {
		t.Skip("host is big-endian")
	}
	for _, v := range []uint16{0x0000, 0x0102, 0xABCD} {
		assert.Equal(t, v, usb.HostToWire16(v))
		assert.Equal(t, v, usb.WireToHost16(v))
	}
}

func TestWireRoundTrip(t *testing.T) {
	for _, v := range []uint16{0x0000, 0x0102, 0xABCD, 0xFFFF} {
		assert.Equal(t, v, usb.WireToHost16(usb.HostToWire16(v)))
	}
}
