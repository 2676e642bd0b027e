package usb_test

import (
	"testing"

	"github.com/ress059/Mechanical-Keyboard-sub000/usb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSetup(t *testing.T) {
	type testCase struct {
		name string
		raw  []byte
		want usb.SetupPacket
	}

	cases := []testCase{
		{
			name: "get device descriptor",
			raw:  []byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x40, 0x00},
			want: usb.SetupPacket{
				RequestType: 0x80,
				Request:     usb.RequestGetDescriptor,
				Value:       0x0100,
				Index:       0x0000,
				Length:      64,
			},
		},
		{
			name: "set address 5",
			raw:  []byte{0x00, 0x05, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00},
			want: usb.SetupPacket{
				RequestType: 0x00,
				Request:     usb.RequestSetAddress,
				Value:       5,
			},
		},
		{
			name: "string descriptor in german",
			raw:  []byte{0x80, 0x06, 0x02, 0x03, 0x07, 0x04, 0xFF, 0x00},
			want: usb.SetupPacket{
				RequestType: 0x80,
				Request:     usb.RequestGetDescriptor,
				Value:       0x0302,
				Index:       0x0407,
				Length:      255,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := usb.ParseSetup(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.raw, got.Bytes())
		})
	}
}

func TestParseSetupShortBuffer(t *testing.T) {
	_, err := usb.ParseSetup([]byte{0x80, 0x06})
	assert.Error(t, err)
}

func TestSetupAccessors(t *testing.T) {
	s := usb.SetupPacket{
		RequestType: 0x81, // in, standard, interface
		Request:     usb.RequestGetDescriptor,
		Value:       0x2200,
		Index:       0x0000,
		Length:      63,
	}
	assert.True(t, s.In())
	assert.True(t, s.IsStandard())
	assert.False(t, s.IsClass())
	assert.Equal(t, uint8(usb.RecipientInterface), s.Recipient())
	assert.Equal(t, uint8(usb.ReportDescType), s.DescriptorType())
	assert.Equal(t, uint8(0), s.DescriptorIndex())
	assert.Equal(t, uint8(0), s.InterfaceNumber())

	c := usb.SetupPacket{RequestType: 0x21, Request: 0x0A} // class, out, SET_IDLE
	assert.False(t, c.In())
	assert.True(t, c.IsClass())

	e := usb.SetupPacket{RequestType: 0x02, Request: usb.RequestClearFeature, Index: 0x0081}
	assert.Equal(t, uint8(usb.RecipientEndpoint), e.Recipient())
	assert.Equal(t, uint8(0x81), e.EndpointAddress())
	assert.Equal(t, uint8(1), e.EndpointNumber())
}
