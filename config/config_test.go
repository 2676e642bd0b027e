package config_test

import (
	"testing"

	"github.com/ress059/Mechanical-Keyboard-sub000/config"
	"github.com/ress059/Mechanical-Keyboard-sub000/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	d := config.Default()
	require.NoError(t, d.Validate())
	assert.Equal(t, platform.SpeedFull, d.SpeedValue())
	assert.Equal(t, platform.ClockExternal, d.ClockValue())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Device)
	}{
		{name: "version below 1.0", mutate: func(d *config.Device) { d.USBVersion = 0x0099 }},
		{name: "version above 2.0", mutate: func(d *config.Device) { d.USBVersion = 0x0300 }},
		{name: "low speed wide control endpoint", mutate: func(d *config.Device) {
			d.Speed = "low"
			d.ControlEndpointSize = 16
			d.PollIntervalMS = 10
		}},
		{name: "low speed wide hid endpoint", mutate: func(d *config.Device) {
			d.Speed = "low"
			d.HIDEndpointSize = 16
			d.PollIntervalMS = 10
		}},
		{name: "low speed fast polling", mutate: func(d *config.Device) {
			d.Speed = "low"
			d.PollIntervalMS = 5
		}},
		{name: "zero poll interval", mutate: func(d *config.Device) { d.PollIntervalMS = 0 }},
		{name: "unknown speed", mutate: func(d *config.Device) { d.Speed = "high" }},
		{name: "unknown clock", mutate: func(d *config.Device) { d.ClockSource = "pll" }},
		{name: "external clock without frequency", mutate: func(d *config.Device) { d.ExternalHz = 0 }},
		{name: "over bus power limit", mutate: func(d *config.Device) { d.MaxPowerMA = 600 }},
		{name: "zero matrix rows", mutate: func(d *config.Device) { d.MatrixRows = 0 }},
		{name: "matrix over pin budget", mutate: func(d *config.Device) {
			d.MatrixRows = 30
			d.MatrixCols = 30
		}},
		{name: "control size not a bank size", mutate: func(d *config.Device) { d.ControlEndpointSize = 10 }},
		{name: "hid endpoint zero", mutate: func(d *config.Device) { d.HIDEndpointNumber = 0 }},
		{name: "hid endpoint out of range", mutate: func(d *config.Device) { d.HIDEndpointNumber = 7 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := config.Default()
			tc.mutate(&d)
			assert.Error(t, d.Validate())
		})
	}
}

func TestDescriptorSetDerivation(t *testing.T) {
	d := config.Default()
	set, err := d.DescriptorSet()
	require.NoError(t, err)
	require.NoError(t, set.Validate())

	dev := set.DeviceBytes()
	require.Len(t, dev, 18)
	assert.Equal(t, []byte{0x09, 0x12}, dev[8:10])  // idVendor LE
	assert.Equal(t, []byte{0x01, 0x00}, dev[10:12]) // idProduct LE
	assert.Equal(t, uint8(8), dev[7])               // bMaxPacketSize0

	cfg, err := set.ConfigurationBytes(0)
	require.NoError(t, err)
	assert.Len(t, cfg, 34)
	assert.Equal(t, uint8(34), cfg[2])   // wTotalLength low byte
	assert.Equal(t, uint8(0xA0), cfg[7]) // bus powered + remote wakeup
	assert.Equal(t, uint8(50), cfg[8])   // 100 mA in 2 mA units

	ep := cfg[len(cfg)-7:]
	assert.Equal(t, uint8(0x07), ep[0]) // bLength
	assert.Equal(t, uint8(0x81), ep[2]) // IN endpoint 1
	assert.Equal(t, uint8(0x03), ep[3]) // interrupt
	assert.Equal(t, uint8(5), ep[6])    // bInterval

	ifc := set.HIDInterface(0)
	require.NotNil(t, ifc)
	assert.Len(t, ifc.Report, 63)
	assert.Equal(t, uint16(63), ifc.HID.WDescriptorLength)

	// Product string encodes to 40 bytes, an exact multiple of the
	// 8-byte control endpoint.
	str, err := set.StringBytes(2, 0x0409)
	require.NoError(t, err)
	assert.Len(t, str, 40)
}

func TestEmptyStringsAreUnindexed(t *testing.T) {
	d := config.Default()
	d.Manufacturer = ""
	set, err := d.DescriptorSet()
	require.NoError(t, err)
	require.NoError(t, set.Validate())

	assert.Equal(t, uint8(0), set.Device.IManufacturer)
	assert.Equal(t, uint8(1), set.Device.IProduct)
	assert.Equal(t, uint8(2), set.Device.ISerialNumber)
	assert.Equal(t, "Mechanical Keyboard", set.Strings[1])
	assert.Equal(t, "0001", set.Strings[2])
}

func TestHex16Text(t *testing.T) {
	var h config.Hex16
	require.NoError(t, h.UnmarshalText([]byte("0x1209")))
	assert.Equal(t, config.Hex16(0x1209), h)

	require.NoError(t, h.UnmarshalText([]byte("4617")))
	assert.Equal(t, config.Hex16(0x1209), h)

	assert.Error(t, h.UnmarshalText([]byte("keyboard")))
	assert.Error(t, h.UnmarshalText([]byte("0x10000")))

	out, err := config.Hex16(0x0200).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "0x0200", string(out))
}
