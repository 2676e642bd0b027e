package device_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ress059/Mechanical-Keyboard-sub000/device"
	"github.com/ress059/Mechanical-Keyboard-sub000/keymap"
	"github.com/ress059/Mechanical-Keyboard-sub000/platform/sim"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb/hid"
)

func hidGet(request uint8, value, wlen uint16) usb.SetupPacket {
	return usb.SetupPacket{
		RequestType: usb.DirIn | usb.TypeClass | usb.RecipientInterface,
		Request:     request,
		Value:       value,
		Length:      wlen,
	}
}

func hidSet(request uint8, value, wlen uint16) usb.SetupPacket {
	return usb.SetupPacket{
		RequestType: usb.TypeClass | usb.RecipientInterface,
		Request:     request,
		Value:       value,
		Length:      wlen,
	}
}

// In the Default stage only GET_DESCRIPTOR, SET_ADDRESS and TEST_MODE
// are serviced; everything else gets silence, not a stall.
func TestDefaultStageIgnoresUnsupported(t *testing.T) {
	r := newRig(t, nil)
	r.start()
	r.host.MaxSteps = 16

	t.Run("ignored requests time out", func(t *testing.T) {
		cases := []struct {
			name string
			in   bool
			sp   usb.SetupPacket
		}{
			{"get configuration", true, getConfiguration()},
			{"get status", true, getStatus(usb.RecipientDevice, 0)},
			{"set configuration", false, setConfiguration(1)},
			{"clear feature", false, feature(usb.RequestClearFeature, usb.RecipientDevice, usb.FeatureDeviceRemoteWakeup, 0)},
			{"hid get report", true, hidGet(hid.RequestGetReport, uint16(hid.ReportTypeInput)<<8, 8)},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				var err error
				if tc.in {
					_, err = r.host.ControlIn(tc.sp)
				} else {
					err = r.host.ControlOut(tc.sp, nil)
				}
				assert.ErrorIs(t, err, sim.ErrTimeout)
			})
		}
	})

	t.Run("test mode is acknowledged", func(t *testing.T) {
		err := r.host.ControlOut(feature(usb.RequestSetFeature, usb.RecipientDevice, usb.FeatureTestMode, 0), nil)
		assert.NoError(t, err)
		assert.Equal(t, device.StageDefault, r.dev.Stage())
	})

	t.Run("descriptors are served", func(t *testing.T) {
		dd, err := r.host.ControlIn(getDescriptor(usb.DeviceDescType, 0, 0, 64))
		require.NoError(t, err)
		assert.Len(t, dd, usb.DeviceDescLen)
	})

	t.Run("unknown descriptor stalls", func(t *testing.T) {
		_, err := r.host.ControlIn(getDescriptor(0x0B, 0, 0, 64))
		assert.ErrorIs(t, err, sim.ErrStall)
	})
}

func TestAddressStagePolicy(t *testing.T) {
	r := newRig(t, nil)
	r.start()
	r.setAddress(5)
	r.host.MaxSteps = 16

	t.Run("get configuration returns zero", func(t *testing.T) {
		got, err := r.host.ControlIn(getConfiguration())
		require.NoError(t, err)
		assert.Equal(t, []byte{0}, got)
	})

	t.Run("device and endpoint zero queries are served", func(t *testing.T) {
		got, err := r.host.ControlIn(getStatus(usb.RecipientDevice, 0))
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0}, got)

		got, err = r.host.ControlIn(getStatus(usb.RecipientEndpoint, 0))
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0}, got)
	})

	t.Run("unreachable targets stall", func(t *testing.T) {
		cases := []struct {
			name string
			in   bool
			sp   usb.SetupPacket
		}{
			{"interface status", true, getStatus(usb.RecipientInterface, 0)},
			{"data endpoint status", true, getStatus(usb.RecipientEndpoint, 0x0081)},
			{"get interface", true, usb.SetupPacket{
				RequestType: usb.DirIn | usb.RecipientInterface,
				Request:     usb.RequestGetInterface, Length: 1,
			}},
			{"set interface", false, usb.SetupPacket{
				RequestType: usb.RecipientInterface,
				Request:     usb.RequestSetInterface,
			}},
			{"synch frame", true, usb.SetupPacket{
				RequestType: usb.DirIn | usb.RecipientEndpoint,
				Request:     usb.RequestSynchFrame, Index: 0x0081, Length: 2,
			}},
			{"set descriptor", false, usb.SetupPacket{
				Request: usb.RequestSetDescriptor, Value: uint16(usb.StringDescType) << 8,
			}},
			{"hid class request", true, hidGet(hid.RequestGetReport, uint16(hid.ReportTypeInput)<<8, 8)},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				var err error
				if tc.in {
					_, err = r.host.ControlIn(tc.sp)
				} else {
					err = r.host.ControlOut(tc.sp, nil)
				}
				assert.ErrorIs(t, err, sim.ErrStall)
			})
		}
	})
}

func TestConfiguredStandardRequests(t *testing.T) {
	r := enumerated(t)
	r.host.MaxSteps = 16

	t.Run("get configuration", func(t *testing.T) {
		got, err := r.host.ControlIn(getConfiguration())
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, got)
	})

	t.Run("get interface", func(t *testing.T) {
		got, err := r.host.ControlIn(usb.SetupPacket{
			RequestType: usb.DirIn | usb.RecipientInterface,
			Request:     usb.RequestGetInterface, Length: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, []byte{0}, got)

		_, err = r.host.ControlIn(usb.SetupPacket{
			RequestType: usb.DirIn | usb.RecipientInterface,
			Request:     usb.RequestGetInterface, Index: 3, Length: 1,
		})
		assert.ErrorIs(t, err, sim.ErrStall)
	})

	t.Run("set interface accepts only alternate zero", func(t *testing.T) {
		err := r.host.ControlOut(usb.SetupPacket{
			RequestType: usb.RecipientInterface,
			Request:     usb.RequestSetInterface,
		}, nil)
		assert.NoError(t, err)

		err = r.host.ControlOut(usb.SetupPacket{
			RequestType: usb.RecipientInterface,
			Request:     usb.RequestSetInterface, Value: 1,
		}, nil)
		assert.ErrorIs(t, err, sim.ErrStall)
	})

	t.Run("set address is ignored", func(t *testing.T) {
		err := r.host.ControlOut(setAddress(9), nil)
		assert.ErrorIs(t, err, sim.ErrTimeout)
		r.poll(1)
		assert.EqualValues(t, 5, r.dev.Address())
		assert.Equal(t, device.StageConfigured, r.dev.Stage())
	})

	t.Run("interface status", func(t *testing.T) {
		got, err := r.host.ControlIn(getStatus(usb.RecipientInterface, 0))
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0}, got)

		_, err = r.host.ControlIn(getStatus(usb.RecipientInterface, 5))
		assert.ErrorIs(t, err, sim.ErrStall)
	})

	t.Run("endpoint status", func(t *testing.T) {
		got, err := r.host.ControlIn(getStatus(usb.RecipientEndpoint, 0x0081))
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0}, got)

		_, err = r.host.ControlIn(getStatus(usb.RecipientEndpoint, 0x0082))
		assert.ErrorIs(t, err, sim.ErrStall)
	})

	t.Run("synch frame stalls", func(t *testing.T) {
		_, err := r.host.ControlIn(usb.SetupPacket{
			RequestType: usb.DirIn | usb.RecipientEndpoint,
			Request:     usb.RequestSynchFrame, Index: 0x0081, Length: 2,
		})
		assert.ErrorIs(t, err, sim.ErrStall)
	})

	t.Run("vendor request stalls", func(t *testing.T) {
		_, err := r.host.ControlIn(usb.SetupPacket{
			RequestType: usb.DirIn | usb.TypeVendor,
			Request:     0x42, Length: 4,
		})
		assert.ErrorIs(t, err, sim.ErrStall)
	})
}

func TestRemoteWakeupFeature(t *testing.T) {
	r := enumerated(t)

	got, err := r.host.ControlIn(getStatus(usb.RecipientDevice, 0))
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0}, got)

	require.NoError(t, r.host.ControlOut(
		feature(usb.RequestSetFeature, usb.RecipientDevice, usb.FeatureDeviceRemoteWakeup, 0), nil))
	got, err = r.host.ControlIn(getStatus(usb.RecipientDevice, 0))
	require.NoError(t, err)
	assert.Equal(t, []byte{usb.StatusRemoteWakeup, 0}, got)

	require.NoError(t, r.host.ControlOut(
		feature(usb.RequestClearFeature, usb.RecipientDevice, usb.FeatureDeviceRemoteWakeup, 0), nil))
	got, err = r.host.ControlIn(getStatus(usb.RecipientDevice, 0))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, got)

	// A bus reset clears the enable flag.
	require.NoError(t, r.host.ControlOut(
		feature(usb.RequestSetFeature, usb.RecipientDevice, usb.FeatureDeviceRemoteWakeup, 0), nil))
	r.host.BusReset()
	r.poll(1)
	r.setAddress(5)
	r.configure(1)
	got, err = r.host.ControlIn(getStatus(usb.RecipientDevice, 0))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, got)
}

func TestTestModeCannotBeCleared(t *testing.T) {
	r := enumerated(t)

	require.NoError(t, r.host.ControlOut(
		feature(usb.RequestSetFeature, usb.RecipientDevice, usb.FeatureTestMode, 0), nil))
	err := r.host.ControlOut(
		feature(usb.RequestClearFeature, usb.RecipientDevice, usb.FeatureTestMode, 0), nil)
	assert.ErrorIs(t, err, sim.ErrStall)
}

func TestEndpointHaltFeature(t *testing.T) {
	r := enumerated(t)
	r.host.MaxSteps = 16

	halt := feature(usb.RequestSetFeature, usb.RecipientEndpoint, usb.FeatureEndpointHalt, 0x0081)
	unhalt := feature(usb.RequestClearFeature, usb.RecipientEndpoint, usb.FeatureEndpointHalt, 0x0081)

	require.NoError(t, r.host.ControlOut(halt, nil))
	got, err := r.host.ControlIn(getStatus(usb.RecipientEndpoint, 0x0081))
	require.NoError(t, err)
	assert.Equal(t, []byte{usb.StatusEndpointHalt, 0}, got)

	// Reports are dropped while halted.
	r.dev.DispatchKeypress(hid.MakeInputReport(0, keymap.KeyA))
	r.poll(1)
	assert.Equal(t, hid.InputReport{}, r.dev.LastReport())
	_, err = r.host.InterruptIn(1)
	assert.ErrorIs(t, err, sim.ErrStall)

	require.NoError(t, r.host.ControlOut(unhalt, nil))
	got, err = r.host.ControlIn(getStatus(usb.RecipientEndpoint, 0x0081))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, got)

	r.dev.DispatchKeypress(hid.MakeInputReport(0, keymap.KeyA))
	r.poll(1)
	pkt, err := r.host.InterruptIn(1)
	require.NoError(t, err)
	assert.EqualValues(t, keymap.KeyA, pkt[2])

	t.Run("unknown endpoint stalls", func(t *testing.T) {
		err := r.host.ControlOut(
			feature(usb.RequestSetFeature, usb.RecipientEndpoint, usb.FeatureEndpointHalt, 0x0082), nil)
		assert.ErrorIs(t, err, sim.ErrStall)
	})

	t.Run("endpoint zero halt is a no-op", func(t *testing.T) {
		err := r.host.ControlOut(
			feature(usb.RequestSetFeature, usb.RecipientEndpoint, usb.FeatureEndpointHalt, 0), nil)
		require.NoError(t, err)
		got, err := r.host.ControlIn(getStatus(usb.RecipientEndpoint, 0))
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0}, got)
	})
}

func TestHIDGetReport(t *testing.T) {
	r := enumerated(t)

	got, err := r.host.ControlIn(hidGet(hid.RequestGetReport, uint16(hid.ReportTypeInput)<<8, 8))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, hid.InputReportLen), got)

	pressed := hid.MakeInputReport(keymap.ModLeftCtrl, keymap.KeyC)
	r.dev.DispatchKeypress(pressed)
	r.poll(1)
	_, err = r.host.InterruptIn(1)
	require.NoError(t, err)

	got, err = r.host.ControlIn(hidGet(hid.RequestGetReport, uint16(hid.ReportTypeInput)<<8, 8))
	require.NoError(t, err)
	assert.Equal(t, []byte(pressed[:]), got)
}

func TestHIDSetReportDrivesLEDs(t *testing.T) {
	r := enumerated(t)

	err := r.host.ControlOut(hidSet(hid.RequestSetReport, uint16(hid.ReportTypeOutput)<<8, 1),
		[]byte{keymap.LEDCapsLock | keymap.LEDNumLock})
	require.NoError(t, err)
	r.poll(1)
	assert.EqualValues(t, keymap.LEDCapsLock|keymap.LEDNumLock, r.dev.LEDs())

	got, err := r.host.ControlIn(hidGet(hid.RequestGetReport, uint16(hid.ReportTypeOutput)<<8, 1))
	require.NoError(t, err)
	assert.Equal(t, []byte{keymap.LEDCapsLock | keymap.LEDNumLock}, got)
}

func TestHIDIdleAndProtocol(t *testing.T) {
	r := enumerated(t)

	got, err := r.host.ControlIn(hidGet(hid.RequestGetIdle, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, got)

	require.NoError(t, r.host.ControlOut(hidSet(hid.RequestSetIdle, 0x7D00, 0), nil))
	r.poll(1)
	assert.EqualValues(t, 0x7D, r.dev.IdleRate())
	got, err = r.host.ControlIn(hidGet(hid.RequestGetIdle, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7D}, got)

	got, err = r.host.ControlIn(hidGet(hid.RequestGetProtocol, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, []byte{hid.ProtocolReport}, got)

	require.NoError(t, r.host.ControlOut(hidSet(hid.RequestSetProtocol, uint16(hid.ProtocolBoot), 0), nil))
	r.poll(1)
	assert.EqualValues(t, hid.ProtocolBoot, r.dev.Protocol())

	err = r.host.ControlOut(hidSet(hid.RequestSetProtocol, 2, 0), nil)
	assert.ErrorIs(t, err, sim.ErrStall)
}

func TestHIDClassRejections(t *testing.T) {
	r := enumerated(t)

	cases := []struct {
		name string
		in   bool
		sp   usb.SetupPacket
		data []byte
	}{
		{"get feature report", true,
			hidGet(hid.RequestGetReport, uint16(hid.ReportTypeFeature)<<8, 8), nil},
		{"set input report", false,
			hidSet(hid.RequestSetReport, uint16(hid.ReportTypeInput)<<8, 1), []byte{0}},
		{"set report without data", false,
			hidSet(hid.RequestSetReport, uint16(hid.ReportTypeOutput)<<8, 0), nil},
		{"device recipient", true, usb.SetupPacket{
			RequestType: usb.DirIn | usb.TypeClass | usb.RecipientDevice,
			Request:     hid.RequestGetReport,
			Value:       uint16(hid.ReportTypeInput) << 8,
			Length:      8,
		}, nil},
		{"wrong interface", true, usb.SetupPacket{
			RequestType: usb.DirIn | usb.TypeClass | usb.RecipientInterface,
			Request:     hid.RequestGetReport,
			Value:       uint16(hid.ReportTypeInput) << 8,
			Index:       3,
			Length:      8,
		}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			if tc.in {
				_, err = r.host.ControlIn(tc.sp)
			} else {
				err = r.host.ControlOut(tc.sp, tc.data)
			}
			assert.ErrorIs(t, err, sim.ErrStall)
		})
	}
}

func TestDescriptorEdgeCases(t *testing.T) {
	r := newRig(t, nil)
	r.start()

	t.Run("reply clipped to wLength", func(t *testing.T) {
		got, err := r.host.ControlIn(getDescriptor(usb.DeviceDescType, 0, 0, 8))
		require.NoError(t, err)
		require.Len(t, got, 8)
		assert.Equal(t, byte(usb.DeviceDescLen), got[0])
	})

	t.Run("language table", func(t *testing.T) {
		got, err := r.host.ControlIn(getDescriptor(usb.StringDescType, 0, 0, 255))
		require.NoError(t, err)
		assert.Equal(t, []byte{4, usb.StringDescType, 0x09, 0x04}, got)
	})

	t.Run("manufacturer string", func(t *testing.T) {
		got, err := r.host.ControlIn(getDescriptor(usb.StringDescType, 1, usb.LangEnglishUS, 255))
		require.NoError(t, err)
		assert.Equal(t, usb.EncodeStringDescriptor("sub000"), got)
	})

	t.Run("string ending on a packet boundary", func(t *testing.T) {
		// 19 UTF-16 characters encode to 40 bytes, five full packets on
		// an 8-byte endpoint, so the transfer ends with a zero-length
		// packet.
		got, err := r.host.ControlIn(getDescriptor(usb.StringDescType, 2, usb.LangEnglishUS, 255))
		require.NoError(t, err)
		assert.Equal(t, usb.EncodeStringDescriptor("Mechanical Keyboard"), got)
		assert.Len(t, got, 40)
	})

	t.Run("unsupported language stalls", func(t *testing.T) {
		_, err := r.host.ControlIn(getDescriptor(usb.StringDescType, 1, 0x0407, 255))
		assert.ErrorIs(t, err, sim.ErrStall)
	})

	t.Run("unknown string index stalls", func(t *testing.T) {
		_, err := r.host.ControlIn(getDescriptor(usb.StringDescType, 9, usb.LangEnglishUS, 255))
		assert.ErrorIs(t, err, sim.ErrStall)
	})

	t.Run("configuration index out of range stalls", func(t *testing.T) {
		_, err := r.host.ControlIn(getDescriptor(usb.ConfigDescType, 1, 0, 9))
		assert.ErrorIs(t, err, sim.ErrStall)
	})

	t.Run("zero wLength is a bare status stage", func(t *testing.T) {
		got, err := r.host.ControlIn(getDescriptor(usb.DeviceDescType, 0, 0, 0))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("hid descriptor by type", func(t *testing.T) {
		got, err := r.host.ControlIn(getDescriptor(usb.HIDDescType, 0, 0, uint16(usb.HIDDescLen)))
		require.NoError(t, err)
		require.Len(t, got, usb.HIDDescLen)
		assert.Equal(t, byte(usb.HIDDescType), got[1])
		assert.Equal(t, []byte{0x11, 0x01}, got[2:4])
	})
}
