// Package config holds the build-time configuration surface of the
// firmware: USB identity, speed and clocking, endpoint layout, and the
// key matrix dimensions. A validated Device derives the descriptor set
// and the platform bring-up parameters.
package config

import (
	"fmt"
	"strconv"

	"github.com/ress059/Mechanical-Keyboard-sub000/platform"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb/hid"
)

// MaxGPIO is how many pins the target can dedicate to the key matrix.
const MaxGPIO = 48

// MaxBusPowerMA is the USB 2.0 bus power ceiling.
const MaxBusPowerMA = 500

// Hex16 is a uint16 that accepts both hex ("0x1209") and decimal text
// in config files and flags, and renders as hex.
type Hex16 uint16

func (h *Hex16) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 0, 16)
	if err != nil {
		return err
	}
	*h = Hex16(v)
	return nil
}

func (h Hex16) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("0x%04X", uint16(h))), nil
}

func (h Hex16) String() string { return fmt.Sprintf("0x%04X", uint16(h)) }

// Device is one keyboard's configuration.
type Device struct {
	USBVersion    Hex16 `help:"USB release the device descriptor advertises (BCD)." default:"0x0200"`
	VendorID      Hex16 `help:"idVendor." default:"0x1209"`
	ProductID     Hex16 `help:"idProduct." default:"0x0001"`
	DeviceVersion Hex16 `help:"bcdDevice (BCD)." default:"0x0100"`

	Manufacturer string `help:"Manufacturer string descriptor." default:"sub000"`
	Product      string `help:"Product string descriptor." default:"Mechanical Keyboard"`
	Serial       string `help:"Serial number string descriptor." default:"0001"`

	Speed       string `help:"Bus speed." enum:"low,full" default:"full"`
	ClockSource string `help:"Oscillator feeding the PLL." enum:"internal,external" default:"external"`
	ExternalHz  uint32 `help:"External crystal frequency in Hz." default:"16000000"`

	ControlEndpointSize uint16 `help:"Endpoint 0 max packet size." default:"8"`
	HIDEndpointNumber   uint8  `help:"Interrupt IN endpoint number." default:"1"`
	HIDEndpointSize     uint16 `help:"Interrupt IN max packet size." default:"8"`
	PollIntervalMS      uint8  `help:"Interrupt endpoint polling interval (bInterval)." default:"5"`

	SelfPowered  bool   `help:"Report self-powered in the configuration descriptor." default:"false"`
	RemoteWakeup bool   `help:"Advertise remote wakeup capability." default:"true"`
	MaxPowerMA   uint16 `help:"Bus power draw in mA." default:"100"`

	MatrixRows    int   `help:"Key matrix rows." default:"5"`
	MatrixCols    int   `help:"Key matrix columns." default:"14"`
	DebounceTicks uint8 `help:"Scan ticks a level must hold before it reports." default:"5"`
}

// Default returns the configuration the kong tags would produce with
// no overrides.
func Default() Device {
	return Device{
		USBVersion:          0x0200,
		VendorID:            0x1209,
		ProductID:           0x0001,
		DeviceVersion:       0x0100,
		Manufacturer:        "sub000",
		Product:             "Mechanical Keyboard",
		Serial:              "0001",
		Speed:               "full",
		ClockSource:         "external",
		ExternalHz:          16_000_000,
		ControlEndpointSize: 8,
		HIDEndpointNumber:   1,
		HIDEndpointSize:     8,
		PollIntervalMS:      5,
		RemoteWakeup:        true,
		MaxPowerMA:          100,
		MatrixRows:          5,
		MatrixCols:          14,
		DebounceTicks:       5,
	}
}

// SpeedValue maps the speed selector onto the platform enum.
func (d Device) SpeedValue() platform.Speed {
	if d.Speed == "low" {
		return platform.SpeedLow
	}
	return platform.SpeedFull
}

// ClockValue maps the clock selector onto the platform enum.
func (d Device) ClockValue() platform.ClockSource {
	if d.ClockSource == "internal" {
		return platform.ClockInternal
	}
	return platform.ClockExternal
}

// Validate checks every rule the configuration surface promises:
// version range, speed-dependent endpoint sizes and intervals, matrix
// pin budget, and that the derived descriptor set holds together.
func (d Device) Validate() error {
	if d.USBVersion < 0x0100 || d.USBVersion > 0x0200 {
		return fmt.Errorf("config: usbVersion %s outside 0x0100..0x0200", d.USBVersion)
	}
	switch d.Speed {
	case "low":
		if d.ControlEndpointSize != 8 {
			return fmt.Errorf("config: low speed requires control endpoint size 8, got %d", d.ControlEndpointSize)
		}
		if d.HIDEndpointSize > 8 {
			return fmt.Errorf("config: low speed caps the HID endpoint at 8 bytes, got %d", d.HIDEndpointSize)
		}
		if d.PollIntervalMS < 10 {
			return fmt.Errorf("config: low speed requires a poll interval of at least 10 ms, got %d", d.PollIntervalMS)
		}
	case "full":
		if d.HIDEndpointSize > 64 {
			return fmt.Errorf("config: full speed caps the HID endpoint at 64 bytes, got %d", d.HIDEndpointSize)
		}
		if d.PollIntervalMS == 0 {
			return fmt.Errorf("config: poll interval must be nonzero")
		}
	default:
		return fmt.Errorf("config: speed %q is not low or full", d.Speed)
	}
	switch d.ClockSource {
	case "internal", "external":
	default:
		return fmt.Errorf("config: clock source %q is not internal or external", d.ClockSource)
	}
	if d.MaxPowerMA > MaxBusPowerMA {
		return fmt.Errorf("config: maxPowerMA %d exceeds the %d mA bus limit", d.MaxPowerMA, MaxBusPowerMA)
	}
	if d.MatrixRows < 1 || d.MatrixCols < 1 {
		return fmt.Errorf("config: matrix must be at least 1x1, got %dx%d", d.MatrixRows, d.MatrixCols)
	}
	if d.MatrixRows+d.MatrixCols > MaxGPIO {
		return fmt.Errorf("config: matrix needs %d pins, target has %d", d.MatrixRows+d.MatrixCols, MaxGPIO)
	}
	if err := d.Platform().Validate(); err != nil {
		return err
	}
	set, err := d.DescriptorSet()
	if err != nil {
		return err
	}
	return set.Validate()
}

// Platform derives the bring-up parameters.
func (d Device) Platform() platform.Config {
	return platform.Config{
		Speed:               d.SpeedValue(),
		ClockSource:         d.ClockValue(),
		ExternalHz:          d.ExternalHz,
		ControlEndpointSize: d.ControlEndpointSize,
		HIDEndpointNumber:   d.HIDEndpointNumber,
		HIDEndpointSize:     d.HIDEndpointSize,
	}
}

// DescriptorSet derives the complete descriptor set: one configuration
// with a single boot-keyboard interface and its interrupt IN endpoint.
func (d Device) DescriptorSet() (*usb.DescriptorSet, error) {
	report, err := hid.BootKeyboardReport().Bytes()
	if err != nil {
		return nil, err
	}

	strings := map[uint8]string{}
	next := uint8(1)
	assign := func(s string) uint8 {
		if s == "" {
			return 0
		}
		strings[next] = s
		next++
		return next - 1
	}
	iManufacturer := assign(d.Manufacturer)
	iProduct := assign(d.Product)
	iSerial := assign(d.Serial)

	attrs := uint8(usb.ConfigAttrReserved)
	if d.SelfPowered {
		attrs |= usb.ConfigAttrSelfPowered
	}
	if d.RemoteWakeup {
		attrs |= usb.ConfigAttrRemoteWakeup
	}

	set := &usb.DescriptorSet{
		Device: usb.DeviceDescriptor{
			BcdUSB:             uint16(d.USBVersion),
			BMaxPacketSize0:    uint8(d.ControlEndpointSize),
			IDVendor:           uint16(d.VendorID),
			IDProduct:          uint16(d.ProductID),
			BcdDevice:          uint16(d.DeviceVersion),
			IManufacturer:      iManufacturer,
			IProduct:           iProduct,
			ISerialNumber:      iSerial,
			BNumConfigurations: 1,
		},
		Configurations: []usb.Configuration{{
			Header: usb.ConfigHeader{
				BNumInterfaces:      1,
				BConfigurationValue: 1,
				BMAttributes:        attrs,
				BMaxPower:           uint8((d.MaxPowerMA + 1) / 2),
			},
			Interfaces: []usb.Interface{{
				Descriptor: usb.InterfaceDescriptor{
					BNumEndpoints:      1,
					BInterfaceClass:    hid.ClassHID,
					BInterfaceSubClass: hid.SubclassBoot,
					BInterfaceProtocol: hid.InterfaceProtoKeyboard,
				},
				HID: &usb.HIDDescriptor{
					BcdHID:            hid.BcdHID11,
					BCountryCode:      hid.CountryNone,
					BNumDescriptors:   1,
					ClassDescType:     usb.ReportDescType,
					WDescriptorLength: uint16(len(report)),
				},
				Report: report,
				Endpoints: []usb.EndpointDescriptor{{
					BEndpointAddress: usb.EndpointDirIn | d.HIDEndpointNumber,
					BMAttributes:     usb.EndpointInterrupt,
					WMaxPacketSize:   d.HIDEndpointSize,
					BInterval:        d.PollIntervalMS,
				}},
			}},
		}},
		Strings: strings,
	}
	return set, nil
}
