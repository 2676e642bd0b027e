package usb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrNoDescriptor marks a GET_DESCRIPTOR target this set cannot
	// serve; the control endpoint answers it with a STALL.
	ErrNoDescriptor = errors.New("no such descriptor")
)

// Interface bundles the descriptors of one interface: the interface
// descriptor itself, an optional HID class descriptor with its report
// descriptor bytes, and the interface's endpoints.
type Interface struct {
	Descriptor InterfaceDescriptor
	HID        *HIDDescriptor
	Report     []byte
	Endpoints  []EndpointDescriptor
}

// Configuration bundles a configuration header with its interfaces.
type Configuration struct {
	Header     ConfigHeader
	Interfaces []Interface
}

// DescriptorSet holds all static descriptor data of a device. It is
// immutable for the lifetime of the device; Validate is called once at
// construction and the encoders afterwards assume a valid set.
type DescriptorSet struct {
	Device         DeviceDescriptor
	Configurations []Configuration
	// Strings maps string descriptor indexes (1-based) to their UTF-8
	// values. Index 0 is the language table and is always synthesized.
	Strings map[uint8]string
}

// Validate checks the structural invariants of the set: at least one
// configuration, each with at least one interface; HID interfaces carry
// exactly one HID descriptor and at least one endpoint; counts and
// sizes in the headers agree with the actual layout.
func (d *DescriptorSet) Validate() error {
	if len(d.Configurations) == 0 {
		return errors.New("descriptor set: no configurations")
	}
	if int(d.Device.BNumConfigurations) != len(d.Configurations) {
		return fmt.Errorf("descriptor set: bNumConfigurations is %d, have %d configurations",
			d.Device.BNumConfigurations, len(d.Configurations))
	}
	switch d.Device.BMaxPacketSize0 {
	case 8, 16, 32, 64:
	default:
		return fmt.Errorf("descriptor set: bMaxPacketSize0 %d not in {8,16,32,64}", d.Device.BMaxPacketSize0)
	}
	seen := map[uint8]bool{}
	for ci := range d.Configurations {
		cfg := &d.Configurations[ci]
		v := cfg.Header.BConfigurationValue
		if v == 0 {
			return fmt.Errorf("configuration %d: bConfigurationValue must be nonzero", ci)
		}
		if seen[v] {
			return fmt.Errorf("configuration %d: duplicate bConfigurationValue %d", ci, v)
		}
		seen[v] = true
		if len(cfg.Interfaces) == 0 {
			return fmt.Errorf("configuration %d: no interfaces", ci)
		}
		if int(cfg.Header.BNumInterfaces) != len(cfg.Interfaces) {
			return fmt.Errorf("configuration %d: bNumInterfaces is %d, have %d",
				ci, cfg.Header.BNumInterfaces, len(cfg.Interfaces))
		}
		for ii := range cfg.Interfaces {
			ifc := &cfg.Interfaces[ii]
			if int(ifc.Descriptor.BNumEndpoints) != len(ifc.Endpoints) {
				return fmt.Errorf("configuration %d interface %d: bNumEndpoints is %d, have %d",
					ci, ii, ifc.Descriptor.BNumEndpoints, len(ifc.Endpoints))
			}
			if ifc.Descriptor.BInterfaceClass == 0x03 {
				if ifc.HID == nil {
					return fmt.Errorf("configuration %d interface %d: HID class without HID descriptor", ci, ii)
				}
				if len(ifc.Endpoints) == 0 {
					return fmt.Errorf("configuration %d interface %d: HID interface needs an endpoint", ci, ii)
				}
			}
			if ifc.HID != nil {
				if len(ifc.Report) == 0 {
					return fmt.Errorf("configuration %d interface %d: HID descriptor without report descriptor", ci, ii)
				}
				if int(ifc.HID.WDescriptorLength) != len(ifc.Report) {
					return fmt.Errorf("configuration %d interface %d: wDescriptorLength is %d, report is %d bytes",
						ci, ii, ifc.HID.WDescriptorLength, len(ifc.Report))
				}
			}
		}
	}
	for idx, s := range d.Strings {
		if idx == 0 {
			return errors.New("descriptor set: string index 0 is reserved for the language table")
		}
		if len([]rune(s)) > 126 {
			return fmt.Errorf("string %d: longer than 126 characters", idx)
		}
	}
	for _, idx := range []uint8{d.Device.IManufacturer, d.Device.IProduct, d.Device.ISerialNumber} {
		if idx == 0 {
			continue
		}
		if _, ok := d.Strings[idx]; !ok {
			return fmt.Errorf("device descriptor references missing string %d", idx)
		}
	}
	return nil
}

// DeviceBytes encodes the 18-byte device descriptor.
func (d *DescriptorSet) DeviceBytes() []byte {
	return d.Device.Bytes()
}

// ConfigurationBytes assembles the full configuration block at position
// index: header, then per interface the interface descriptor, HID
// descriptor when present, and endpoint descriptors. The header's
// wTotalLength is patched to the assembled size.
func (d *DescriptorSet) ConfigurationBytes(index int) ([]byte, error) {
	if index < 0 || index >= len(d.Configurations) {
		return nil, ErrNoDescriptor
	}
	cfg := &d.Configurations[index]

	var b bytes.Buffer
	cfg.Header.Write(&b)
	for i := range cfg.Interfaces {
		ifc := &cfg.Interfaces[i]
		ifc.Descriptor.Write(&b)
		if ifc.HID != nil {
			ifc.HID.Write(&b)
		}
		for _, ep := range ifc.Endpoints {
			ep.Write(&b)
		}
	}
	data := b.Bytes()
	binary.LittleEndian.PutUint16(data[2:4], uint16(len(data)))
	return data, nil
}

// ConfigurationByValue finds the configuration with the given
// bConfigurationValue, or nil.
func (d *DescriptorSet) ConfigurationByValue(v uint8) *Configuration {
	for i := range d.Configurations {
		if d.Configurations[i].Header.BConfigurationValue == v {
			return &d.Configurations[i]
		}
	}
	return nil
}

// StringBytes encodes string descriptor index for the given language.
// Index 0 returns the language table; other indexes require a
// supported language.
func (d *DescriptorSet) StringBytes(index uint8, lang uint16) ([]byte, error) {
	if index == 0 {
		return EncodeLanguageTable(LangEnglishUS), nil
	}
	if lang != 0 && lang != LangEnglishUS {
		return nil, fmt.Errorf("%w: language %#04x", ErrNoDescriptor, lang)
	}
	s, ok := d.Strings[index]
	if !ok {
		return nil, fmt.Errorf("%w: string %d", ErrNoDescriptor, index)
	}
	return EncodeStringDescriptor(s), nil
}

// HIDInterface returns the first HID-class interface of the
// configuration at position index, or nil.
func (d *DescriptorSet) HIDInterface(index int) *Interface {
	if index < 0 || index >= len(d.Configurations) {
		return nil
	}
	cfg := &d.Configurations[index]
	for i := range cfg.Interfaces {
		if cfg.Interfaces[i].HID != nil {
			return &cfg.Interfaces[i]
		}
	}
	return nil
}

// InterfaceByNumber returns the interface with bInterfaceNumber n in
// the configuration at position index, or nil.
func (d *DescriptorSet) InterfaceByNumber(index int, n uint8) *Interface {
	if index < 0 || index >= len(d.Configurations) {
		return nil
	}
	cfg := &d.Configurations[index]
	for i := range cfg.Interfaces {
		if cfg.Interfaces[i].Descriptor.BInterfaceNumber == n {
			return &cfg.Interfaces[i]
		}
	}
	return nil
}
