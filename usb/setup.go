package usb

import (
	"encoding/binary"
	"fmt"
)

// SetupLen is the wire size of a setup packet.
const SetupLen = 8

// Standard request codes (USB 2.0 table 9-4).
const (
	RequestGetStatus        = 0x00
	RequestClearFeature     = 0x01
	RequestSetFeature       = 0x03
	RequestSetAddress       = 0x05
	RequestGetDescriptor    = 0x06
	RequestSetDescriptor    = 0x07
	RequestGetConfiguration = 0x08
	RequestSetConfiguration = 0x09
	RequestGetInterface     = 0x0A
	RequestSetInterface     = 0x0B
	RequestSynchFrame       = 0x0C
)

// Standard feature selectors (USB 2.0 table 9-6).
const (
	FeatureEndpointHalt       = 0x00
	FeatureDeviceRemoteWakeup = 0x01
	FeatureTestMode           = 0x02
)

// bmRequestType fields.
const (
	DirIn = 0x80 // device-to-host when set

	TypeStandard = 0x00
	TypeClass    = 0x20
	TypeVendor   = 0x40
	typeMask     = 0x60

	RecipientDevice    = 0x00
	RecipientInterface = 0x01
	RecipientEndpoint  = 0x02
	RecipientOther     = 0x03
	recipientMask      = 0x1F
)

// Device and endpoint status bits returned by GET_STATUS.
const (
	StatusSelfPowered  = 0x01
	StatusRemoteWakeup = 0x02
	StatusEndpointHalt = 0x01
)

// MaxAddress is the highest bus address a host may assign.
const MaxAddress = 127

// SetupPacket is the 8-byte record opening every control transfer. All
// multi-byte fields are little-endian on the wire.
type SetupPacket struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

// ParseSetup decodes the 8 bytes read from the control FIFO.
func ParseSetup(b []byte) (SetupPacket, error) {
	if len(b) < SetupLen {
		return SetupPacket{}, fmt.Errorf("setup packet: got %d bytes, want %d", len(b), SetupLen)
	}
	return SetupPacket{
		RequestType: b[0],
		Request:     b[1],
		Value:       binary.LittleEndian.Uint16(b[2:4]),
		Index:       binary.LittleEndian.Uint16(b[4:6]),
		Length:      binary.LittleEndian.Uint16(b[6:8]),
	}, nil
}

// Bytes encodes the packet for the wire.
func (s SetupPacket) Bytes() []byte {
	b := make([]byte, SetupLen)
	b[0] = s.RequestType
	b[1] = s.Request
	binary.LittleEndian.PutUint16(b[2:4], s.Value)
	binary.LittleEndian.PutUint16(b[4:6], s.Index)
	binary.LittleEndian.PutUint16(b[6:8], s.Length)
	return b
}

// In reports whether the data stage, if any, runs device-to-host.
func (s SetupPacket) In() bool { return s.RequestType&DirIn != 0 }

func (s SetupPacket) IsStandard() bool { return s.RequestType&typeMask == TypeStandard }
func (s SetupPacket) IsClass() bool    { return s.RequestType&typeMask == TypeClass }

// Recipient returns the RecipientDevice/Interface/Endpoint/Other field.
func (s SetupPacket) Recipient() uint8 { return s.RequestType & recipientMask }

// DescriptorType returns the requested type for GET_DESCRIPTOR.
func (s SetupPacket) DescriptorType() uint8 { return uint8(s.Value >> 8) }

// DescriptorIndex returns the requested index for GET_DESCRIPTOR.
func (s SetupPacket) DescriptorIndex() uint8 { return uint8(s.Value) }

// LanguageID returns wIndex as a string-descriptor language ID.
func (s SetupPacket) LanguageID() uint16 { return s.Index }

// InterfaceNumber returns wIndex as an interface number.
func (s SetupPacket) InterfaceNumber() uint8 { return uint8(s.Index) }

// EndpointAddress returns wIndex as an endpoint address including the
// direction bit.
func (s SetupPacket) EndpointAddress() uint8 { return uint8(s.Index) }

// EndpointNumber returns the endpoint number without the direction bit.
func (s SetupPacket) EndpointNumber() uint8 { return uint8(s.Index) & 0x0F }

func (s SetupPacket) String() string {
	dir := "out"
	if s.In() {
		dir = "in"
	}
	return fmt.Sprintf("setup{type=%#02x(%s) req=%#02x value=%#04x index=%#04x length=%d}",
		s.RequestType, dir, s.Request, s.Value, s.Index, s.Length)
}
