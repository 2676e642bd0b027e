package hid

// Class-specific requests, HID 1.11 §7.2.
const (
	RequestGetReport   uint8 = 0x01
	RequestGetIdle     uint8 = 0x02
	RequestGetProtocol uint8 = 0x03
	RequestSetReport   uint8 = 0x09
	RequestSetIdle     uint8 = 0x0A
	RequestSetProtocol uint8 = 0x0B
)

// Report types, the high byte of wValue in GET_REPORT and SET_REPORT.
const (
	ReportTypeInput   uint8 = 0x01
	ReportTypeOutput  uint8 = 0x02
	ReportTypeFeature uint8 = 0x03
)

// Protocol values for GET_PROTOCOL and SET_PROTOCOL.
const (
	ProtocolBoot   uint8 = 0x00
	ProtocolReport uint8 = 0x01
)

// Interface class triple for a boot-protocol keyboard.
const (
	ClassHID               uint8 = 0x03
	SubclassBoot           uint8 = 0x01
	InterfaceProtoKeyboard uint8 = 0x01
)

// BcdHID11 is bcdHID for HID release 1.11.
const BcdHID11 uint16 = 0x0111

// CountryNone means the hardware is not localized.
const CountryNone uint8 = 0x00
