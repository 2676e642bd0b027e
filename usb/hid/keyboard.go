package hid

// Boot keyboard usage bounds.
const (
	usageModifierFirst uint32 = 0xE0
	usageModifierLast  uint32 = 0xE7
	usageKeyLast       uint32 = 0x65
	usageLEDFirst      uint32 = 0x01
	usageLEDLast       uint32 = 0x05
	ledBits            uint32 = 5
	ledPadBits         uint32 = 3
)

// BootKeyboardReport returns the report descriptor of a boot-protocol
// keyboard: one modifier bitmap byte, one reserved byte, a five-bit
// LED output bitmap with three pad bits, and six key-array slots.
// Matches HID 1.11 Appendix E.6.
func BootKeyboardReport() Report {
	return Report{
		Items: []Item{
			UsagePage{Page: UsagePageGenericDesktop},
			Usage{Usage: UsageKeyboard},
			Collection{
				Kind: CollectionApplication,
				Items: []Item{
					// Modifier bitmap.
					UsagePage{Page: UsagePageKeyboard},
					UsageMinimum{Min: usageModifierFirst},
					UsageMaximum{Max: usageModifierLast},
					LogicalMinimum{Min: 0},
					LogicalMaximum{Max: 1},
					ReportSize{Bits: 1},
					ReportCount{Count: 8},
					Input{Flags: MainData | MainVar | MainAbs},

					// Reserved byte.
					ReportCount{Count: 1},
					ReportSize{Bits: 8},
					Input{Flags: MainConst},

					// LED bitmap plus padding.
					ReportCount{Count: ledBits},
					ReportSize{Bits: 1},
					UsagePage{Page: UsagePageLEDs},
					UsageMinimum{Min: usageLEDFirst},
					UsageMaximum{Max: usageLEDLast},
					Output{Flags: MainData | MainVar | MainAbs},
					ReportCount{Count: 1},
					ReportSize{Bits: ledPadBits},
					Output{Flags: MainConst},

					// Key array.
					ReportCount{Count: 6},
					ReportSize{Bits: 8},
					LogicalMinimum{Min: 0},
					LogicalMaximum{Max: int32(usageKeyLast)},
					UsagePage{Page: UsagePageKeyboard},
					UsageMinimum{Min: 0},
					UsageMaximum{Max: usageKeyLast},
					Input{Flags: MainData | MainArray | MainAbs},
				},
			},
		},
	}
}
