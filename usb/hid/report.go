package hid

// InputReportLen is the size of a boot keyboard input report.
const InputReportLen = 8

// Boot keyboard report layout: modifiers, reserved, six key slots.
const (
	reportKeySlots = 6
	reportKeyBase  = 2
)

// UsageErrorRollOver fills every key slot when more keys are held
// than the report can carry.
const UsageErrorRollOver uint8 = 0x01

// InputReport is an 8-byte boot keyboard input report.
type InputReport [InputReportLen]byte

// MakeInputReport builds a report from a modifier bitmap and up to six
// key usages. Extra keys are dropped; rollover policy belongs to the
// scanner.
func MakeInputReport(modifiers uint8, keys ...uint8) InputReport {
	var r InputReport
	r[0] = modifiers
	for i, k := range keys {
		if i >= reportKeySlots {
			break
		}
		r[reportKeyBase+i] = k
	}
	return r
}

// Modifiers returns the modifier bitmap.
func (r InputReport) Modifiers() uint8 { return r[0] }

// SetModifiers replaces the modifier bitmap.
func (r *InputReport) SetModifiers(m uint8) { r[0] = m }

// Keys returns the six key slots.
func (r InputReport) Keys() [reportKeySlots]uint8 {
	var keys [reportKeySlots]uint8
	copy(keys[:], r[reportKeyBase:])
	return keys
}

// SetKey writes usage into slot i. Out-of-range slots are ignored.
func (r *InputReport) SetKey(i int, usage uint8) {
	if i < 0 || i >= reportKeySlots {
		return
	}
	r[reportKeyBase+i] = usage
}

// RollOver reports whether every key slot carries ErrorRollOver.
func (r InputReport) RollOver() bool {
	for i := 0; i < reportKeySlots; i++ {
		if r[reportKeyBase+i] != UsageErrorRollOver {
			return false
		}
	}
	return true
}

// Empty reports whether no modifier and no key is pressed.
func (r InputReport) Empty() bool {
	return r == InputReport{}
}
