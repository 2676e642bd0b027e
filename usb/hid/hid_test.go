package hid_test

import (
	"testing"

	"github.com/ress059/Mechanical-Keyboard-sub000/usb/hid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bootKeyboardDescriptor is the canonical 63-byte boot keyboard report
// descriptor from HID 1.11 Appendix E.6.
var bootKeyboardDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x06, // Usage (Keyboard)
	0xA1, 0x01, // Collection (Application)
	0x05, 0x07, //   Usage Page (Keyboard)
	0x19, 0xE0, //   Usage Minimum (Left Ctrl)
	0x29, 0xE7, //   Usage Maximum (Right GUI)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x01, //   Logical Maximum (1)
	0x75, 0x01, //   Report Size (1)
	0x95, 0x08, //   Report Count (8)
	0x81, 0x02, //   Input (Data, Var, Abs)
	0x95, 0x01, //   Report Count (1)
	0x75, 0x08, //   Report Size (8)
	0x81, 0x01, //   Input (Const)
	0x95, 0x05, //   Report Count (5)
	0x75, 0x01, //   Report Size (1)
	0x05, 0x08, //   Usage Page (LEDs)
	0x19, 0x01, //   Usage Minimum (Num Lock)
	0x29, 0x05, //   Usage Maximum (Kana)
	0x91, 0x02, //   Output (Data, Var, Abs)
	0x95, 0x01, //   Report Count (1)
	0x75, 0x03, //   Report Size (3)
	0x91, 0x01, //   Output (Const)
	0x95, 0x06, //   Report Count (6)
	0x75, 0x08, //   Report Size (8)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x65, //   Logical Maximum (101)
	0x05, 0x07, //   Usage Page (Keyboard)
	0x19, 0x00, //   Usage Minimum (0)
	0x29, 0x65, //   Usage Maximum (101)
	0x81, 0x00, //   Input (Data, Array)
	0xC0, // End Collection
}

func TestBootKeyboardReportBytes(t *testing.T) {
	data, err := hid.BootKeyboardReport().Bytes()
	require.NoError(t, err)
	assert.Equal(t, bootKeyboardDescriptor, []byte(data))
}

func TestItemEncoding(t *testing.T) {
	tests := []struct {
		name string
		item hid.Item
		want []byte
	}{
		{
			name: "usage page one byte",
			item: hid.UsagePage{Page: hid.UsagePageGenericDesktop},
			want: []byte{0x05, 0x01},
		},
		{
			name: "usage four bytes",
			item: hid.Usage{Usage: 0x00010002},
			want: []byte{0x0B, 0x02, 0x00, 0x01, 0x00},
		},
		{
			name: "logical maximum 255 is signed two bytes",
			item: hid.LogicalMaximum{Max: 255},
			want: []byte{0x26, 0xFF, 0x00},
		},
		{
			name: "logical minimum minus one",
			item: hid.LogicalMinimum{Min: -1},
			want: []byte{0x15, 0xFF},
		},
		{
			name: "report count 256 is two bytes",
			item: hid.ReportCount{Count: 256},
			want: []byte{0x96, 0x00, 0x01},
		},
		{
			name: "report id",
			item: hid.ReportID{ID: 3},
			want: []byte{0x85, 0x03},
		},
		{
			name: "feature",
			item: hid.Feature{Flags: hid.MainData | hid.MainVar | hid.MainAbs},
			want: []byte{0xB1, 0x02},
		},
		{
			name: "zero data any item",
			item: hid.AnyItem{Type: hid.ItemTypeMain, Tag: 0xC},
			want: []byte{0xC0},
		},
		{
			name: "long item",
			item: hid.LongItem{Tag: 0x42, Data: hid.Data{1, 2, 3}},
			want: []byte{0xFE, 0x03, 0x42, 0x01, 0x02, 0x03},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := hid.Report{Items: []hid.Item{tc.item}}.Bytes()
			require.NoError(t, err)
			assert.Equal(t, tc.want, []byte(data))
		})
	}
}

func TestShortItemRejectsThreeBytes(t *testing.T) {
	r := hid.Report{Items: []hid.Item{
		hid.AnyItem{Type: hid.ItemTypeGlobal, Tag: 0x1, Data: hid.Data{1, 2, 3}},
	}}
	_, err := r.Bytes()
	assert.Error(t, err)
}

func TestNilItemFails(t *testing.T) {
	_, err := hid.Report{Items: []hid.Item{nil}}.Bytes()
	assert.Error(t, err)

	_, err = hid.Report{Items: []hid.Item{
		hid.Collection{Kind: hid.CollectionApplication, Items: []hid.Item{nil}},
	}}.Bytes()
	assert.Error(t, err)
}

func TestNestedCollections(t *testing.T) {
	r := hid.Report{Items: []hid.Item{
		hid.Collection{
			Kind: hid.CollectionApplication,
			Items: []hid.Item{
				hid.Collection{
					Kind:  hid.CollectionPhysical,
					Items: []hid.Item{hid.Usage{Usage: 0x01}},
				},
			},
		},
	}}
	data, err := r.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA1, 0x01, 0xA1, 0x00, 0x09, 0x01, 0xC0, 0xC0}, []byte(data))
}

func TestMakeInputReport(t *testing.T) {
	r := hid.MakeInputReport(0x02, 0x04, 0x05)
	assert.Equal(t, [8]byte{0x02, 0x00, 0x04, 0x05, 0x00, 0x00, 0x00, 0x00}, [8]byte(r))
	assert.Equal(t, uint8(0x02), r.Modifiers())
	assert.Equal(t, [6]uint8{0x04, 0x05, 0, 0, 0, 0}, r.Keys())
	assert.False(t, r.Empty())
	assert.False(t, r.RollOver())

	// A seventh key does not spill past the last slot.
	full := hid.MakeInputReport(0, 1, 2, 3, 4, 5, 6, 7)
	assert.Equal(t, [6]uint8{1, 2, 3, 4, 5, 6}, full.Keys())
}

func TestInputReportRollOver(t *testing.T) {
	r := hid.MakeInputReport(0x01,
		hid.UsageErrorRollOver, hid.UsageErrorRollOver, hid.UsageErrorRollOver,
		hid.UsageErrorRollOver, hid.UsageErrorRollOver, hid.UsageErrorRollOver)
	assert.True(t, r.RollOver())

	var zero hid.InputReport
	assert.True(t, zero.Empty())
	zero.SetKey(0, 0x04)
	zero.SetKey(9, 0xFF)
	assert.Equal(t, [6]uint8{0x04, 0, 0, 0, 0, 0}, zero.Keys())
	zero.SetModifiers(0x08)
	assert.Equal(t, uint8(0x08), zero.Modifiers())
}
