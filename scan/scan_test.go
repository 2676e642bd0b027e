package scan_test

import (
	"testing"

	"github.com/ress059/Mechanical-Keyboard-sub000/keymap"
	"github.com/ress059/Mechanical-Keyboard-sub000/scan"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb/hid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLayout = keymap.Layout{
	{keymap.KeyLeftShift, keymap.KeyA, keymap.KeyB, keymap.KeyC},
	{keymap.KeyD, keymap.KeyE, keymap.KeyF, keymap.KeyG},
}

func TestDebouncerFiltersBounce(t *testing.T) {
	d := scan.NewDebouncer(1, 1, 3)

	// Chatter shorter than the threshold never reports.
	assert.False(t, d.Update(0, 0, true))
	assert.False(t, d.Update(0, 0, false))
	assert.False(t, d.Update(0, 0, true))
	assert.False(t, d.Update(0, 0, false))

	// A level held for the full threshold latches.
	assert.False(t, d.Update(0, 0, true))
	assert.False(t, d.Update(0, 0, true))
	assert.True(t, d.Update(0, 0, true))

	// Release debounces symmetrically.
	assert.True(t, d.Update(0, 0, false))
	assert.True(t, d.Update(0, 0, false))
	assert.False(t, d.Update(0, 0, false))
}

func TestDebouncerReset(t *testing.T) {
	d := scan.NewDebouncer(2, 2, 1)
	require.True(t, d.Update(1, 1, true))
	d.Reset()
	assert.False(t, d.Update(1, 1, false))
}

func newTestScanner(t *testing.T) (*scan.Scanner, *scan.ScriptedMatrix) {
	t.Helper()
	m := scan.NewScriptedMatrix(2, 4)
	s, err := scan.NewScanner(m, testLayout, 1)
	require.NoError(t, err)
	return s, m
}

func TestScannerBuildsReport(t *testing.T) {
	s, m := newTestScanner(t)

	// Nothing pressed: empty report, nothing changed.
	report, changed := s.Scan()
	assert.True(t, report.Empty())
	assert.False(t, changed)

	m.Press(0, 0) // left shift
	m.Press(0, 1) // A
	report, changed = s.Scan()
	assert.True(t, changed)
	assert.Equal(t, hid.MakeInputReport(keymap.ModLeftShift, keymap.KeyA), report)

	// Same state scans as unchanged.
	_, changed = s.Scan()
	assert.False(t, changed)

	m.Release(0, 1)
	report, changed = s.Scan()
	assert.True(t, changed)
	assert.Equal(t, hid.MakeInputReport(keymap.ModLeftShift), report)
}

func TestScannerSlotOrderFollowsScanOrder(t *testing.T) {
	s, m := newTestScanner(t)
	m.Press(1, 0) // D
	m.Press(0, 2) // B
	report, _ := s.Scan()
	assert.Equal(t, [6]uint8{keymap.KeyB, keymap.KeyD, 0, 0, 0, 0}, report.Keys())
}

func TestScannerRollover(t *testing.T) {
	s, m := newTestScanner(t)

	// Seven plain keys held.
	for _, pos := range [][2]int{{0, 1}, {0, 2}, {0, 3}, {1, 0}, {1, 1}, {1, 2}, {1, 3}} {
		m.Press(pos[0], pos[1])
	}
	m.Press(0, 0) // shift stays reported during rollover

	report, changed := s.Scan()
	assert.True(t, changed)
	assert.True(t, report.RollOver())
	assert.Equal(t, uint8(keymap.ModLeftShift), report.Modifiers())

	// Dropping back to six keys restores normal reporting.
	m.Release(1, 3)
	report, changed = s.Scan()
	assert.True(t, changed)
	assert.False(t, report.RollOver())
	assert.Equal(t, [6]uint8{keymap.KeyA, keymap.KeyB, keymap.KeyC, keymap.KeyD, keymap.KeyE, keymap.KeyF}, report.Keys())
}

func TestScannerDebounceDelaysReport(t *testing.T) {
	m := scan.NewScriptedMatrix(2, 4)
	s, err := scan.NewScanner(m, testLayout, 3)
	require.NoError(t, err)

	m.Press(0, 1)
	_, changed := s.Scan()
	assert.False(t, changed)
	_, changed = s.Scan()
	assert.False(t, changed)
	report, changed := s.Scan()
	assert.True(t, changed)
	assert.Equal(t, [6]uint8{keymap.KeyA, 0, 0, 0, 0, 0}, report.Keys())
}

func TestScannerLayoutMismatch(t *testing.T) {
	m := scan.NewScriptedMatrix(3, 4)
	_, err := scan.NewScanner(m, testLayout, 1)
	assert.Error(t, err)
}

func TestScannerReset(t *testing.T) {
	s, m := newTestScanner(t)
	m.Press(0, 1)
	_, changed := s.Scan()
	require.True(t, changed)

	s.Reset()
	assert.True(t, s.Last().Empty())

	// After reset the held key reports as a fresh change.
	report, changed := s.Scan()
	assert.True(t, changed)
	assert.Equal(t, [6]uint8{keymap.KeyA, 0, 0, 0, 0, 0}, report.Keys())
}
