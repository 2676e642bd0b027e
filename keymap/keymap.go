// Package keymap holds the HID usage tables for a keyboard: usage
// codes, modifier and LED bitmasks, character lookups, and the matrix
// layout that assigns a usage to each switch position.
package keymap

import "fmt"

// IsModifier reports whether usage is one of the eight modifier keys.
func IsModifier(usage uint8) bool {
	return usage >= KeyLeftCtrl && usage <= KeyRightGUI
}

// ModifierBit returns the report bitmask for a modifier usage, or 0
// for any other usage.
func ModifierBit(usage uint8) uint8 {
	if !IsModifier(usage) {
		return 0
	}
	return 1 << (usage - KeyLeftCtrl)
}

// Lookup resolves an ASCII character to its usage code and whether
// Shift must be held.
func Lookup(ch byte) (usage uint8, shift bool, ok bool) {
	usage, ok = CharToKey[ch]
	if !ok {
		return 0, false, false
	}
	return usage, ShiftChars[ch], true
}

// NeedsShift reports whether typing ch requires the Shift modifier.
func NeedsShift(ch byte) bool {
	return ShiftChars[ch]
}

// Name returns the human-readable name of a usage code.
func Name(usage uint8) string {
	if n, ok := KeyName[usage]; ok {
		return n
	}
	return fmt.Sprintf("0x%02X", usage)
}

// Layout maps matrix [row][col] positions to usage codes. Zero marks
// an unpopulated position.
type Layout [][]uint8

// Rows returns the number of matrix rows.
func (l Layout) Rows() int { return len(l) }

// Cols returns the number of matrix columns.
func (l Layout) Cols() int {
	if len(l) == 0 {
		return 0
	}
	return len(l[0])
}

// At returns the usage at [row][col], or 0 when out of range.
func (l Layout) At(row, col int) uint8 {
	if row < 0 || row >= len(l) {
		return 0
	}
	if col < 0 || col >= len(l[row]) {
		return 0
	}
	return l[row][col]
}

// Position returns the switch position carrying a usage. The first
// match in row-major order wins.
func (l Layout) Position(usage uint8) (row, col int, ok bool) {
	if usage == 0 {
		return 0, 0, false
	}
	for r := range l {
		for c := range l[r] {
			if l[r][c] == usage {
				return r, c, true
			}
		}
	}
	return 0, 0, false
}

// Validate checks that the layout is rectangular and only assigns
// usages a boot keyboard can report.
func (l Layout) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("keymap: empty layout")
	}
	cols := len(l[0])
	if cols == 0 {
		return fmt.Errorf("keymap: empty row 0")
	}
	for r, row := range l {
		if len(row) != cols {
			return fmt.Errorf("keymap: row %d has %d columns, want %d", r, len(row), cols)
		}
		for c, usage := range row {
			if usage == 0 || IsModifier(usage) {
				continue
			}
			if usage > KeyApplication {
				return fmt.Errorf("keymap: usage 0x%02X at [%d][%d] outside boot protocol range", usage, r, c)
			}
		}
	}
	return nil
}

// ANSI60 is a 5x14 layout covering a 60% ANSI board. Wide keys occupy
// one position; unused positions are zero.
var ANSI60 = Layout{
	{KeyEscape, Key1, Key2, Key3, Key4, Key5, Key6, Key7, Key8, Key9, Key0, KeyMinus, KeyEqual, KeyBackspace},
	{KeyTab, KeyQ, KeyW, KeyE, KeyR, KeyT, KeyY, KeyU, KeyI, KeyO, KeyP, KeyLeftBrace, KeyRightBrace, KeyBackslash},
	{KeyCapsLock, KeyA, KeyS, KeyD, KeyF, KeyG, KeyH, KeyJ, KeyK, KeyL, KeySemicolon, KeyApostrophe, KeyEnter, 0},
	{KeyLeftShift, KeyZ, KeyX, KeyC, KeyV, KeyB, KeyN, KeyM, KeyComma, KeyPeriod, KeySlash, KeyRightShift, 0, 0},
	{KeyLeftCtrl, KeyLeftGUI, KeyLeftAlt, KeySpace, KeyRightAlt, KeyRightGUI, KeyApplication, KeyRightCtrl, 0, 0, 0, 0, 0, 0},
}
