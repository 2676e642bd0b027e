package keymap_test

import (
	"testing"

	"github.com/ress059/Mechanical-Keyboard-sub000/keymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModifierBit(t *testing.T) {
	tests := []struct {
		name  string
		usage uint8
		want  uint8
	}{
		{name: "left ctrl", usage: keymap.KeyLeftCtrl, want: keymap.ModLeftCtrl},
		{name: "left shift", usage: keymap.KeyLeftShift, want: keymap.ModLeftShift},
		{name: "right gui", usage: keymap.KeyRightGUI, want: keymap.ModRightGUI},
		{name: "plain key", usage: keymap.KeyA, want: 0},
		{name: "zero", usage: 0, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, keymap.ModifierBit(tc.usage))
		})
	}
}

func TestLookup(t *testing.T) {
	usage, shift, ok := keymap.Lookup('a')
	require.True(t, ok)
	assert.Equal(t, uint8(keymap.KeyA), usage)
	assert.False(t, shift)

	usage, shift, ok = keymap.Lookup('A')
	require.True(t, ok)
	assert.Equal(t, uint8(keymap.KeyA), usage)
	assert.True(t, shift)

	usage, shift, ok = keymap.Lookup('?')
	require.True(t, ok)
	assert.Equal(t, uint8(keymap.KeySlash), usage)
	assert.True(t, shift)

	_, _, ok = keymap.Lookup(0x07)
	assert.False(t, ok)
}

func TestName(t *testing.T) {
	assert.Equal(t, "Enter", keymap.Name(keymap.KeyEnter))
	assert.Equal(t, "LeftShift", keymap.Name(keymap.KeyLeftShift))
	assert.Equal(t, "0xF0", keymap.Name(0xF0))
}

func TestANSI60Layout(t *testing.T) {
	require.NoError(t, keymap.ANSI60.Validate())
	assert.Equal(t, 5, keymap.ANSI60.Rows())
	assert.Equal(t, 14, keymap.ANSI60.Cols())
	assert.Equal(t, uint8(keymap.KeyEscape), keymap.ANSI60.At(0, 0))
	assert.Equal(t, uint8(keymap.KeySpace), keymap.ANSI60.At(4, 3))
	assert.Equal(t, uint8(0), keymap.ANSI60.At(2, 13))
	assert.Equal(t, uint8(0), keymap.ANSI60.At(9, 0))
	assert.Equal(t, uint8(0), keymap.ANSI60.At(0, -1))
}

func TestLayoutPosition(t *testing.T) {
	row, col, ok := keymap.ANSI60.Position(keymap.KeySpace)
	require.True(t, ok)
	assert.Equal(t, 4, row)
	assert.Equal(t, 3, col)

	row, col, ok = keymap.ANSI60.Position(keymap.KeyEscape)
	require.True(t, ok)
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)

	_, _, ok = keymap.ANSI60.Position(keymap.KeyF1)
	assert.False(t, ok)

	_, _, ok = keymap.ANSI60.Position(0)
	assert.False(t, ok)
}

func TestLayoutValidate(t *testing.T) {
	tests := []struct {
		name   string
		layout keymap.Layout
		ok     bool
	}{
		{name: "empty", layout: keymap.Layout{}, ok: false},
		{name: "empty row", layout: keymap.Layout{{}}, ok: false},
		{name: "ragged", layout: keymap.Layout{{keymap.KeyA, keymap.KeyB}, {keymap.KeyC}}, ok: false},
		{name: "usage past boot range", layout: keymap.Layout{{0x66}}, ok: false},
		{name: "modifier usage allowed", layout: keymap.Layout{{keymap.KeyLeftCtrl, 0}}, ok: true},
		{name: "plain grid", layout: keymap.Layout{{keymap.KeyA, keymap.KeyB}, {keymap.KeyC, 0}}, ok: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.layout.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
