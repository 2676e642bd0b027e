// Package scan turns key-switch matrix state into boot keyboard input
// reports: it walks the matrix, debounces every position, folds
// modifiers into the bitmap, and applies six-key rollover.
package scan

import "sync"

// Matrix is the electrical key matrix the scanner samples. Pressed
// returns the raw, bouncy switch level.
type Matrix interface {
	Rows() int
	Cols() int
	Pressed(row, col int) bool
}

// ScriptedMatrix is a Matrix whose switch state is driven by calls,
// used by tests and the simulator binary.
type ScriptedMatrix struct {
	mu   sync.Mutex
	rows int
	cols int
	down map[[2]int]bool
}

// NewScriptedMatrix creates an all-released matrix of the given size.
func NewScriptedMatrix(rows, cols int) *ScriptedMatrix {
	return &ScriptedMatrix{rows: rows, cols: cols, down: make(map[[2]int]bool)}
}

func (m *ScriptedMatrix) Rows() int { return m.rows }
func (m *ScriptedMatrix) Cols() int { return m.cols }

func (m *ScriptedMatrix) Pressed(row, col int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.down[[2]int{row, col}]
}

// Press closes the switch at [row][col].
func (m *ScriptedMatrix) Press(row, col int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down[[2]int{row, col}] = true
}

// Release opens the switch at [row][col].
func (m *ScriptedMatrix) Release(row, col int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.down, [2]int{row, col})
}

// ReleaseAll opens every switch.
func (m *ScriptedMatrix) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = make(map[[2]int]bool)
}
