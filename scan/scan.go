package scan

import (
	"fmt"

	"github.com/ress059/Mechanical-Keyboard-sub000/keymap"
	"github.com/ress059/Mechanical-Keyboard-sub000/usb/hid"
)

// Debouncer filters contact bounce per key position: a raw level must
// hold for threshold consecutive scans before the debounced state
// follows it.
type Debouncer struct {
	threshold uint8
	cols      int
	state     []bool
	count     []uint8
}

// NewDebouncer sizes the counters for a rows x cols matrix. A zero
// threshold passes raw levels through after one scan.
func NewDebouncer(rows, cols int, threshold uint8) *Debouncer {
	if threshold == 0 {
		threshold = 1
	}
	return &Debouncer{
		threshold: threshold,
		cols:      cols,
		state:     make([]bool, rows*cols),
		count:     make([]uint8, rows*cols),
	}
}

// Update feeds one raw sample for a position and returns the debounced
// level.
func (d *Debouncer) Update(row, col int, raw bool) bool {
	i := row*d.cols + col
	if raw == d.state[i] {
		d.count[i] = 0
		return d.state[i]
	}
	d.count[i]++
	if d.count[i] >= d.threshold {
		d.state[i] = raw
		d.count[i] = 0
	}
	return d.state[i]
}

// Reset returns every position to released with counters cleared.
func (d *Debouncer) Reset() {
	for i := range d.state {
		d.state[i] = false
		d.count[i] = 0
	}
}

// Scanner walks a matrix each tick and builds the 8-byte boot report.
type Scanner struct {
	matrix Matrix
	layout keymap.Layout
	deb    *Debouncer
	last   hid.InputReport
}

// NewScanner wires a matrix to its layout. The layout must cover the
// matrix exactly.
func NewScanner(m Matrix, layout keymap.Layout, debounceTicks uint8) (*Scanner, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if layout.Rows() != m.Rows() || layout.Cols() != m.Cols() {
		return nil, fmt.Errorf("scan: layout is %dx%d, matrix is %dx%d",
			layout.Rows(), layout.Cols(), m.Rows(), m.Cols())
	}
	return &Scanner{
		matrix: m,
		layout: layout,
		deb:    NewDebouncer(m.Rows(), m.Cols(), debounceTicks),
	}, nil
}

// Scan samples the whole matrix once. It returns the current report
// and whether it differs from the previous scan's report.
func (s *Scanner) Scan() (hid.InputReport, bool) {
	var report hid.InputReport
	var mods uint8
	var keys []uint8
	overflow := false

	for row := 0; row < s.matrix.Rows(); row++ {
		for col := 0; col < s.matrix.Cols(); col++ {
			pressed := s.deb.Update(row, col, s.matrix.Pressed(row, col))
			if !pressed {
				continue
			}
			usage := s.layout.At(row, col)
			if usage == 0 {
				continue
			}
			if bit := keymap.ModifierBit(usage); bit != 0 {
				mods |= bit
				continue
			}
			if len(keys) < 6 {
				keys = append(keys, usage)
			} else {
				overflow = true
			}
		}
	}

	if overflow {
		// Modifiers still report during rollover.
		report = hid.MakeInputReport(mods,
			hid.UsageErrorRollOver, hid.UsageErrorRollOver, hid.UsageErrorRollOver,
			hid.UsageErrorRollOver, hid.UsageErrorRollOver, hid.UsageErrorRollOver)
	} else {
		report = hid.MakeInputReport(mods, keys...)
	}

	changed := report != s.last
	s.last = report
	return report, changed
}

// Last returns the report produced by the most recent Scan.
func (s *Scanner) Last() hid.InputReport { return s.last }

// Reset clears debounce state and the last report, as after a bus
// reset.
func (s *Scanner) Reset() {
	s.deb.Reset()
	s.last = hid.InputReport{}
}
