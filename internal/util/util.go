//go:build !windows

package util

// IsRunFromGUI reports whether the process was started by a graphical
// shell instead of a terminal. Always false off Windows: there the
// simulator is expected to be launched from a shell.
func IsRunFromGUI() bool {
	return false
}
