//go:build windows

package procsup

import "os"

// Windows has no deliverable graceful signal for console children.
func interrupt(proc *os.Process) error {
	return proc.Kill()
}
