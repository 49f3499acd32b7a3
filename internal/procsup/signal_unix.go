//go:build unix

package procsup

import (
	"os"

	"golang.org/x/sys/unix"
)

func interrupt(proc *os.Process) error {
	return proc.Signal(unix.SIGTERM)
}
