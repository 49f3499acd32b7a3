package procsup

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
)

// Handle is a started process as seen by the supervisor.
type Handle interface {
	// Stderr streams the process's diagnostic output. Descendants that
	// inherit it can hold it open after the process exits. When the reader
	// is also an io.Closer the supervisor closes it once it stops reading.
	Stderr() io.Reader
	// Interrupt asks the process to stop gracefully.
	Interrupt() error
	// Kill stops the process immediately.
	Kill() error
	// Wait blocks until the process exits and returns its exit code (-1
	// when signalled). It does not wait for Stderr to reach EOF.
	Wait() (int, error)
	// Pid identifies the process in logs.
	Pid() int
}

// Launcher starts processes.
type Launcher interface {
	Launch(cmd Command) (Handle, error)
}

type execLauncher struct{}

func (execLauncher) Launch(command Command) (Handle, error) {
	cmd := exec.Command(command.Path, command.Args...) //nolint:gosec
	cmd.Dir = command.Dir
	// An *os.File stderr is handed to the child directly, so cmd.Wait
	// returns on exit instead of waiting for every holder to close it.
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stderr = stderrW
	if err := cmd.Start(); err != nil {
		_ = stderrR.Close()
		_ = stderrW.Close()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s: %w", ErrLaunchFailed, command.Path, err)
		}
		return nil, fmt.Errorf("start %s: %w", command.Path, err)
	}
	_ = stderrW.Close()
	return &execHandle{cmd: cmd, stderr: stderrR}, nil
}

type execHandle struct {
	cmd    *exec.Cmd
	stderr *os.File
}

func (h *execHandle) Stderr() io.Reader { return h.stderr }

func (h *execHandle) Interrupt() error { return interrupt(h.cmd.Process) }

func (h *execHandle) Kill() error { return h.cmd.Process.Kill() }

func (h *execHandle) Pid() int { return h.cmd.Process.Pid }

func (h *execHandle) Wait() (int, error) {
	err := h.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return h.cmd.ProcessState.ExitCode(), nil
}
