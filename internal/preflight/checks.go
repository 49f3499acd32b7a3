package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"reel/internal/config"
	"reel/internal/deps"
	"reel/internal/failure"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := accessReadWrite(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckOutputParent verifies that the parent directory of output either exists
// and is writable, or can be created beneath its nearest existing ancestor.
func CheckOutputParent(output string) error {
	const op = "check output directory"
	output = strings.TrimSpace(output)
	if output == "" {
		return failure.Wrap(failure.ErrInvalidInput, op, "output path is empty", nil)
	}
	dir := filepath.Dir(output)
	for {
		info, err := os.Stat(dir)
		switch {
		case err == nil:
			if !info.IsDir() {
				return failure.Wrap(failure.ErrInvalidInput, op, fmt.Sprintf("%s is not a directory", dir), nil)
			}
			if err := accessWrite(dir); err != nil {
				return failure.Wrap(failure.ErrAccessDenied, op, fmt.Sprintf("%s is not writable", dir), err)
			}
			return nil
		case errors.Is(err, fs.ErrNotExist):
			parent := filepath.Dir(dir)
			if parent == dir {
				return failure.Wrap(failure.ErrInvalidInput, op, fmt.Sprintf("no existing ancestor for %s", output), err)
			}
			dir = parent
		case errors.Is(err, fs.ErrPermission):
			return failure.Wrap(failure.ErrAccessDenied, op, dir, err)
		default:
			return failure.Wrap(failure.ErrInvalidInput, op, dir, err)
		}
	}
}

// CheckSystemDeps evaluates the external tools for the given config. Both
// `reel deps` and the merge precondition gate use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	return deps.CheckBinaries(deps.Requirements(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
}

// RequireTools fails with ErrToolUnavailable when a required tool is missing.
func RequireTools(cfg *config.Config) error {
	missing := deps.Missing(CheckSystemDeps(cfg))
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for _, status := range missing {
		names = append(names, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
	}
	return failure.Wrap(failure.ErrToolUnavailable, "check tools", strings.Join(names, ", "), nil)
}
