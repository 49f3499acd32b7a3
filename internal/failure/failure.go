package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrAccessDenied       = errors.New("access denied")
	ErrToolUnavailable    = errors.New("tool unavailable")
	ErrIncompatibleInputs = errors.New("incompatible inputs")
	ErrProcessFailure     = errors.New("process failure")
	ErrAlreadyRunning     = errors.New("job already running")
)

// Classification labels returned by Classify.
const (
	ClassInvalidInput       = "invalid_input"
	ClassAccessDenied       = "access_denied"
	ClassToolUnavailable    = "tool_unavailable"
	ClassIncompatibleInputs = "incompatible_inputs"
	ClassProcessFailure     = "process_failure"
	ClassAlreadyRunning     = "already_running"
	ClassCancelled          = "cancelled"
	ClassInternal           = "internal"
)

// Wrap builds an error message that includes operation context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		if err == nil {
			return errors.New(detail)
		}
		return fmt.Errorf("%s: %w", detail, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to the short label shown to users and API clients.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return ClassCancelled
	case errors.Is(err, ErrInvalidInput):
		return ClassInvalidInput
	case errors.Is(err, ErrAccessDenied):
		return ClassAccessDenied
	case errors.Is(err, ErrToolUnavailable):
		return ClassToolUnavailable
	case errors.Is(err, ErrIncompatibleInputs):
		return ClassIncompatibleInputs
	case errors.Is(err, ErrProcessFailure):
		return ClassProcessFailure
	case errors.Is(err, ErrAlreadyRunning):
		return ClassAlreadyRunning
	default:
		return ClassInternal
	}
}

// Diagnostic carries the tail of an external tool's error stream alongside
// the failure it explains.
type Diagnostic struct {
	Err  error
	Tail []string
}

func (d *Diagnostic) Error() string {
	if d == nil || d.Err == nil {
		return "diagnostic"
	}
	if len(d.Tail) == 0 {
		return d.Err.Error()
	}
	return d.Err.Error() + ": " + strings.Join(d.Tail, " | ")
}

func (d *Diagnostic) Unwrap() error {
	if d == nil {
		return nil
	}
	return d.Err
}

// WithDiagnostic attaches tail lines to err. A nil err stays nil.
func WithDiagnostic(err error, tail []string) error {
	if err == nil {
		return nil
	}
	return &Diagnostic{Err: err, Tail: append([]string(nil), tail...)}
}

// DiagnosticTail returns the tail lines attached anywhere in err's chain.
func DiagnosticTail(err error) []string {
	var diag *Diagnostic
	if errors.As(err, &diag) {
		return append([]string(nil), diag.Tail...)
	}
	return nil
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "operation failed"
	}
	return strings.Join(parts, ": ")
}
