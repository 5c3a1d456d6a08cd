// Package operr defines the error taxonomy shared by all mutation paths.
//
// Handlers branch on these with errors.As to decide whether an operation was
// rejected before any side effect (validation, precondition), failed because
// a host tool is missing, or failed inside an external command.
package operr

import (
	"fmt"
	"time"
)

// ValidationError rejects malformed input before any side effect.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// PreconditionError means the live system state blocks the operation; the
// caller must change state first (unmount, remove persistence, etc).
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return e.Msg }

// Preconditionf builds a PreconditionError with a formatted message.
func Preconditionf(format string, args ...any) error {
	return &PreconditionError{Msg: fmt.Sprintf(format, args...)}
}

// ToolUnavailableError names a required host tool that is not installed.
type ToolUnavailableError struct {
	Tool string
	Hint string
}

func (e *ToolUnavailableError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("required tool %q is not installed (%s)", e.Tool, e.Hint)
	}
	return fmt.Sprintf("required tool %q is not installed", e.Tool)
}

// ExternalCommandError carries the truncated output of a failed system tool.
// TimedOut distinguishes a timeout from an ordinary non-zero exit.
type ExternalCommandError struct {
	Cmd      string
	ExitCode int
	Output   string
	TimedOut bool
	Timeout  time.Duration
}

func (e *ExternalCommandError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s timed out after %s", e.Cmd, e.Timeout)
	}
	if e.Output != "" {
		return fmt.Sprintf("%s failed (exit %d): %s", e.Cmd, e.ExitCode, e.Output)
	}
	return fmt.Sprintf("%s failed (exit %d)", e.Cmd, e.ExitCode)
}

// ConfigValidationError means the external syntax validator rejected a
// candidate config file; the live file was left untouched.
type ConfigValidationError struct {
	File   string
	Output string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("candidate %s rejected by validator: %s", e.File, e.Output)
}
