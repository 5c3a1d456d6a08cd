// Package execx runs external tools with a hard timeout.
//
// A timed-out command is reported as a synthetic non-zero result (exit 124,
// the coreutils timeout convention) instead of an error, so callers can
// treat "tool hung" the same way as "tool failed" and never block a request
// past its budget.
package execx

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// TimeoutExitCode is the synthetic exit code reported for timed-out commands.
const TimeoutExitCode = 124

// Result is the outcome of one external command.
type Result struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// OK reports whether the command exited zero.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Output returns stderr if non-empty, else stdout, trimmed. Most CLI tools
// put the interesting failure text on stderr but not all of them do.
func (r Result) Output() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// Runner executes commands. The concrete implementation shells out; tests
// substitute a fake.
type Runner interface {
	Run(args []string, timeout time.Duration) Result
	RunInput(args []string, stdin string, timeout time.Duration) Result
	Have(tool string) bool
}

// System is the Runner backed by os/exec and the process PATH.
type System struct{}

// Run executes args[0] with the remaining arguments and a deadline.
func (System) Run(args []string, timeout time.Duration) Result {
	return run(args, "", timeout)
}

// RunInput is Run with data fed to the child's stdin (sfdisk scripts).
func (System) RunInput(args []string, stdin string, timeout time.Duration) Result {
	return run(args, stdin, timeout)
}

// Have reports whether a tool resolves on the search path.
func (System) Have(tool string) bool {
	_, err := exec.LookPath(tool)
	return err == nil
}

func run(args []string, stdin string, timeout time.Duration) Result {
	res := Result{Args: args}
	if len(args) == 0 {
		res.ExitCode = -1
		return res
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = TimeoutExitCode
		detail := "timeout after " + timeout.String() + ": " + strings.Join(args, " ")
		if s := strings.TrimSpace(res.Stderr); s != "" {
			detail += "\n" + s
		}
		res.Stderr = detail
		return res
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// Tool missing or not executable.
			res.ExitCode = -1
			if res.Stderr == "" {
				res.Stderr = err.Error()
			}
		}
	}
	return res
}

// Truncate caps tool output relayed to users at limit bytes.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return strings.TrimRight(s[:limit], " \t\n") + "\n…(truncated)"
}
