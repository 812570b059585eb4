package command

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrExecutionFailed is wrapped by ExecutionError.
	ErrExecutionFailed = errors.New("command execution failed")
	// ErrTimeout is wrapped by TimeoutError.
	ErrTimeout = errors.New("command timed out")
)

// ExecutionError reports a command that exited with a non-zero code.
type ExecutionError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command returned non-zero exit code %d, cmd: %q", e.ExitCode, e.Command)
}

func (e *ExecutionError) Unwrap() error {
	return ErrExecutionFailed
}

// TimeoutError reports a command that was still running when its deadline
// passed. The process is left running; Kill terminates its process group.
type TimeoutError struct {
	Command string
	Timeout time.Duration
	PID     int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command did not finish within %s, cmd: %q", e.Timeout, e.Command)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// Kill sends SIGKILL to the process group of the timed out command.
func (e *TimeoutError) Kill() error {
	if e.PID <= 0 {
		return nil
	}
	if err := unix.Kill(-e.PID, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill process group %d: %w", e.PID, err)
	}
	return nil
}

// ExitCode extracts the exit code carried by an ExecutionError. ok is false
// for any other error.
func ExitCode(err error) (code int, ok bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.ExitCode, true
	}
	return 0, false
}
