package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// outputGrace bounds how long Run keeps reading output after the process has
// exited. Daemonizing children (lxc-start -d) may inherit the pipe.
const outputGrace = 2 * time.Second

// Result is the outcome of a finished command.
type Result struct {
	ExitCode int
	Output   string // Combined stdout and stderr.
}

// Executor is the contract consumed by the pipeline packages.
type Executor interface {
	Run(ctx context.Context, cmdline string, opts ...Option) (Result, error)
}

var _ Executor = (*Runner)(nil)

// Runner executes command lines through /bin/sh.
type Runner struct {
	Logger *slog.Logger
	Stdout io.Writer // Echo target for live output; os.Stdout when nil.

	DryRun          bool          // Log commands without running them.
	Quiet           bool          // Never echo output.
	EnforceTimeouts bool          // Apply DefaultTimeout / WithTimeout deadlines.
	DefaultTimeout  time.Duration // Deadline used when a call sets none.
	Env             []string      // Base environment; os.Environ() when nil.
	Shell           string        // Defaults to /bin/sh.
}

func (r *Runner) logger() *slog.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run executes cmdline and returns its exit code and combined output.
//
// A non-zero exit code yields an *ExecutionError unless AllowFailure is set.
// When timeouts are enforced and the deadline passes first, Run returns a
// *TimeoutError without waiting for the process. Cancelling ctx kills the
// process group.
func (r *Runner) Run(ctx context.Context, cmdline string, opts ...Option) (Result, error) {
	o := NewOptions(opts...)

	dir := o.Dir
	if dir == "" {
		if wd, err := os.Getwd(); err == nil {
			dir = wd
		}
	}
	r.logger().Info("executing", "command", cmdline, "dir", dir)

	if r.DryRun {
		return Result{}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell, "-c", cmdline)
	cmd.Dir = o.Dir
	cmd.Env = r.environ(o.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	pr, pw, err := os.Pipe()
	if err != nil {
		return Result{}, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return Result{}, fmt.Errorf("start %q: %w", cmdline, err)
	}
	pw.Close()

	echo := !(o.CaptureOnly || r.Quiet)
	var output strings.Builder
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), "\r")
			output.WriteString(line)
			output.WriteByte('\n')
			if echo {
				fmt.Fprintln(r.stdout(), line)
			}
		}
	}()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var deadline <-chan time.Time
	timeout := r.timeout(o)
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var runErr error
	select {
	case runErr = <-waitErr:
	case <-deadline:
		go func() {
			<-readDone
			pr.Close()
		}()
		return Result{}, &TimeoutError{Command: cmdline, Timeout: timeout, PID: cmd.Process.Pid}
	case <-ctx.Done():
		_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		<-waitErr
		pr.Close()
		<-readDone
		return Result{}, ctx.Err()
	}

	select {
	case <-readDone:
	case <-time.After(outputGrace):
	}
	pr.Close()
	<-readDone

	result := Result{Output: output.String()}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return result, fmt.Errorf("wait for %q: %w", cmdline, runErr)
		}
	}
	result.ExitCode = cmd.ProcessState.ExitCode()

	if result.ExitCode != 0 && !o.AllowFailure {
		return result, &ExecutionError{Command: cmdline, ExitCode: result.ExitCode, Output: result.Output}
	}
	return result, nil
}

func (r *Runner) timeout(o Options) time.Duration {
	if !r.EnforceTimeouts {
		return 0
	}
	if o.Timeout > 0 {
		return o.Timeout
	}
	return r.DefaultTimeout
}

func (r *Runner) environ(extra []string) []string {
	base := r.Env
	if base == nil {
		base = os.Environ()
	}
	env := make([]string, 0, len(base)+len(extra)+2)
	env = append(env, base...)
	env = append(env, "LC_ALL=C", "LANG=C")
	return append(env, extra...)
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}
