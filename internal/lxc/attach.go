package lxc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// Attach opens an interactive shell in the running container on a
// pseudo-terminal wired to in and out. When in is a terminal it is switched
// to raw mode for the duration of the session.
func (c *Container) Attach(ctx context.Context, in *os.File, out io.Writer) error {
	state, err := c.State(ctx)
	if err != nil {
		return err
	}
	if state != StateRunning {
		return fmt.Errorf("attach %s: container is %s", c.Name(), state)
	}

	args := []string{"lxc-attach", "-P", c.path(), "-n", c.Name()}
	if c.Sudo != "" {
		args = append([]string{c.Sudo}, args...)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = append(os.Environ(), "LC_ALL=C", "LANG=C")

	c.logger().Info("attaching", "container", c.Name())
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start lxc-attach: %w", err)
	}
	defer ptmx.Close()

	if term.IsTerminal(int(in.Fd())) {
		resize := make(chan os.Signal, 1)
		signal.Notify(resize, syscall.SIGWINCH)
		defer func() {
			signal.Stop(resize)
			close(resize)
		}()
		go func() {
			for range resize {
				_ = pty.InheritSize(in, ptmx)
			}
		}()
		resize <- syscall.SIGWINCH

		previous, err := term.MakeRaw(int(in.Fd()))
		if err != nil {
			return fmt.Errorf("set raw terminal: %w", err)
		}
		defer term.Restore(int(in.Fd()), previous)
	}

	go func() { _, _ = io.Copy(ptmx, in) }()
	_, _ = io.Copy(out, ptmx)

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			c.logger().Debug("attach session ended", "container", c.Name(), "exit_code", exitErr.ExitCode())
			return nil
		}
		return fmt.Errorf("lxc-attach: %w", err)
	}
	return nil
}
