package lxc

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cochaviz/vagrantizer/internal/command"
	"github.com/cochaviz/vagrantizer/internal/systems"
)

const (
	DefaultPath = "/var/lib/lxc"
	DefaultArch = "amd64"
)

// Container is a handle on one named container.
type Container struct {
	Target  systems.Target
	LXCPath string // Defaults to DefaultPath.
	Arch    string // Defaults to DefaultArch.
	Sudo    string // Privilege prefix, e.g. "sudo"; empty when already root.
	DryRun  bool   // Skip state queries and issue every transition.
	Runner  command.Executor
	Logger  *slog.Logger
}

func (c *Container) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Name is the runtime name of the container.
func (c *Container) Name() string {
	return c.Target.Name()
}

func (c *Container) path() string {
	if c.LXCPath != "" {
		return c.LXCPath
	}
	return DefaultPath
}

func (c *Container) arch() string {
	if c.Arch != "" {
		return c.Arch
	}
	return DefaultArch
}

// Architecture is the image architecture requested from the template.
func (c *Container) Architecture() string {
	return c.arch()
}

// ContainerDir is where the runtime keeps the container config and rootfs.
func (c *Container) ContainerDir() string {
	return filepath.Join(c.path(), c.Name())
}

// RootfsDir is the container's root filesystem on the host.
func (c *Container) RootfsDir() string {
	return filepath.Join(c.ContainerDir(), "rootfs")
}

// Chroot returns a context that mutates the container's rootfs directly.
func (c *Container) Chroot() *Chroot {
	return &Chroot{Root: c.RootfsDir(), Sudo: c.Sudo, DryRun: c.DryRun, Runner: c.Runner}
}

// tool builds a privileged lxc-* command line scoped to this container.
func (c *Container) tool(name string, args ...string) string {
	parts := []string{name, "-P", command.Quote(c.path()), "-n", command.Quote(c.Name())}
	parts = append(parts, args...)
	return privileged(c.Sudo, strings.Join(parts, " "))
}

func privileged(sudo, cmdline string) string {
	if sudo == "" {
		return cmdline
	}
	return sudo + " " + cmdline
}

// Create instantiates the container from the download template.
func (c *Container) Create(ctx context.Context) error {
	c.logger().Info("creating container", "container", c.Name(), "dist", c.Target.Family, "release", c.Target.AltRevision(), "arch", c.arch())
	cmdline := c.tool("lxc-create", "-t", "download", "--",
		"-d", command.Quote(c.Target.Family),
		"-r", command.Quote(c.Target.AltRevision()),
		"-a", command.Quote(c.arch()))
	if _, err := c.Runner.Run(ctx, cmdline); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCreateFailed, c.Name(), err)
	}
	return nil
}

// Start boots the container detached. Running containers are left alone.
func (c *Container) Start(ctx context.Context) error {
	state, err := c.State(ctx)
	if err != nil {
		return err
	}
	if state == StateRunning {
		return nil
	}
	if _, err := c.Runner.Run(ctx, c.tool("lxc-start", "-d")); err != nil {
		return fmt.Errorf("start %s: %w", c.Name(), err)
	}
	return nil
}

// Stop halts the container. Stopped containers are left alone.
func (c *Container) Stop(ctx context.Context) error {
	state, err := c.State(ctx)
	if err != nil {
		return err
	}
	if state == StateStopped {
		return nil
	}
	if _, err := c.Runner.Run(ctx, c.tool("lxc-stop")); err != nil {
		return fmt.Errorf("stop %s: %w", c.Name(), err)
	}
	return nil
}

// Destroy removes the container, stopping it first. Absent containers are
// left alone.
func (c *Container) Destroy(ctx context.Context) error {
	present, err := c.Exists(ctx)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}
	if err := c.Stop(ctx); err != nil {
		return err
	}
	if _, err := c.Runner.Run(ctx, c.tool("lxc-destroy")); err != nil {
		return fmt.Errorf("destroy %s: %w", c.Name(), err)
	}
	return nil
}

// Exists reports whether the runtime lists a container with this name.
func (c *Container) Exists(ctx context.Context) (bool, error) {
	cmdline := privileged(c.Sudo, "lxc-ls -P "+command.Quote(c.path())+" -1")
	result, err := c.Runner.Run(ctx, cmdline, command.AllowFailure(), command.CaptureOnly())
	if err != nil {
		return false, fmt.Errorf("list containers: %w", err)
	}
	if c.DryRun {
		return true, nil
	}
	if result.ExitCode != 0 {
		return false, nil
	}
	for _, line := range strings.Split(result.Output, "\n") {
		if strings.TrimSpace(line) == c.Name() {
			return true, nil
		}
	}
	return false, nil
}

// State queries the runtime. Output that names neither RUNNING nor STOPPED
// yields an *UnknownStateError.
func (c *Container) State(ctx context.Context) (State, error) {
	if c.DryRun {
		_, _ = c.Runner.Run(ctx, c.tool("lxc-info", "-s"), command.CaptureOnly())
		return "", nil
	}
	present, err := c.Exists(ctx)
	if err != nil {
		return "", err
	}
	if !present {
		return StateAbsent, nil
	}
	result, err := c.Runner.Run(ctx, c.tool("lxc-info", "-s"), command.CaptureOnly())
	if err != nil {
		return "", fmt.Errorf("query state of %s: %w", c.Name(), err)
	}
	state, ok := parseState(result.Output)
	if !ok {
		return "", &UnknownStateError{Container: c.Name(), Output: result.Output}
	}
	c.logger().Debug("container state", "container", c.Name(), "state", state)
	return state, nil
}

// PID returns the host PID of the container's init process, or 0 when the
// container is not running.
func (c *Container) PID(ctx context.Context) (int, error) {
	result, err := c.Runner.Run(ctx, c.tool("lxc-info", "-p", "-H"), command.CaptureOnly(), command.AllowFailure())
	if err != nil {
		return 0, fmt.Errorf("query pid of %s: %w", c.Name(), err)
	}
	out := strings.TrimSpace(result.Output)
	if result.ExitCode != 0 || out == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parse pid of %s: %q", c.Name(), out)
	}
	return pid, nil
}

// Exec runs cmdline inside the running container. cmdline is passed to
// lxc-attach verbatim, so shell constructs must be wrapped by the caller.
func (c *Container) Exec(ctx context.Context, cmdline string, opts ...command.Option) (command.Result, error) {
	return c.Runner.Run(ctx, c.tool("lxc-attach", "--", cmdline), opts...)
}

// Shell runs script through sh inside the container.
func (c *Container) Shell(ctx context.Context, script string, opts ...command.Option) (command.Result, error) {
	return c.Exec(ctx, command.Join("sh", "-c", script), opts...)
}
