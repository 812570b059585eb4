package lxc

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cochaviz/vagrantizer/internal/command"
)

// Chroot runs commands against a root filesystem tree without the container
// running. Paths passed to host-side helpers are relative to Root.
type Chroot struct {
	Root   string
	Sudo   string
	DryRun bool // Contains always reports no match.
	Runner command.Executor
}

// Path resolves rel inside the tree.
func (r *Chroot) Path(rel string) string {
	return filepath.Join(r.Root, strings.TrimPrefix(rel, "/"))
}

// Run executes args inside the tree via chroot.
func (r *Chroot) Run(ctx context.Context, args ...string) error {
	_, err := r.Runner.Run(ctx, r.chroot(args...))
	return err
}

// Pipe feeds input to args run inside the tree.
func (r *Chroot) Pipe(ctx context.Context, input string, args ...string) error {
	cmdline := "printf '%s' " + command.Quote(input) + " | " + r.chroot(args...)
	_, err := r.Runner.Run(ctx, cmdline)
	return err
}

// Host executes args on the host with privileges, e.g. to edit files in the
// tree.
func (r *Chroot) Host(ctx context.Context, args ...string) error {
	_, err := r.Runner.Run(ctx, privileged(r.Sudo, command.Join(args...)))
	return err
}

// WriteFile replaces rel with content.
func (r *Chroot) WriteFile(ctx context.Context, rel, content string) error {
	cmdline := "printf '%s' " + command.Quote(content) + " | " +
		privileged(r.Sudo, command.Join("tee", r.Path(rel))) + " >/dev/null"
	if _, err := r.Runner.Run(ctx, cmdline); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// Contains reports whether the file rel has a line matching the basic regular
// expression pattern. A missing file counts as no match.
func (r *Chroot) Contains(ctx context.Context, rel, pattern string) (bool, error) {
	cmdline := privileged(r.Sudo, command.Join("grep", "-q", "--", pattern, r.Path(rel)))
	result, err := r.Runner.Run(ctx, cmdline, command.AllowFailure(), command.CaptureOnly())
	if err != nil {
		return false, err
	}
	if r.DryRun {
		return false, nil
	}
	switch result.ExitCode {
	case 0:
		return true, nil
	case 1, 2:
		return false, nil
	default:
		return false, fmt.Errorf("grep %s: exit code %d", rel, result.ExitCode)
	}
}

// Remove deletes the given paths in the tree. A trailing "/*" is expanded by
// a privileged shell since the tree is usually not readable by the caller.
func (r *Chroot) Remove(ctx context.Context, patterns ...string) error {
	for _, pattern := range patterns {
		cmdline := privileged(r.Sudo, command.Join("sh", "-c", "rm -rf "+globQuote(r.Path(pattern))))
		if _, err := r.Runner.Run(ctx, cmdline); err != nil {
			return fmt.Errorf("remove %s: %w", pattern, err)
		}
	}
	return nil
}

func (r *Chroot) chroot(args ...string) string {
	return privileged(r.Sudo, "chroot "+command.Quote(r.Root)+" "+command.Join(args...))
}

// globQuote quotes path but leaves a trailing "*" for the shell to expand.
func globQuote(path string) string {
	if dir, ok := strings.CutSuffix(path, "/*"); ok {
		return command.Quote(dir) + "/*"
	}
	return command.Quote(path)
}
