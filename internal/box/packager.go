package box

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cochaviz/vagrantizer/internal/artifacts"
	"github.com/cochaviz/vagrantizer/internal/command"
	"github.com/cochaviz/vagrantizer/internal/lxc"
)

const (
	DefaultWorkDir  = "work"
	DefaultConfsDir = "lxc-confs"

	rootfsArchive = "rootfs.tar.gz"
	metadataFile  = "metadata.json"
)

// Box is a packaged container.
type Box struct {
	Path     string
	Artifact artifacts.Artifact // Zero in dry runs.
}

// Packager turns a stopped container into a box under WorkDir.
type Packager struct {
	WorkDir  string // Defaults to DefaultWorkDir.
	ConfsDir string // Defaults to DefaultConfsDir.
	Sudo     string
	DryRun   bool
	Runner   command.Executor
	Store    artifacts.ArtifactStore // Defaults to a LocalStore on WorkDir.
	Logger   *slog.Logger

	Now   func() time.Time
	Owner func() (uid, gid int)
}

func (p *Packager) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Packager) workDir() (string, error) {
	dir := p.WorkDir
	if dir == "" {
		dir = DefaultWorkDir
	}
	return filepath.Abs(dir)
}

// BoxPath is where the box for c is written.
func (p *Packager) BoxPath(c *lxc.Container) (string, error) {
	dir, err := p.workDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Name()+".box"), nil
}

// Package stops c and writes its box, replacing any previous one.
func (p *Packager) Package(ctx context.Context, c *lxc.Container) (Box, error) {
	workDir, err := p.workDir()
	if err != nil {
		return Box{}, err
	}
	boxPath := filepath.Join(workDir, c.Name()+".box")
	stage := filepath.Join(workDir, c.Name())
	logger := p.logger().With("container", c.Name(), "box", boxPath)
	logger.Info("packaging")

	if err := c.Stop(ctx); err != nil {
		return Box{}, err
	}

	if !p.DryRun {
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return Box{}, fmt.Errorf("create work dir: %w", err)
		}
		if err := artifacts.RemoveWithSidecar(boxPath); err != nil {
			return Box{}, fmt.Errorf("remove previous box: %w", err)
		}
	}
	if err := p.removeStage(ctx, stage); err != nil {
		return Box{}, err
	}
	if !p.DryRun {
		if err := os.Mkdir(stage, 0o755); err != nil {
			return Box{}, fmt.Errorf("create staging dir: %w", err)
		}
	}

	logger.Info("compressing container rootfs")
	tarCmd := command.Join("tar", "--numeric-owner", "--anchored", "--exclude=./rootfs/dev/log",
		"-czf", filepath.Join(stage, rootfsArchive), "-C", c.ContainerDir(), "./rootfs")
	if _, err := p.Runner.Run(ctx, p.privileged(tarCmd)); err != nil {
		return Box{}, fmt.Errorf("archive rootfs: %w", err)
	}

	logger.Info("preparing box contents")
	slug := c.Target.Slug()
	if err := p.writeConfig(c, stage, slug); err != nil {
		return Box{}, err
	}
	uid, gid := p.owner()
	chown := command.Join("chown", "-R", strconv.Itoa(uid)+":"+strconv.Itoa(gid), stage)
	if _, err := p.Runner.Run(ctx, p.privileged(chown)); err != nil {
		return Box{}, fmt.Errorf("re-own staging dir: %w", err)
	}
	if err := p.writeMetadata(stage); err != nil {
		return Box{}, err
	}

	if p.DryRun {
		return Box{Path: boxPath}, nil
	}

	logger.Info("writing box")
	if err := writeArchive(boxPath, stage, []string{rootfsArchive, slug, metadataFile}); err != nil {
		if rmErr := os.RemoveAll(stage); rmErr != nil {
			logger.Warn("failed to remove staging dir", "dir", stage, "error", rmErr)
		}
		return Box{}, fmt.Errorf("write box: %w", err)
	}
	if err := os.RemoveAll(stage); err != nil {
		return Box{}, fmt.Errorf("remove staging dir: %w", err)
	}

	store := p.Store
	if store == nil {
		store = &artifacts.LocalStore{BaseDir: workDir}
	}
	artifact, err := store.StoreArtifact(boxPath, artifacts.BoxArtifact, map[string]any{
		"family":   c.Target.Family,
		"revision": c.Target.Revision,
		"arch":     c.Architecture(),
		"provider": Provider,
	})
	if err != nil {
		return Box{}, fmt.Errorf("record box: %w", err)
	}

	logger.Info("box ready", "size", artifact.Size, "sha256", *artifact.Checksum)
	return Box{Path: boxPath, Artifact: artifact}, nil
}

// removeStage deletes a leftover staging dir. It may hold root owned files
// from an interrupted run.
func (p *Packager) removeStage(ctx context.Context, stage string) error {
	if !p.DryRun {
		if _, err := os.Lstat(stage); os.IsNotExist(err) {
			return nil
		}
	}
	if _, err := p.Runner.Run(ctx, p.privileged(command.Join("rm", "-rf", stage))); err != nil {
		return fmt.Errorf("remove staging dir: %w", err)
	}
	return nil
}

func (p *Packager) writeConfig(c *lxc.Container, stage, slug string) error {
	confs := p.ConfsDir
	if confs == "" {
		confs = DefaultConfsDir
	}
	data, source, err := runtimeConfig(confs, slug, configValues{
		Family:   c.Target.Family,
		Revision: c.Target.Revision,
		Arch:     c.Architecture(),
		Systemd:  c.Target.Family != "alpine",
	})
	if err != nil {
		return err
	}
	if source == "" {
		p.logger().Debug("no lxc config found, using template", "dir", confs, "config", slug)
	}
	if p.DryRun {
		return nil
	}
	return os.WriteFile(filepath.Join(stage, slug), data, 0o644)
}

func (p *Packager) writeMetadata(stage string) error {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	data, err := NewMetadata(now()).Marshal()
	if err != nil {
		return err
	}
	if p.DryRun {
		return nil
	}
	return os.WriteFile(filepath.Join(stage, metadataFile), data, 0o644)
}

func (p *Packager) owner() (int, int) {
	if p.Owner != nil {
		return p.Owner()
	}
	return unix.Getuid(), unix.Getgid()
}

func (p *Packager) privileged(cmdline string) string {
	if p.Sudo == "" {
		return cmdline
	}
	return p.Sudo + " " + cmdline
}
