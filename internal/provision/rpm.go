package provision

import (
	"context"
	"time"

	"github.com/cochaviz/vagrantizer/internal/lxc"
)

// rpm covers fedora and centos, which differ only in the package tool.
type rpm struct {
	family string
	tool   string // dnf or yum
	settle time.Duration
}

func (r *rpm) Family() string             { return r.family }
func (r *rpm) SettleDelay() time.Duration { return r.settle }

func (r *rpm) Upgrade(ctx context.Context, c Console) error {
	_, err := c.Exec(ctx, r.tool+" upgrade -y")
	return err
}

func (r *rpm) Fix(context.Context, Console) error { return nil }

func (r *rpm) Install(ctx context.Context, c Console) error {
	packages := []string{"vim-enhanced", "wget", "openssh-server", "ca-certificates", "sudo", "python3"}
	_, err := c.Exec(ctx, install(r.tool+" install -y", packages))
	return err
}

func (r *rpm) Clean(ctx context.Context, c Console) error {
	_, err := c.Exec(ctx, r.tool+" clean packages")
	return err
}

func (r *rpm) CleanPaths() []string { return nil }

func (r *rpm) CreateUser(ctx context.Context, root *lxc.Chroot) error {
	return root.Run(ctx, "useradd", "--create-home", "-s", "/bin/bash", "-u", "1000", "vagrant")
}

// GrantSudo comments out requiretty so sudo works over non-interactive ssh.
func (r *rpm) GrantSudo(ctx context.Context, root *lxc.Chroot) error {
	return root.Host(ctx, "sed", "-i", `s/^Defaults\s\+requiretty/# Defaults requiretty/`, root.Path("etc/sudoers"))
}
