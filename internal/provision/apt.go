package provision

import (
	"context"
	"time"

	"github.com/cochaviz/vagrantizer/internal/lxc"
)

const hostnamedOverride = "/etc/systemd/system/systemd-hostnamed.service.d"

type apt struct {
	family   string
	revision string
}

func (r *apt) Family() string             { return r.family }
func (r *apt) SettleDelay() time.Duration { return 0 }

// needsHostnamedFix covers releases whose systemd-hostnamed fails inside an
// unprivileged container with PrivateDevices enabled.
func (r *apt) needsHostnamedFix() bool {
	return r.family == "debian" && r.revision == "8" || r.family == "ubuntu" && r.revision == "16.04"
}

func (r *apt) packages() []string {
	packages := []string{"vim", "wget", "openssh-server", "ca-certificates", "sudo", "python3"}
	if r.needsHostnamedFix() {
		packages = append(packages, "dbus", "libnss-myhostname")
	}
	return packages
}

func (r *apt) Upgrade(ctx context.Context, c Console) error {
	return execAll(ctx, c,
		"env DEBIAN_FRONTEND=noninteractive apt update",
		"env DEBIAN_FRONTEND=noninteractive apt upgrade -y")
}

func (r *apt) Fix(ctx context.Context, c Console) error {
	switch {
	case r.needsHostnamedFix():
		if _, err := c.Exec(ctx, "mkdir -p "+hostnamedOverride); err != nil {
			return err
		}
		_, err := c.Shell(ctx, `printf '[Service]\nPrivateDevices=no\n' > `+hostnamedOverride+"/override.conf")
		return err
	case r.family == "ubuntu" && r.revision == "14.04":
		_, err := c.Exec(ctx, "mount -o remount,ro /sys/fs/selinux")
		return err
	}
	return nil
}

func (r *apt) Install(ctx context.Context, c Console) error {
	_, err := c.Exec(ctx, install("env DEBIAN_FRONTEND=noninteractive apt install -y", r.packages()))
	return err
}

func (r *apt) Clean(ctx context.Context, c Console) error {
	_, err := c.Exec(ctx, "apt-get clean")
	return err
}

func (r *apt) CleanPaths() []string {
	return []string{"var/lib/apt/lists/*"}
}

// CreateUser replaces the image's default login with vagrant.
func (r *apt) CreateUser(ctx context.Context, root *lxc.Chroot) error {
	found, err := root.Contains(ctx, "etc/passwd", "^"+r.family+":")
	if err != nil {
		return err
	}
	if found {
		if err := root.Run(ctx, "userdel", r.family); err != nil {
			return err
		}
	}
	return root.Run(ctx, "useradd", "--create-home", "-s", "/bin/bash", "vagrant")
}

func (r *apt) GrantSudo(ctx context.Context, root *lxc.Chroot) error {
	return root.Run(ctx, "adduser", "vagrant", "sudo")
}
