package provision

import (
	"context"
	"time"

	"github.com/cochaviz/vagrantizer/internal/lxc"
)

type apk struct{}

func (*apk) Family() string             { return "alpine" }
func (*apk) SettleDelay() time.Duration { return 0 }

func (*apk) Upgrade(ctx context.Context, c Console) error {
	return execAll(ctx, c, "apk update", "apk upgrade")
}

func (*apk) Fix(context.Context, Console) error { return nil }

// Install adds bash, which alpine lacks, and enables sshd since OpenRC does
// not start new services on its own.
func (*apk) Install(ctx context.Context, c Console) error {
	packages := []string{"vim", "wget", "openssh", "ca-certificates", "sudo", "python3", "bash"}
	return execAll(ctx, c, install("apk add", packages), "rc-update add sshd")
}

func (*apk) Clean(context.Context, Console) error { return nil }

func (*apk) CleanPaths() []string {
	return []string{"var/cache/apk/*"}
}

func (*apk) CreateUser(ctx context.Context, root *lxc.Chroot) error {
	return root.Run(ctx, "adduser", "-D", "vagrant")
}

func (*apk) GrantSudo(ctx context.Context, root *lxc.Chroot) error {
	return root.Pipe(ctx, sudoersLine, "tee", "/etc/sudoers.d/vagrant")
}
