package provision

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	VagrantUser     = "vagrant"
	VagrantPassword = "vagrant"

	// VagrantInsecureKey is the well known key every vagrant client tries first.
	VagrantInsecureKey = "ssh-rsa AAAAB3NzaC1yc2EAAAABIwAAAQEA6NF8iallvQVp22WDkTkyrtvp9eWW6A8YVr+kz4TjGYe7gHzIw+niNltGEFHzD8+v1I2YJ6oXevct1YeS0o9HZyN1Q9qgCgzUFtdOKLv6IedplqoPkcmF0aYet2PkEDo3MlTBckFXPITAMzF8dJSIFo9D8HfdOV0IAdx4O7PtixWKn5y2hMNG0zQPyUecp4pzC6kivAIhyfHilFR61RGL+GPXQ2MWZWFYbAGjyiYJnAmCP3NOTd0jMZEnDkbUvxhMmBYSdETk1rRgm+R4LOzFUGaHqHDLKLX+FIPKcF96hrucXzcWyLbIbEgE98OHlnVYCzRdK8jlqm8tehUc9c9WhQ== vagrant insecure public key"

	sudoersLine = "vagrant ALL=(ALL) NOPASSWD:ALL\n"
)

// Users installs the vagrant account by editing the stopped rootfs.
type Users struct {
	Logger *slog.Logger
}

func (u *Users) logger() *slog.Logger {
	if u.Logger != nil {
		return u.Logger
	}
	return slog.Default()
}

// Setup creates the account unless the shadow file already lists it, then
// (re)writes its ssh key and sudoers drop-in.
func (u *Users) Setup(ctx context.Context, guest Guest, recipe Recipe) error {
	logger := u.logger().With("container", guest.Name())
	logger.Info("preparing vagrant user")

	if err := guest.Stop(ctx); err != nil {
		return err
	}
	root := guest.Chroot()

	exists, err := root.Contains(ctx, "etc/shadow", "^"+VagrantUser+":")
	if err != nil {
		return fmt.Errorf("check for existing user: %w", err)
	}
	if exists {
		logger.Info("skipping vagrant user creation")
	} else {
		logger.Debug("creating vagrant user")
		if err := recipe.CreateUser(ctx, root); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := root.Pipe(ctx, VagrantUser+":"+VagrantPassword, "chpasswd"); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		if err := recipe.GrantSudo(ctx, root); err != nil {
			return fmt.Errorf("grant sudo: %w", err)
		}
	}

	sshDir := "home/" + VagrantUser + "/.ssh"
	if err := root.Host(ctx, "mkdir", "-p", root.Path(sshDir)); err != nil {
		return err
	}
	if err := root.WriteFile(ctx, sshDir+"/authorized_keys", VagrantInsecureKey+"\n"); err != nil {
		return err
	}
	if err := root.Run(ctx, "chown", "-R", VagrantUser+":", "/"+sshDir); err != nil {
		return err
	}
	logger.Info("ssh credentials configured")

	if err := root.Host(ctx, "mkdir", "-p", root.Path("etc/sudoers.d")); err != nil {
		return err
	}
	if err := root.WriteFile(ctx, "etc/sudoers.d/vagrant", sudoersLine); err != nil {
		return err
	}
	if err := root.Host(ctx, "chmod", "0440", root.Path("etc/sudoers.d/vagrant")); err != nil {
		return err
	}
	logger.Info("sudoers file created")
	return nil
}
