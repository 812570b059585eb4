package provision

import (
	"context"
	"log/slog"
)

// commonCleanPaths are removed from every rootfs.
var commonCleanPaths = []string{"usr/share/doc", "tmp/*", "var/lib/dhcp/*"}

// Cleaner drops package caches, docs and leases to shrink the box.
type Cleaner struct {
	Logger *slog.Logger
}

func (c *Cleaner) Clean(ctx context.Context, guest Guest, recipe Recipe) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("cleaning", "container", guest.Name())

	if err := guest.Start(ctx); err != nil {
		return err
	}
	if err := recipe.Clean(ctx, guest); err != nil {
		return err
	}
	if err := guest.Stop(ctx); err != nil {
		return err
	}
	paths := append(recipe.CleanPaths(), commonCleanPaths...)
	return guest.Chroot().Remove(ctx, paths...)
}
