package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cochaviz/vagrantizer/internal/readiness"
)

// Provisioner starts a container, waits for its network and installs the
// base packages.
type Provisioner struct {
	Waiter readiness.Waiter                                 // Defaults to a 5s delay.
	Sleep  func(ctx context.Context, d time.Duration) error // Defaults to readiness.Sleep.
	Logger *slog.Logger
}

func (p *Provisioner) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Provision runs the upgrade, fix and install steps of recipe inside guest.
func (p *Provisioner) Provision(ctx context.Context, guest Guest, recipe Recipe) error {
	logger := p.logger().With("container", guest.Name(), "family", recipe.Family())
	logger.Info("installing extras")

	if err := guest.Start(ctx); err != nil {
		return err
	}

	waiter := p.Waiter
	if waiter == nil {
		waiter = readiness.Delay{Duration: 5 * time.Second, Logger: p.Logger}
	}
	if err := waiter.Wait(ctx, guest); err != nil {
		return fmt.Errorf("wait for network: %w", err)
	}
	if settle := recipe.SettleDelay(); settle > 0 {
		logger.Debug("settling network", "delay", settle)
		sleep := p.Sleep
		if sleep == nil {
			sleep = readiness.Sleep
		}
		if err := sleep(ctx, settle); err != nil {
			return err
		}
	}

	if err := recipe.Upgrade(ctx, guest); err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	if err := recipe.Fix(ctx, guest); err != nil {
		return fmt.Errorf("compatibility fix: %w", err)
	}
	if err := recipe.Install(ctx, guest); err != nil {
		return fmt.Errorf("install packages: %w", err)
	}

	logger.Info("installing extras done")
	return nil
}
