package build

import (
	"context"
	"errors"
	"fmt"

	"github.com/cochaviz/vagrantizer/internal/box"
	"github.com/cochaviz/vagrantizer/internal/lxc"
	"github.com/cochaviz/vagrantizer/internal/provision"
)

// Packager writes the box of a stopped container.
type Packager interface {
	Package(ctx context.Context, c *lxc.Container) (box.Box, error)
}

var _ BuildDriver = (*LXCBuildDriver)(nil)

// LXCBuildDriver provisions, slims and packages the container of an
// environment.
type LXCBuildDriver struct {
	Provisioner *provision.Provisioner
	Users       *provision.Users
	Cleaner     *provision.Cleaner
	Packager    Packager
}

func (d *LXCBuildDriver) Build(ctx context.Context, buildContext BuildContext, environment BuildEnvironment) (BuildOutput, error) {
	if d.Packager == nil {
		return BuildOutput{}, errors.New("packager is not configured")
	}
	container := environment.Container()
	recipe := buildContext.Recipe

	provisioner := d.Provisioner
	if provisioner == nil {
		provisioner = &provision.Provisioner{}
	}
	if err := provisioner.Provision(ctx, container, recipe); err != nil {
		return BuildOutput{}, fmt.Errorf("provision: %w", err)
	}

	users := d.Users
	if users == nil {
		users = &provision.Users{}
	}
	if err := users.Setup(ctx, container, recipe); err != nil {
		return BuildOutput{}, fmt.Errorf("user setup: %w", err)
	}

	cleaner := d.Cleaner
	if cleaner == nil {
		cleaner = &provision.Cleaner{}
	}
	if err := cleaner.Clean(ctx, container, recipe); err != nil {
		return BuildOutput{}, fmt.Errorf("cleanup: %w", err)
	}

	packaged, err := d.Packager.Package(ctx, container)
	if err != nil {
		return BuildOutput{}, fmt.Errorf("package: %w", err)
	}
	return BuildOutput{Box: packaged}, nil
}
