package build

import (
	"context"

	"github.com/cochaviz/vagrantizer/internal/lxc"
	"github.com/cochaviz/vagrantizer/internal/publish"
	"github.com/cochaviz/vagrantizer/internal/systems"
)

// BuildEnvironmentPreparer provides a fresh container for a target.
type BuildEnvironmentPreparer interface {
	Prepare(ctx context.Context, buildContext BuildContext) (BuildEnvironment, error)
	// Discard removes any container left over for target without creating one.
	Discard(ctx context.Context, target systems.Target) error
}

// BuildEnvironment owns the container of one target until Cleanup.
type BuildEnvironment interface {
	Container() *lxc.Container
	Cleanup(ctx context.Context) error
}

// BuildDriver turns a prepared environment into a box.
type BuildDriver interface {
	Build(ctx context.Context, buildContext BuildContext, environment BuildEnvironment) (BuildOutput, error)
}

// Publisher uploads a finished box.
type Publisher interface {
	Publish(ctx context.Context, target systems.Target, path string) (publish.Release, error)
}
