package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cochaviz/vagrantizer/internal/lxc"
	"github.com/cochaviz/vagrantizer/internal/systems"
)

// Ensure LXCEnvironmentPreparer implements the BuildEnvironmentPreparer interface.
var _ BuildEnvironmentPreparer = (*LXCEnvironmentPreparer)(nil)

// LXCEnvironmentPreparer destroys any leftover container of the target and
// creates a new one.
type LXCEnvironmentPreparer struct {
	NewContainer func(target systems.Target) *lxc.Container
	Logger       *slog.Logger
}

// Prepare returns a non-nil environment whenever a container may exist, even
// when it also returns an error, so the caller can clean it up.
func (p *LXCEnvironmentPreparer) Prepare(ctx context.Context, buildContext BuildContext) (BuildEnvironment, error) {
	if p.NewContainer == nil {
		return nil, errors.New("container factory is not configured")
	}
	c := p.NewContainer(buildContext.Target)
	env := &LXCEnvironment{container: c, logger: p.Logger}

	if err := c.Destroy(ctx); err != nil {
		return env, fmt.Errorf("remove stale container: %w", err)
	}
	if err := c.Create(ctx); err != nil {
		return env, err
	}
	return env, nil
}

// Discard destroys a stale container of target, if any.
func (p *LXCEnvironmentPreparer) Discard(ctx context.Context, target systems.Target) error {
	if p.NewContainer == nil {
		return errors.New("container factory is not configured")
	}
	c := p.NewContainer(target)
	if err := c.Destroy(ctx); err != nil {
		return fmt.Errorf("remove stale container: %w", err)
	}
	return nil
}

var _ BuildEnvironment = (*LXCEnvironment)(nil)

type LXCEnvironment struct {
	container *lxc.Container
	logger    *slog.Logger
}

func (env *LXCEnvironment) Container() *lxc.Container {
	return env.container
}

// Cleanup destroys the container.
func (env *LXCEnvironment) Cleanup(ctx context.Context) error {
	var cleanupErr error
	if err := env.container.Destroy(ctx); err != nil {
		cleanupErr = errors.Join(cleanupErr, fmt.Errorf("destroy %s: %w", env.container.Name(), err))
	}
	return cleanupErr
}
