package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cochaviz/vagrantizer/internal/command"
	"github.com/cochaviz/vagrantizer/internal/systems"
)

const provider = "lxc"

// VersionLookup reports the latest published version of a box.
type VersionLookup interface {
	LatestVersion(ctx context.Context, box, provider string) int
}

// Release describes a published box version.
type Release struct {
	Box     string
	Version int
}

// Publisher pushes boxes with "vagrant cloud publish". Failures are not
// retried.
type Publisher struct {
	Org      string
	Registry VersionLookup
	Runner   command.Executor
	Timeout  time.Duration // Applied when the runner enforces timeouts.
	Logger   *slog.Logger
}

func (p *Publisher) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// BoxName is the registry name of target under org.
func BoxName(org string, target systems.Target) string {
	return fmt.Sprintf("%s/lxc-%s-%s", org, target.Family, target.Revision)
}

// Publish uploads the box at path as the next version of target's box.
func (p *Publisher) Publish(ctx context.Context, target systems.Target, path string) (Release, error) {
	if p.Org == "" {
		return Release{}, fmt.Errorf("publish %s: no organization configured", target)
	}
	box := BoxName(p.Org, target)
	latest := 0
	if p.Registry != nil {
		latest = p.Registry.LatestVersion(ctx, box, provider)
	}
	release := Release{Box: box, Version: latest + 1}
	p.logger().Info("publishing box", "box", box, "version", release.Version, "path", path)

	cmdline := "vagrant cloud publish --no-private -f -r " +
		command.Join(box, strconv.Itoa(release.Version), provider, path)
	var opts []command.Option
	if p.Timeout > 0 {
		opts = append(opts, command.WithTimeout(p.Timeout))
	}
	if _, err := p.Runner.Run(ctx, cmdline, opts...); err != nil {
		return Release{}, fmt.Errorf("publish %s: %w", box, err)
	}
	return release, nil
}
