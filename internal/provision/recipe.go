package provision

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cochaviz/vagrantizer/internal/command"
	"github.com/cochaviz/vagrantizer/internal/lxc"
	"github.com/cochaviz/vagrantizer/internal/readiness"
	"github.com/cochaviz/vagrantizer/internal/systems"
)

var ErrUnsupportedFamily = errors.New("unsupported system family")

// UnsupportedFamilyError names a family without a recipe.
type UnsupportedFamilyError struct {
	Family string
}

func (e *UnsupportedFamilyError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnsupportedFamily, e.Family)
}

func (e *UnsupportedFamilyError) Unwrap() error { return ErrUnsupportedFamily }

// Console runs commands inside a running container.
type Console interface {
	Exec(ctx context.Context, cmdline string, opts ...command.Option) (command.Result, error)
	Shell(ctx context.Context, script string, opts ...command.Option) (command.Result, error)
}

// Guest is the container handle as seen by the provisioning steps.
type Guest interface {
	Console
	readiness.Subject
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Chroot() *lxc.Chroot
}

var _ Guest = (*lxc.Container)(nil)

// Recipe is the family specific part of provisioning. Console methods need a
// running container; chroot methods work on the stopped rootfs.
type Recipe interface {
	Family() string
	// SettleDelay is extra time to wait after the network came up.
	SettleDelay() time.Duration
	Upgrade(ctx context.Context, c Console) error
	// Fix applies pinned compatibility workarounds before installing.
	Fix(ctx context.Context, c Console) error
	Install(ctx context.Context, c Console) error
	Clean(ctx context.Context, c Console) error
	// CleanPaths are rootfs relative paths removed after Clean.
	CleanPaths() []string
	CreateUser(ctx context.Context, root *lxc.Chroot) error
	GrantSudo(ctx context.Context, root *lxc.Chroot) error
}

type factory func(revision string) Recipe

var recipes = map[string]factory{
	"debian": func(rev string) Recipe { return &apt{family: "debian", revision: rev} },
	"ubuntu": func(rev string) Recipe { return &apt{family: "ubuntu", revision: rev} },
	"fedora": func(rev string) Recipe { return &rpm{family: "fedora", tool: "dnf"} },
	"centos": func(rev string) Recipe {
		if rev == "7" {
			return &rpm{family: "centos", tool: "yum", settle: 5 * time.Second}
		}
		return &rpm{family: "centos", tool: "dnf"}
	},
	"alpine": func(string) Recipe { return &apk{} },
}

// For returns the recipe for target's family.
func For(target systems.Target) (Recipe, error) {
	build, ok := recipes[target.Family]
	if !ok {
		return nil, &UnsupportedFamilyError{Family: target.Family}
	}
	return build(target.Revision), nil
}

// Families lists the families with a recipe.
func Families() []string {
	families := make([]string, 0, len(recipes))
	for family := range recipes {
		families = append(families, family)
	}
	slices.Sort(families)
	return families
}

func execAll(ctx context.Context, c Console, cmdlines ...string) error {
	for _, cmdline := range cmdlines {
		if _, err := c.Exec(ctx, cmdline); err != nil {
			return err
		}
	}
	return nil
}

func install(tool string, packages []string) string {
	return tool + " " + strings.Join(packages, " ")
}
