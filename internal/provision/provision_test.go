package provision

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cochaviz/vagrantizer/internal/command/commandtest"
	"github.com/cochaviz/vagrantizer/internal/lxc"
	"github.com/cochaviz/vagrantizer/internal/lxc/lxctest"
	"github.com/cochaviz/vagrantizer/internal/readiness"
	"github.com/cochaviz/vagrantizer/internal/systems"
)

type recordingWaiter struct{ waited []string }

func (w *recordingWaiter) Wait(_ context.Context, s readiness.Subject) error {
	w.waited = append(w.waited, s.Name())
	return nil
}

func stoppedContainer(t *testing.T, family, revision string) (*lxc.Container, *lxctest.Runtime) {
	t.Helper()
	target := systems.Default().Target(family, revision)
	rt := lxctest.New().Seed(target.Name(), "STOPPED")
	return &lxc.Container{Target: target, Sudo: "sudo", Runner: rt}, rt
}

func recipeFor(t *testing.T, c *lxc.Container) Recipe {
	t.Helper()
	recipe, err := For(c.Target)
	require.NoError(t, err)
	return recipe
}

func attached(rt *lxctest.Runtime) []string {
	var out []string
	for _, cmd := range rt.Commands() {
		if _, inside, ok := strings.Cut(cmd, "lxc-attach"); ok {
			_, inside, _ = strings.Cut(inside, " -- ")
			out = append(out, inside)
		}
	}
	return out
}

func TestForUnsupportedFamily(t *testing.T) {
	t.Parallel()

	_, err := For(systems.Target{Family: "gentoo", Revision: "1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFamily)

	var famErr *UnsupportedFamilyError
	require.ErrorAs(t, err, &famErr)
	assert.Equal(t, "gentoo", famErr.Family)
}

func TestEveryCatalogFamilyHasRecipe(t *testing.T) {
	t.Parallel()

	for _, family := range systems.Default().FamilyNames() {
		assert.Contains(t, Families(), family)
	}
}

func TestProvisionDebian(t *testing.T) {
	t.Parallel()

	c, rt := stoppedContainer(t, "debian", "10")
	waiter := &recordingWaiter{}
	p := &Provisioner{Waiter: waiter}

	require.NoError(t, p.Provision(context.Background(), c, recipeFor(t, c)))

	assert.Equal(t, "RUNNING", rt.State(c.Name()))
	assert.Equal(t, []string{"debian-10-bare"}, waiter.waited)
	assert.Equal(t, []string{
		"env DEBIAN_FRONTEND=noninteractive apt update",
		"env DEBIAN_FRONTEND=noninteractive apt upgrade -y",
		"env DEBIAN_FRONTEND=noninteractive apt install -y vim wget openssh-server ca-certificates sudo python3",
	}, attached(rt))
}

func TestProvisionHostnamedFix(t *testing.T) {
	t.Parallel()

	for _, target := range [][2]string{{"debian", "8"}, {"ubuntu", "16.04"}} {
		c, rt := stoppedContainer(t, target[0], target[1])
		p := &Provisioner{Waiter: readiness.None{}}

		require.NoError(t, p.Provision(context.Background(), c, recipeFor(t, c)))

		cmds := attached(rt)
		require.Len(t, cmds, 5)
		assert.Equal(t, "mkdir -p /etc/systemd/system/systemd-hostnamed.service.d", cmds[2])
		assert.Contains(t, cmds[3], "PrivateDevices=no")
		assert.Contains(t, cmds[3], "override.conf")
		assert.True(t, strings.HasSuffix(cmds[4], "python3 dbus libnss-myhostname"), cmds[4])
	}
}

func TestProvisionUbuntuTrustyRemountsSelinux(t *testing.T) {
	t.Parallel()

	c, rt := stoppedContainer(t, "ubuntu", "14.04")
	p := &Provisioner{Waiter: readiness.None{}}

	require.NoError(t, p.Provision(context.Background(), c, recipeFor(t, c)))
	assert.Contains(t, attached(rt), "mount -o remount,ro /sys/fs/selinux")
}

func TestProvisionCentos7SettlesLonger(t *testing.T) {
	t.Parallel()

	c, rt := stoppedContainer(t, "centos", "7")
	var slept []time.Duration
	p := &Provisioner{
		Waiter: readiness.None{},
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	require.NoError(t, p.Provision(context.Background(), c, recipeFor(t, c)))
	assert.Equal(t, []time.Duration{5 * time.Second}, slept)
	assert.Equal(t, []string{
		"yum upgrade -y",
		"yum install -y vim-enhanced wget openssh-server ca-certificates sudo python3",
	}, attached(rt))
}

func TestProvisionFedoraAndCentos8UseDnf(t *testing.T) {
	t.Parallel()

	for _, target := range [][2]string{{"fedora", "34"}, {"centos", "8"}} {
		c, rt := stoppedContainer(t, target[0], target[1])
		p := &Provisioner{Waiter: readiness.None{}, Sleep: func(context.Context, time.Duration) error {
			t.Fatal("no settle delay expected")
			return nil
		}}

		require.NoError(t, p.Provision(context.Background(), c, recipeFor(t, c)))
		assert.Equal(t, "dnf upgrade -y", attached(rt)[0])
	}
}

func TestProvisionAlpine(t *testing.T) {
	t.Parallel()

	c, rt := stoppedContainer(t, "alpine", "3.16")
	p := &Provisioner{Waiter: readiness.None{}}

	require.NoError(t, p.Provision(context.Background(), c, recipeFor(t, c)))
	assert.Equal(t, []string{
		"apk update",
		"apk upgrade",
		"apk add vim wget openssh ca-certificates sudo python3 bash",
		"rc-update add sshd",
	}, attached(rt))
}

func TestProvisionStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	c, rt := stoppedContainer(t, "debian", "10")
	rt.On("apt upgrade", commandtest.Response{ExitCode: 100, Output: "E: broken packages"})
	p := &Provisioner{Waiter: readiness.None{}}

	err := p.Provision(context.Background(), c, recipeFor(t, c))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upgrade")
	assert.Zero(t, rt.Count("apt install"))
}
