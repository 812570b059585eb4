package lxc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cochaviz/vagrantizer/internal/command/commandtest"
)

func TestChrootCommandLines(t *testing.T) {
	t.Parallel()

	fake := &commandtest.Runner{}
	root := &Chroot{Root: "/var/lib/lxc/alpine-3.16-bare/rootfs", Sudo: "sudo", Runner: fake}
	ctx := context.Background()

	require.NoError(t, root.Run(ctx, "adduser", "-D", "vagrant"))
	require.NoError(t, root.Pipe(ctx, "vagrant:vagrant", "chpasswd"))
	require.NoError(t, root.WriteFile(ctx, "/etc/sudoers.d/vagrant", "vagrant ALL=(ALL) NOPASSWD:ALL\n"))
	require.NoError(t, root.Host(ctx, "chmod", "0440", root.Path("etc/sudoers.d/vagrant")))
	require.NoError(t, root.Remove(ctx, "tmp/*"))

	cmds := fake.Commands()
	require.Len(t, cmds, 5)
	assert.Equal(t, "sudo chroot /var/lib/lxc/alpine-3.16-bare/rootfs adduser -D vagrant", cmds[0])
	assert.Equal(t, "printf '%s' vagrant:vagrant | sudo chroot /var/lib/lxc/alpine-3.16-bare/rootfs chpasswd", cmds[1])
	assert.Contains(t, cmds[2], "| sudo tee /var/lib/lxc/alpine-3.16-bare/rootfs/etc/sudoers.d/vagrant >/dev/null")
	assert.Equal(t, "sudo chmod 0440 /var/lib/lxc/alpine-3.16-bare/rootfs/etc/sudoers.d/vagrant", cmds[3])
	assert.Equal(t, `sudo sh -c 'rm -rf /var/lib/lxc/alpine-3.16-bare/rootfs/tmp/*'`, cmds[4])
}

func TestChrootContains(t *testing.T) {
	t.Parallel()

	fake := (&commandtest.Runner{}).
		Sequence("grep", commandtest.Response{ExitCode: 1}, commandtest.Response{ExitCode: 0})
	root := &Chroot{Root: "/rootfs", Runner: fake}
	ctx := context.Background()

	found, err := root.Contains(ctx, "etc/shadow", "^vagrant:")
	require.NoError(t, err)
	assert.False(t, found)

	found, err = root.Contains(ctx, "etc/shadow", "^vagrant:")
	require.NoError(t, err)
	assert.True(t, found)

	assert.Equal(t, "grep -q -- ^vagrant: /rootfs/etc/shadow", fake.Commands()[0])
}

func TestChrootContainsReportsNoMatchInDryRun(t *testing.T) {
	t.Parallel()

	fake := &commandtest.Runner{}
	c := newContainer(t, fake)
	c.DryRun = true
	root := c.Chroot()

	found, err := root.Contains(context.Background(), "etc/shadow", "^vagrant:")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, fake.Count("grep -q"), "the lookup is still logged")
}
