package setup

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
)

func TestLoadLayersFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("work_dir: /srv/boxes\ncommand_timeout: 20m\nreadiness: sleep\n"), 0o644))
	t.Setenv("VAGRANTIZER_NETWORK_WAIT", "9s")

	settings, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/boxes", settings.WorkDir)
	assert.Equal(t, 20*time.Minute, settings.CommandTimeout)
	assert.Equal(t, ReadinessSleep, settings.Readiness)
	assert.Equal(t, 9*time.Second, settings.NetworkWait)
	assert.Equal(t, "/var/lib/lxc", settings.LXCPath)
	assert.Equal(t, 60*time.Second, settings.PublishTimeout)
	assert.NoError(t, Verify(settings))
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	previous := ConfigDir
	ConfigDir = t.TempDir()
	t.Cleanup(func() { ConfigDir = previous })

	settings, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), settings)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestVerifyCollectsProblems(t *testing.T) {
	settings := Defaults()
	settings.Arch = "sparc"
	settings.Readiness = "ping"
	settings.CommandTimeout = -time.Second
	settings.LogFormat = "xml"

	err := Verify(settings)
	require.Error(t, err)
	for _, fragment := range []string{"sparc", "readiness", "command_timeout", "log_format"} {
		assert.Contains(t, err.Error(), fragment)
	}
}

func TestVerifyRejectsSharedWorkDir(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	for _, dir := range []string{".", "./", cwd, "/", xdg.Home} {
		settings := Defaults()
		settings.WorkDir = dir
		assert.ErrorContains(t, Verify(settings), "work_dir", dir)
	}

	settings := Defaults()
	settings.WorkDir = "work"
	assert.NoError(t, Verify(settings))
}

func TestMissingTools(t *testing.T) {
	present := map[string]bool{"tar": true, "sudo": true, "chroot": true}
	lookPath := func(name string) (string, error) {
		if present[name] || strings.HasPrefix(name, "lxc-") {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}

	assert.Empty(t, MissingTools(false, lookPath))
	assert.Equal(t, []string{"vagrant"}, MissingTools(true, lookPath))
}

func TestDetectPackageManager(t *testing.T) {
	cases := []struct {
		name    string
		release string
		want    string
		wantErr bool
	}{
		{name: "debian", release: "ID=debian\nVERSION_ID=\"12\"\n", want: "apt-get"},
		{name: "mint via ID_LIKE", release: "ID=linuxmint\nID_LIKE=\"ubuntu debian\"\n", want: "apt-get"},
		{name: "fedora", release: "NAME=\"Fedora Linux\"\nID=fedora\n", want: "dnf"},
		{name: "rocky via ID_LIKE", release: "ID=\"rocky\"\nID_LIKE=\"rhel centos fedora\"\n", want: "dnf"},
		{name: "arch", release: "ID=arch\n", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			manager, err := DetectPackageManager(strings.NewReader(tc.release))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedHost)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, manager.Name)
			assert.NotEmpty(t, manager.Packages)
		})
	}
}

func TestSameAddr(t *testing.T) {
	a, err := netlink.ParseAddr("10.0.3.1/24")
	require.NoError(t, err)
	b, err := netlink.ParseAddr("10.0.3.1/16")
	require.NoError(t, err)

	assert.True(t, sameAddr(*a, a))
	assert.False(t, sameAddr(*a, b))
}
