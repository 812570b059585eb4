package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/subosito/gotenv"

	"github.com/cochaviz/vagrantizer/internal/command"
)

// ErrUnsupportedHost is returned when no known package manager matches the
// host distribution.
var ErrUnsupportedHost = errors.New("unsupported host distribution")

// OSReleasePath is read to detect the host package manager.
var OSReleasePath = "/etc/os-release"

// BuildTools are needed by every build.
var BuildTools = []string{
	"lxc-create", "lxc-start", "lxc-stop", "lxc-destroy",
	"lxc-attach", "lxc-info", "lxc-ls",
	"tar", "sudo", "chroot",
}

// UploadTools are needed when boxes are published.
var UploadTools = []string{"vagrant"}

// PackageManager installs the packages providing the build tools.
type PackageManager struct {
	Name     string
	Install  string
	Packages []string
}

var packageManagers = map[string]PackageManager{
	"apt": {
		Name:     "apt-get",
		Install:  "env DEBIAN_FRONTEND=noninteractive apt-get install -y",
		Packages: []string{"lxc", "lxc-templates", "debootstrap"},
	},
	"dnf": {
		Name:     "dnf",
		Install:  "dnf install -y",
		Packages: []string{"lxc", "lxc-templates"},
	},
}

var distroManagers = map[string]string{
	"debian": "apt",
	"ubuntu": "apt",
	"fedora": "dnf",
	"centos": "dnf",
	"rhel":   "dnf",
}

// MissingTools returns the required tools that lookPath cannot find.
// lookPath defaults to exec.LookPath.
func MissingTools(upload bool, lookPath func(string) (string, error)) []string {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	tools := BuildTools
	if upload {
		tools = append(append([]string(nil), BuildTools...), UploadTools...)
	}
	var missing []string
	for _, tool := range tools {
		if _, err := lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	return missing
}

// DetectPackageManager picks the package manager from an os-release file,
// trying ID before ID_LIKE.
func DetectPackageManager(osRelease io.Reader) (PackageManager, error) {
	env, err := gotenv.StrictParse(osRelease)
	if err != nil {
		return PackageManager{}, fmt.Errorf("parse os-release: %w", err)
	}
	candidates := append([]string{env["ID"]}, strings.Fields(env["ID_LIKE"])...)
	for _, id := range candidates {
		if key, ok := distroManagers[strings.ToLower(id)]; ok {
			return packageManagers[key], nil
		}
	}
	return PackageManager{}, fmt.Errorf("%w: %s", ErrUnsupportedHost, env["ID"])
}

// EnsureDependencies reports missing host tools and, when install is set,
// installs the packages providing them. The vagrant CLI is never installed
// automatically.
func EnsureDependencies(ctx context.Context, runner command.Executor, sudo string, upload, install bool) error {
	missing := MissingTools(upload, nil)
	if len(missing) == 0 {
		getLogger().Info("all host tools present")
		return nil
	}
	getLogger().Warn("missing host tools", "tools", strings.Join(missing, " "))
	if !install {
		return fmt.Errorf("missing host tools: %s", strings.Join(missing, ", "))
	}

	f, err := os.Open(OSReleasePath)
	if err != nil {
		return fmt.Errorf("detect host distribution: %w", err)
	}
	defer f.Close()
	manager, err := DetectPackageManager(f)
	if err != nil {
		return err
	}

	cmdline := manager.Install + " " + command.Join(manager.Packages...)
	if sudo != "" {
		cmdline = sudo + " " + cmdline
	}
	if _, err := runner.Run(ctx, cmdline); err != nil {
		return fmt.Errorf("install with %s: %w", manager.Name, err)
	}

	if still := MissingTools(upload, nil); len(still) > 0 {
		return fmt.Errorf("still missing after install: %s", strings.Join(still, ", "))
	}
	return nil
}
