package simple

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/cochaviz/vagrantizer/internal/artifacts"
	"github.com/cochaviz/vagrantizer/internal/box"
	"github.com/cochaviz/vagrantizer/internal/build"
	"github.com/cochaviz/vagrantizer/internal/command"
	"github.com/cochaviz/vagrantizer/internal/logging"
	"github.com/cochaviz/vagrantizer/internal/lxc"
	"github.com/cochaviz/vagrantizer/internal/metrics"
	"github.com/cochaviz/vagrantizer/internal/provision"
	"github.com/cochaviz/vagrantizer/internal/publish"
	"github.com/cochaviz/vagrantizer/internal/readiness"
	"github.com/cochaviz/vagrantizer/internal/setup"
	"github.com/cochaviz/vagrantizer/internal/systems"
)

// BuildOptions selects what a build run does on top of the settings.
type BuildOptions struct {
	System      string
	Revision    string
	LeaveSystem bool
	DryRun      bool
	CleanStart  bool
	Quiet       bool
	UploadOrg   string // Publish under this organization when set.

	Stdout io.Writer // Command output echo; os.Stdout when nil.
}

// SystemListing is one family with its revisions.
type SystemListing struct {
	Family    string
	Revisions []string
	Supported bool            // A provisioning recipe exists for the family.
	Built     map[string]bool // Revisions with a box in the work dir.
}

// Plan resolves the selection against the catalog. Revisions the catalog does
// not declare are accepted with a warning.
func Plan(catalog *systems.Catalog, system, revision string, logger *slog.Logger) ([]systems.Target, error) {
	logger = logging.Ensure(logger)
	plan, err := catalog.Plan(system, revision)
	if err != nil {
		return nil, err
	}
	for _, target := range plan {
		if !catalog.Known(target.Family, target.Revision) {
			logger.Warn("revision not in catalog, building anyway", "system", target.Family, "revision", target.Revision)
		}
	}
	return plan, nil
}

// NewRunner returns the command runner every component shares.
func NewRunner(settings setup.Settings, dryRun, quiet bool, stdout io.Writer, logger *slog.Logger) *command.Runner {
	return &command.Runner{
		Logger:          logger.With("component", "runner"),
		Stdout:          stdout,
		DryRun:          dryRun,
		Quiet:           quiet,
		EnforceTimeouts: settings.EnforceTimeouts,
		DefaultTimeout:  settings.CommandTimeout,
	}
}

// ContainerFactory returns a constructor for containers of the configured
// runtime.
func ContainerFactory(settings setup.Settings, runner command.Executor, dryRun bool, logger *slog.Logger) func(systems.Target) *lxc.Container {
	return func(target systems.Target) *lxc.Container {
		return &lxc.Container{
			Target:  target,
			LXCPath: settings.LXCPath,
			Arch:    settings.Arch,
			Sudo:    settings.Sudo,
			DryRun:  dryRun,
			Runner:  runner,
			Logger:  logger.With("component", "lxc"),
		}
	}
}

// NewWaiter picks the network readiness strategy.
func NewWaiter(settings setup.Settings, dryRun bool, logger *slog.Logger) readiness.Waiter {
	if dryRun {
		return readiness.None{}
	}
	delay := readiness.Delay{Duration: settings.NetworkWait, Logger: logger}
	if settings.Readiness == setup.ReadinessSleep {
		return delay
	}
	return &readiness.Probe{
		Timeout:  settings.ReadinessTimeout,
		Fallback: delay,
		Logger:   logger,
	}
}

// NewBuildService wires the build pipeline for the given settings.
func NewBuildService(settings setup.Settings, options BuildOptions, runner command.Executor, recorder *metrics.Recorder, logger *slog.Logger) *build.BuildService {
	store := &artifacts.LocalStore{BaseDir: settings.WorkDir}

	service := &build.BuildService{
		Logger: logger.With("service", "build"),
		EnvironmentPreparer: &build.LXCEnvironmentPreparer{
			NewContainer: ContainerFactory(settings, runner, options.DryRun, logger),
			Logger:       logger.With("component", "environment"),
		},
		BuildDriver: &build.LXCBuildDriver{
			Provisioner: &provision.Provisioner{
				Waiter: NewWaiter(settings, options.DryRun, logger.With("component", "readiness")),
				Logger: logger.With("component", "provision"),
			},
			Users:   &provision.Users{Logger: logger.With("component", "users")},
			Cleaner: &provision.Cleaner{Logger: logger.With("component", "cleanup")},
			Packager: &box.Packager{
				WorkDir:  settings.WorkDir,
				ConfsDir: settings.ConfsDir,
				Sudo:     settings.Sudo,
				DryRun:   options.DryRun,
				Runner:   runner,
				Store:    store,
				Logger:   logger.With("component", "box"),
			},
		},
		ArtifactStore: store,
		Metrics:       recorder,
	}

	if options.UploadOrg != "" {
		service.Publisher = &publish.Publisher{
			Org: options.UploadOrg,
			Registry: &publish.Registry{
				BaseURL: settings.RegistryURL,
				Client:  &http.Client{Timeout: settings.PublishTimeout},
				Logger:  logger.With("component", "registry"),
			},
			Runner:  runner,
			Timeout: settings.PublishTimeout,
			Logger:  logger.With("component", "publish"),
		}
	}
	return service
}

// Build runs the selected targets and writes the metrics textfile when one is
// configured.
func Build(ctx context.Context, settings setup.Settings, options BuildOptions, logger *slog.Logger) ([]build.BuildResult, error) {
	logger = logging.Ensure(logger).With("component", "config.simple")

	catalog, err := systems.Load(settings.CatalogFile)
	if err != nil {
		return nil, err
	}
	plan, err := Plan(catalog, options.System, options.Revision, logger)
	if err != nil {
		return nil, err
	}

	runner := NewRunner(settings, options.DryRun, options.Quiet, options.Stdout, logger)
	recorder := metrics.New()
	service := NewBuildService(settings, options, runner, recorder, logger)

	results, runErr := service.Run(ctx, &build.BuildRequest{
		Plan:        plan,
		LeaveSystem: options.LeaveSystem,
		Upload:      options.UploadOrg != "",
		CleanStart:  options.CleanStart,
	})

	if settings.MetricsFile != "" && !options.DryRun {
		if err := recorder.WriteTextfile(settings.MetricsFile); err != nil {
			logger.Warn("writing metrics failed", "path", settings.MetricsFile, "error", err)
		}
	}
	return results, runErr
}

// ListSystems returns the catalog's families and revisions in build order,
// noting which revisions already have a box in the work dir.
func ListSystems(settings setup.Settings) ([]SystemListing, error) {
	catalog, err := systems.Load(settings.CatalogFile)
	if err != nil {
		return nil, err
	}
	supported := make(map[string]bool)
	for _, family := range provision.Families() {
		supported[family] = true
	}
	store := &artifacts.LocalStore{BaseDir: settings.WorkDir}
	listings := make([]SystemListing, 0, len(catalog.Families))
	for _, family := range catalog.Families {
		built := make(map[string]bool)
		for _, revision := range family.Revisions {
			if _, err := store.Lookup(catalog.Target(family.Name, revision).Name() + ".box"); err == nil {
				built[revision] = true
			}
		}
		listings = append(listings, SystemListing{
			Family:    family.Name,
			Revisions: append([]string(nil), family.Revisions...),
			Supported: supported[family.Name],
			Built:     built,
		})
	}
	return listings, nil
}

// Attach opens an interactive shell in the container of one target, starting
// it when it is stopped.
func Attach(ctx context.Context, settings setup.Settings, system, revision string, logger *slog.Logger) error {
	logger = logging.Ensure(logger).With("component", "config.simple")

	catalog, err := systems.Load(settings.CatalogFile)
	if err != nil {
		return err
	}
	if system == "" || system == systems.All || revision == "" || revision == systems.All {
		return errors.New("attach needs a single --system and --revision")
	}
	plan, err := Plan(catalog, system, revision, logger)
	if err != nil {
		return err
	}

	runner := NewRunner(settings, false, true, nil, logger)
	container := ContainerFactory(settings, runner, false, logger)(plan[0])

	state, err := container.State(ctx)
	if err != nil {
		return err
	}
	switch state {
	case lxc.StateAbsent:
		return fmt.Errorf("container %s does not exist; build with --leave-system first", container.Name())
	case lxc.StateStopped:
		if err := container.Start(ctx); err != nil {
			return err
		}
	}
	return container.Attach(ctx, os.Stdin, os.Stdout)
}

// EnsureDependencies checks the host tools and the lxc bridge, installing or
// creating what is missing when install is set.
func EnsureDependencies(ctx context.Context, settings setup.Settings, upload, install bool, logger *slog.Logger) error {
	logger = logging.Ensure(logger).With("component", "config.simple")
	runner := NewRunner(settings, false, false, nil, logger)

	var errs []error
	if err := setup.EnsureDependencies(ctx, runner, settings.Sudo, upload, install); err != nil {
		errs = append(errs, err)
	}

	if err := setup.CheckBridge(setup.DefaultBridge); err != nil {
		if !install {
			errs = append(errs, err)
		} else if err := setup.EnsureBridge(setup.DefaultBridge); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		logger.Info("host is ready for box builds")
	}
	return errors.Join(errs...)
}
