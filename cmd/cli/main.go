package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	config "github.com/cochaviz/vagrantizer/config"
	"github.com/cochaviz/vagrantizer/internal/logging"
	"github.com/cochaviz/vagrantizer/internal/setup"
	"github.com/cochaviz/vagrantizer/internal/systems"
)

var version = "dev"

// app carries state shared by all commands once flags are parsed.
type app struct {
	levelVar *slog.LevelVar
	logger   *slog.Logger
	settings setup.Settings

	configPath  string
	system      string
	revision    string
	leaveSystem bool
	verbose     bool
	quiet       bool
	dryRun      bool
	cleanStart  bool
	checkTimes  bool
	uploadOrg   string
}

func main() {
	// Child commands inherit this; runtime output is parsed in the C locale.
	os.Setenv("LC_ALL", "C")
	os.Setenv("LANG", "C")

	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	logger := logging.NewCLI(os.Stderr, &levelVar)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{levelVar: &levelVar, logger: logger}
	root := newRootCommand(a)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			a.logger.Warn("command interrupted", "error", err)
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	setup.SetLogger(a.logger.With("component", "setup"))

	root := &cobra.Command{
		Use:           "vagrantizer",
		Short:         "Build Vagrant boxes for the lxc provider from upstream container images",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default "+setup.ConfigFile()+")")
	flags.StringVarP(&a.system, "system", "s", systems.All, "System family to build, or 'all'")
	flags.StringVarP(&a.revision, "revision", "r", systems.All, "Revision of the selected system, or 'all'")
	flags.BoolVarP(&a.leaveSystem, "leave-system", "l", false, "Keep the container after a successful build")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose mode")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "Enable quiet mode")
	flags.BoolVarP(&a.dryRun, "dry-run", "n", false, "Print only what would be done")
	flags.BoolVarP(&a.cleanStart, "clean-start", "c", false, "Remove existing boxes and containers of the selected systems first")
	flags.BoolVarP(&a.checkTimes, "check-times", "i", false, "Do not allow commands to run indefinitely")
	flags.StringVarP(&a.uploadOrg, "upload", "u", "", "Upload boxes to Vagrant Cloud under this organization")
	flags.String("work-dir", "", "Directory boxes are written to")
	flags.String("metrics-file", "", "Write Prometheus textfile metrics here after a build")
	flags.String("log-level", "", "Set log verbosity (debug, info, warning, error)")
	flags.String("log-format", "", "Log format (text, json)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.configure(cmd.Flags())
	}

	root.AddCommand(
		newBuildCommand(a),
		newAttachCommand(a),
		newListSystemsCommand(a),
		newEnsureDependenciesCommand(a),
	)
	return root
}

// configure layers flags over the config file and environment, then applies
// the logging settings.
func (a *app) configure(flags *pflag.FlagSet) error {
	v := setup.NewViper()
	bindings := map[string]string{
		"work_dir":         "work-dir",
		"metrics_file":     "metrics-file",
		"log_level":        "log-level",
		"log_format":       "log-format",
		"enforce_timeouts": "check-times",
	}
	for key, name := range bindings {
		if flag := flags.Lookup(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}

	settings, err := setup.Load(v, a.configPath)
	if err != nil {
		return err
	}
	if err := setup.Verify(settings); err != nil {
		return err
	}
	a.settings = settings

	level, err := logging.ParseLevel(settings.LogLevel)
	if err != nil {
		return err
	}
	a.levelVar.Set(logging.LevelFor(a.verbose, a.quiet, level))

	if strings.EqualFold(settings.LogFormat, "json") {
		a.logger = logging.NewJSON(os.Stderr, a.levelVar)
		slog.SetDefault(a.logger)
		setup.SetLogger(a.logger.With("component", "setup"))
	}
	return nil
}

func newBuildCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build boxes for the selected systems and revisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := a.logger.With("command", "build")
			cmdLogger.Info("starting build", "system", a.system, "revision", a.revision, "work_dir", a.settings.WorkDir, "dry_run", a.dryRun)

			results, err := config.Build(cmd.Context(), a.settings, config.BuildOptions{
				System:      a.system,
				Revision:    a.revision,
				LeaveSystem: a.leaveSystem,
				DryRun:      a.dryRun,
				CleanStart:  a.cleanStart,
				Quiet:       a.quiet,
				UploadOrg:   a.uploadOrg,
				Stdout:      cmd.OutOrStdout(),
			}, cmdLogger)
			if len(results) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderSummary(results))
			}
			return err
		},
	}
}

func newAttachCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "attach",
		Short: "Open a shell in the container of one system revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := a.logger.With("command", "attach", "system", a.system, "revision", a.revision)
			return config.Attach(cmd.Context(), a.settings, a.system, a.revision, cmdLogger)
		},
	}
}

func newListSystemsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-systems",
		Short: "List supported systems and their revisions; * marks revisions with a local box",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listings, err := config.ListSystems(a.settings)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSystems(listings))
			return nil
		},
	}
}

func newEnsureDependenciesCommand(a *app) *cobra.Command {
	var install bool

	cmd := &cobra.Command{
		Use:     "ensure-dependencies",
		Aliases: []string{"ensure-lxc-vagrantizer-deps"},
		Short:   "Check, and optionally install, the host tools and lxc bridge",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := a.logger.With("command", "ensure-dependencies")
			return config.EnsureDependencies(cmd.Context(), a.settings, a.uploadOrg != "", install, cmdLogger)
		},
	}
	cmd.Flags().BoolVar(&install, "install", false, "Install missing packages and create the bridge")
	return cmd
}
