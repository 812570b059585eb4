package setup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/cochaviz/vagrantizer/arch"
)

// EnvPrefix prefixes every environment override, e.g. VAGRANTIZER_WORK_DIR.
const EnvPrefix = "VAGRANTIZER"

// Readiness modes.
const (
	ReadinessProbe = "probe"
	ReadinessSleep = "sleep"
)

var ConfigDir = filepath.Join(xdg.ConfigHome, "vagrantizer")

// Settings holds everything a build run is configured with.
type Settings struct {
	WorkDir          string        `mapstructure:"work_dir"`
	LXCPath          string        `mapstructure:"lxc_path"`
	ConfsDir         string        `mapstructure:"confs_dir"`
	Arch             string        `mapstructure:"arch"`
	CommandTimeout   time.Duration `mapstructure:"command_timeout"`
	EnforceTimeouts  bool          `mapstructure:"enforce_timeouts"`
	NetworkWait      time.Duration `mapstructure:"network_wait"`
	Readiness        string        `mapstructure:"readiness"`
	ReadinessTimeout time.Duration `mapstructure:"readiness_timeout"`
	RegistryURL      string        `mapstructure:"registry_url"`
	PublishTimeout   time.Duration `mapstructure:"publish_timeout"`
	MetricsFile      string        `mapstructure:"metrics_file"`
	CatalogFile      string        `mapstructure:"catalog_file"`
	Sudo             string        `mapstructure:"sudo"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Settings {
	sudo := "sudo"
	if unix.Geteuid() == 0 {
		sudo = ""
	}
	return Settings{
		WorkDir:          "work",
		LXCPath:          "/var/lib/lxc",
		ConfsDir:         "lxc-confs",
		Arch:             arch.Host().String(),
		CommandTimeout:   15 * time.Minute,
		NetworkWait:      5 * time.Second,
		Readiness:        ReadinessProbe,
		ReadinessTimeout: 2 * time.Minute,
		RegistryURL:      "https://app.vagrantup.com/api/v1/box/",
		PublishTimeout:   60 * time.Second,
		Sudo:             sudo,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// ConfigFile is the config file read when none is given explicitly.
func ConfigFile() string {
	return filepath.Join(ConfigDir, "config.yaml")
}

// NewViper returns a viper instance carrying the defaults and reading
// VAGRANTIZER_* environment overrides. Callers bind their flags on top.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault("work_dir", d.WorkDir)
	v.SetDefault("lxc_path", d.LXCPath)
	v.SetDefault("confs_dir", d.ConfsDir)
	v.SetDefault("arch", d.Arch)
	v.SetDefault("command_timeout", d.CommandTimeout)
	v.SetDefault("enforce_timeouts", d.EnforceTimeouts)
	v.SetDefault("network_wait", d.NetworkWait)
	v.SetDefault("readiness", d.Readiness)
	v.SetDefault("readiness_timeout", d.ReadinessTimeout)
	v.SetDefault("registry_url", d.RegistryURL)
	v.SetDefault("publish_timeout", d.PublishTimeout)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("catalog_file", d.CatalogFile)
	v.SetDefault("sudo", d.Sudo)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file into v and decodes the merged settings. An
// explicit path must exist; the default one is optional.
func Load(v *viper.Viper, path string) (Settings, error) {
	explicit := path != ""
	if !explicit {
		path = ConfigFile()
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
		getLogger().Debug("loaded config file", "path", path)
	} else if explicit {
		return Settings{}, fmt.Errorf("config file %s: %w", path, err)
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

// Verify checks the settings for values a build cannot run with.
func Verify(s Settings) error {
	var errs []error
	if strings.TrimSpace(s.WorkDir) == "" {
		errs = append(errs, errors.New("work_dir must not be empty"))
	} else if err := checkWorkDir(s.WorkDir); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(s.LXCPath) == "" {
		errs = append(errs, errors.New("lxc_path must not be empty"))
	}
	if _, err := arch.Parse(s.Arch); err != nil {
		errs = append(errs, err)
	}
	switch s.Readiness {
	case ReadinessProbe, ReadinessSleep:
	default:
		errs = append(errs, fmt.Errorf("readiness must be %q or %q, got %q", ReadinessProbe, ReadinessSleep, s.Readiness))
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", s.LogFormat))
	}
	for name, d := range map[string]time.Duration{
		"command_timeout":   s.CommandTimeout,
		"network_wait":      s.NetworkWait,
		"readiness_timeout": s.ReadinessTimeout,
		"publish_timeout":   s.PublishTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if s.CatalogFile != "" {
		if _, err := os.Stat(s.CatalogFile); err != nil {
			errs = append(errs, fmt.Errorf("catalog_file: %w", err))
		}
	}
	if info, err := os.Stat(s.WorkDir); err == nil && !info.IsDir() {
		errs = append(errs, fmt.Errorf("work_dir %s is not a directory", s.WorkDir))
	}
	return errors.Join(errs...)
}

// checkWorkDir rejects directories that hold more than build output.
func checkWorkDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("work_dir: %w", err)
	}
	if abs == string(filepath.Separator) {
		return errors.New("work_dir must not be the filesystem root")
	}
	if cwd, err := os.Getwd(); err == nil && abs == cwd {
		return errors.New("work_dir must not be the current directory")
	}
	if xdg.Home != "" && abs == filepath.Clean(xdg.Home) {
		return fmt.Errorf("work_dir must not be the home directory %s", xdg.Home)
	}
	return nil
}
