// Package config loads gstage settings from flags, environment variables
// and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/franksops/gostage/archive"
	"github.com/franksops/gostage/engine"
	"github.com/franksops/gostage/staging"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "GSTAGE"
	// ConfigFileName is the config file looked up in the working directory
	// when no explicit file is given (without extension).
	ConfigFileName = "gstage"
)

// Config holds the settings of one gstage invocation.
type Config struct {
	Source      string        `mapstructure:"source"`
	Destination string        `mapstructure:"destination"`
	Workers     int           `mapstructure:"workers"`
	StateDir    string        `mapstructure:"state_dir"`
	SummaryPath string        `mapstructure:"summary"`
	TUI         bool          `mapstructure:"tui"`
	LogLevel    string        `mapstructure:"log_level"`
	Staging     StagingConfig `mapstructure:"staging"`
	Archive     ArchiveConfig `mapstructure:"archive"`
	S3          S3Config      `mapstructure:"s3"`
	HTTP        HTTPConfig    `mapstructure:"http"`
	Build       BuildConfig   `mapstructure:"build"`
}

type StagingConfig struct {
	Root    string         `mapstructure:"root"`
	Cleanup staging.Policy `mapstructure:"cleanup"`
}

type ArchiveConfig struct {
	Compression archive.Method `mapstructure:"compression"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
	// PartSizeMiB is the multipart upload part size. Zero keeps the SDK default.
	PartSizeMiB int64 `mapstructure:"part_size_mib"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// BuildConfig selects the build tool. Command takes precedence over AntHome.
type BuildConfig struct {
	AntHome string   `mapstructure:"ant_home"`
	Java    string   `mapstructure:"java"`
	Command []string `mapstructure:"command"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Workers:  engine.DefaultWorkers,
		StateDir: "./.gstage-state",
		TUI:      false,
		LogLevel: "info",
		Staging:  StagingConfig{Cleanup: staging.CleanupOnSuccess},
		Archive:  ArchiveConfig{Compression: archive.MethodDeflate},
		HTTP:     HTTPConfig{Timeout: 5 * time.Minute},
		Build:    BuildConfig{Java: "java"},
	}
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"source":        "source",
	"dest":          "destination",
	"workers":       "workers",
	"state-dir":     "state_dir",
	"summary":       "summary",
	"tui":           "tui",
	"log-level":     "log_level",
	"staging-root":  "staging.root",
	"cleanup":       "staging.cleanup",
	"compression":   "archive.compression",
	"s3-region":     "s3.region",
	"s3-endpoint":   "s3.endpoint",
	"s3-path-style": "s3.path_style",
	"s3-part-size":  "s3.part_size_mib",
	"http-timeout":  "http.timeout",
	"ant-home":      "build.ant_home",
	"java":          "build.java",
	"build-command": "build.command",
}

// RegisterFlags adds every setting to fs. Flags are optional: Load binds the
// ones it finds.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("source", "", "Input location (default $input)")
	fs.String("dest", "", "Output location (default $output)")
	fs.IntP("workers", "w", d.Workers, "Concurrent transfers per directory")
	fs.String("state-dir", d.StateDir, "Directory holding the transfer journal (empty disables it)")
	fs.String("summary", "", "Write a YAML run summary to this file")
	fs.Bool("tui", d.TUI, "Show the interactive dashboard")
	fs.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("staging-root", "", "Parent directory of the staging areas (default system temp)")
	fs.String("cleanup", string(d.Staging.Cleanup), "Staging cleanup policy (on-success, always, never)")
	fs.String("compression", string(d.Archive.Compression), "Compression for packed archives (deflate, store, zstd)")
	fs.String("s3-region", "", "S3 region")
	fs.String("s3-endpoint", "", "S3-compatible endpoint URL")
	fs.Bool("s3-path-style", false, "Use path-style S3 addressing")
	fs.Int64("s3-part-size", 0, "Multipart upload part size in MiB")
	fs.Duration("http-timeout", d.HTTP.Timeout, "Timeout of a single HTTP transfer")
	fs.String("ant-home", "", "Installation directory of the Ant-based build tool")
	fs.String("java", d.Build.Java, "Java executable used with --ant-home")
	fs.StringSlice("build-command", nil, "Build command; {input} and {output} are substituted")
}

// Load merges, from lowest to highest precedence, the defaults, the config
// file, GSTAGE_* environment variables and the flags set on fs. The legacy
// input and output variables seed source and destination. configFile may be
// empty, in which case ./gstage.{yaml,toml,json} is read when present.
func Load(fs *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("source", d.Source)
	v.SetDefault("destination", d.Destination)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("state_dir", d.StateDir)
	v.SetDefault("summary", d.SummaryPath)
	v.SetDefault("tui", d.TUI)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("staging.root", d.Staging.Root)
	v.SetDefault("staging.cleanup", string(d.Staging.Cleanup))
	v.SetDefault("archive.compression", string(d.Archive.Compression))
	v.SetDefault("s3.region", d.S3.Region)
	v.SetDefault("s3.endpoint", d.S3.Endpoint)
	v.SetDefault("s3.path_style", d.S3.PathStyle)
	v.SetDefault("s3.part_size_mib", d.S3.PartSizeMiB)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("build.ant_home", d.Build.AntHome)
	v.SetDefault("build.java", d.Build.Java)
	v.SetDefault("build.command", d.Build.Command)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("source", EnvPrefix+"_SOURCE", "input"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("destination", EnvPrefix+"_DESTINATION", "output"); err != nil {
		return nil, err
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings and normalizes the enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	policy, err := staging.ParsePolicy(string(c.Staging.Cleanup))
	if err != nil {
		errs = append(errs, err)
	}
	c.Staging.Cleanup = policy

	method, err := archive.ParseMethod(string(c.Archive.Compression))
	if err != nil {
		errs = append(errs, err)
	}
	c.Archive.Compression = method

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	if c.S3.PartSizeMiB < 0 {
		errs = append(errs, errors.New("s3 part size must not be negative"))
	}
	if c.HTTP.Timeout < 0 {
		errs = append(errs, errors.New("http timeout must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// HasBuilder reports whether a build tool is configured.
func (c *Config) HasBuilder() bool {
	return len(c.Build.Command) > 0 || c.Build.AntHome != ""
}

// Level returns the parsed log level. Validate must have succeeded.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
