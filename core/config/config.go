// Package config loads nuver settings from .nuver.{yaml,toml,json} files and
// NUVER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/emenda-labs/nuver/core/changespec"
	"github.com/emenda-labs/nuver/core/version"
	"github.com/emenda-labs/nuver/drivers/dotnet/csharp"
	"github.com/emenda-labs/nuver/pkg/nuget"
)

// FileName is the config file base name looked up in the project directory.
const FileName = ".nuver"

// EnvPrefix prefixes environment overrides, e.g. NUVER_CACHE_PATH.
const EnvPrefix = "NUVER"

// Compiler modes.
const (
	ModeTreeSitter = "treesitter"
	ModeExec       = "exec"
)

// Config is the complete nuver configuration.
type Config struct {
	Sources           []string       `mapstructure:"sources" yaml:"sources"`
	Cache             CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Compiler          CompilerConfig `mapstructure:"compiler" yaml:"compiler"`
	Policy            PolicyConfig   `mapstructure:"policy" yaml:"policy"`
	Parallelism       int            `mapstructure:"parallelism" yaml:"parallelism"`
	DefaultVersion    string         `mapstructure:"defaultVersion" yaml:"defaultVersion"`
	IncludePrerelease bool           `mapstructure:"prerelease" yaml:"prerelease"`
	Log               LogConfig      `mapstructure:"log" yaml:"log"`
}

// CacheConfig configures the downloaded package cache.
type CacheConfig struct {
	// Path is the sqlite database file. Empty disables caching.
	Path string `mapstructure:"path" yaml:"path"`
}

// CompilerConfig selects how candidate projects are compiled.
type CompilerConfig struct {
	Mode string `mapstructure:"mode" yaml:"mode"`
	// Command is the external dump command for exec mode. Arguments may
	// contain {project} and {target}.
	Command []string `mapstructure:"command" yaml:"command"`
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

// PolicyConfig holds change classification overrides.
type PolicyConfig struct {
	AddedType string `mapstructure:"addedType" yaml:"addedType"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Sources: []string{nuget.DefaultSource},
		Compiler: CompilerConfig{
			Mode:    ModeTreeSitter,
			Exclude: append([]string(nil), csharp.DefaultExclude...),
		},
		Policy:         PolicyConfig{AddedType: changespec.SeverityMajor.String()},
		Parallelism:    1,
		DefaultVersion: version.DefaultVersion,
		Log:            LogConfig{Level: "warn", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("sources", d.Sources)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("compiler.mode", d.Compiler.Mode)
	// No default command; bound so NUVER_COMPILER_COMMAND is still seen.
	_ = v.BindEnv("compiler.command")
	v.SetDefault("compiler.exclude", d.Compiler.Exclude)
	v.SetDefault("policy.addedType", d.Policy.AddedType)
	v.SetDefault("parallelism", d.Parallelism)
	v.SetDefault("defaultVersion", d.DefaultVersion)
	v.SetDefault("prerelease", d.IncludePrerelease)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads configuration for a project directory. When file is non-empty it
// is read instead of looking up .nuver.* in dir, and must exist. Environment
// variables override file values.
func Load(dir, file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(filepath.Clean(dir))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return &ConfigError{Field: "sources", Message: "at least one package source is required"}
	}
	for _, s := range c.Sources {
		if strings.TrimSpace(s) == "" {
			return &ConfigError{Field: "sources", Message: "empty package source"}
		}
	}

	switch c.Compiler.Mode {
	case ModeTreeSitter:
	case ModeExec:
		if len(c.Compiler.Command) == 0 {
			return &ConfigError{Field: "compiler.command", Message: "required when compiler.mode is exec"}
		}
	default:
		return &ConfigError{Field: "compiler.mode", Message: fmt.Sprintf("unknown mode %q", c.Compiler.Mode)}
	}

	if _, err := c.AddedTypeSeverity(); err != nil {
		return &ConfigError{Field: "policy.addedType", Message: err.Error()}
	}
	if c.Parallelism < 1 {
		return &ConfigError{Field: "parallelism", Message: "must be at least 1"}
	}
	if _, err := version.Parse(c.DefaultVersion); err != nil {
		return &ConfigError{Field: "defaultVersion", Message: err.Error()}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ConfigError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return &ConfigError{Field: "log.format", Message: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	return nil
}

// AddedTypeSeverity parses policy.addedType. Only patch, minor and major are
// accepted.
func (c *Config) AddedTypeSeverity() (changespec.Severity, error) {
	sev, err := changespec.ParseSeverity(c.Policy.AddedType)
	if err != nil {
		return changespec.SeverityNone, err
	}
	if !sev.Recordable() {
		return changespec.SeverityNone, fmt.Errorf("%s cannot classify a change", sev)
	}
	return sev, nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
