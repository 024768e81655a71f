package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given project root.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (CFLINT_*)
// 2. Config file (.cflint-runner/config.yml or .cflint-runner/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, ".cflint-runner")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("CFLINT")
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., CFLINT_ENGINE_COMMAND)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("engine.command")

	v.BindEnv("analysis.mode")
	v.BindEnv("analysis.skip_malformed")
	v.BindEnv("analysis.error_reporting")
	v.BindEnv("analysis.error_threshold")
	v.BindEnv("analysis.file_timeout_seconds")
	v.BindEnv("analysis.max_consecutive_timeouts")

	v.BindEnv("preprocess.enabled")

	v.BindEnv("fallback.enabled")
	v.BindEnv("fallback.max_issues_per_file")

	v.BindEnv("import.max_result_bytes")
	v.BindEnv("import.max_issue_count")

	v.BindEnv("report.sink")
	v.BindEnv("report.database")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("engine.command", defaults.Engine.Command)
	v.SetDefault("engine.args", defaults.Engine.Args)

	v.SetDefault("paths.sources", defaults.Paths.Sources)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)

	v.SetDefault("analysis.mode", defaults.Analysis.Mode)
	v.SetDefault("analysis.skip_malformed", defaults.Analysis.SkipMalformed)
	v.SetDefault("analysis.error_reporting", defaults.Analysis.ErrorReporting)
	v.SetDefault("analysis.error_threshold", defaults.Analysis.ErrorThreshold)
	v.SetDefault("analysis.file_timeout_seconds", defaults.Analysis.FileTimeoutSeconds)
	v.SetDefault("analysis.max_consecutive_timeouts", defaults.Analysis.MaxConsecutiveTimeouts)

	v.SetDefault("preprocess.enabled", defaults.Preprocess.Enabled)

	v.SetDefault("fallback.enabled", defaults.Fallback.Enabled)
	v.SetDefault("fallback.max_issues_per_file", defaults.Fallback.MaxIssuesPerFile)

	v.SetDefault("import.max_result_bytes", defaults.Import.MaxResultBytes)
	v.SetDefault("import.max_issue_count", defaults.Import.MaxIssueCount)

	v.SetDefault("report.sink", defaults.Report.Sink)
	v.SetDefault("report.database", defaults.Report.Database)
}

// LoadConfig is a convenience function that creates a loader and loads
// config from the current working directory.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
